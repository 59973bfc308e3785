package math

// Maximum calculates the maximum value among two integers
func Maximum(a int, b int) int {
	if a > b {
		return a
	}
	return b
}

//Minimum calculates the minimum value among two integers
func Minimum(a int, b int) int {
	if a > b {
		return b
	}
	return a
}

//Adjustment computes the given percentage of a total, rounded up.
// Rounding up keeps a non-zero population from ever shrinking to zero
// selected targets.
func Adjustment(total int, percentage int) int {
	if total <= 0 {
		return 0
	}
	return (total*percentage + 99) / 100
}
