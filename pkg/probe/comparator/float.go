package comparator

import (
	"fmt"

	"github.com/chaosnative/chaos-runner/pkg/cerrors"
)

// CompareFloat compares floating numbers for specific operation
// it check for the >=, >, <=, <, ==, != operators
func (model Model) CompareFloat(errorCode cerrors.ErrorType) error {
	obj := Float{a: model.a, b: model.b}

	switch model.operator {
	case ">=":
		if !obj.isGreaterorEqual() {
			return cerrors.Error{ErrorCode: errorCode, Reason: fmt.Sprintf("actual value: %v is not greater than or equal to the expected value: %v", obj.a, obj.b)}
		}
	case "<=":
		if !obj.isLesserorEqual() {
			return cerrors.Error{ErrorCode: errorCode, Reason: fmt.Sprintf("actual value: %v is not lesser than or equal to the expected value: %v", obj.a, obj.b)}
		}
	case ">":
		if !obj.isGreater() {
			return cerrors.Error{ErrorCode: errorCode, Reason: fmt.Sprintf("actual value: %v is not greater than the expected value: %v", obj.a, obj.b)}
		}
	case "<":
		if !obj.isLesser() {
			return cerrors.Error{ErrorCode: errorCode, Reason: fmt.Sprintf("actual value: %v is not lesser than the expected value: %v", obj.a, obj.b)}
		}
	case "==":
		if !obj.isEqual() {
			return cerrors.Error{ErrorCode: errorCode, Reason: fmt.Sprintf("actual value: %v is not equal to the expected value: %v", obj.a, obj.b)}
		}
	case "!=":
		if !obj.isNotEqual() {
			return cerrors.Error{ErrorCode: errorCode, Reason: fmt.Sprintf("actual value: %v should not matched with the expected value: %v", obj.a, obj.b)}
		}
	default:
		return cerrors.Error{ErrorCode: errorCode, Reason: fmt.Sprintf("criteria '%s' not supported in the comparator", model.operator)}
	}
	return nil
}

// Matches reports whether the comparison holds, swallowing the reason
func (model Model) Matches() bool {
	return model.CompareFloat(cerrors.ErrorTypeGeneric) == nil
}

// Float contains operands for float comparator check
type Float struct {
	a float64
	b float64
}

// isGreater check for the first number should be greater than second number
func (f *Float) isGreater() bool {
	return f.a > f.b
}

// isGreaterorEqual check for the first number should be greater than or equals to the second number
func (f *Float) isGreaterorEqual() bool {
	return f.isGreater() || f.isEqual()
}

// isLesser check for the first number should be lesser than second number
func (f *Float) isLesser() bool {
	return f.a < f.b
}

// isLesserorEqual check for the first number should be less than or equals to the second number
func (f *Float) isLesserorEqual() bool {
	return f.isLesser() || f.isEqual()
}

// isEqual check for the both the numbers should be equal
func (f *Float) isEqual() bool {
	return f.a == f.b
}

// isNotEqual check for the both the numbers should not be equal
func (f *Float) isNotEqual() bool {
	return !f.isEqual()
}
