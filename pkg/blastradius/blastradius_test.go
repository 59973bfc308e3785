package blastradius

import (
	"testing"

	"github.com/chaosnative/chaos-runner/pkg/cerrors"
	"github.com/chaosnative/chaos-runner/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectTargetsCount(t *testing.T) {
	tests := []struct {
		name       string
		eligible   []string
		percentage int
		want       int
	}{
		{name: "half of ten", eligible: population(10), percentage: 50, want: 5},
		{name: "full population", eligible: population(10), percentage: 100, want: 10},
		{name: "rounds up", eligible: population(3), percentage: 34, want: 2},
		{name: "minimum one from tiny percentage", eligible: population(10), percentage: 1, want: 1},
		{name: "single element population", eligible: population(1), percentage: 1, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selected, err := SelectTargets(tt.eligible, types.BlastRadiusSpec{Percentage: tt.percentage})
			require.NoError(t, err)
			assert.Len(t, selected, tt.want)
		})
	}
}

func TestSelectTargetsDeterministic(t *testing.T) {
	eligible := []string{"node-c", "node-a", "node-b", "node-e", "node-d"}
	spec := types.BlastRadiusSpec{Percentage: 40}

	first, err := SelectTargets(eligible, spec)
	require.NoError(t, err)

	// shuffled input, identical selection
	shuffled := []string{"node-e", "node-b", "node-d", "node-a", "node-c"}
	second, err := SelectTargets(shuffled, spec)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"node-a", "node-b"}, first)
}

func TestSelectTargetsDoesNotMutateInput(t *testing.T) {
	eligible := []string{"node-c", "node-a", "node-b"}

	_, err := SelectTargets(eligible, types.BlastRadiusSpec{Percentage: 100})
	require.NoError(t, err)
	assert.Equal(t, []string{"node-c", "node-a", "node-b"}, eligible)
}

func TestSelectTargetsEmptyPopulation(t *testing.T) {
	_, err := SelectTargets(nil, types.BlastRadiusSpec{Percentage: 50})
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrorTypeEmptyPopulation, cerrors.GetErrorType(err))
}

func TestSelectTargetsInvalidPercentage(t *testing.T) {
	for _, percentage := range []int{0, -1, 101} {
		_, err := SelectTargets(population(5), types.BlastRadiusSpec{Percentage: percentage})
		require.Error(t, err)
		assert.Equal(t, cerrors.ErrorTypeTargetSelection, cerrors.GetErrorType(err))
	}
}

func population(n int) []string {
	targets := make([]string, 0, n)
	for i := 0; i < n; i++ {
		targets = append(targets, string(rune('a'+i)))
	}
	return targets
}
