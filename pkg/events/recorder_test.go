package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderKeepsOrder(t *testing.T) {
	recorder := NewRecorder()
	recorder.Record("SteadyStateCheck", "baseline established")
	recorder.Record("ChaosInject", "applied stop-instance on i-1")
	recorder.Record("ChaosRevert", "reverted stop-instance on i-1")

	trail := recorder.Events()
	require.Len(t, trail, 3)
	assert.Equal(t, "SteadyStateCheck", trail[0].Reason)
	assert.Equal(t, "ChaosInject", trail[1].Reason)
	assert.Equal(t, "ChaosRevert", trail[2].Reason)
	for _, event := range trail {
		assert.False(t, event.Timestamp.IsZero())
	}
}

func TestEventsReturnsACopy(t *testing.T) {
	recorder := NewRecorder()
	recorder.Record("SteadyStateCheck", "baseline established")

	trail := recorder.Events()
	trail[0].Reason = "mutated"

	assert.Equal(t, "SteadyStateCheck", recorder.Events()[0].Reason)
}
