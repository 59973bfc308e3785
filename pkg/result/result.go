package result

import (
	"time"

	"github.com/chaosnative/chaos-runner/pkg/events"
	"github.com/chaosnative/chaos-runner/pkg/log"
	"github.com/chaosnative/chaos-runner/pkg/types"
	"github.com/kyokomi/emoji"
	"github.com/sirupsen/logrus"
)

// ExperimentResult is the immutable outcome of one experiment run. It
// carries every raw sample collected (baseline plus monitoring window) so
// the run can be re-analysed independently later.
type ExperimentResult struct {
	Name              string               `json:"name,omitempty"`
	Hypothesis        types.Hypothesis     `json:"hypothesis"`
	Verdict           string               `json:"verdict"`
	Success           bool                 `json:"success"`
	FinalState        types.RunState       `json:"finalState"`
	Baseline          []types.MetricSample `json:"baseline,omitempty"`
	Samples           []types.MetricSample `json:"samples,omitempty"`
	RollbackTriggered bool                 `json:"rollbackTriggered"`
	FailureReason     string               `json:"failureReason,omitempty"`
	FailedReverts     []string             `json:"failedReverts,omitempty"`
	StartedAt         time.Time            `json:"startedAt"`
	EndedAt           time.Time            `json:"endedAt"`
	Events            []events.Event       `json:"events,omitempty"`
}

// Verdict derives the experiment verdict from its terminal state
func Verdict(finalState types.RunState, success bool) string {
	switch {
	case finalState == types.StateAborted:
		return types.AbortVerdict
	case success:
		return types.PassVerdict
	default:
		return types.FailVerdict
	}
}

// Summary logs the human-readable verdict of the experiment
func (r ExperimentResult) Summary() {
	verdict := r.Verdict + emoji.Sprint(" :thumbsdown:")
	if r.Success {
		verdict = r.Verdict + emoji.Sprint(" :thumbsup:")
	}

	fields := logrus.Fields{
		"Verdict":           verdict,
		"FinalState":        r.FinalState,
		"RollbackTriggered": r.RollbackTriggered,
		"BaselineSamples":   len(r.Baseline),
		"MonitoredSamples":  len(r.Samples),
		"Duration":          r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
	}
	if r.FailureReason != "" {
		fields["FailureReason"] = r.FailureReason
	}
	if len(r.FailedReverts) > 0 {
		// these targets need manual remediation
		fields["FailedReverts"] = r.FailedReverts
	}
	log.InfoWithValues("[Summary]: Chaos experiment finished", fields)
}
