package events

import (
	"sync"
	"time"

	"github.com/chaosnative/chaos-runner/pkg/log"
	"github.com/sirupsen/logrus"
)

// Event is one timestamped entry in the experiment's audit trail
type Event struct {
	Reason    string    `json:"reason"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Recorder collects the lifecycle events of a single experiment run and
// logs each as it happens. The trail is attached to the experiment result
// so an operator can reconstruct what the runner did and when.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty event recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends an event to the trail
func (r *Recorder) Record(reason, message string) {
	event := Event{Reason: reason, Message: message, Timestamp: time.Now()}

	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()

	log.InfoWithValues("[Event]: "+message, logrus.Fields{
		"Reason": reason,
	})
}

// Events returns a copy of the recorded trail in order
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
