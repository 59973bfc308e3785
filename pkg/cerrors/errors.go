package cerrors

import (
	"encoding/json"
	"fmt"
)

type ErrorType string

const (
	ErrorTypeNonUserFriendly   ErrorType = "NON_USER_FRIENDLY_ERROR"
	ErrorTypeGeneric           ErrorType = "GENERIC_ERROR"
	ErrorTypeInvalidHypothesis ErrorType = "INVALID_HYPOTHESIS"
	ErrorTypeEmptyPopulation   ErrorType = "EMPTY_POPULATION"
	ErrorTypeMetricUnavailable ErrorType = "METRIC_UNAVAILABLE"
	ErrorTypeSteadyState       ErrorType = "STEADY_STATE_CHECK_ERROR"
	ErrorTypeTargetSelection   ErrorType = "TARGET_SELECTION_ERROR"
	ErrorTypeChaosInject       ErrorType = "CHAOS_INJECT_ERROR"
	ErrorTypeChaosRevert       ErrorType = "CHAOS_REVERT_ERROR"
	ErrorTypeTimeout           ErrorType = "TIMEOUT"
)

// Error is the user-friendly error carried across the runner boundary.
// It marshals to JSON so a failure reason stays machine-parseable in the
// experiment result.
type Error struct {
	Source    string    `json:"source,omitempty"`
	ErrorCode ErrorType `json:"errorCode,omitempty"`
	Phase     string    `json:"phase,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Target    string    `json:"target,omitempty"`
}

func (e Error) Error() string {
	return convertToJSON(e)
}

func (e Error) UserFriendly() bool {
	return true
}

func (e Error) ErrorType() ErrorType {
	return e.ErrorCode
}

func convertToJSON(e Error) string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("[%s]: %s", e.ErrorCode, e.Reason)
	}
	return string(data)
}
