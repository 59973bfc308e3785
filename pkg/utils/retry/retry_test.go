package retry

import (
	"errors"
	"testing"
	"time"
)

func TestTimesWait(t *testing.T) {
	model := Times(5).Wait(2 * time.Second)

	if model.retry != 5 {
		t.Errorf("expected retry=5, got %d", model.retry)
	}
	if model.waitTime != 2*time.Second {
		t.Errorf("expected waitTime=2s, got %s", model.waitTime)
	}
}

func TestTry_ActionSucceedsImmediately(t *testing.T) {
	model := Times(3).Wait(0)

	calls := 0
	action := func(attempt uint) error {
		calls++
		return nil
	}

	if err := model.Try(action); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestTry_ActionFailsThenSucceeds(t *testing.T) {
	model := Times(3).Wait(0)

	calls := 0
	action := func(attempt uint) error {
		calls++
		if attempt < 1 {
			return errors.New("fail")
		}
		return nil
	}

	if err := model.Try(action); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestTry_ActionAlwaysFails(t *testing.T) {
	model := Times(3).Wait(0)

	calls := 0
	action := func(attempt uint) error {
		calls++
		return errors.New("fail")
	}

	if err := model.Try(action); err == nil {
		t.Error("expected error, got nil")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestTry_NilAction(t *testing.T) {
	if err := Times(3).Try(nil); err == nil {
		t.Error("expected error for nil action")
	}
}
