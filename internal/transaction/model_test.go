package transaction

import (
	"errors"
	"testing"
	"time"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusSuccess, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusPending, false},
		{StatusSuccess, StatusFailed, false},
		{StatusFailed, StatusSuccess, false},
		{StatusCancelled, StatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestTransitionRejectsTerminal(t *testing.T) {
	tx := Transaction{Status: StatusSuccess}
	err := tx.Transition(StatusFailed, time.Now())
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if tx.Status != StatusSuccess {
		t.Fatalf("status changed to %s", tx.Status)
	}

	pending := Transaction{Status: StatusPending}
	now := time.Now()
	if err := pending.Transition(StatusCancelled, now); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if pending.Status != StatusCancelled || !pending.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected state %+v", pending)
	}
}
