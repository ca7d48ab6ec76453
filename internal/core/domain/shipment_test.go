package domain

import "testing"

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to ShipmentStatus
		want     bool
	}{
		{StatusDraft, StatusPendingConfirmation, true},
		{StatusPendingConfirmation, StatusConfirmed, true},
		{StatusPendingConfirmation, StatusScheduled, true},
		{StatusConfirmed, StatusScheduled, true},
		{StatusScheduled, StatusScheduled, true},
		{StatusScheduled, StatusConfirmed, true}, // declined assignment revert
		{StatusScheduled, StatusPickupInProgress, true},
		{StatusPickupInProgress, StatusInTransit, true},
		{StatusInTransit, StatusDelivered, true},
		{StatusDelivered, StatusPODPendingReview, true},
		{StatusDelivered, StatusCompleted, true},
		{StatusPODPendingReview, StatusCompleted, true},

		// No skipping or backward moves.
		{StatusConfirmed, StatusInTransit, false},
		{StatusDelivered, StatusInTransit, false},
		{StatusScheduled, StatusDelivered, false},

		// Any non-terminal status may cancel; terminal ones may not.
		{StatusException, StatusCancelled, true},
		{StatusInTransit, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusCancelled, false},

		// Nothing leaves a terminal status.
		{StatusCompleted, StatusScheduled, false},
		{StatusCancelled, StatusConfirmed, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNonTerminalStatuses(t *testing.T) {
	for _, s := range NonTerminalStatuses() {
		if s.Terminal() {
			t.Errorf("terminal status %s in non-terminal list", s)
		}
		if !s.CanTransitionTo(StatusCancelled) {
			t.Errorf("non-terminal status %s must be cancellable", s)
		}
	}
	if got := len(NonTerminalStatuses()); got != len(allStatuses)-2 {
		t.Fatalf("expected all but completed and cancelled, got %d statuses", got)
	}
}
