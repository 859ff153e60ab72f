package wallet

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusAwaitingAcceptance, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusDenied, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCompleted, false}, // must confirm first

		{StatusAwaitingAcceptance, StatusCompleted, true},
		{StatusAwaitingAcceptance, StatusDenied, true},
		{StatusAwaitingAcceptance, StatusCancelled, true},
		{StatusAwaitingAcceptance, StatusFailed, true},
		{StatusAwaitingAcceptance, StatusPending, false}, // no going back

		// Terminal statuses never move
		{StatusCompleted, StatusFailed, false},
		{StatusDenied, StatusPending, false},
		{StatusCancelled, StatusAwaitingAcceptance, false},
		{StatusFailed, StatusPending, false},

		{Status("bogus"), StatusPending, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	all := []Status{
		StatusPending, StatusAwaitingAcceptance, StatusCompleted,
		StatusDenied, StatusCancelled, StatusFailed,
	}
	for _, from := range all {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range all {
			if CanTransition(from, to) {
				t.Errorf("terminal status %q must not transition to %q", from, to)
			}
		}
	}
}
