/*
transition.go - Explicit transaction state machine

PURPOSE:
  A single transition table is the only authority on which status changes
  are legal. Every ledger operation checks the table instead of comparing
  status strings inline, so illegal transitions are rejected in one place.

STATE MACHINE:

  PENDING ──confirm──▶ AWAITING_ACCEPTANCE ──accept──▶ COMPLETED
     │                        │      │
     │cancel/admin deny       │      └──decline──▶ DENIED
     ▼                        ▼cancel
  CANCELLED/DENIED        CANCELLED

  Any non-terminal status may move to FAILED when a balance mutation
  raises unexpectedly (compensating path in service.go).

SEE ALSO:
  - service.go: performs the transitions inside units of work
*/
package wallet

// transitions lists, for each status, the statuses it may legally move to.
// Absence means the transition is rejected. Terminal statuses have no entry.
var transitions = map[Status][]Status{
	StatusPending: {
		StatusAwaitingAcceptance, // confirm
		StatusCancelled,          // cancel
		StatusDenied,             // admin deny
		StatusFailed,
	},
	StatusAwaitingAcceptance: {
		StatusCompleted, // accept
		StatusDenied,    // decline
		StatusCancelled, // cancel
		StatusFailed,
	},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
