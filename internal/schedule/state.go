// Package schedule decides which emails are due for each recipient and
// materializes, dispatches, and cancels them.
package schedule

import (
	"github.com/phleudt/mailscheduler/internal/types"
)

// State classifies a recipient's position in their follow-up sequence.
//
// The names keep the historical surface vocabulary: StateInitialScheduled is
// returned even when the initial email is already SENT — it means "ready to
// schedule the next single follow-up", not "the initial is still pending".
type State string

const (
	// StateNoEmails means the recipient has no email rows yet.
	StateNoEmails State = "NO_EMAILS_SCHEDULED"
	// StateInitialScheduled means one more follow-up may be scheduled now.
	StateInitialScheduled State = "INITIAL_EMAIL_SCHEDULED"
	// StateFirstFollowUpScheduled means the initial and its first follow-up
	// are resolved; the next two follow-ups may be scheduled.
	StateFirstFollowUpScheduled State = "FIRST_FOLLOWUP_SCHEDULED"
	// StateMaxFollowUpsReached is terminal: the plan is exhausted.
	StateMaxFollowUpsReached State = "MAX_FOLLOWUPS_REACHED"
	// StateNoSchedulingRequired means a relevant email is still PENDING;
	// wait for it to resolve before scheduling more.
	StateNoSchedulingRequired State = "NO_SCHEDULING_REQUIRED"
)

// ResolveState classifies a recipient from their email history in creation
// order, the highest follow-up number already scheduled, and the plan's
// follow-up count.
//
// The exhaustion check runs first and is terminal regardless of history.
func ResolveState(history []*types.Email, currentFollowup, maxFollowup int) State {
	if currentFollowup >= maxFollowup {
		return StateMaxFollowUpsReached
	}
	if len(history) == 0 {
		return StateNoEmails
	}

	initial := history[0]
	last := history[len(history)-1]

	switch initial.Status {
	case types.StatusPending:
		// Initial not yet dispatched. The usual shape after a first pass is
		// initial + first follow-up, both pending: nothing to do until the
		// initial resolves.
		if len(history) == 2 && last.Status == types.StatusPending {
			return StateNoSchedulingRequired
		}
		return StateInitialScheduled

	case types.StatusSent:
		if last == initial {
			// Only the initial exists; its first follow-up is due.
			return StateInitialScheduled
		}
		switch last.Status {
		case types.StatusPending:
			return StateNoSchedulingRequired
		case types.StatusSent:
			return StateFirstFollowUpScheduled
		default:
			// The latest follow-up failed or was cancelled; one more may go out.
			return StateInitialScheduled
		}

	default:
		return StateFirstFollowUpScheduled
	}
}

// CurrentFollowupNumber returns the highest follow-up sequence number among
// the recipient's emails, 0 when only an initial (or nothing) exists.
func CurrentFollowupNumber(history []*types.Email) int {
	current := 0
	for _, e := range history {
		if e.FollowupNumber > current {
			current = e.FollowupNumber
		}
	}
	return current
}
