package deletion

import (
	"time"

	"wipetrace/internal/domain/enums"
)

// allowed lists the statuses each non-terminal status may move to. FAILED and
// REJECTED are reachable from every non-terminal status and are added by
// CanTransition.
var allowed = map[enums.RequestStatus][]enums.RequestStatus{
	enums.StatusPending:      {enums.StatusSent, enums.StatusCancelled},
	enums.StatusSent:         {enums.StatusAcknowledged, enums.StatusInProgress, enums.StatusCompleted, enums.StatusCancelled},
	enums.StatusAcknowledged: {enums.StatusInProgress, enums.StatusCompleted},
	enums.StatusInProgress:   {enums.StatusCompleted},
}

func CanTransition(from, to enums.RequestStatus) bool {
	if from.Terminal() || from == to {
		return false
	}
	if to == enums.StatusFailed || to == enums.StatusRejected {
		return true
	}
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transitionPatch builds the column updates that accompany moving current to
// status to at now. sentAt is only ever set once.
func transitionPatch(current DeletionRequest, to enums.RequestStatus, opts TransitionOptions, now time.Time) Patch {
	p := Patch{Status: &to, Notes: opts.Notes, InternalNotes: opts.InternalNotes}
	switch to {
	case enums.StatusSent:
		if current.SentAt == nil {
			p.SentAt = &now
		}
	case enums.StatusAcknowledged:
		if current.AcknowledgedAt == nil {
			p.AcknowledgedAt = &now
		}
	case enums.StatusCompleted:
		p.CompletedAt = &now
		p.ActualCompletion = &now
	}
	return p
}
