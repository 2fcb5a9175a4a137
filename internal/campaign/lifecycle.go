package campaign

import "time"

// CloseReason explains why an active campaign was closed.
type CloseReason string

const (
	CloseReasonNone     CloseReason = ""
	CloseReasonDeadline CloseReason = "deadline"
	CloseReasonTarget   CloseReason = "target"
)

// Evaluate returns the status the campaign should have at now and, when that
// differs from the stored one, why it moved. Only ACTIVE campaigns move:
// CLOSED and CANCELLED are terminal, and CANCELLED is reachable only through Cancel.
func Evaluate(c *Campaign, now time.Time) (Status, CloseReason) {
	if c.Status != StatusActive {
		return c.Status, CloseReasonNone
	}

	if c.TargetAmount > 0 && c.CollectedAmount >= c.TargetAmount {
		return StatusClosed, CloseReasonTarget
	}

	if !now.Before(c.Deadline) {
		return StatusClosed, CloseReasonDeadline
	}

	return StatusActive, CloseReasonNone
}

// Transition applies Evaluate to c in place and reports whether the status changed.
func Transition(c *Campaign, now time.Time) (CloseReason, bool) {
	next, reason := Evaluate(c, now)
	if next == c.Status {
		return CloseReasonNone, false
	}

	c.Status = next
	c.ClosedAt = &now

	return reason, true
}

// Cancel moves an ACTIVE campaign to CANCELLED.
func Cancel(c *Campaign, now time.Time) error {
	if c.Status != StatusActive {
		return ErrNotActive
	}

	c.Status = StatusCancelled
	c.ClosedAt = &now

	return nil
}
