package types

import "time"

// RunOutcome classifies how a single check of a target ended.
type RunOutcome string

const (
	RunSuccess RunOutcome = "success"
	RunFailed  RunOutcome = "failed"

	// RunSkippedLocked means the check never ran because another check of
	// the same target was already in flight.
	RunSkippedLocked RunOutcome = "skipped-locked"
)

// RunRecord is the audit trail entry for one check of one target.
type RunRecord struct {
	TargetID   string     `json:"target_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Outcome    RunOutcome `json:"outcome"`
	Method     Method     `json:"method,omitempty"`
	Attempts   int        `json:"attempts,omitempty"`
	Notified   bool       `json:"notified,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Duration is the wall time the check took.
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// DeliveryStatus is the terminal state of one channel delivery attempt.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// DeliveryAttempt records one channel's attempt to deliver a notification.
type DeliveryAttempt struct {
	Channel string         `json:"channel"`
	Status  DeliveryStatus `json:"status"`
	At      time.Time      `json:"at"`
	Error   string         `json:"error,omitempty"`
}

// NotificationEvent is the audit record of one dispatched notification,
// including the per-channel delivery outcomes.
type NotificationEvent struct {
	TargetID   string            `json:"target_id"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	CreatedAt  time.Time         `json:"created_at"`
	Deliveries []DeliveryAttempt `json:"deliveries,omitempty"`
}

// AllFailed reports whether every channel failed to deliver the event.
func (e NotificationEvent) AllFailed() bool {
	if len(e.Deliveries) == 0 {
		return false
	}
	for _, d := range e.Deliveries {
		if d.Status == DeliverySent {
			return false
		}
	}
	return true
}
