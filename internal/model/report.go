package model

import "time"

// OutcomeStatus classifies how a user's pass through a cycle ended.
type OutcomeStatus string

const (
	OutcomeOK      OutcomeStatus = "ok"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// UserOutcome summarizes one user's pass through a cycle. A failed
// outcome carries the error text and type; counts stay at their values
// from before the failure.
type UserOutcome struct {
	UserID              string        `json:"user_id"`
	Status              OutcomeStatus `json:"status"`
	Error               string        `json:"error,omitempty"`
	ErrorType           string        `json:"error_type,omitempty"`
	Scraped             int           `json:"scraped"`
	Incomplete          int           `json:"incomplete,omitempty"`
	New                 int           `json:"new"`
	Notified            int           `json:"notified"`
	FailedNotifications int           `json:"failed_notifications,omitempty"`
	Vanished            int           `json:"vanished,omitempty"`
}

// CycleReport aggregates the outcomes of one full cycle over the user
// snapshot taken at its start.
type CycleReport struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Users      int           `json:"users"`
	Outcomes   []UserOutcome `json:"outcomes"`
}

// Counts tallies outcomes by status.
func (r *CycleReport) Counts() (ok, failed, skipped int) {
	for _, o := range r.Outcomes {
		switch o.Status {
		case OutcomeOK:
			ok++
		case OutcomeFailed:
			failed++
		case OutcomeSkipped:
			skipped++
		}
	}
	return ok, failed, skipped
}

// TotalNotified sums dispatched notifications across all outcomes.
func (r *CycleReport) TotalNotified() int {
	total := 0
	for _, o := range r.Outcomes {
		total += o.Notified
	}
	return total
}
