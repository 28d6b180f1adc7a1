package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunOutcomeNothingNew = "nothing_new"
	RunOutcomeNotified   = "notified"
	RunOutcomeDryRun     = "dry_run"
)

// RunReport summarizes one completed monitor run. Aborted runs produce an error
// instead of a report.
type RunReport struct {
	RunID      uuid.UUID       `json:"run_id"`
	Outcome    string          `json:"outcome"`
	Fetched    int             `json:"fetched"`
	Known      int             `json:"known"`
	New        int             `json:"new"`
	Stored     int             `json:"stored"`
	Receipt    *Receipt        `json:"receipt,omitempty"`
	Batch      []FailureRecord `json:"batch,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Receipt confirms that a transport accepted a notification.
type Receipt struct {
	MessageID string    `json:"message_id"`
	Recipient string    `json:"recipient"`
	Count     int       `json:"count"`
	SentAt    time.Time `json:"sent_at"`
}
