// Package models contains shared data models used across the cachewatch codebase.
package models

import "time"

// FailureRecord is one row of the monitored failure table as it was at fetch time.
// Records carry no identity beyond their field values: two rows that differ only
// in Date are distinct failures.
type FailureRecord struct {
	StudyID  string    `json:"medical_study_id"`
	Message  string    `json:"message"`
	EntityID string    `json:"corporate_entity_id"`
	Username string    `json:"username"`
	Date     time.Time `json:"date"`
}
