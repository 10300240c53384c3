package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventRunSettled    = "bulk_run.settled"
	EventRunAborted    = "bulk_run.aborted"
	EventRunRolledBack = "bulk_run.rolled_back"
)

// RunEvent is published to Kafka once per run, whatever the outcome.
type RunEvent struct {
	EventType    string    `json:"event_type"`
	BulkRunID    uuid.UUID `json:"bulk_run_id"`
	AccountID    string    `json:"account_id"`
	State        string    `json:"state"`
	RowCount     int       `json:"row_count"`
	TotalCharged int64     `json:"total_charged"`
	NewBalance   int64     `json:"new_balance,omitempty"`
	RolledBack   bool      `json:"rolled_back"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ReconciliationAlert is sent to SNS when a rollback left inconsistencies.
type ReconciliationAlert struct {
	EventType        string    `json:"event_type"`
	BulkRunID        uuid.UUID `json:"bulk_run_id"`
	AccountID        string    `json:"account_id"`
	OrphanCount      int       `json:"orphan_count"`
	RestoreSucceeded bool      `json:"restore_succeeded"`
	ReportKey        string    `json:"report_key,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}
