package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReconciliationReport is written when a rollback could not fully undo a run.
// Operators use it, keyed by BulkRunID, to delete orphans or fix the balance.
type ReconciliationReport struct {
	ID               uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BulkRunID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"bulk_run_id"`
	AccountID        string          `gorm:"type:varchar(64);not null;index" json:"account_id"`
	PreDebitBalance  int64           `gorm:"not null" json:"pre_debit_balance"`
	DebitAmount      int64           `gorm:"not null" json:"debit_amount"`
	RestoreSucceeded bool            `gorm:"not null" json:"restore_succeeded"`
	OrphanedRecords  json.RawMessage `gorm:"type:jsonb" json:"orphaned_records"`
	Error            string          `gorm:"type:text" json:"error"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// RunRecoveryView is the admin view of what a run left behind.
type RunRecoveryView struct {
	BulkRunID      uuid.UUID             `json:"bulk_run_id"`
	RecordsByStore map[string]int64      `json:"records_by_store"`
	TotalRecords   int64                 `json:"total_records"`
	Reconciliation *ReconciliationReport `json:"reconciliation,omitempty"`
	NeedsAttention bool                  `json:"needs_attention"`
}
