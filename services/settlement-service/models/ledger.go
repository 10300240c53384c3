package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountLedger holds the single prepaid balance of an account.
type AccountLedger struct {
	AccountID string    `gorm:"type:varchar(64);primaryKey" json:"account_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// LedgerTransaction is an append-only balance change. One is written per
// settled run, never per row.
type LedgerTransaction struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AccountID         string    `gorm:"type:varchar(64);not null;index" json:"account_id"`
	Delta             int64     `gorm:"not null" json:"delta"`
	BalanceAfter      int64     `gorm:"not null" json:"balance_after"`
	ReferenceRunID    uuid.UUID `gorm:"type:uuid;not null;index" json:"reference_run_id"`
	ReferenceRecordID string    `gorm:"type:varchar(64)" json:"reference_record_id"`
	Description       string    `gorm:"type:text" json:"description"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// BalanceResponse is returned by GET /accounts/me/balance.
type BalanceResponse struct {
	AccountID    string              `json:"account_id"`
	Balance      int64               `json:"balance"`
	Transactions []LedgerTransaction `json:"transactions"`
}
