package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// BulkRunRequest is the payload accepted by POST /bulk-runs and by the SQS intake.
type BulkRunRequest struct {
	Rows               []RowInput  `json:"rows"`
	DefaultProductType ProductType `json:"defaultProductType,omitempty"`
}

// RowInput is one raw row as submitted. Fields are kept undecoded so numeric
// values can be checked for fractional parts instead of being truncated.
type RowInput struct {
	RowIndex    *int                       `json:"rowIndex,omitempty"`
	ProductType ProductType                `json:"productType,omitempty"`
	Fields      map[string]json.RawMessage `json:"fields"`
	IsValid     bool                       `json:"isValid"`
}

// Row is a classified, typed input row. It is never modified after classification.
type Row struct {
	Index   int
	Product ProductSpec

	PlaceURL     string
	BusinessName string
	Keyword      string
	GuideText    string
	StartDate    string

	DailyCount    int64
	OperationDays int64
	TotalCount    int64
}

// SettlementRow is a Row plus the values the pipeline derives for it.
type SettlementRow struct {
	Row          *Row
	PricePerUnit int64
	Cost         int64
	MID          string
	DisplayName  string
}

// CreatedRecordHandle locates one record written during a run. It only lives
// in memory and is what the compensator deletes.
type CreatedRecordHandle struct {
	StoreName string
	RecordID  string
}

// RowResult is the per-row outcome of a settled run.
type RowResult struct {
	RowIndex         int         `json:"rowIndex"`
	Success          bool        `json:"success"`
	ProductType      ProductType `json:"productType"`
	SubmissionNumber string      `json:"submissionNumber,omitempty"`
	RecordID         string      `json:"recordId,omitempty"`
	Cost             int64       `json:"cost"`
	MID              string      `json:"mid,omitempty"`
	BusinessName     string      `json:"businessName,omitempty"`
}

type RunSummary struct {
	TotalRecords int   `json:"totalRecords"`
	SuccessCount int   `json:"successCount"`
	FailedCount  int   `json:"failedCount"`
	TotalCharged int64 `json:"totalCharged"`
	NewBalance   int64 `json:"newBalance"`
}

// BulkRunResponse is returned when every row was persisted.
type BulkRunResponse struct {
	Success   bool        `json:"success"`
	Results   []RowResult `json:"results"`
	BulkRunID uuid.UUID   `json:"bulkRunId"`
	Summary   RunSummary  `json:"summary"`
}

// FailedDelete is one compensation delete that did not go through.
type FailedDelete struct {
	StoreName string `json:"storeName"`
	RecordID  string `json:"recordId"`
	Error     string `json:"error"`
}

// CompensationReport describes what the compensator managed to undo.
type CompensationReport struct {
	AttemptedDeletes int            `json:"attemptedDeletes"`
	FailedDeletes    []FailedDelete `json:"failedDeletes,omitempty"`
	BalanceRestored  bool           `json:"balanceRestored"`
	RestoreError     string         `json:"restoreError,omitempty"`
}

// Clean reports whether every record was removed and the balance restored.
func (c *CompensationReport) Clean() bool {
	return c != nil && len(c.FailedDeletes) == 0 && c.BalanceRestored
}

// BulkRunFailure is the response body of an aborted or rolled back run.
type BulkRunFailure struct {
	Success      bool                `json:"success"`
	Error        string              `json:"error"`
	RolledBack   bool                `json:"rolledBack"`
	Stage        string              `json:"stage"`
	BulkRunID    uuid.UUID           `json:"bulkRunId"`
	RowIndex     *int                `json:"rowIndex,omitempty"`
	InvalidRows  []int               `json:"invalidRows,omitempty"`
	Required     *int64              `json:"required,omitempty"`
	Available    *int64              `json:"available,omitempty"`
	Compensation *CompensationReport `json:"compensation,omitempty"`
}

// BulkRunMessage is the SQS intake envelope.
type BulkRunMessage struct {
	AccountID string         `json:"account_id" validate:"required,max=64"`
	Request   BulkRunRequest `json:"request"`
}
