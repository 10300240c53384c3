package models

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionRecord holds the columns shared by every order table. BulkRunID is
// the only durable link between a record and the run that created it, and is
// what operators search by when a rollback left orphans behind.
type SubmissionRecord struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BulkRunID        uuid.UUID `gorm:"type:uuid;not null;index" json:"bulk_run_id"`
	AccountID        string    `gorm:"type:varchar(64);not null;index" json:"account_id"`
	SubmissionNumber string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"submission_number"`
	RowIndex         int       `gorm:"not null" json:"row_index"`
	PlaceURL         string    `gorm:"type:varchar(2048)" json:"place_url"`
	MID              string    `gorm:"column:mid;type:varchar(64)" json:"mid"`
	BusinessName     string    `gorm:"type:varchar(256)" json:"business_name"`
	PricePerUnit     int64     `gorm:"not null" json:"price_per_unit"`
	Cost             int64     `gorm:"not null" json:"cost"`
	Status           string    `gorm:"type:varchar(32);not null;default:'pending'" json:"status"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const RecordStatusPending = "pending"

// Record is implemented by every order table model.
type Record interface {
	Submission() *SubmissionRecord
	TableName() string
}

func (s *SubmissionRecord) Submission() *SubmissionRecord { return s }

// TrafficOrder is a place traffic campaign.
type TrafficOrder struct {
	SubmissionRecord `gorm:"embedded"`
	DailyCount       int64  `gorm:"not null" json:"daily_count"`
	OperationDays    int64  `gorm:"not null" json:"operation_days"`
	StartDate        string `gorm:"type:varchar(10)" json:"start_date"`
	Keyword          string `gorm:"type:varchar(256)" json:"keyword"`
}

func (TrafficOrder) TableName() string { return StoreTrafficOrders }

// SaveOrder is a place bookmark ("save") campaign.
type SaveOrder struct {
	SubmissionRecord `gorm:"embedded"`
	DailyCount       int64  `gorm:"not null" json:"daily_count"`
	OperationDays    int64  `gorm:"not null" json:"operation_days"`
	StartDate        string `gorm:"type:varchar(10)" json:"start_date"`
}

func (SaveOrder) TableName() string { return StoreSaveOrders }

// ReviewOrder is a receipt review campaign.
type ReviewOrder struct {
	SubmissionRecord `gorm:"embedded"`
	TotalCount       int64  `gorm:"not null" json:"total_count"`
	GuideText        string `gorm:"type:text" json:"guide_text"`
}

func (ReviewOrder) TableName() string { return StoreReviewOrders }

// BlogOrder is a blog review campaign.
type BlogOrder struct {
	SubmissionRecord `gorm:"embedded"`
	TotalCount       int64  `gorm:"not null" json:"total_count"`
	Keyword          string `gorm:"type:varchar(256)" json:"keyword"`
	GuideText        string `gorm:"type:text" json:"guide_text"`
}

func (BlogOrder) TableName() string { return StoreBlogOrders }

// RecordModels lists every order table for AutoMigrate.
func RecordModels() []interface{} {
	return []interface{}{&TrafficOrder{}, &SaveOrder{}, &ReviewOrder{}, &BlogOrder{}}
}
