package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"gorm.io/gorm"
)

// RecordStore persists the records of one product type.
type RecordStore interface {
	Name() string
	Insert(ctx context.Context, rec models.Record) (string, error)
	Delete(ctx context.Context, recordID string) error
	CountByRun(ctx context.Context, runID uuid.UUID) (int64, error)
}

// GormRecordStore is a RecordStore backed by one order table.
type GormRecordStore struct {
	db       *gorm.DB
	name     string
	newModel func() models.Record
}

func NewGormRecordStore(db *gorm.DB, name string, newModel func() models.Record) RecordStore {
	return &GormRecordStore{db: db, name: name, newModel: newModel}
}

// NewGormRecordStores returns one store per order table, keyed by store name.
func NewGormRecordStores(db *gorm.DB) map[string]RecordStore {
	return map[string]RecordStore{
		models.StoreTrafficOrders: NewGormRecordStore(db, models.StoreTrafficOrders, func() models.Record { return &models.TrafficOrder{} }),
		models.StoreSaveOrders:    NewGormRecordStore(db, models.StoreSaveOrders, func() models.Record { return &models.SaveOrder{} }),
		models.StoreReviewOrders:  NewGormRecordStore(db, models.StoreReviewOrders, func() models.Record { return &models.ReviewOrder{} }),
		models.StoreBlogOrders:    NewGormRecordStore(db, models.StoreBlogOrders, func() models.Record { return &models.BlogOrder{} }),
	}
}

func (s *GormRecordStore) Name() string { return s.name }

func (s *GormRecordStore) Insert(ctx context.Context, rec models.Record) (string, error) {
	if rec.TableName() != s.name {
		return "", fmt.Errorf("store %s cannot insert %s record", s.name, rec.TableName())
	}
	sub := rec.Submission()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return "", fmt.Errorf("insert into %s: %w", s.name, err)
	}
	return sub.ID.String(), nil
}

// Delete removes the record permanently. A record that is already gone counts
// as deleted.
func (s *GormRecordStore) Delete(ctx context.Context, recordID string) error {
	id, err := uuid.Parse(recordID)
	if err != nil {
		return fmt.Errorf("invalid record id %q: %w", recordID, err)
	}
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(s.newModel()).Error; err != nil {
		return fmt.Errorf("delete %s from %s: %w", recordID, s.name, err)
	}
	return nil
}

func (s *GormRecordStore) CountByRun(ctx context.Context, runID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(s.newModel()).Where("bulk_run_id = ?", runID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count %s records of run %s: %w", s.name, runID, err)
	}
	return n, nil
}
