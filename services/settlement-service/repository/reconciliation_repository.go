package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"gorm.io/gorm"
)

// ReconciliationRepository stores reports for runs whose rollback was incomplete.
type ReconciliationRepository interface {
	Create(ctx context.Context, report *models.ReconciliationReport) error
	// FindByRunID returns nil, nil when the run has no report.
	FindByRunID(ctx context.Context, runID uuid.UUID) (*models.ReconciliationReport, error)
}

type GormReconciliationRepository struct {
	db *gorm.DB
}

func NewGormReconciliationRepository(db *gorm.DB) ReconciliationRepository {
	return &GormReconciliationRepository{db: db}
}

func (r *GormReconciliationRepository) Create(ctx context.Context, report *models.ReconciliationReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("save reconciliation report for run %s: %w", report.BulkRunID, err)
	}
	return nil
}

func (r *GormReconciliationRepository) FindByRunID(ctx context.Context, runID uuid.UUID) (*models.ReconciliationReport, error) {
	var report models.ReconciliationReport
	err := r.db.WithContext(ctx).Where("bulk_run_id = ?", runID).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}
