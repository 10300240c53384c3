package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"gorm.io/gorm"
)

// ErrPriceNotConfigured is returned when an account has no active price for a pricing key.
var ErrPriceNotConfigured = errors.New("price not configured")

// PriceDirectory resolves the unit price an account pays for a pricing key.
type PriceDirectory interface {
	PricePerUnit(ctx context.Context, accountID, pricingKey string) (int64, error)
}

// GormPriceDirectory implements PriceDirectory on the price_configs table.
type GormPriceDirectory struct {
	db *gorm.DB
}

func NewGormPriceDirectory(db *gorm.DB) PriceDirectory {
	return &GormPriceDirectory{db: db}
}

func (r *GormPriceDirectory) PricePerUnit(ctx context.Context, accountID, pricingKey string) (int64, error) {
	var cfg models.PriceConfig
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND pricing_key = ? AND active = ?", accountID, pricingKey, true).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrPriceNotConfigured
	}
	if err != nil {
		return 0, fmt.Errorf("lookup price %s for account %s: %w", pricingKey, accountID, err)
	}
	if cfg.PricePerUnit < 0 {
		return 0, fmt.Errorf("negative price configured for %s: %d", pricingKey, cfg.PricePerUnit)
	}
	return cfg.PricePerUnit, nil
}
