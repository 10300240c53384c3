package models

import "time"

// PriceConfig is the per-account unit price of one pricing key. Rows are
// managed by the pricing admin tooling, this service only reads them.
type PriceConfig struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AccountID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_price_account_key" json:"account_id"`
	PricingKey   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_price_account_key" json:"pricing_key"`
	PricePerUnit int64     `gorm:"not null" json:"price_per_unit"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
