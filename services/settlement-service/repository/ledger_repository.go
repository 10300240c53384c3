package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"gorm.io/gorm"
)

var (
	// ErrBalanceConflict means the balance no longer holds the value the
	// caller expected, so the conditional write was not applied.
	ErrBalanceConflict = errors.New("balance changed concurrently")
	ErrAccountNotFound = errors.New("account ledger not found")
)

// LedgerStore owns account balances and their transaction history.
type LedgerStore interface {
	GetBalance(ctx context.Context, accountID string) (int64, error)
	// Debit subtracts amount only if the balance still equals expected.
	Debit(ctx context.Context, accountID string, expected, amount int64) (int64, error)
	// Restore sets the balance back to restoreTo only if it still equals current.
	Restore(ctx context.Context, accountID string, current, restoreTo int64) error
	AppendTransaction(ctx context.Context, tx *models.LedgerTransaction) error
	RecentTransactions(ctx context.Context, accountID string, limit int) ([]models.LedgerTransaction, error)
}

// GormLedgerStore implements LedgerStore on Postgres.
type GormLedgerStore struct {
	db *gorm.DB
}

func NewGormLedgerStore(db *gorm.DB) LedgerStore {
	return &GormLedgerStore{db: db}
}

func (r *GormLedgerStore) GetBalance(ctx context.Context, accountID string) (int64, error) {
	var ledger models.AccountLedger
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&ledger).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read balance for %s: %w", accountID, err)
	}
	return ledger.Balance, nil
}

// Debit is a compare-and-swap: the WHERE clause pins the balance the caller
// checked, so two runs cannot both spend the same funds.
func (r *GormLedgerStore) Debit(ctx context.Context, accountID string, expected, amount int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AccountLedger{}).
		Where("account_id = ? AND balance = ?", accountID, expected).
		UpdateColumn("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return 0, fmt.Errorf("debit %d from %s: %w", amount, accountID, result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, ErrBalanceConflict
	}
	return expected - amount, nil
}

// Restore writes an absolute value, guarded by the value this run left behind.
// A concurrent legitimate change makes it fail rather than be overwritten.
func (r *GormLedgerStore) Restore(ctx context.Context, accountID string, current, restoreTo int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.AccountLedger{}).
		Where("account_id = ? AND balance = ?", accountID, current).
		UpdateColumn("balance", restoreTo)
	if result.Error != nil {
		return fmt.Errorf("restore balance of %s: %w", accountID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBalanceConflict
	}
	return nil
}

func (r *GormLedgerStore) AppendTransaction(ctx context.Context, tx *models.LedgerTransaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("append ledger transaction: %w", err)
	}
	return nil
}

func (r *GormLedgerStore) RecentTransactions(ctx context.Context, accountID string, limit int) ([]models.LedgerTransaction, error) {
	var txs []models.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", accountID, err)
	}
	return txs, nil
}
