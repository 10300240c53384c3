package services

import (
	"context"
	"fmt"

	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"go.uber.org/zap"
)

// compensate undoes a debited run: every created record is deleted, then the
// balance is restored to its pre-debit value. It keeps going past individual
// failures and reports them. It runs on its own context so a cancelled
// request cannot cut the cleanup short.
func (s *settlementServiceImpl) compensate(run *bulkRun) *models.CompensationReport {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CompensationTimeout)
	defer cancel()

	report := &models.CompensationReport{AttemptedDeletes: len(run.handles)}

	for i := len(run.handles) - 1; i >= 0; i-- {
		h := run.handles[i]
		var err error
		if store, ok := s.deps.Stores[h.StoreName]; ok {
			err = store.Delete(ctx, h.RecordID)
		} else {
			err = fmt.Errorf("no record store named %s", h.StoreName)
		}
		if err != nil {
			run.log.Error("Compensation delete failed",
				zap.String("store", h.StoreName),
				zap.String("record_id", h.RecordID),
				zap.Error(err),
			)
			report.FailedDeletes = append(report.FailedDeletes, models.FailedDelete{
				StoreName: h.StoreName,
				RecordID:  h.RecordID,
				Error:     err.Error(),
			})
		}
	}

	if !run.debited {
		report.BalanceRestored = true
		return report
	}

	// Absolute and conditional: only undo our own debit, never a later change.
	if err := s.deps.Ledger.Restore(ctx, run.accountID, run.preDebit-run.total, run.preDebit); err != nil {
		run.log.Error("Balance restore failed",
			zap.Int64("pre_debit_balance", run.preDebit),
			zap.Int64("debit", run.total),
			zap.Error(err),
		)
		report.RestoreError = err.Error()
	} else {
		report.BalanceRestored = true
	}
	return report
}
