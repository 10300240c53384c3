package services

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	aws_pkg "github.com/yashrajoria/bulk-settlement/pkg/aws"
	"github.com/yashrajoria/bulk-settlement/services/common/logger"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/events"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/providers"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/repository"
	"go.uber.org/zap"
)

// SettlementService defines the bulk run settlement operations.
type SettlementService interface {
	SubmitBulkRun(ctx context.Context, accountID string, req *models.BulkRunRequest) (*models.BulkRunResponse, *ServiceError)
	GetRunRecovery(ctx context.Context, runID uuid.UUID) (*models.RunRecoveryView, *ServiceError)
	GetBalance(ctx context.Context, accountID string) (*models.BalanceResponse, *ServiceError)
}

// Dependencies are the collaborators of the pipeline. Events, SNS, Uploader
// and Metrics are optional side channels and may be nil.
type Dependencies struct {
	Prices         repository.PriceDirectory
	Ledger         repository.LedgerStore
	Stores         map[string]repository.RecordStore
	Sequence       repository.SequenceGenerator
	Locker         repository.AccountLocker
	Reconciliation repository.ReconciliationRepository
	Enrichment     providers.EnrichmentProvider

	Events   events.RunEventPublisher
	SNS      aws_pkg.AlertPublisher
	Uploader aws_pkg.ObjectUploader
	Metrics  aws_pkg.MetricsRecorder
}

type Options struct {
	LeaseTTL             time.Duration
	CompensationTimeout  time.Duration
	SNSTopicARN          string
	ReconciliationBucket string
}

const recentTransactionLimit = 20

type settlementServiceImpl struct {
	deps   Dependencies
	opts   Options
	logger *zap.Logger
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(deps Dependencies, opts Options, logger *zap.Logger) SettlementService {
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 2 * time.Minute
	}
	if opts.CompensationTimeout <= 0 {
		opts.CompensationTimeout = 30 * time.Second
	}
	return &settlementServiceImpl{deps: deps, opts: opts, logger: logger}
}

// SubmitBulkRun runs one batch through the pipeline. Every failure before the
// debit leaves no trace; every failure after it is compensated before the
// error is returned.
func (s *settlementServiceImpl) SubmitBulkRun(ctx context.Context, accountID string, req *models.BulkRunRequest) (*models.BulkRunResponse, *ServiceError) {
	runID := uuid.New()
	run := &bulkRun{
		id:        runID,
		accountID: accountID,
		state:     StateValidating,
		log: logger.With(ctx, s.logger).With(
			zap.String("bulk_run_id", runID.String()),
			zap.String("account_id", accountID),
		),
	}
	rowCount := 0
	if req != nil {
		rowCount = len(req.Rows)
	}
	run.log.Info("Bulk run received", zap.Int("rows", rowCount), zap.String("state", string(run.state)))

	batch, err := ClassifyRows(req)
	if err != nil {
		return nil, s.abort(run, err)
	}
	run.batch = batch

	run.transition(StatePricing)
	memo := newPriceMemo(s.deps.Prices, accountID)
	if err := resolvePrices(ctx, memo, batch); err != nil {
		return nil, s.abort(run, err)
	}

	run.transition(StateEnriching)
	for _, row := range batch.Rows {
		mid, name, err := enrichRow(ctx, s.deps.Enrichment, row, run.log)
		if err != nil {
			return nil, s.abort(run, err)
		}
		price, err := memo.lookup(ctx, row.Product.PricingKey)
		if err != nil {
			return nil, s.abort(run, err)
		}
		run.settled = append(run.settled, &models.SettlementRow{
			Row:          row,
			PricePerUnit: price,
			MID:          mid,
			DisplayName:  name,
		})
	}

	run.transition(StateCharging)
	for _, sr := range run.settled {
		cost, err := CalculateCharge(sr.Row, sr.PricePerUnit)
		if err != nil {
			return nil, s.abort(run, &RowError{RowIndex: sr.Row.Index, Reason: "charge could not be computed", Err: err})
		}
		sr.Cost = cost
		total, ok := addNonNegative(run.total, cost)
		if !ok {
			return nil, s.abort(run, &RowError{RowIndex: sr.Row.Index, Reason: "batch total overflows", Err: ErrChargeOverflow})
		}
		run.total = total
	}

	run.transition(StateBalanceCheck)
	lease, err := s.deps.Locker.Acquire(ctx, accountID, s.opts.LeaseTTL)
	if err != nil {
		return nil, s.abort(run, err)
	}
	defer s.releaseLease(run, lease)

	balance, err := s.deps.Ledger.GetBalance(ctx, accountID)
	if err != nil {
		return nil, s.abort(run, err)
	}
	if run.total > balance {
		return nil, s.abort(run, &InsufficientBalanceError{Required: run.total, Available: balance})
	}
	run.preDebit = balance

	run.transition(StateDebiting)
	newBalance, err := s.deps.Ledger.Debit(ctx, accountID, balance, run.total)
	if errors.Is(err, repository.ErrBalanceConflict) {
		return nil, s.abort(run, err)
	}
	// Any other error leaves the outcome unknown: the update may have
	// committed before the context expired or the connection dropped.
	run.debited = true
	if err != nil {
		return nil, s.rollBack(run, nil, err)
	}

	run.transition(StatePersisting)
	if failedRow, err := s.persistRows(ctx, run); err != nil {
		return nil, s.rollBack(run, failedRow, err)
	}

	run.transition(StateSucceeded)
	resp := buildSuccessResponse(run, newBalance)

	s.publishRunEvent(run, models.EventRunSettled, newBalance, false, nil)
	s.recordMetrics(
		aws_pkg.Count(aws_pkg.MetricBulkRunsSucceeded, metricDims),
		aws_pkg.Value(aws_pkg.MetricBulkRunCharged, float64(run.total), metricDims),
		aws_pkg.Value(aws_pkg.MetricBulkRunRows, float64(len(run.handles)), metricDims),
	)

	run.log.Info("Bulk run settled",
		zap.Int("records", len(run.handles)),
		zap.Int64("total_charged", run.total),
		zap.Int64("new_balance", newBalance),
	)
	return resp, nil
}

func (s *settlementServiceImpl) releaseLease(run *bulkRun, lease repository.Lease) {
	ctx, cancel := context.WithTimeout(context.Background(), sideChannelTimeout)
	defer cancel()
	if err := lease.Release(ctx); err != nil {
		run.log.Warn("Failed to release account lease", zap.Error(err))
	}
}

// abort turns a pre-debit failure into its response. Nothing was mutated.
func (s *settlementServiceImpl) abort(run *bulkRun, err error) *ServiceError {
	svcErr := abortResponse(run, err)

	run.log.Warn("Bulk run aborted",
		zap.String("stage", string(run.state)),
		zap.Int("status", svcErr.StatusCode),
		zap.Error(err),
	)
	s.publishRunEvent(run, models.EventRunAborted, 0, false, err)
	s.recordMetrics(aws_pkg.Count(aws_pkg.MetricBulkRunsAborted, metricDims))
	return svcErr
}

func abortResponse(run *bulkRun, err error) *ServiceError {
	var (
		invalid      *InvalidRowsError
		rowErr       *RowError
		insufficient *InsufficientBalanceError
	)

	switch {
	case errors.Is(err, ErrEmptyBatch):
		return abortError(run.id, run.state, http.StatusBadRequest, "rows must not be empty")
	case errors.As(err, &invalid):
		svcErr := abortError(run.id, run.state, http.StatusBadRequest, "request contains invalid rows")
		svcErr.Failure.InvalidRows = invalid.Rows
		return svcErr
	case errors.As(err, &rowErr):
		svcErr := abortError(run.id, run.state, http.StatusBadRequest, rowErr.Error())
		idx := rowErr.RowIndex
		svcErr.Failure.RowIndex = &idx
		return svcErr
	case errors.As(err, &insufficient):
		svcErr := abortError(run.id, run.state, http.StatusBadRequest, "insufficient balance")
		required, available := insufficient.Required, insufficient.Available
		svcErr.Failure.Required = &required
		svcErr.Failure.Available = &available
		return svcErr
	case errors.Is(err, repository.ErrLeaseHeld):
		return abortError(run.id, run.state, http.StatusConflict, "another bulk run is in progress for this account")
	case errors.Is(err, repository.ErrBalanceConflict):
		return abortError(run.id, run.state, http.StatusConflict, "balance changed during settlement, please retry")
	case errors.Is(err, repository.ErrAccountNotFound):
		return abortError(run.id, run.state, http.StatusNotFound, "account ledger not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return abortError(run.id, run.state, http.StatusGatewayTimeout, "bulk run timed out")
	}
	return abortError(run.id, run.state, http.StatusInternalServerError, "bulk run failed")
}

// rollBack compensates a run that failed at or after the debit.
func (s *settlementServiceImpl) rollBack(run *bulkRun, failedRow *int, cause error) *ServiceError {
	failedIn := run.state
	run.log.Error("Bulk run failed after debit, rolling back",
		zap.String("stage", string(failedIn)),
		zap.Int("created_records", len(run.handles)),
		zap.Error(cause),
	)

	run.transition(StateRollingBack)
	report := s.compensate(run)

	what := "persistence failed"
	if failedIn == StateDebiting {
		what = "debit outcome unknown"
	}
	msg := what + ", bulk run rolled back"
	if report.Clean() {
		run.transition(StateRolledBack)
	} else {
		run.transition(StateRolledBackWithOrphans)
		msg = what + ", rollback incomplete; reconciliation required"
		s.fileReconciliation(run, report, cause)
	}

	s.publishRunEvent(run, models.EventRunRolledBack, 0, report.Clean(), cause)
	s.recordMetrics(
		aws_pkg.Count(aws_pkg.MetricBulkRunsRolledBack, metricDims),
		aws_pkg.Value(aws_pkg.MetricBulkRunOrphans, float64(len(report.FailedDeletes)), metricDims),
	)
	return rollbackError(run.id, failedIn, msg, failedRow, report)
}

func buildSuccessResponse(run *bulkRun, newBalance int64) *models.BulkRunResponse {
	return &models.BulkRunResponse{
		Success:   true,
		Results:   run.results,
		BulkRunID: run.id,
		Summary: models.RunSummary{
			TotalRecords: len(run.settled),
			SuccessCount: len(run.results),
			FailedCount:  len(run.settled) - len(run.results),
			TotalCharged: run.total,
			NewBalance:   newBalance,
		},
	}
}

// GetRunRecovery reports what a run left in the record stores, for operators
// reconciling a failed rollback.
func (s *settlementServiceImpl) GetRunRecovery(ctx context.Context, runID uuid.UUID) (*models.RunRecoveryView, *ServiceError) {
	view := &models.RunRecoveryView{BulkRunID: runID, RecordsByStore: make(map[string]int64)}

	names := make([]string, 0, len(s.deps.Stores))
	for name := range s.deps.Stores {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		n, err := s.deps.Stores[name].CountByRun(ctx, runID)
		if err != nil {
			s.logger.Error("Failed to count run records", zap.String("store", name), zap.String("bulk_run_id", runID.String()), zap.Error(err))
			return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to load run records"}
		}
		view.RecordsByStore[name] = n
		view.TotalRecords += n
	}

	report, err := s.deps.Reconciliation.FindByRunID(ctx, runID)
	if err != nil {
		s.logger.Error("Failed to load reconciliation report", zap.String("bulk_run_id", runID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to load reconciliation report"}
	}
	view.Reconciliation = report
	view.NeedsAttention = report != nil
	return view, nil
}

// GetBalance returns the current balance and the latest ledger transactions.
func (s *settlementServiceImpl) GetBalance(ctx context.Context, accountID string) (*models.BalanceResponse, *ServiceError) {
	balance, err := s.deps.Ledger.GetBalance(ctx, accountID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, &ServiceError{StatusCode: http.StatusNotFound, Message: "Account ledger not found"}
	}
	if err != nil {
		s.logger.Error("Failed to read balance", zap.String("account_id", accountID), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to read balance"}
	}

	txs, err := s.deps.Ledger.RecentTransactions(ctx, accountID, recentTransactionLimit)
	if err != nil {
		s.logger.Error("Failed to list ledger transactions", zap.String("account_id", accountID), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to list transactions"}
	}
	return &models.BalanceResponse{AccountID: accountID, Balance: balance, Transactions: txs}, nil
}
