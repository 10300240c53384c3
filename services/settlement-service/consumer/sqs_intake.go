package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	aws_pkg "github.com/yashrajoria/bulk-settlement/pkg/aws"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/services"
	"go.uber.org/zap"
)

// snsEnvelope unwraps the SNS -> SQS message wrapper
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

const defaultRunTimeout = 45 * time.Second

// BulkRunIntake feeds queued bulk runs into the settlement pipeline.
type BulkRunIntake struct {
	service    services.SettlementService
	metrics    aws_pkg.MetricsRecorder
	validate   *validator.Validate
	runTimeout time.Duration
	logger     *zap.Logger
}

// NewBulkRunIntake bounds every queued run by runTimeout, which must stay
// below the queue's visibility timeout.
func NewBulkRunIntake(svc services.SettlementService, metrics aws_pkg.MetricsRecorder, runTimeout time.Duration, logger *zap.Logger) *BulkRunIntake {
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	return &BulkRunIntake{
		service:    svc,
		metrics:    metrics,
		validate:   validator.New(),
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// Handle processes one message body. Returning an error leaves the message on
// the queue for redelivery and, eventually, its redrive policy. That happens
// for malformed messages and for runs that failed before any money moved for
// a reason that may pass (lease held, balance changed, ledger unavailable,
// timeout). Rejected batches and runs that reached the debit are final and
// acknowledged.
func (i *BulkRunIntake) Handle(ctx context.Context, body string) error {
	msg, err := decodeMessage(body)
	if err != nil {
		i.logger.Error("Failed to decode bulk run message", zap.Error(err))
		return err
	}
	if err := i.validate.Struct(msg); err != nil {
		i.logger.Error("Invalid bulk run message", zap.Error(err))
		return fmt.Errorf("invalid bulk run message: %w", err)
	}

	i.recordReceived(ctx)

	runCtx, cancel := context.WithTimeout(ctx, i.runTimeout)
	defer cancel()

	resp, svcErr := i.service.SubmitBulkRun(runCtx, msg.AccountID, &msg.Request)
	if svcErr != nil {
		fields := []zap.Field{
			zap.String("account_id", msg.AccountID),
			zap.Int("status", svcErr.StatusCode),
			zap.String("error", svcErr.Message),
		}
		if retryable(svcErr) {
			i.logger.Warn("Queued bulk run failed before debit, leaving for redelivery", fields...)
			return fmt.Errorf("bulk run for %s not settled (%d): %s", msg.AccountID, svcErr.StatusCode, svcErr.Message)
		}
		i.logger.Warn("Queued bulk run failed", fields...)
		return nil
	}

	i.logger.Info("Queued bulk run settled",
		zap.String("account_id", msg.AccountID),
		zap.String("bulk_run_id", resp.BulkRunID.String()),
		zap.Int64("total_charged", resp.Summary.TotalCharged),
	)
	return nil
}

// retryable reports a failure that left no trace and may not recur. A run
// with a compensation report got as far as the debit and must not be retried.
func retryable(svcErr *services.ServiceError) bool {
	if svcErr.Failure != nil && svcErr.Failure.Compensation != nil {
		return false
	}
	return svcErr.StatusCode == http.StatusConflict || svcErr.StatusCode >= http.StatusInternalServerError
}

func (i *BulkRunIntake) recordReceived(ctx context.Context) {
	if i.metrics == nil || !i.metrics.IsEnabled() {
		return
	}
	if err := i.metrics.Record(ctx, aws_pkg.Count(aws_pkg.MetricSQSMessages, map[string]string{"Service": "settlement-service"})); err != nil {
		i.logger.Debug("Failed to record metric", zap.Error(err))
	}
}

// decodeMessage accepts a raw BulkRunMessage or one wrapped in an SNS
// notification.
func decodeMessage(body string) (*models.BulkRunMessage, error) {
	var envelope snsEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	payload := body
	if envelope.Type == "Notification" && envelope.Message != "" {
		payload = envelope.Message
	}

	var msg models.BulkRunMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal bulk run message: %w", err)
	}
	return &msg, nil
}
