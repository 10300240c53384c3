package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	aws_pkg "github.com/yashrajoria/bulk-settlement/pkg/aws"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"go.uber.org/zap"
)

const sideChannelTimeout = 5 * time.Second

var metricDims = map[string]string{"Service": "settlement-service"}

// publishRunEvent emits the run outcome to Kafka. Failures are logged only.
func (s *settlementServiceImpl) publishRunEvent(run *bulkRun, eventType string, newBalance int64, rolledBack bool, cause error) {
	if s.deps.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideChannelTimeout)
	defer cancel()

	evt := models.RunEvent{
		EventType:  eventType,
		BulkRunID:  run.id,
		AccountID:  run.accountID,
		State:      string(run.state),
		RowCount:   len(run.settled),
		NewBalance: newBalance,
		RolledBack: rolledBack,
		Timestamp:  time.Now().UTC(),
	}
	if eventType == models.EventRunSettled {
		evt.TotalCharged = run.total
	}
	if cause != nil {
		evt.Error = cause.Error()
	}

	if err := s.deps.Events.PublishRunEvent(ctx, evt); err != nil {
		run.log.Warn("Failed to publish run event", zap.String("event_type", eventType), zap.Error(err))
	}
}

// recordMetrics pushes run metrics to CloudWatch in one batch.
func (s *settlementServiceImpl) recordMetrics(data ...aws_pkg.Datum) {
	if s.deps.Metrics == nil || !s.deps.Metrics.IsEnabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideChannelTimeout)
	defer cancel()
	if err := s.deps.Metrics.Record(ctx, data...); err != nil {
		s.logger.Debug("Failed to record run metrics", zap.Error(err))
	}
}

// reconciliationKey is where the report of a run is uploaded.
func reconciliationKey(run *bulkRun) string {
	return fmt.Sprintf("reconciliation/%s.json", run.id)
}

// fileReconciliation records a rollback that left orphans or could not restore
// the balance. The report is saved in Postgres, uploaded to S3 and announced on
// SNS; each step is attempted regardless of the others.
func (s *settlementServiceImpl) fileReconciliation(run *bulkRun, comp *models.CompensationReport, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CompensationTimeout)
	defer cancel()

	orphans, err := json.Marshal(comp.FailedDeletes)
	if err != nil || comp.FailedDeletes == nil {
		orphans = []byte("[]")
	}
	report := &models.ReconciliationReport{
		BulkRunID:        run.id,
		AccountID:        run.accountID,
		PreDebitBalance:  run.preDebit,
		DebitAmount:      run.total,
		RestoreSucceeded: comp.BalanceRestored,
		OrphanedRecords:  orphans,
		Error:            cause.Error(),
	}
	if comp.RestoreError != "" {
		report.Error = fmt.Sprintf("%s; restore: %s", report.Error, comp.RestoreError)
	}

	if err := s.deps.Reconciliation.Create(ctx, report); err != nil {
		run.log.Error("Failed to save reconciliation report", zap.Error(err))
	}

	key := ""
	if s.deps.Uploader != nil && s.opts.ReconciliationBucket != "" {
		body, err := json.Marshal(report)
		if err == nil {
			err = s.deps.Uploader.PutJSON(ctx, s.opts.ReconciliationBucket, reconciliationKey(run), body)
		}
		if err != nil {
			run.log.Error("Failed to upload reconciliation report", zap.Error(err))
		} else {
			key = reconciliationKey(run)
		}
	}

	s.publishAlert(ctx, run, comp, key)
}

func (s *settlementServiceImpl) publishAlert(ctx context.Context, run *bulkRun, comp *models.CompensationReport, reportKey string) {
	if s.deps.SNS == nil || s.opts.SNSTopicARN == "" {
		run.log.Warn("SNS client not configured, skipping reconciliation alert")
		return
	}

	alert := models.ReconciliationAlert{
		EventType:        "bulk_run.reconciliation_required",
		BulkRunID:        run.id,
		AccountID:        run.accountID,
		OrphanCount:      len(comp.FailedDeletes),
		RestoreSucceeded: comp.BalanceRestored,
		ReportKey:        reportKey,
		Timestamp:        time.Now().UTC(),
	}
	body, err := json.Marshal(alert)
	if err != nil {
		run.log.Error("Failed to marshal reconciliation alert", zap.Error(err))
		return
	}
	err = s.deps.SNS.PublishAlert(ctx, s.opts.SNSTopicARN, aws_pkg.Alert{
		Subject:   fmt.Sprintf("Bulk run %s needs reconciliation", run.id),
		EventType: alert.EventType,
		Body:      body,
	})
	if err != nil {
		run.log.Error("Failed to publish reconciliation alert", zap.Error(err))
		return
	}
	run.log.Info("Published reconciliation alert", zap.Int("orphans", alert.OrphanCount))
}
