package services

import (
	"github.com/google/uuid"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"go.uber.org/zap"
)

// RunState is the position of a bulk run in the settlement state machine.
type RunState string

const (
	StateValidating            RunState = "Validating"
	StatePricing               RunState = "Pricing"
	StateEnriching             RunState = "Enriching"
	StateCharging              RunState = "Charging"
	StateBalanceCheck          RunState = "BalanceCheck"
	StateDebiting              RunState = "Debiting"
	StatePersisting            RunState = "Persisting"
	StateSucceeded             RunState = "Succeeded"
	StateRollingBack           RunState = "RollingBack"
	StateRolledBack            RunState = "RolledBack"
	StateRolledBackWithOrphans RunState = "RolledBackWithOrphans"
)

// bulkRun is the in-memory state of one pipeline invocation.
type bulkRun struct {
	id        uuid.UUID
	accountID string
	state     RunState
	log       *zap.Logger

	batch    *ClassifiedBatch
	settled  []*models.SettlementRow
	total    int64
	preDebit int64
	debited  bool
	handles  []models.CreatedRecordHandle
	results  []models.RowResult
}

func (r *bulkRun) transition(next RunState) {
	r.log.Info("Bulk run state changed",
		zap.String("from", string(r.state)),
		zap.String("state", string(next)),
	)
	r.state = next
}
