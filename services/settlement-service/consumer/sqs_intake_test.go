package consumer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/consumer"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/services"
	"go.uber.org/zap"
)

type mockSettlementService struct {
	submitFn  func(ctx context.Context, accountID string, req *models.BulkRunRequest) (*models.BulkRunResponse, *services.ServiceError)
	submitted []string
}

func (m *mockSettlementService) SubmitBulkRun(ctx context.Context, accountID string, req *models.BulkRunRequest) (*models.BulkRunResponse, *services.ServiceError) {
	m.submitted = append(m.submitted, accountID)
	return m.submitFn(ctx, accountID, req)
}
func (m *mockSettlementService) GetRunRecovery(_ context.Context, _ uuid.UUID) (*models.RunRecoveryView, *services.ServiceError) {
	return nil, nil
}
func (m *mockSettlementService) GetBalance(_ context.Context, _ string) (*models.BalanceResponse, *services.ServiceError) {
	return nil, nil
}

func messageBody(t *testing.T, accountID string) string {
	t.Helper()
	b, err := json.Marshal(models.BulkRunMessage{
		AccountID: accountID,
		Request: models.BulkRunRequest{Rows: []models.RowInput{{
			ProductType: models.ProductReceiptReview,
			IsValid:     true,
			Fields: map[string]json.RawMessage{
				"place_url":   json.RawMessage(`"https://blog.example.com/p/1"`),
				"total_count": json.RawMessage(`2`),
			},
		}}},
	})
	require.NoError(t, err)
	return string(b)
}

func okService() *mockSettlementService {
	return &mockSettlementService{
		submitFn: func(_ context.Context, _ string, req *models.BulkRunRequest) (*models.BulkRunResponse, *services.ServiceError) {
			return &models.BulkRunResponse{Success: true, BulkRunID: uuid.New(), Summary: models.RunSummary{TotalRecords: len(req.Rows)}}, nil
		},
	}
}

func failingService(status int) *mockSettlementService {
	return &mockSettlementService{
		submitFn: func(_ context.Context, _ string, _ *models.BulkRunRequest) (*models.BulkRunResponse, *services.ServiceError) {
			return nil, &services.ServiceError{StatusCode: status, Message: "failed"}
		},
	}
}

func TestHandle_Success(t *testing.T) {
	svc := okService()
	intake := consumer.NewBulkRunIntake(svc, nil, 0, zap.NewNop())

	err := intake.Handle(context.Background(), messageBody(t, "acct-9"))
	assert.NoError(t, err)
	assert.Equal(t, []string{"acct-9"}, svc.submitted)
}

func TestHandle_SNSEnvelope(t *testing.T) {
	svc := okService()
	intake := consumer.NewBulkRunIntake(svc, nil, 0, zap.NewNop())

	wrapped, _ := json.Marshal(map[string]string{"Type": "Notification", "Message": messageBody(t, "acct-sns")})
	err := intake.Handle(context.Background(), string(wrapped))
	assert.NoError(t, err)
	assert.Equal(t, []string{"acct-sns"}, svc.submitted)
}

func TestHandle_MalformedIsLeftOnQueue(t *testing.T) {
	svc := okService()
	intake := consumer.NewBulkRunIntake(svc, nil, 0, zap.NewNop())

	assert.Error(t, intake.Handle(context.Background(), "{not json"))
	assert.Error(t, intake.Handle(context.Background(), messageBody(t, "")))
	assert.Empty(t, svc.submitted)
}

func TestHandle_FinalFailuresAreAcknowledged(t *testing.T) {
	statuses := []int{http.StatusBadRequest, http.StatusNotFound}
	for _, status := range statuses {
		svc := failingService(status)
		intake := consumer.NewBulkRunIntake(svc, nil, 0, zap.NewNop())
		assert.NoError(t, intake.Handle(context.Background(), messageBody(t, "acct-1")), "status %d", status)
		assert.Len(t, svc.submitted, 1)
	}
}

func TestHandle_TransientFailuresAreRedelivered(t *testing.T) {
	statuses := []int{
		http.StatusConflict,
		http.StatusInternalServerError,
		http.StatusGatewayTimeout,
	}
	for _, status := range statuses {
		svc := failingService(status)
		intake := consumer.NewBulkRunIntake(svc, nil, 0, zap.NewNop())
		assert.Error(t, intake.Handle(context.Background(), messageBody(t, "acct-1")), "status %d", status)
		assert.Len(t, svc.submitted, 1)
	}
}

func TestHandle_RunPastTheDebitIsAcknowledged(t *testing.T) {
	svc := &mockSettlementService{
		submitFn: func(_ context.Context, _ string, _ *models.BulkRunRequest) (*models.BulkRunResponse, *services.ServiceError) {
			return nil, &services.ServiceError{
				StatusCode: http.StatusInternalServerError,
				Message:    "persistence failed, rollback incomplete; reconciliation required",
				Failure: &models.BulkRunFailure{
					Stage:        "Persisting",
					Compensation: &models.CompensationReport{AttemptedDeletes: 2},
				},
			}
		},
	}
	intake := consumer.NewBulkRunIntake(svc, nil, 0, zap.NewNop())
	assert.NoError(t, intake.Handle(context.Background(), messageBody(t, "acct-1")))
}

func TestHandle_RunHasDeadline(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	svc := &mockSettlementService{
		submitFn: func(ctx context.Context, _ string, _ *models.BulkRunRequest) (*models.BulkRunResponse, *services.ServiceError) {
			deadline, hasDeadline = ctx.Deadline()
			return &models.BulkRunResponse{Success: true, BulkRunID: uuid.New()}, nil
		},
	}
	intake := consumer.NewBulkRunIntake(svc, nil, 30*time.Second, zap.NewNop())

	start := time.Now()
	require.NoError(t, intake.Handle(context.Background(), messageBody(t, "acct-1")))
	require.True(t, hasDeadline)
	assert.WithinDuration(t, start.Add(30*time.Second), deadline, 5*time.Second)
}

func TestHandle_KeepsEarlierConsumerDeadline(t *testing.T) {
	var deadline time.Time
	svc := &mockSettlementService{
		submitFn: func(ctx context.Context, _ string, _ *models.BulkRunRequest) (*models.BulkRunResponse, *services.ServiceError) {
			deadline, _ = ctx.Deadline()
			return &models.BulkRunResponse{Success: true, BulkRunID: uuid.New()}, nil
		},
	}
	intake := consumer.NewBulkRunIntake(svc, nil, time.Minute, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	want, _ := ctx.Deadline()
	require.NoError(t, intake.Handle(ctx, messageBody(t, "acct-1")))
	assert.Equal(t, want, deadline)
}
