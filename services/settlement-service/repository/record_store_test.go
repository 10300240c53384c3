package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/repository"
)

func TestRecordStores_OnePerOrderTable(t *testing.T) {
	gormDB, _ := setupMockDB(t)
	stores := repository.NewGormRecordStores(gormDB)

	for _, spec := range models.Catalogue {
		store, ok := stores[spec.StoreName]
		require.True(t, ok, "no store for %s", spec.Type)
		assert.Equal(t, spec.StoreName, store.Name())
	}
}

func TestRecordStore_InsertAssignsID(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	store := repository.NewGormRecordStores(gormDB)[models.StoreTrafficOrders]

	rec := &models.TrafficOrder{
		SubmissionRecord: models.SubmissionRecord{
			BulkRunID:        uuid.New(),
			AccountID:        "acct-1",
			SubmissionNumber: "TR20261018000001",
			RowIndex:         1,
			MID:              "1234567",
			Cost:             3000,
		},
		DailyCount:    10,
		OperationDays: 3,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "traffic_orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(uuid.New(), "pending"))
	mock.ExpectCommit()

	id, err := store.Insert(context.Background(), rec)
	assert.NoError(t, err)
	assert.Equal(t, rec.ID.String(), id)
	assert.NotEqual(t, uuid.Nil, rec.ID)
}

func TestRecordStore_InsertFailure(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	store := repository.NewGormRecordStores(gormDB)[models.StoreBlogOrders]

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "blog_orders"`)).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))
	mock.ExpectRollback()

	_, err := store.Insert(context.Background(), &models.BlogOrder{TotalCount: 5})
	assert.Error(t, err)
}

func TestRecordStore_InsertRejectsForeignRecord(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	store := repository.NewGormRecordStores(gormDB)[models.StoreReviewOrders]

	_, err := store.Insert(context.Background(), &models.SaveOrder{})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_Delete(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	store := repository.NewGormRecordStores(gormDB)[models.StoreSaveOrders]

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "save_orders" WHERE id = $1`)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, store.Delete(context.Background(), id.String()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_DeleteInvalidID(t *testing.T) {
	gormDB, _ := setupMockDB(t)
	store := repository.NewGormRecordStores(gormDB)[models.StoreSaveOrders]

	assert.Error(t, store.Delete(context.Background(), "not-a-uuid"))
}

func TestRecordStore_CountByRun(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	store := repository.NewGormRecordStores(gormDB)[models.StoreReviewOrders]

	runID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "review_orders" WHERE bulk_run_id = $1`)).
		WithArgs(runID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := store.CountByRun(context.Background(), runID)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
