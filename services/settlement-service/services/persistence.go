package services

import (
	"context"
	"fmt"

	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"go.uber.org/zap"
)

// buildRecord maps a settled row onto the order table of its product.
func buildRecord(run *bulkRun, sr *models.SettlementRow, submissionNumber string) (models.Record, error) {
	row := sr.Row
	base := models.SubmissionRecord{
		BulkRunID:        run.id,
		AccountID:        run.accountID,
		SubmissionNumber: submissionNumber,
		RowIndex:         row.Index,
		PlaceURL:         row.PlaceURL,
		MID:              sr.MID,
		BusinessName:     sr.DisplayName,
		PricePerUnit:     sr.PricePerUnit,
		Cost:             sr.Cost,
		Status:           models.RecordStatusPending,
	}

	switch row.Product.Type {
	case models.ProductPlaceTraffic:
		return &models.TrafficOrder{
			SubmissionRecord: base,
			DailyCount:       row.DailyCount,
			OperationDays:    row.OperationDays,
			StartDate:        row.StartDate,
			Keyword:          row.Keyword,
		}, nil
	case models.ProductPlaceSave:
		return &models.SaveOrder{
			SubmissionRecord: base,
			DailyCount:       row.DailyCount,
			OperationDays:    row.OperationDays,
			StartDate:        row.StartDate,
		}, nil
	case models.ProductReceiptReview:
		return &models.ReviewOrder{
			SubmissionRecord: base,
			TotalCount:       row.TotalCount,
			GuideText:        row.GuideText,
		}, nil
	case models.ProductBlogReview:
		return &models.BlogOrder{
			SubmissionRecord: base,
			TotalCount:       row.TotalCount,
			Keyword:          row.Keyword,
			GuideText:        row.GuideText,
		}, nil
	}
	return nil, fmt.Errorf("no record mapping for product %s", row.Product.Type)
}

// persistRows writes every row in input order and stops at the first failure.
// Nothing is retried. On failure it returns the index of the failing row, or
// nil when the rows were written but the ledger transaction was not.
func (s *settlementServiceImpl) persistRows(ctx context.Context, run *bulkRun) (*int, error) {
	for _, sr := range run.settled {
		idx := sr.Row.Index
		spec := sr.Row.Product

		store, ok := s.deps.Stores[spec.StoreName]
		if !ok {
			return &idx, fmt.Errorf("no record store named %s", spec.StoreName)
		}

		number, err := s.deps.Sequence.Next(ctx, spec.NumberingCode)
		if err != nil {
			return &idx, fmt.Errorf("submission number for row %d: %w", idx, err)
		}

		rec, err := buildRecord(run, sr, number)
		if err != nil {
			return &idx, err
		}

		recordID, err := store.Insert(ctx, rec)
		if err != nil {
			return &idx, fmt.Errorf("insert row %d: %w", idx, err)
		}
		run.handles = append(run.handles, models.CreatedRecordHandle{StoreName: store.Name(), RecordID: recordID})
		run.results = append(run.results, models.RowResult{
			RowIndex:         idx,
			Success:          true,
			ProductType:      spec.Type,
			SubmissionNumber: number,
			RecordID:         recordID,
			Cost:             sr.Cost,
			MID:              sr.MID,
			BusinessName:     sr.DisplayName,
		})
		run.log.Debug("Row persisted",
			zap.Int("row_index", idx),
			zap.String("store", store.Name()),
			zap.String("submission_number", number),
		)
	}

	tx := &models.LedgerTransaction{
		AccountID:         run.accountID,
		Delta:             -run.total,
		BalanceAfter:      run.preDebit - run.total,
		ReferenceRunID:    run.id,
		ReferenceRecordID: run.handles[0].RecordID,
		Description:       fmt.Sprintf("bulk run settlement: %d rows", len(run.handles)),
	}
	if err := s.deps.Ledger.AppendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("append ledger transaction: %w", err)
	}
	return nil, nil
}
