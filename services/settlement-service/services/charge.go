package services

import (
	"errors"
	"math"

	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
)

var ErrChargeOverflow = errors.New("charge exceeds the representable range")

// CalculateCharge applies the product's formula. All operands are
// non-negative integers and overflow is reported instead of wrapping.
func CalculateCharge(row *models.Row, pricePerUnit int64) (int64, error) {
	if pricePerUnit < 0 {
		return 0, errors.New("negative unit price")
	}
	switch row.Product.Formula {
	case models.FormulaDailyDuration:
		units, ok := mulNonNegative(row.DailyCount, row.OperationDays)
		if !ok {
			return 0, ErrChargeOverflow
		}
		cost, ok := mulNonNegative(units, pricePerUnit)
		if !ok {
			return 0, ErrChargeOverflow
		}
		return cost, nil
	case models.FormulaTotalCount:
		cost, ok := mulNonNegative(row.TotalCount, pricePerUnit)
		if !ok {
			return 0, ErrChargeOverflow
		}
		return cost, nil
	}
	return 0, errors.New("unknown charge formula")
}

func mulNonNegative(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}

func addNonNegative(a, b int64) (int64, bool) {
	if a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}
