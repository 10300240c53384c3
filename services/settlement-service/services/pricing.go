package services

import (
	"context"
	"errors"

	"github.com/yashrajoria/bulk-settlement/services/settlement-service/repository"
)

// priceMemo caches unit prices for one run only. Prices may change between
// runs, so a memo is never shared.
type priceMemo struct {
	dir       repository.PriceDirectory
	accountID string
	prices    map[string]int64
}

func newPriceMemo(dir repository.PriceDirectory, accountID string) *priceMemo {
	return &priceMemo{dir: dir, accountID: accountID, prices: make(map[string]int64)}
}

func (m *priceMemo) lookup(ctx context.Context, pricingKey string) (int64, error) {
	if p, ok := m.prices[pricingKey]; ok {
		return p, nil
	}
	p, err := m.dir.PricePerUnit(ctx, m.accountID, pricingKey)
	if err != nil {
		return 0, err
	}
	m.prices[pricingKey] = p
	return p, nil
}

// resolvePrices queries the directory once per distinct pricing key. A missing
// price is attributed to the first row of the affected product type.
func resolvePrices(ctx context.Context, memo *priceMemo, batch *ClassifiedBatch) error {
	for _, t := range batch.Types {
		first := batch.Groups[t][0]
		if _, err := memo.lookup(ctx, first.Product.PricingKey); err != nil {
			if errors.Is(err, repository.ErrPriceNotConfigured) {
				return &RowError{RowIndex: first.Index, Reason: "price not configured for " + string(t), Err: err}
			}
			return err
		}
	}
	return nil
}
