package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
)

// ClassifiedBatch is a validated request: typed rows in input order, grouped
// by product type.
type ClassifiedBatch struct {
	Rows   []*models.Row
	Groups map[models.ProductType][]*models.Row
	// Types lists the distinct product types in order of first appearance.
	Types []models.ProductType
}

// ClassifyRows validates the whole request up front. Any row flagged invalid
// upstream rejects the request before a single field is parsed, and every
// offending row is reported, not just the first.
func ClassifyRows(req *models.BulkRunRequest) (*ClassifiedBatch, error) {
	if req == nil || len(req.Rows) == 0 {
		return nil, ErrEmptyBatch
	}

	flagged := &InvalidRowsError{}
	for i, in := range req.Rows {
		if !in.IsValid {
			flagged.add(rowIndexOf(in, i), "row failed upstream validation")
		}
	}
	if !flagged.empty() {
		return nil, flagged.sorted()
	}

	batch := &ClassifiedBatch{Groups: make(map[models.ProductType][]*models.Row)}
	invalid := &InvalidRowsError{}
	seen := make(map[int]bool, len(req.Rows))

	for i, in := range req.Rows {
		idx := rowIndexOf(in, i)
		if seen[idx] {
			invalid.add(idx, "duplicate rowIndex")
			continue
		}
		seen[idx] = true

		row, err := parseRow(in, idx, req.DefaultProductType)
		if err != nil {
			invalid.add(idx, err.Error())
			continue
		}
		if _, ok := batch.Groups[row.Product.Type]; !ok {
			batch.Types = append(batch.Types, row.Product.Type)
		}
		batch.Rows = append(batch.Rows, row)
		batch.Groups[row.Product.Type] = append(batch.Groups[row.Product.Type], row)
	}
	if !invalid.empty() {
		return nil, invalid.sorted()
	}
	return batch, nil
}

func rowIndexOf(in models.RowInput, position int) int {
	if in.RowIndex != nil {
		return *in.RowIndex
	}
	return position + 1
}

func parseRow(in models.RowInput, idx int, fallback models.ProductType) (*models.Row, error) {
	productType := in.ProductType
	if productType == "" {
		productType = fallback
	}
	if productType == "" {
		return nil, fmt.Errorf("missing productType")
	}
	spec, ok := models.LookupProduct(productType)
	if !ok {
		return nil, fmt.Errorf("unknown productType %q", productType)
	}

	f := fieldReader{fields: in.Fields}
	row := &models.Row{
		Index:        idx,
		Product:      spec,
		PlaceURL:     f.str("place_url"),
		BusinessName: f.str("business_name"),
		Keyword:      f.str("keyword"),
		GuideText:    f.str("guide_text"),
		StartDate:    f.str("start_date"),
	}
	if row.PlaceURL == "" && f.err == nil {
		return nil, fmt.Errorf("place_url is required")
	}

	switch spec.Formula {
	case models.FormulaDailyDuration:
		row.DailyCount = f.positiveInt("daily_count")
		row.OperationDays = f.positiveInt("operation_days")
	case models.FormulaTotalCount:
		row.TotalCount = f.positiveInt("total_count")
	}
	if f.err != nil {
		return nil, f.err
	}

	if row.StartDate != "" {
		if _, err := time.Parse("2006-01-02", row.StartDate); err != nil {
			return nil, fmt.Errorf("start_date must be YYYY-MM-DD")
		}
	}
	return row, nil
}

// fieldReader decodes raw row fields, keeping the first error.
type fieldReader struct {
	fields map[string]json.RawMessage
	err    error
}

func (f *fieldReader) str(name string) string {
	raw, ok := f.fields[name]
	if !ok || f.err != nil || isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		f.err = fmt.Errorf("%s must be a string", name)
		return ""
	}
	return strings.TrimSpace(s)
}

// positiveInt accepts a JSON integer or a string of digits. Fractions,
// exponents and negative numbers are rejected, never truncated.
func (f *fieldReader) positiveInt(name string) int64 {
	if f.err != nil {
		return 0
	}
	raw, ok := f.fields[name]
	if !ok || isNull(raw) {
		f.err = fmt.Errorf("%s is required", name)
		return 0
	}

	text := string(bytes.TrimSpace(raw))
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			f.err = fmt.Errorf("%s must be an integer", name)
			return 0
		}
		text = strings.TrimSpace(s)
	}

	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		f.err = fmt.Errorf("%s must be a whole number, got %s", name, text)
		return 0
	}
	if n <= 0 {
		f.err = fmt.Errorf("%s must be greater than zero", name)
		return 0
	}
	return n
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
