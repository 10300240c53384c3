package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	aws_pkg "github.com/yashrajoria/bulk-settlement/pkg/aws"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/providers"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/repository"
)

// ---- mock price directory ----

type mockPrices struct {
	prices map[string]int64
	err    error
	calls  []string
}

func (m *mockPrices) PricePerUnit(_ context.Context, _ string, pricingKey string) (int64, error) {
	m.calls = append(m.calls, pricingKey)
	if m.err != nil {
		return 0, m.err
	}
	p, ok := m.prices[pricingKey]
	if !ok {
		return 0, repository.ErrPriceNotConfigured
	}
	return p, nil
}

// ---- mock ledger ----

type mockLedger struct {
	mu         sync.Mutex
	balances   map[string]int64
	debitErr   error
	restoreErr error
	appendErr  error
	debits     int
	restores   int
	txs        []models.LedgerTransaction

	// debitAppliedErr is returned after the debit has been applied, like a
	// commit that lands just before the caller's context expires.
	debitAppliedErr error
	// onDebit runs after a successful debit, to simulate concurrent writers.
	onDebit func()
}

func newMockLedger(accountID string, balance int64) *mockLedger {
	return &mockLedger{balances: map[string]int64{accountID: balance}}
}

func (m *mockLedger) GetBalance(_ context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[accountID]
	if !ok {
		return 0, repository.ErrAccountNotFound
	}
	return b, nil
}

func (m *mockLedger) Debit(_ context.Context, accountID string, expected, amount int64) (int64, error) {
	m.mu.Lock()
	if m.debitErr != nil {
		m.mu.Unlock()
		return 0, m.debitErr
	}
	if m.balances[accountID] != expected {
		m.mu.Unlock()
		return 0, repository.ErrBalanceConflict
	}
	m.balances[accountID] = expected - amount
	m.debits++
	after := m.balances[accountID]
	hook := m.onDebit
	appliedErr := m.debitAppliedErr
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	if appliedErr != nil {
		return 0, appliedErr
	}
	return after, nil
}

func (m *mockLedger) Restore(_ context.Context, accountID string, current, restoreTo int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restores++
	if m.restoreErr != nil {
		return m.restoreErr
	}
	if m.balances[accountID] != current {
		return repository.ErrBalanceConflict
	}
	m.balances[accountID] = restoreTo
	return nil
}

func (m *mockLedger) AppendTransaction(_ context.Context, tx *models.LedgerTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.txs = append(m.txs, *tx)
	return nil
}

func (m *mockLedger) RecentTransactions(_ context.Context, accountID string, limit int) ([]models.LedgerTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LedgerTransaction
	for i := len(m.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.txs[i].AccountID == accountID {
			out = append(out, m.txs[i])
		}
	}
	return out, nil
}

func (m *mockLedger) balance(accountID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[accountID]
}

// ---- mock record stores ----

type mockStore struct {
	name string
	log  *insertLog

	records map[string]models.Record
	// failInsertAt fails the n-th insert into this store (1-based).
	failInsertAt int
	inserts      int
	deleteErr    error
	deleted      []string
}

// insertLog records inserts across all stores in the order they happened.
type insertLog struct {
	mu      sync.Mutex
	entries []models.Record
	deletes []string
}

func (l *insertLog) add(rec models.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, rec)
}

func (l *insertLog) deleted(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deletes = append(l.deletes, id)
}

func (s *mockStore) Name() string { return s.name }

func (s *mockStore) Insert(_ context.Context, rec models.Record) (string, error) {
	s.inserts++
	if s.failInsertAt > 0 && s.inserts == s.failInsertAt {
		return "", fmt.Errorf("insert into %s: connection reset", s.name)
	}
	if rec.TableName() != s.name {
		return "", fmt.Errorf("store %s cannot insert %s record", s.name, rec.TableName())
	}
	id := uuid.New()
	rec.Submission().ID = id
	s.records[id.String()] = rec
	s.log.add(rec)
	return id.String(), nil
}

func (s *mockStore) Delete(_ context.Context, recordID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.records, recordID)
	s.deleted = append(s.deleted, recordID)
	s.log.deleted(recordID)
	return nil
}

func (s *mockStore) CountByRun(_ context.Context, runID uuid.UUID) (int64, error) {
	var n int64
	for _, rec := range s.records {
		if rec.Submission().BulkRunID == runID {
			n++
		}
	}
	return n, nil
}

func newMockStores() (map[string]*mockStore, *insertLog) {
	log := &insertLog{}
	stores := make(map[string]*mockStore)
	for _, name := range []string{models.StoreTrafficOrders, models.StoreSaveOrders, models.StoreReviewOrders, models.StoreBlogOrders} {
		stores[name] = &mockStore{name: name, log: log, records: make(map[string]models.Record)}
	}
	return stores, log
}

func asRecordStores(stores map[string]*mockStore) map[string]repository.RecordStore {
	out := make(map[string]repository.RecordStore, len(stores))
	for name, s := range stores {
		out[name] = s
	}
	return out
}

func totalRecords(stores map[string]*mockStore) int {
	n := 0
	for _, s := range stores {
		n += len(s.records)
	}
	return n
}

// ---- mock sequence ----

type mockSequence struct {
	mu   sync.Mutex
	day  string
	seqs map[string]int64
	err  error
}

func newMockSequence() *mockSequence {
	return &mockSequence{day: "20240301", seqs: make(map[string]int64)}
}

func (m *mockSequence) Next(_ context.Context, code string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.seqs[code]++
	return fmt.Sprintf("%s%s%06d", code, m.day, m.seqs[code]), nil
}

// ---- mock locker ----

type mockLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
	err      error
}

type mockLease struct {
	locker    *mockLocker
	accountID string
}

func (l *mockLease) Release(_ context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	delete(l.locker.held, l.accountID)
	l.locker.released++
	return nil
}

func newMockLocker() *mockLocker {
	return &mockLocker{held: make(map[string]bool)}
}

func (m *mockLocker) Acquire(_ context.Context, accountID string, _ time.Duration) (repository.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.held[accountID] {
		return nil, repository.ErrLeaseHeld
	}
	m.held[accountID] = true
	return &mockLease{locker: m, accountID: accountID}, nil
}

// ---- mock reconciliation repository ----

type mockReconciliation struct {
	reports map[uuid.UUID]*models.ReconciliationReport
}

func newMockReconciliation() *mockReconciliation {
	return &mockReconciliation{reports: make(map[uuid.UUID]*models.ReconciliationReport)}
}

func (m *mockReconciliation) Create(_ context.Context, report *models.ReconciliationReport) error {
	m.reports[report.BulkRunID] = report
	return nil
}

func (m *mockReconciliation) FindByRunID(_ context.Context, runID uuid.UUID) (*models.ReconciliationReport, error) {
	return m.reports[runID], nil
}

// ---- mock enrichment ----

type mockEnrichment struct {
	details map[string]providers.PlaceDetails
	err     error
	calls   int
}

func (m *mockEnrichment) ResolvePlace(ctx context.Context, placeURL string) (providers.PlaceDetails, error) {
	m.calls++
	if err := ctx.Err(); err != nil {
		return providers.PlaceDetails{}, err
	}
	if m.err != nil {
		return providers.PlaceDetails{}, m.err
	}
	return m.details[placeURL], nil
}

// ---- mock side channels ----

type mockEvents struct {
	events []models.RunEvent
}

func (m *mockEvents) PublishRunEvent(_ context.Context, evt models.RunEvent) error {
	m.events = append(m.events, evt)
	return nil
}

type mockSNS struct {
	messages [][]byte
	subjects []string
}

func (m *mockSNS) PublishAlert(_ context.Context, _ string, alert aws_pkg.Alert) error {
	m.messages = append(m.messages, alert.Body)
	m.subjects = append(m.subjects, alert.Subject)
	return nil
}

type mockUploader struct {
	objects map[string][]byte
}

func (m *mockUploader) PutJSON(_ context.Context, bucket, key string, body []byte) error {
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[bucket+"/"+key] = body
	return nil
}

var errStoreDown = errors.New("store unavailable")

// ---- request builders ----

func rawFields(kv map[string]interface{}) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(kv))
	for k, v := range kv {
		b, _ := json.Marshal(v)
		out[k] = b
	}
	return out
}

func trafficRow(placeURL string, daily, days interface{}) models.RowInput {
	return models.RowInput{
		ProductType: models.ProductPlaceTraffic,
		IsValid:     true,
		Fields: rawFields(map[string]interface{}{
			"place_url":      placeURL,
			"daily_count":    daily,
			"operation_days": days,
			"start_date":     "2024-03-04",
			"keyword":        "coffee",
		}),
	}
}

func saveRow(placeURL string, daily, days interface{}) models.RowInput {
	return models.RowInput{
		ProductType: models.ProductPlaceSave,
		IsValid:     true,
		Fields: rawFields(map[string]interface{}{
			"place_url":      placeURL,
			"daily_count":    daily,
			"operation_days": days,
		}),
	}
}

func reviewRow(placeURL string, total interface{}) models.RowInput {
	return models.RowInput{
		ProductType: models.ProductReceiptReview,
		IsValid:     true,
		Fields: rawFields(map[string]interface{}{
			"place_url":     placeURL,
			"total_count":   total,
			"business_name": "Corner Bakery",
		}),
	}
}

func blogRow(placeURL string, total interface{}) models.RowInput {
	return models.RowInput{
		ProductType: models.ProductBlogReview,
		IsValid:     true,
		Fields: rawFields(map[string]interface{}{
			"place_url":   placeURL,
			"total_count": total,
		}),
	}
}
