package services

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
)

// ServiceError represents a typed error with an HTTP status code. Bulk run
// failures also carry the structured body returned to the caller.
type ServiceError struct {
	StatusCode int
	Message    string
	Failure    *models.BulkRunFailure
}

func (e *ServiceError) Error() string {
	return e.Message
}

var ErrEmptyBatch = errors.New("bulk run contains no rows")

// InvalidRowsError lists every row rejected during classification.
type InvalidRowsError struct {
	Rows    []int
	Reasons map[int]string
}

func (e *InvalidRowsError) Error() string {
	return fmt.Sprintf("%d invalid row(s): %v", len(e.Rows), e.Rows)
}

func (e *InvalidRowsError) add(rowIndex int, reason string) {
	if e.Reasons == nil {
		e.Reasons = make(map[int]string)
	}
	if _, seen := e.Reasons[rowIndex]; !seen {
		e.Rows = append(e.Rows, rowIndex)
	}
	e.Reasons[rowIndex] = reason
}

func (e *InvalidRowsError) empty() bool { return len(e.Rows) == 0 }

func (e *InvalidRowsError) sorted() *InvalidRowsError {
	sort.Ints(e.Rows)
	return e
}

// RowError is a pre-mutation abort attributed to one row.
type RowError struct {
	RowIndex int
	Reason   string
	Err      error
}

func (e *RowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row %d: %s: %v", e.RowIndex, e.Reason, e.Err)
	}
	return fmt.Sprintf("row %d: %s", e.RowIndex, e.Reason)
}

func (e *RowError) Unwrap() error { return e.Err }

// InsufficientBalanceError is returned by the balance guard.
type InsufficientBalanceError struct {
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %d, available %d", e.Required, e.Available)
}

// abortError builds the response for a run that failed before any mutation.
func abortError(runID uuid.UUID, state RunState, status int, msg string) *ServiceError {
	return &ServiceError{
		StatusCode: status,
		Message:    msg,
		Failure: &models.BulkRunFailure{
			Success:    false,
			Error:      msg,
			RolledBack: false,
			Stage:      string(state),
			BulkRunID:  runID,
		},
	}
}

// rollbackError builds the response for a run that failed after the debit.
func rollbackError(runID uuid.UUID, state RunState, msg string, rowIndex *int, report *models.CompensationReport) *ServiceError {
	return &ServiceError{
		StatusCode: http.StatusInternalServerError,
		Message:    msg,
		Failure: &models.BulkRunFailure{
			Success:      false,
			Error:        msg,
			RolledBack:   report.Clean(),
			Stage:        string(state),
			BulkRunID:    runID,
			RowIndex:     rowIndex,
			Compensation: report,
		},
	}
}
