// Package models holds the shared domain shapes and sentinel errors of the
// administration tool. Callers match sentinels with errors.Is.
package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConnectivity means the store or a remote endpoint was unreachable.
	// The current operation aborts; no attempt or record is consumed.
	ErrConnectivity = errors.New("connectivity failure")

	// ErrNotFound means a targeted row no longer exists in the store.
	ErrNotFound = errors.New("record not found")

	// ErrDataSource means the store returned a malformed schema or a query
	// failed. Retries are operator-initiated only.
	ErrDataSource = errors.New("data source failure")

	// ErrApprovalPending rejects a second out-of-band request while one is
	// still outstanding.
	ErrApprovalPending = errors.New("an approval request is already pending")

	// ErrAuthExpired marks an out-of-band wait that exceeded its deadline.
	// Treated as a denial, logged distinctly.
	ErrAuthExpired = errors.New("approval wait expired")
)

// ValidationError reports every schema-constraint violation of a proposed
// row in one shot, so the operator sees the complete list at once.
type ValidationError struct {
	Table          string
	MissingColumns []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("table %s: required columns not filled: %s",
		e.Table, strings.Join(e.MissingColumns, ", "))
}
