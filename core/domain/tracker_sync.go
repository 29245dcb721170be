package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type SyncErrorCode string

const (
	SyncErrNotFound            SyncErrorCode = "not_found"
	SyncErrUnsupportedProvider SyncErrorCode = "unsupported_provider"
	SyncErrConnectionFailed    SyncErrorCode = "connection_failed"
	SyncErrFetchFailed         SyncErrorCode = "fetch_failed"
	SyncErrConfig              SyncErrorCode = "config_error"
	SyncErrInProgress          SyncErrorCode = "sync_in_progress"
	SyncErrInternal            SyncErrorCode = "internal"
)

// SyncError is the run-level failure reported on a SyncResult.
type SyncError struct {
	Code    SyncErrorCode `json:"code"`
	Message string        `json:"message"`
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// SyncResult summarises one sync run.
type SyncResult struct {
	IntegrationID       uuid.UUID  `json:"integrationId"`
	UserID              uuid.UUID  `json:"userId"`
	Success             bool       `json:"success"`
	ProcessedCount      int        `json:"processedCount"`
	JobRelatedCount     int        `json:"jobRelatedCount"`
	NewApplications     int        `json:"newApplications"`
	UpdatedApplications int        `json:"updatedApplications"`
	SkippedCount        int        `json:"skippedCount"`
	Error               *SyncError `json:"error,omitempty"`
}

// Fail marks the result as a run-level failure.
func (r *SyncResult) Fail(code SyncErrorCode, format string, args ...any) *SyncResult {
	r.Success = false
	r.Error = &SyncError{Code: code, Message: fmt.Sprintf(format, args...)}
	return r
}

// BatchResult is returned by the scheduler entry point.
type BatchResult struct {
	Processed []SyncResult `json:"processed"`
}
