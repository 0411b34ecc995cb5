package emrsync

import (
	"errors"
	"fmt"
)

// ErrorCode classifies orchestrator-level and per-record failures.
type ErrorCode string

const (
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeImportLocked      ErrorCode = "IMPORT_LOCKED"
	CodeSyncError         ErrorCode = "SYNC_ERROR"
	CodeUpsertError       ErrorCode = "UPSERT_ERROR"
	CodeBatchImportFailed ErrorCode = "BATCH_IMPORT_FAILED"
)

// Sentinels for errors.Is; a *SyncError matches the sentinel with the same code.
var (
	ErrInvalidInput = &SyncError{Code: CodeInvalidInput, Message: "invalid input"}
	ErrImportLocked = &SyncError{Code: CodeImportLocked, Message: "import is locked"}
	ErrSyncFailed   = &SyncError{Code: CodeSyncError, Message: "sync failed"}
	ErrUpsertFailed = &SyncError{Code: CodeUpsertError, Message: "upsert failed"}
	ErrBatchFailed  = &SyncError{Code: CodeBatchImportFailed, Message: "batch import failed"}
)

// SyncError is returned by every exported operation of this package.
type SyncError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Is reports whether target is a *SyncError with the same code.
func (e *SyncError) Is(target error) bool {
	t, ok := target.(*SyncError)
	return ok && t.Code == e.Code
}

func newError(code ErrorCode, message string, err error) *SyncError {
	return &SyncError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first *SyncError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// UpsertError reports that one admission could not be merged. Nothing of that
// admission was written.
type UpsertError struct {
	ExternalAdmissionID string
	Err                 error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("%s: admission %q: %v", CodeUpsertError, e.ExternalAdmissionID, e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }

func (e *UpsertError) Is(target error) bool { return target == ErrUpsertFailed }
