package transfer

import (
	"errors"
	"fmt"
)

// InvalidPlanError is returned when a file cannot be split into chunks.
type InvalidPlanError struct {
	Path      string
	FileSize  int64
	ChunkSize int64
	Reason    string
}

func (e *InvalidPlanError) Error() string {
	return fmt.Sprintf("invalid plan for %s (file size %d, chunk size %d): %s", e.Path, e.FileSize, e.ChunkSize, e.Reason)
}

// SourceReadError is returned when a chunk could not be read in full from the source.
type SourceReadError struct {
	Seq      int
	Offset   int64
	Expected int64
	Actual   int64
	Err      error
}

func (e *SourceReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("read chunk %d at offset %d: got %d of %d bytes: %s", e.Seq, e.Offset, e.Actual, e.Expected, e.Err)
	}
	return fmt.Sprintf("read chunk %d at offset %d: got %d of %d bytes", e.Seq, e.Offset, e.Actual, e.Expected)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

// PartSizeMismatchError is returned when the store confirms a part length that differs from the plan.
type PartSizeMismatchError struct {
	Seq      int
	Expected int64
	Actual   int64
}

func (e *PartSizeMismatchError) Error() string {
	return fmt.Sprintf("part %d: store confirmed %d bytes, expected %d", e.Seq, e.Actual, e.Expected)
}

// PartIntegrityError is returned when the store confirms a digest that differs from the local one.
type PartIntegrityError struct {
	Seq      int
	Expected string
	Actual   string
}

func (e *PartIntegrityError) Error() string {
	return fmt.Sprintf("part %d: store confirmed digest %s, expected %s", e.Seq, e.Actual, e.Expected)
}

// SubmitFailure is returned when a part could not be submitted to the store.
type SubmitFailure struct {
	Seq      int
	Attempts int
	Err      error
}

func (e *SubmitFailure) Error() string {
	return fmt.Sprintf("submit part %d failed after %d attempt(s): %s", e.Seq, e.Attempts, e.Err)
}

func (e *SubmitFailure) Unwrap() error {
	return e.Err
}

// PrematureCommitError is returned when a session is committed before every planned part was confirmed.
type PrematureCommitError struct {
	Confirmed int
	Planned   int
}

func (e *PrematureCommitError) Error() string {
	return fmt.Sprintf("commit requested with %d of %d parts confirmed", e.Confirmed, e.Planned)
}

// DanglingSessionError is returned when a failed transfer could not be aborted.
// The multipart upload is left on the store and has to be cleaned up manually.
type DanglingSessionError struct {
	Bucket   string
	Key      string
	UploadID string
	Cause    error
	AbortErr error
}

func (e *DanglingSessionError) Error() string {
	return fmt.Sprintf("%s; abort of upload %s (s3://%s/%s) failed, clean it up manually: %s", e.Cause, e.UploadID, e.Bucket, e.Key, e.AbortErr)
}

func (e *DanglingSessionError) Unwrap() []error {
	return []error{e.Cause, e.AbortErr}
}

type transientError struct {
	err error
}

func (e transientError) Error() string {
	return e.err.Error()
}

func (e transientError) Unwrap() error {
	return e.err
}

// Transient marks a store error as worth retrying.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var t transientError
	return errors.As(err, &t)
}
