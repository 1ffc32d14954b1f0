package upload

import (
	"context"
	"errors"
	"time"

	"github.com/bitrise-io/go-s3up/transfer"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

type eventLogger struct {
	logger log.Logger
}

func newEventLogger(logger log.Logger) eventLogger {
	return eventLogger{logger: logger}
}

// Handle writes transfer progress to the log.
func (l eventLogger) Handle(event transfer.Event) {
	switch event.Kind {
	case transfer.SessionOpened:
		l.logger.Printf("Upload session %s opened for %d part(s), %s", event.UploadID, event.Parts, units.BytesSize(float64(event.Bytes)))
	case transfer.ChunkRead:
		l.logger.Debugf("Part %d/%d read, digest: %s", event.Seq, event.Parts, event.Digest)
	case transfer.ChunkStarted:
		l.logger.Debugf("Part %d/%d submitting (%s)", event.Seq, event.Parts, units.BytesSize(float64(event.Bytes)))
	case transfer.ChunkConfirmed:
		l.logger.Printf("Part %d/%d confirmed: %s in %s, waiting %s", event.Seq, event.Parts, units.BytesSize(float64(event.Bytes)), event.Elapsed.Round(time.Millisecond), event.Delay.Round(time.Millisecond))
	case transfer.SessionCommitted:
		l.logger.Debugf("Upload session %s committed", event.UploadID)
	case transfer.SessionAborted:
		l.logger.Errorf("Upload aborted: %s", describeFailure(event.Err))
		l.logger.Printf("Upload session %s was aborted, no partial object is left on the store", event.UploadID)
	case transfer.AbortFailed:
		l.logger.Errorf("Failed to abort upload session %s of s3://%s/%s: %s", event.UploadID, event.Bucket, event.Key, event.Err)
		l.logger.Warnf("The multipart upload has to be aborted manually, e.g. aws s3api abort-multipart-upload --bucket %s --key %s --upload-id %s", event.Bucket, event.Key, event.UploadID)
	}
}

// describeFailure names the failure kind together with the offending part.
func describeFailure(err error) string {
	var (
		sizeErr      *transfer.PartSizeMismatchError
		integrityErr *transfer.PartIntegrityError
		readErr      *transfer.SourceReadError
		submitErr    *transfer.SubmitFailure
		commitErr    *transfer.PrematureCommitError
	)
	switch {
	case err == nil:
		return "unknown reason"
	case errors.As(err, &sizeErr):
		return "part size mismatch: " + sizeErr.Error()
	case errors.As(err, &integrityErr):
		return "part integrity failure: " + integrityErr.Error()
	case errors.As(err, &readErr):
		return "source read failure: " + readErr.Error()
	case errors.As(err, &submitErr):
		return "part submission failure: " + submitErr.Error()
	case errors.As(err, &commitErr):
		return "premature commit: " + commitErr.Error()
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}

// failureKind is a short, stable name of the failure used in analytics events.
func failureKind(err error) string {
	var (
		sizeErr      *transfer.PartSizeMismatchError
		integrityErr *transfer.PartIntegrityError
		readErr      *transfer.SourceReadError
		submitErr    *transfer.SubmitFailure
		commitErr    *transfer.PrematureCommitError
	)
	switch {
	case errors.As(err, &sizeErr):
		return "part_size_mismatch"
	case errors.As(err, &integrityErr):
		return "part_integrity"
	case errors.As(err, &readErr):
		return "source_read"
	case errors.As(err, &submitErr):
		return "submit"
	case errors.As(err, &commitErr):
		return "premature_commit"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
