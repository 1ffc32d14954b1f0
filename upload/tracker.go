package upload

import (
	"time"

	s3upanalytics "github.com/bitrise-io/go-s3up/analytics"
	"github.com/bitrise-io/go-s3up/transfer"
	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
)

type stepTracker struct {
	tracker analytics.Tracker
	logger  log.Logger
}

func newStepTracker(envRepo env.Repository, logger log.Logger) stepTracker {
	tracker, err := s3upanalytics.NewDefaultStepTracker(envRepo, logger)
	if err != nil {
		logger.Debugf("Analytics disabled: %s", err)
		tracker = s3upanalytics.NopTracker{}
	}
	return stepTracker{
		tracker: tracker,
		logger:  logger,
	}
}

// Handle turns the outcome of a transfer into analytics events.
func (t stepTracker) Handle(event transfer.Event) {
	switch event.Kind {
	case transfer.SessionCommitted:
		t.tracker.Enqueue("s3up_object_uploaded", analytics.Properties{
			"upload_time_s":     event.Elapsed.Truncate(time.Second).Seconds(),
			"upload_size_bytes": event.Bytes,
			"part_count":        event.Parts,
		})
	case transfer.SessionAborted:
		t.tracker.Enqueue("s3up_upload_aborted", analytics.Properties{
			"reason": failureKind(event.Err),
		})
	case transfer.AbortFailed:
		t.tracker.Enqueue("s3up_abort_failed", analytics.Properties{})
	}
}

func (t stepTracker) logRunFinished(summary Summary) {
	properties := analytics.Properties{
		"file_count":        summary.Files,
		"upload_size_bytes": summary.Bytes,
		"upload_time_s":     summary.Duration.Truncate(time.Second).Seconds(),
	}
	t.tracker.Enqueue("s3up_run_finished", properties)
}

func (t stepTracker) wait() {
	t.tracker.Wait()
}
