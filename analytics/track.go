package analytics

import (
	"fmt"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
)

type TrackerFactory func(log.Logger, ...analytics.Properties) analytics.Tracker

const (
	StepExecutionIDEnvKey = "BITRISE_STEP_EXECUTION_ID"
	StepExecutionID       = "step_execution_id"
	DisableEnvKey         = "S3UP_DISABLE_ANALYTICS"
)

// NewStepTracker returns a tracker tagged with the step execution ID.
// Tracking is only available when the tool runs as a build step.
func NewStepTracker(repository env.Repository, logger log.Logger, trackerFactory TrackerFactory) (analytics.Tracker, error) {
	if repository.Get(DisableEnvKey) == "true" {
		return nil, fmt.Errorf("analytics disabled by %s", DisableEnvKey)
	}
	stepExecutionID := repository.Get(StepExecutionIDEnvKey)
	if stepExecutionID == "" {
		return nil, fmt.Errorf("no step execution ID found")
	}
	return trackerFactory(logger, analytics.Properties{StepExecutionID: stepExecutionID}), nil
}

func NewDefaultStepTracker(repository env.Repository, logger log.Logger) (analytics.Tracker, error) {
	return NewStepTracker(repository, logger, analytics.NewDefaultTracker)
}

// NopTracker drops every event.
type NopTracker struct{}

func (NopTracker) Enqueue(string, ...analytics.Properties) {}

func (NopTracker) Wait() {}
