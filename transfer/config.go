package transfer

import (
	"context"
	"fmt"
	"time"
)

// MinChunkSize is the smallest part size S3 accepts for every part but the last.
const MinChunkSize int64 = 5 * 1024 * 1024

// MaxChunkSize is the largest part size S3 accepts.
const MaxChunkSize int64 = 5 * 1024 * 1024 * 1024

// Config holds configuration for the uploader.
type Config struct {
	// Rate is the throughput cap in bytes per second.
	Rate int64

	// Digest is the checksum computed for every chunk and compared with the store-confirmed one.
	// Default: md5
	Digest DigestAlgorithm

	// Pacing selects the pacer used between parts.
	// Default: average
	Pacing PacingStrategy

	// SubmitRetries is the number of extra attempts for a part whose submission failed transiently.
	// Integrity failures are never retried.
	// Default: 3
	SubmitRetries uint

	// RetryWait is the wait between two submission attempts.
	// Default: 5 seconds
	RetryWait time.Duration

	// PartTimeout bounds a single submission attempt. Zero means no timeout.
	PartTimeout time.Duration

	// AbortTimeout bounds the abort issued after a failure.
	// Default: 30 seconds
	AbortTimeout time.Duration

	// Events receives status reports. Optional.
	Events EventHandler

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	pacer Pacer
}

// DefaultConfig returns the default configuration for the given rate.
func DefaultConfig(rate int64) Config {
	return Config{
		Rate:          rate,
		Digest:        DigestMD5,
		Pacing:        PacingAverage,
		SubmitRetries: 3,
		RetryWait:     5 * time.Second,
		AbortTimeout:  30 * time.Second,
	}
}

// DefaultChunkSize returns the chunk size used when none is configured:
// one second worth of data at the given rate, kept between MinChunkSize and MaxChunkSize.
func DefaultChunkSize(rate int64) int64 {
	return min(max(rate, MinChunkSize), MaxChunkSize)
}

func (c Config) validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %d", c.Rate)
	}
	if _, err := ParseDigestAlgorithm(string(c.Digest)); err != nil {
		return err
	}
	if c.PartTimeout < 0 {
		return fmt.Errorf("part timeout must not be negative, got %s", c.PartTimeout)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Digest == "" {
		c.Digest = DigestMD5
	}
	if c.Pacing == "" {
		c.Pacing = PacingAverage
	}
	if c.AbortTimeout <= 0 {
		c.AbortTimeout = 30 * time.Second
	}
	if c.Events == nil {
		c.Events = nopHandler{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
