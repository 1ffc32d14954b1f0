package transfer

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Pacer decides how long the sender waits after a confirmed part to stay under the throughput cap.
type Pacer interface {
	Delay(bytes int64, elapsed time.Duration) time.Duration
}

// PacingStrategy names a Pacer implementation.
type PacingStrategy string

const (
	PacingAverage     PacingStrategy = "average"
	PacingTokenBucket PacingStrategy = "token-bucket"
)

// NewPacer creates the pacer for strategy. An empty strategy means PacingAverage.
func NewPacer(strategy PacingStrategy, bytesPerSecond, chunkSize int64) (Pacer, error) {
	if bytesPerSecond <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %d", bytesPerSecond)
	}

	switch strategy {
	case "", PacingAverage:
		return AveragePacer{Rate: bytesPerSecond}, nil
	case PacingTokenBucket:
		return NewTokenBucketPacer(bytesPerSecond, chunkSize), nil
	default:
		return nil, fmt.Errorf("unknown pacing strategy: %s (supported: average, token-bucket)", strategy)
	}
}

// AveragePacer keeps every part at or below Rate on average: a part of n bytes takes at least n/Rate
// seconds including its submission. Parts that were slower than that are not compensated for.
type AveragePacer struct {
	Rate int64
}

// Delay returns max(0, bytes/Rate - elapsed).
func (p AveragePacer) Delay(bytes int64, elapsed time.Duration) time.Duration {
	if p.Rate <= 0 {
		return 0
	}
	target := time.Duration(float64(bytes) / float64(p.Rate) * float64(time.Second))
	return max(0, target-elapsed)
}

// TokenBucketPacer paces parts with a token bucket of one token per byte.
type TokenBucketPacer struct {
	limiter *rate.Limiter
	now     func() time.Time
}

// NewTokenBucketPacer creates a token bucket refilled at bytesPerSecond that holds at most one chunk.
func NewTokenBucketPacer(bytesPerSecond, chunkSize int64) *TokenBucketPacer {
	burst := max(chunkSize, bytesPerSecond)
	return &TokenBucketPacer{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), int(burst)),
		now:     time.Now,
	}
}

// Delay reserves bytes tokens and returns how long to wait until they are available.
// The bucket refills in real time, so elapsed is already accounted for.
func (p *TokenBucketPacer) Delay(bytes int64, _ time.Duration) time.Duration {
	now := p.now()
	n := min(bytes, int64(p.limiter.Burst()))
	reservation := p.limiter.ReserveN(now, int(n))
	if !reservation.OK() {
		return 0
	}
	return reservation.DelayFrom(now)
}
