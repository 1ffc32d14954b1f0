package transfer

import (
	"context"
	"fmt"

	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
)

// Sender submits chunks as parts of a session, verifies each part and paces the submissions.
type Sender struct {
	session Session
	plan    Plan
	config  Config
	pacer   Pacer
	stats   *Stats
	logger  log.Logger
}

// NewSender creates a Sender for the given session and plan.
func NewSender(session Session, plan Plan, pacer Pacer, config Config, stats *Stats, logger log.Logger) *Sender {
	if stats == nil {
		stats = NewStats()
	}
	return &Sender{
		session: session,
		plan:    plan,
		config:  config.withDefaults(),
		pacer:   pacer,
		stats:   stats,
		logger:  logger,
	}
}

// Run consumes exactly plan.ChunkCount chunks from in. Part N+1 is not submitted before part N is
// confirmed, verified and paced.
func (s *Sender) Run(ctx context.Context, in <-chan Chunk) error {
	for seq := 1; seq <= s.plan.ChunkCount; seq++ {
		var chunk Chunk
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk = <-in:
		}

		if chunk.Seq != seq {
			return fmt.Errorf("received chunk %d, expected chunk %d", chunk.Seq, seq)
		}

		if err := s.send(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sender) send(ctx context.Context, chunk Chunk) error {
	s.config.Events.Handle(Event{Kind: ChunkStarted, Seq: chunk.Seq, Parts: s.plan.ChunkCount, Bytes: int64(len(chunk.Data)), Digest: chunk.Digest})

	start := s.config.now()
	result, err := s.submit(ctx, chunk)
	if err != nil {
		return err
	}
	elapsed := s.config.now().Sub(start)

	if err := s.verify(chunk, result); err != nil {
		return err
	}

	// The configured chunk size is used for the final part as well.
	delay := s.pacer.Delay(s.plan.ChunkSize, elapsed)
	s.stats.Update(elapsed, result.Length, delay)
	s.config.Events.Handle(Event{
		Kind:    ChunkConfirmed,
		Seq:     chunk.Seq,
		Parts:   s.plan.ChunkCount,
		Bytes:   result.Length,
		Digest:  result.Digest,
		Elapsed: elapsed,
		Delay:   delay,
	})

	return s.config.sleep(ctx, delay)
}

func (s *Sender) submit(ctx context.Context, chunk Chunk) (PartResult, error) {
	var result PartResult
	attempts := 0

	err := retry.Times(s.config.SubmitRetries).Wait(s.config.RetryWait).TryWithAbort(func(attempt uint) (error, bool) {
		attempts++
		if attempt > 0 {
			s.logger.Debugf("Retrying part %d (attempt %d)", chunk.Seq, attempt+1)
		}

		partCtx, cancel := s.partContext(ctx)
		defer cancel()

		res, err := s.session.SubmitPart(partCtx, chunk.Seq, chunk.Data)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err(), true
			}
			if !IsTransient(err) && partCtx.Err() == nil {
				return err, true
			}
			s.logger.Warnf("Part %d failed: %s", chunk.Seq, err)
			return err, false
		}

		result = res
		return nil, true
	})
	if err != nil {
		if ctx.Err() != nil {
			return PartResult{}, ctx.Err()
		}
		return PartResult{}, &SubmitFailure{Seq: chunk.Seq, Attempts: attempts, Err: err}
	}

	return result, nil
}

func (s *Sender) partContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.PartTimeout > 0 {
		return context.WithTimeout(ctx, s.config.PartTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Sender) verify(chunk Chunk, result PartResult) error {
	expected := s.plan.ChunkLength(chunk.Seq)
	if result.Length != expected {
		return &PartSizeMismatchError{Seq: chunk.Seq, Expected: expected, Actual: result.Length}
	}
	if result.Digest != chunk.Digest {
		return &PartIntegrityError{Seq: chunk.Seq, Expected: chunk.Digest, Actual: result.Digest}
	}
	return nil
}
