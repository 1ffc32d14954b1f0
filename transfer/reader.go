package transfer

import (
	"context"
	"errors"
	"io"

	"github.com/bitrise-io/go-utils/v2/log"
)

// Reader reads the chunks of a plan from a source and publishes them in order.
type Reader struct {
	source io.ReaderAt
	plan   Plan
	digest DigestAlgorithm
	events EventHandler
	logger log.Logger
}

// NewReader creates a Reader. A nil events handler discards events.
func NewReader(source io.ReaderAt, plan Plan, digest DigestAlgorithm, events EventHandler, logger log.Logger) *Reader {
	if events == nil {
		events = nopHandler{}
	}
	return &Reader{
		source: source,
		plan:   plan,
		digest: digest,
		events: events,
		logger: logger,
	}
}

// Run reads every chunk into a fresh buffer, digests it and sends it on out.
// The send blocks until the consumer takes the chunk, so the reader is never more than one chunk ahead.
func (r *Reader) Run(ctx context.Context, out chan<- Chunk) error {
	for seq := 1; seq <= r.plan.ChunkCount; seq++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := r.read(seq)
		if err != nil {
			return err
		}
		r.events.Handle(Event{Kind: ChunkRead, Seq: seq, Parts: r.plan.ChunkCount, Bytes: int64(len(chunk.Data)), Digest: chunk.Digest})

		select {
		case <-ctx.Done():
			r.logger.Debugf("Reader stopped before handing over chunk %d", seq)
			return ctx.Err()
		case out <- chunk:
		}
	}
	return nil
}

func (r *Reader) read(seq int) (Chunk, error) {
	offset := r.plan.Offset(seq)
	expected := r.plan.ChunkLength(seq)

	buf := make([]byte, expected)
	n, err := r.source.ReadAt(buf, offset)
	// ReadAt may report io.EOF together with a complete read of the final chunk.
	if errors.Is(err, io.EOF) && int64(n) == expected {
		err = nil
	}
	if err != nil || int64(n) != expected {
		return Chunk{}, &SourceReadError{Seq: seq, Offset: offset, Expected: expected, Actual: int64(n), Err: err}
	}

	return Chunk{Seq: seq, Data: buf, Digest: r.digest.Sum(buf)}, nil
}
