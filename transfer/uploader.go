package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"golang.org/x/sync/errgroup"
)

// Result describes a committed transfer.
type Result struct {
	Bucket   string
	Key      string
	UploadID string
	Parts    int
	Bytes    int64
	Duration time.Duration
	// MeanPartDuration is the average submission time of a part.
	MeanPartDuration time.Duration
	// Throughput is the effective rate in bytes per second, pacing delays included.
	Throughput float64
}

// Uploader runs single file transfers against a Store.
type Uploader struct {
	store  Store
	config Config
	logger log.Logger
}

// New creates a new Uploader with the given configuration.
func New(store Store, config Config, logger log.Logger) *Uploader {
	return &Uploader{
		store:  store,
		config: config.withDefaults(),
		logger: logger,
	}
}

// Upload opens a session, streams the job's chunks through the reader and the sender, and commits.
// On any failure the session is aborted and the first error is returned. If the abort fails too,
// the returned error is a *DanglingSessionError.
func (u *Uploader) Upload(ctx context.Context, job Job) (*Result, error) {
	if err := u.config.validate(); err != nil {
		return nil, err
	}

	pacer := u.config.pacer
	if pacer == nil {
		p, err := NewPacer(u.config.Pacing, u.config.Rate, job.Plan.ChunkSize)
		if err != nil {
			return nil, err
		}
		pacer = p
	}

	start := u.config.now()
	session, err := u.store.Open(ctx, Target{
		Bucket:      job.Bucket,
		Key:         job.Key,
		ContentType: job.ContentType,
		Parts:       job.Plan.ChunkCount,
		Digest:      u.config.Digest,
	})
	if err != nil {
		return nil, fmt.Errorf("open upload session: %w", err)
	}
	u.config.Events.Handle(Event{Kind: SessionOpened, Bucket: job.Bucket, Key: job.Key, UploadID: session.UploadID(), Parts: job.Plan.ChunkCount, Bytes: job.Plan.TotalSize})

	stats := NewStats()
	if err := u.stream(ctx, session, job, pacer, stats); err != nil {
		return nil, u.abort(ctx, session, job, err)
	}

	if err := session.Commit(ctx); err != nil {
		return nil, u.abort(ctx, session, job, fmt.Errorf("commit: %w", err))
	}

	result := &Result{
		Bucket:           job.Bucket,
		Key:              job.Key,
		UploadID:         session.UploadID(),
		Parts:            job.Plan.ChunkCount,
		Bytes:            job.Plan.TotalSize,
		Duration:         u.config.now().Sub(start),
		MeanPartDuration: stats.Average(),
		Throughput:       stats.Throughput(),
	}
	u.config.Events.Handle(Event{Kind: SessionCommitted, Bucket: job.Bucket, Key: job.Key, UploadID: result.UploadID, Parts: result.Parts, Bytes: result.Bytes, Elapsed: result.Duration})

	return result, nil
}

func (u *Uploader) stream(ctx context.Context, session Session, job Job, pacer Pacer, stats *Stats) error {
	g, gctx := errgroup.WithContext(ctx)
	chunks := make(chan Chunk)

	reader := NewReader(job.Source, job.Plan, u.config.Digest, u.config.Events, u.logger)
	sender := NewSender(session, job.Plan, pacer, u.config, stats, u.logger)

	g.Go(func() error {
		return reader.Run(gctx, chunks)
	})
	g.Go(func() error {
		return sender.Run(gctx, chunks)
	})

	return g.Wait()
}

// abort runs on a context detached from ctx so that a cancelled transfer still gets cleaned up.
func (u *Uploader) abort(ctx context.Context, session Session, job Job, cause error) error {
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.config.AbortTimeout)
	defer cancel()

	if err := session.Abort(abortCtx); err != nil {
		u.config.Events.Handle(Event{Kind: AbortFailed, Bucket: job.Bucket, Key: job.Key, UploadID: session.UploadID(), Err: err})
		return &DanglingSessionError{
			Bucket:   job.Bucket,
			Key:      job.Key,
			UploadID: session.UploadID(),
			Cause:    cause,
			AbortErr: err,
		}
	}

	u.config.Events.Handle(Event{Kind: SessionAborted, Bucket: job.Bucket, Key: job.Key, UploadID: session.UploadID(), Err: cause})
	return cause
}
