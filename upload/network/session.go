package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bitrise-io/go-s3up/transfer"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
)

const numAbortRetries = 2

// partReceipt is what the store recorded for one part.
type partReceipt struct {
	ETag           string
	ChecksumSHA256 string
	Size           int64
}

type completedPart struct {
	Number         int32
	ETag           string
	ChecksumSHA256 string
}

// multipartBackend is the multipart upload capability of one object store flavour.
type multipartBackend interface {
	name() string
	supports(digest transfer.DigestAlgorithm) bool
	create(ctx context.Context, target transfer.Target) (string, error)
	uploadPart(ctx context.Context, target transfer.Target, uploadID string, number int32, data []byte) (partReceipt, error)
	// listPart returns the store's record of an uploaded part, including its length.
	listPart(ctx context.Context, target transfer.Target, uploadID string, number int32) (partReceipt, error)
	complete(ctx context.Context, target transfer.Target, uploadID string, parts []completedPart) error
	abort(ctx context.Context, target transfer.Target, uploadID string) error
	putEmpty(ctx context.Context, target transfer.Target) error
}

// Store opens multipart upload sessions on an object store.
type Store struct {
	backend   multipartBackend
	logger    log.Logger
	abortWait time.Duration
}

func newStore(backend multipartBackend, logger log.Logger) *Store {
	return &Store{backend: backend, logger: logger, abortWait: 2 * time.Second}
}

// Open creates a multipart upload for target.
func (s *Store) Open(ctx context.Context, target transfer.Target) (transfer.Session, error) {
	if target.Bucket == "" {
		return nil, fmt.Errorf("bucket must not be empty")
	}
	if target.Key == "" {
		return nil, fmt.Errorf("key must not be empty")
	}
	if !s.backend.supports(target.Digest) {
		return nil, fmt.Errorf("%s backend cannot confirm %s digests", s.backend.name(), target.Digest)
	}

	uploadID, err := s.backend.create(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("create multipart upload: %w", err)
	}
	s.logger.Debugf("Multipart upload %s created for %s/%s", uploadID, target.Bucket, target.Key)

	return &session{
		backend:   s.backend,
		logger:    s.logger,
		target:    target,
		uploadID:  uploadID,
		abortWait: s.abortWait,
	}, nil
}

type session struct {
	backend   multipartBackend
	logger    log.Logger
	target    transfer.Target
	uploadID  string
	abortWait time.Duration

	mu    sync.Mutex
	state transfer.State
	parts []completedPart
}

func (s *session) UploadID() string {
	return s.uploadID
}

func (s *session) State() transfer.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SubmitPart uploads a part and reads back the store's record of it.
func (s *session) SubmitPart(ctx context.Context, seq int, data []byte) (transfer.PartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != transfer.StateInitiated {
		return transfer.PartResult{}, fmt.Errorf("upload %s is %s", s.uploadID, s.state)
	}
	if seq < 1 || seq > transfer.MaxParts {
		return transfer.PartResult{}, fmt.Errorf("part number %d out of range", seq)
	}
	number := int32(seq)

	receipt, err := s.backend.uploadPart(ctx, s.target, s.uploadID, number, data)
	if err != nil {
		return transfer.PartResult{}, fmt.Errorf("upload part %d: %w", seq, err)
	}

	listed, err := s.backend.listPart(ctx, s.target, s.uploadID, number)
	if err != nil {
		return transfer.PartResult{}, fmt.Errorf("list part %d: %w", seq, err)
	}

	digest, err := confirmedDigest(s.target.Digest, receipt, listed)
	if err != nil {
		return transfer.PartResult{}, fmt.Errorf("part %d: %w", seq, err)
	}

	etag := listed.ETag
	if etag == "" {
		etag = receipt.ETag
	}
	part := completedPart{Number: number, ETag: etag, ChecksumSHA256: receipt.ChecksumSHA256}
	if part.ChecksumSHA256 == "" {
		part.ChecksumSHA256 = listed.ChecksumSHA256
	}
	s.replacePart(part)

	return transfer.PartResult{Seq: seq, Digest: digest, Length: listed.Size}, nil
}

// replacePart keeps one entry per part number, as a resubmitted part replaces the earlier upload on the store.
func (s *session) replacePart(part completedPart) {
	for i, p := range s.parts {
		if p.Number == part.Number {
			s.parts[i] = part
			return
		}
	}
	s.parts = append(s.parts, part)
}

// Commit completes the upload once every planned part was submitted.
func (s *session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != transfer.StateInitiated {
		return fmt.Errorf("upload %s is %s", s.uploadID, s.state)
	}
	if len(s.parts) != s.target.Parts {
		return &transfer.PrematureCommitError{Confirmed: len(s.parts), Planned: s.target.Parts}
	}

	if len(s.parts) == 0 {
		// A multipart upload cannot be completed without parts.
		if err := s.backend.abort(ctx, s.target, s.uploadID); err != nil {
			return fmt.Errorf("discard empty multipart upload: %w", err)
		}
		// Nothing is left to abort from here on.
		s.state = transfer.StateAborted
		if err := s.backend.putEmpty(ctx, s.target); err != nil {
			return fmt.Errorf("put empty object: %w", err)
		}
		s.state = transfer.StateCompleted
		return nil
	}

	if err := s.backend.complete(ctx, s.target, s.uploadID, s.parts); err != nil {
		return fmt.Errorf("complete multipart upload: %w", err)
	}
	s.state = transfer.StateCompleted
	return nil
}

// Abort discards the upload. It is retried a few times as a failed abort leaves the parts on the store.
func (s *session) Abort(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case transfer.StateAborted:
		return nil
	case transfer.StateCompleted:
		return fmt.Errorf("upload %s is already completed", s.uploadID)
	}

	err := retry.Times(numAbortRetries).Wait(s.abortWait).TryWithAbort(func(attempt uint) (error, bool) {
		err := s.backend.abort(ctx, s.target, s.uploadID)
		if err == nil {
			return nil, true
		}
		if ctx.Err() != nil || !transfer.IsTransient(err) {
			return err, true
		}
		s.logger.Warnf("Abort of upload %s failed (attempt %d): %s", s.uploadID, attempt+1, err)
		return err, false
	})
	if err != nil {
		return fmt.Errorf("abort multipart upload %s: %w", s.uploadID, err)
	}

	s.state = transfer.StateAborted
	return nil
}

func confirmedDigest(algorithm transfer.DigestAlgorithm, receipt, listed partReceipt) (string, error) {
	switch algorithm {
	case transfer.DigestSHA256:
		checksum := listed.ChecksumSHA256
		if checksum == "" {
			checksum = receipt.ChecksumSHA256
		}
		if checksum == "" {
			return "", fmt.Errorf("store returned no SHA-256 checksum")
		}
		return base64ToHex(checksum)
	default:
		etag := listed.ETag
		if etag == "" {
			etag = receipt.ETag
		}
		if etag == "" {
			return "", fmt.Errorf("store returned no ETag")
		}
		return normalizeETag(etag), nil
	}
}
