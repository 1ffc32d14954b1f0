// Package transfer uploads one file to an object store as a multipart upload under a throughput cap.
// A reader and a sender goroutine are joined by an unbuffered channel, so at most two chunks
// are held in memory. Every part is verified against the store-confirmed length and digest
// before the next one is submitted.
package transfer

import (
	"context"
	"fmt"
	"io"
)

// Chunk is one contiguous slice of the source file. The receiver of a Chunk owns Data.
type Chunk struct {
	Seq    int
	Data   []byte
	Digest string
}

// PartResult is what the store confirmed for a submitted part.
type PartResult struct {
	Seq    int
	Digest string
	Length int64
}

// State is the lifecycle state of a Session.
type State int

const (
	StateInitiated State = iota
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInitiated:
		return "initiated"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Target identifies the object a session writes.
type Target struct {
	Bucket      string
	Key         string
	ContentType string
	Parts       int
	Digest      DigestAlgorithm
}

// Session is one open multipart upload.
type Session interface {
	// SubmitPart transmits one part and returns what the store recorded for it.
	SubmitPart(ctx context.Context, seq int, data []byte) (PartResult, error)
	// Commit completes the upload. It fails with *PrematureCommitError unless every planned part was submitted.
	Commit(ctx context.Context) error
	// Abort discards the upload. Aborting an aborted session is a no-op.
	Abort(ctx context.Context) error
	UploadID() string
	State() State
}

// Store opens multipart upload sessions.
type Store interface {
	Open(ctx context.Context, target Target) (Session, error)
}

// Job is a single file transfer.
type Job struct {
	Bucket      string
	Key         string
	ContentType string
	Plan        Plan
	Source      io.ReaderAt
}
