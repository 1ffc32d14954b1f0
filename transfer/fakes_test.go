package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

const mib = 1024 * 1024

// patternSource serves size bytes of a deterministic pattern without keeping them in memory.
type patternSource struct {
	size   int64
	onRead func(offset int64)

	mu      sync.Mutex
	offsets []int64
}

func (s *patternSource) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, off)
	s.mu.Unlock()
	if s.onRead != nil {
		s.onRead(off)
	}

	if off >= s.size {
		return 0, io.EOF
	}
	n := len(p)
	if remaining := s.size - off; int64(n) > remaining {
		n = int(remaining)
	}
	for i := 0; i < n; i++ {
		p[i] = patternByte(off + int64(i))
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *patternSource) readOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.offsets...)
}

func patternByte(offset int64) byte {
	return byte(offset % 251)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sleepRecorder struct {
	clock *fakeClock

	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	if r.clock != nil {
		r.clock.Advance(d)
	}
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

type fakeSession struct {
	id      string
	planned int
	digest  DigestAlgorithm

	// lengthOverride and digestOverride replace what the store confirms for a part.
	lengthOverride map[int]int64
	digestOverride map[int]string
	// submitErrs are returned by consecutive attempts of a part before it succeeds.
	submitErrs map[int][]error
	onSubmit   func(seq int)
	commitErr  error
	abortErr   error

	mu        sync.Mutex
	state     State
	parts     []PartResult
	submitted []int
	commits   int
	aborts    int
}

func newFakeSession(planned int) *fakeSession {
	return &fakeSession{
		id:             "upload-1",
		planned:        planned,
		digest:         DigestMD5,
		lengthOverride: map[int]int64{},
		digestOverride: map[int]string{},
		submitErrs:     map[int][]error{},
	}
}

func (s *fakeSession) SubmitPart(ctx context.Context, seq int, data []byte) (PartResult, error) {
	if s.onSubmit != nil {
		s.onSubmit(seq)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInitiated {
		return PartResult{}, fmt.Errorf("session is %s", s.state)
	}
	s.submitted = append(s.submitted, seq)

	if errs := s.submitErrs[seq]; len(errs) > 0 {
		s.submitErrs[seq] = errs[1:]
		return PartResult{}, errs[0]
	}
	if err := ctx.Err(); err != nil {
		return PartResult{}, err
	}

	result := PartResult{Seq: seq, Digest: s.digest.Sum(data), Length: int64(len(data))}
	if length, ok := s.lengthOverride[seq]; ok {
		result.Length = length
	}
	if digest, ok := s.digestOverride[seq]; ok {
		result.Digest = digest
	}
	s.parts = append(s.parts, result)
	return result, nil
}

func (s *fakeSession) Commit(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInitiated {
		return fmt.Errorf("session is %s", s.state)
	}
	if len(s.parts) != s.planned {
		return &PrematureCommitError{Confirmed: len(s.parts), Planned: s.planned}
	}
	if s.commitErr != nil {
		return s.commitErr
	}
	s.commits++
	s.state = StateCompleted
	return nil
}

func (s *fakeSession) Abort(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAborted:
		return nil
	case StateCompleted:
		return errors.New("session already completed")
	}
	s.aborts++
	if s.abortErr != nil {
		return s.abortErr
	}
	s.state = StateAborted
	return nil
}

func (s *fakeSession) UploadID() string {
	return s.id
}

func (s *fakeSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSession) submittedSeqs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.submitted...)
}

type fakeStore struct {
	session *fakeSession
	openErr error
	targets []Target
}

func (s *fakeStore) Open(_ context.Context, target Target) (Session, error) {
	s.targets = append(s.targets, target)
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.session.digest = target.Digest
	return s.session, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Handle(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) kinds(filter ...EventKind) []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kinds []EventKind
	for _, e := range r.events {
		if len(filter) == 0 || containsKind(filter, e.Kind) {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

func (r *eventRecorder) ofKind(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var events []Event
	for _, e := range r.events {
		if e.Kind == kind {
			events = append(events, e)
		}
	}
	return events
}

func containsKind(kinds []EventKind, kind EventKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

type transientTestError struct{}

func (transientTestError) Error() string { return "503 slow down" }
