package transfer

import "time"

// EventKind identifies a status event of a transfer.
type EventKind string

const (
	SessionOpened    EventKind = "session_opened"
	ChunkRead        EventKind = "chunk_read"
	ChunkStarted     EventKind = "chunk_started"
	ChunkConfirmed   EventKind = "chunk_confirmed"
	SessionCommitted EventKind = "session_committed"
	SessionAborted   EventKind = "session_aborted"
	AbortFailed      EventKind = "abort_failed"
)

// Event is a status report of a transfer. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	Bucket   string
	Key      string
	UploadID string
	Seq      int
	Parts    int
	Bytes    int64
	Digest   string
	Elapsed  time.Duration
	Delay    time.Duration
	Err      error
}

// EventHandler receives transfer events. The reader and the sender report from different
// goroutines, so implementations must be safe for concurrent use.
type EventHandler interface {
	Handle(event Event)
}

// Handlers fans an event out to every handler in order.
type Handlers []EventHandler

// Handle implements EventHandler.
func (h Handlers) Handle(event Event) {
	for _, handler := range h {
		if handler != nil {
			handler.Handle(event)
		}
	}
}

type nopHandler struct{}

func (nopHandler) Handle(Event) {}
