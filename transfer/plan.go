package transfer

// MaxParts is the largest number of parts a multipart upload may consist of.
// NewPlan does not enforce it, stores do.
const MaxParts = 10000

// Plan describes how a file is split into chunks. A Plan is immutable once created.
type Plan struct {
	Path       string
	TotalSize  int64
	ChunkSize  int64
	ChunkCount int
}

// NewPlan splits a file of fileSize bytes into chunks of chunkSize bytes.
// Every chunk is exactly chunkSize bytes long except the last one, which holds the remainder.
// An empty file produces a plan with no chunks.
func NewPlan(path string, fileSize, chunkSize int64) (Plan, error) {
	if chunkSize <= 0 {
		return Plan{}, &InvalidPlanError{Path: path, FileSize: fileSize, ChunkSize: chunkSize, Reason: "chunk size must be positive"}
	}
	if fileSize < 0 {
		return Plan{}, &InvalidPlanError{Path: path, FileSize: fileSize, ChunkSize: chunkSize, Reason: "file size must not be negative"}
	}

	count := fileSize / chunkSize
	if fileSize%chunkSize != 0 {
		count++
	}

	return Plan{
		Path:       path,
		TotalSize:  fileSize,
		ChunkSize:  chunkSize,
		ChunkCount: int(count),
	}, nil
}

// Offset returns the byte offset of chunk seq (1-based).
func (p Plan) Offset(seq int) int64 {
	return int64(seq-1) * p.ChunkSize
}

// ChunkLength returns the length of chunk seq (1-based), or 0 if seq is out of range.
func (p Plan) ChunkLength(seq int) int64 {
	if seq < 1 || seq > p.ChunkCount {
		return 0
	}
	if seq < p.ChunkCount {
		return p.ChunkSize
	}
	return p.TotalSize - p.Offset(seq)
}
