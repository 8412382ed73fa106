package pipeline

import (
	"time"

	"squeezer-go/internal/compressor"
	"squeezer-go/internal/fileset"
	"squeezer-go/internal/statistics"
)

// ProgressEvent is a transient progress snapshot emitted before each task
// and once more, terminally, when the batch ends. It is never persisted.
type ProgressEvent struct {
	CurrentFile string
	Processed   int
	Total       int
	Percent     int

	// Remaining is the estimated time left, projected from throughput so
	// far. Nil before the first file completes.
	Remaining *time.Duration

	// Terminal marks the final event of a batch; Percent is always 100.
	Terminal bool
}

// FileResult is the per-task outcome. Exactly one is produced per
// dispatched task; it is never mutated after creation.
type FileResult struct {
	Task           fileset.Task
	OutputPath     string
	OriginalSize   int64
	CompressedSize int64
	SavedPercent   float64
	Elapsed        time.Duration

	Err     error
	ErrKind compressor.ErrorKind
}

// Success reports whether the task compressed without error.
func (r FileResult) Success() bool {
	return r.Err == nil
}

// Summary is the terminal batch report delivered with the finished signal.
type Summary struct {
	Processed    int
	Failed       int
	BytesIn      int64
	BytesOut     int64
	SavedPercent float64
	Elapsed      time.Duration
	Cancelled    bool
	Failures     []statistics.FileError
}

// Observer receives the pipeline's event stream. Implementations must not
// block: callbacks run on the pipeline worker between tasks.
type Observer interface {
	OnProgress(ProgressEvent)
	OnResult(FileResult)
	OnError(message string)
	OnFinished(Summary)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) OnProgress(ProgressEvent) {}
func (NopObserver) OnResult(FileResult)      {}
func (NopObserver) OnError(string)           {}
func (NopObserver) OnFinished(Summary)       {}
