package statistics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"squeezer-go/internal/fileset"
)

// BatchStats contains the running totals for one compression batch. The
// counters only ever increase while the batch runs; they are mutated
// exclusively by the pipeline worker.
type BatchStats struct {
	FilesProcessed   int64
	FilesFailed      int64
	ImagesCompressed int64
	VideosCompressed int64
	BytesIn          int64
	BytesOut         int64

	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	FilesPerSecond float64

	mutex  sync.RWMutex
	errors []FileError
}

// FileError records one failed file for the consolidated end-of-batch
// report.
type FileError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewBatchStats returns a BatchStats with the start time set.
func NewBatchStats() *BatchStats {
	return &BatchStats{
		StartTime: time.Now(),
		errors:    make([]FileError, 0),
	}
}

// IncrementProcessed increases the count of processed files by 1. Both
// successful and failed files count as processed.
func (s *BatchStats) IncrementProcessed() {
	atomic.AddInt64(&s.FilesProcessed, 1)
}

// IncrementFailed increases the count of failed files by 1.
func (s *BatchStats) IncrementFailed() {
	atomic.AddInt64(&s.FilesFailed, 1)
}

// IncrementImages increases the count of compressed images by 1.
func (s *BatchStats) IncrementImages() {
	atomic.AddInt64(&s.ImagesCompressed, 1)
}

// IncrementVideos increases the count of compressed videos by 1.
func (s *BatchStats) IncrementVideos() {
	atomic.AddInt64(&s.VideosCompressed, 1)
}

// AddBytes folds one successful file's sizes into the byte totals.
func (s *BatchStats) AddBytes(in, out int64) {
	atomic.AddInt64(&s.BytesIn, in)
	atomic.AddInt64(&s.BytesOut, out)
}

// AddError records a failed file.
func (s *BatchStats) AddError(filePath, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.errors = append(s.errors, FileError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// SavedPercent returns the aggregate size reduction as a percentage of
// the input bytes. Zero when nothing succeeded yet.
func (s *BatchStats) SavedPercent() float64 {
	in := atomic.LoadInt64(&s.BytesIn)
	out := atomic.LoadInt64(&s.BytesOut)
	if in <= 0 {
		return 0
	}
	return float64(in-out) * 100 / float64(in)
}

// Finalize calculates the derived totals once the batch ends.
func (s *BatchStats) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	processed := atomic.LoadInt64(&s.FilesProcessed)
	if s.Duration.Seconds() > 0 {
		s.FilesPerSecond = float64(processed) / s.Duration.Seconds()
	}
}

// ErrorsSnapshot returns a copy of the recorded file errors.
func (s *BatchStats) ErrorsSnapshot() []FileError {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]FileError, len(s.errors))
	copy(out, s.errors)
	return out
}

// GetSummary returns a formatted summary of the batch.
func (s *BatchStats) GetSummary() string {
	s.mutex.RLock()
	duration := s.Duration
	perSecond := s.FilesPerSecond
	s.mutex.RUnlock()

	return fmt.Sprintf(`Compression Summary:

Files:
		Processed: %d
		Images: %d
		Videos: %d
		Failed: %d

Size:
		Bytes In: %s
		Bytes Out: %s
		Saved: %.1f%%

Performance:
		Duration: %v
		Files/Second: %.2f`,
		atomic.LoadInt64(&s.FilesProcessed),
		atomic.LoadInt64(&s.ImagesCompressed),
		atomic.LoadInt64(&s.VideosCompressed),
		atomic.LoadInt64(&s.FilesFailed),
		fileset.FormatBytes(atomic.LoadInt64(&s.BytesIn)),
		fileset.FormatBytes(atomic.LoadInt64(&s.BytesOut)),
		s.SavedPercent(),
		duration,
		perSecond)
}

// GetErrorSummary returns the consolidated failure report, listing each
// failed file and its error.
func (s *BatchStats) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.errors) == 0 {
		return "No errors occurred during compression"
	}

	result := fmt.Sprintf("The following files could not be processed (%d total):\n", len(s.errors))
	for _, err := range s.errors {
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return result
}
