// Package pipeline orchestrates batch compression: sequential task
// dispatch, running statistics, progress/ETA reporting, and cooperative
// cancellation.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"squeezer-go/internal/compressor"
	"squeezer-go/internal/fileset"
	"squeezer-go/internal/media"
	"squeezer-go/internal/policy"
	"squeezer-go/internal/statistics"
)

// State is the pipeline lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Pipeline processes a task list strictly sequentially on a dedicated
// worker goroutine, so long external-tool invocations never block the
// caller. A single file failure is never fatal to the batch.
type Pipeline struct {
	log     *logrus.Logger
	manager *compressor.Manager
	obs     Observer

	mu    sync.Mutex
	state State
	stats *statistics.BatchStats
	done  chan struct{}

	cancelled atomic.Bool
}

// New returns an idle Pipeline. A nil observer discards events.
func New(log *logrus.Logger, manager *compressor.Manager, obs Observer) *Pipeline {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Pipeline{
		log:     log,
		manager: manager,
		obs:     obs,
		state:   StateIdle,
		stats:   statistics.NewBatchStats(),
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stats returns the batch statistics. Counters are safe to read while the
// batch runs.
func (p *Pipeline) Stats() *statistics.BatchStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Start transitions Idle to Running and begins dispatching tasks in
// submission order on the worker goroutine. It fails without dispatching
// anything when the batch needs the encoder toolchain and it is entirely
// unavailable.
func (p *Pipeline) Start(ctx context.Context, tasks []fileset.Task, outputDir string, tier policy.Tier) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return fmt.Errorf("pipeline already started (state: %s)", p.state)
	}

	if batchNeedsVideoTools(tasks) && !p.manager.Toolchain().Available() {
		return &compressor.Error{
			Kind:    compressor.KindToolUnavailable,
			Message: "batch contains video files but ffmpeg/ffprobe are unavailable",
		}
	}

	p.state = StateRunning
	p.stats = statistics.NewBatchStats()
	p.done = make(chan struct{})

	go p.run(ctx, tasks, outputDir, tier)
	return nil
}

// Cancel requests cooperative cancellation. It takes effect before the
// next task is dispatched; the in-flight task is not interrupted.
func (p *Pipeline) Cancel() {
	p.cancelled.Store(true)
}

// Wait blocks until the batch finishes or is cancelled. Only valid after
// a successful Start.
func (p *Pipeline) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// run is the worker loop. It emits a pre-task progress event, processes
// the task, emits its result, and continues past failures. A terminal
// progress event and finished signal are always emitted, even on
// cancellation.
func (p *Pipeline) run(ctx context.Context, tasks []fileset.Task, outputDir string, tier policy.Tier) {
	defer close(p.done)

	total := len(tasks)
	start := time.Now()
	processed := 0
	cancelled := false

	for _, task := range tasks {
		if p.cancelled.Load() || ctx.Err() != nil {
			cancelled = true
			p.log.Warn("Batch cancelled; remaining tasks will not be dispatched")
			break
		}

		p.obs.OnProgress(p.progressEvent(task.RelPath, processed, total, start))

		result := p.processTask(ctx, task, outputDir, tier)
		processed++

		p.obs.OnResult(result)
		if result.Err != nil {
			p.obs.OnError(fmt.Sprintf("Failed to process %s: %v", task.RelPath, result.Err))
		}
	}

	p.stats.Finalize()

	terminal := ProgressEvent{
		Processed: processed,
		Total:     total,
		Percent:   100,
		Terminal:  true,
	}
	p.obs.OnProgress(terminal)

	failures := p.stats.ErrorsSnapshot()
	if len(failures) > 0 {
		p.obs.OnError(p.stats.GetErrorSummary())
	}

	p.mu.Lock()
	if cancelled {
		p.state = StateCancelled
	} else {
		p.state = StateCompleted
	}
	p.mu.Unlock()

	p.obs.OnFinished(Summary{
		Processed:    processed,
		Failed:       len(failures),
		BytesIn:      atomic.LoadInt64(&p.stats.BytesIn),
		BytesOut:     atomic.LoadInt64(&p.stats.BytesOut),
		SavedPercent: p.stats.SavedPercent(),
		Elapsed:      time.Since(start),
		Cancelled:    cancelled,
		Failures:     failures,
	})
}

// processTask compresses one file and folds the outcome into the batch
// statistics. Every dispatched task yields exactly one FileResult.
func (p *Pipeline) processTask(ctx context.Context, task fileset.Task, outputDir string, tier policy.Tier) FileResult {
	start := time.Now()
	result := FileResult{Task: task}

	if info, err := os.Stat(task.SourcePath); err == nil {
		result.OriginalSize = info.Size()
	}

	destDir := outputDir
	if dir := filepath.Dir(task.RelPath); dir != "." && dir != "" {
		destDir = filepath.Join(outputDir, dir)
	}

	outputPath, err := p.manager.Compress(ctx, task.SourcePath, destDir, tier)
	result.Elapsed = time.Since(start)
	p.stats.IncrementProcessed()

	if err != nil {
		result.Err = err
		result.ErrKind = compressor.KindOf(err)
		p.stats.IncrementFailed()
		p.stats.AddError(task.SourcePath, "compress", err.Error())

		entry := p.log.WithField("file", task.SourcePath)
		if diag := compressor.DiagnosticOf(err); diag != "" {
			entry = entry.WithField("diagnostic", diag)
		}
		entry.Errorf("Compression failed: %v", err)
		return result
	}

	result.OutputPath = outputPath
	if info, statErr := os.Stat(outputPath); statErr == nil {
		result.CompressedSize = info.Size()
	}
	if result.OriginalSize > 0 {
		result.SavedPercent = float64(result.OriginalSize-result.CompressedSize) * 100 / float64(result.OriginalSize)
	}

	p.stats.AddBytes(result.OriginalSize, result.CompressedSize)
	if media.Classify(task.SourcePath).IsVideo() {
		p.stats.IncrementVideos()
	} else {
		p.stats.IncrementImages()
	}

	p.log.WithFields(logrus.Fields{
		"file":  task.SourcePath,
		"in":    fileset.FormatBytes(result.OriginalSize),
		"out":   fileset.FormatBytes(result.CompressedSize),
		"saved": fmt.Sprintf("%.1f%%", result.SavedPercent),
	}).Info("File compressed")

	return result
}

// progressEvent builds the pre-task snapshot. ETA projects the average
// per-file time so far across the remaining files; it is undefined until
// the first file completes.
func (p *Pipeline) progressEvent(currentFile string, processed, total int, start time.Time) ProgressEvent {
	ev := ProgressEvent{
		CurrentFile: currentFile,
		Processed:   processed,
		Total:       total,
	}
	if total > 0 {
		ev.Percent = processed * 100 / total
	}
	if processed > 0 {
		elapsed := time.Since(start)
		remaining := time.Duration(int64(elapsed) / int64(processed) * int64(total-processed))
		ev.Remaining = &remaining
	}
	return ev
}

// batchNeedsVideoTools reports whether any task requires the external
// encoder toolchain up front. Images have in-process decode paths and do
// not make the toolchain a batch precondition.
func batchNeedsVideoTools(tasks []fileset.Task) bool {
	for _, t := range tasks {
		if media.Classify(t.SourcePath) == media.KindVideo {
			return true
		}
	}
	return false
}
