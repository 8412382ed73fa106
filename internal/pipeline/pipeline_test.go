package pipeline

import (
	"context"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"squeezer-go/internal/compressor"
	"squeezer-go/internal/fileset"
	"squeezer-go/internal/policy"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeTestImage(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	img := imaging.New(64, 64, color.NRGBA{R: 200, A: 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}
}

// recordingObserver captures the full event stream for assertions.
type recordingObserver struct {
	mu       sync.Mutex
	progress []ProgressEvent
	results  []FileResult
	errors   []string
	finished []Summary
}

func (o *recordingObserver) OnProgress(ev ProgressEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = append(o.progress, ev)
}

func (o *recordingObserver) OnResult(res FileResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, res)
}

func (o *recordingObserver) OnError(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, msg)
}

func (o *recordingObserver) OnFinished(sum Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, sum)
}

func TestBatchContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	good1 := filepath.Join(dir, "a.png")
	good2 := filepath.Join(dir, "sub", "b.png")
	writeTestImage(t, good1)
	writeTestImage(t, good2)

	tasks := []fileset.Task{
		{SourcePath: good1, RelPath: "a.png"},
		{SourcePath: filepath.Join(dir, "missing.jpg"), RelPath: "missing.jpg"},
		{SourcePath: good2, RelPath: filepath.Join("sub", "b.png")},
	}

	outDir := filepath.Join(dir, "out")
	obs := &recordingObserver{}
	manager := compressor.NewManager(quietLogger(), nil, false, false)
	p := New(quietLogger(), manager, obs)

	if err := p.Start(context.Background(), tasks, outDir, policy.TierHigh); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	p.Wait()

	if got := p.State(); got != StateCompleted {
		t.Fatalf("state = %v, expected completed", got)
	}

	// Exactly one result per dispatched task, in submission order.
	if len(obs.results) != 3 {
		t.Fatalf("got %d results, expected 3", len(obs.results))
	}
	if !obs.results[0].Success() || obs.results[1].Success() || !obs.results[2].Success() {
		t.Errorf("unexpected success pattern: %v %v %v",
			obs.results[0].Err, obs.results[1].Err, obs.results[2].Err)
	}
	if obs.results[1].ErrKind != compressor.KindSourceNotFound {
		t.Errorf("failure kind = %v, expected KindSourceNotFound", obs.results[1].ErrKind)
	}

	// Folder structure is preserved under the output directory.
	if _, err := os.Stat(filepath.Join(outDir, "sub", "b.png")); err != nil {
		t.Errorf("nested output missing: %v", err)
	}

	stats := p.Stats()
	if got := stats.ErrorsSnapshot(); len(got) != 1 {
		t.Errorf("got %d recorded errors, expected 1", len(got))
	}

	// The terminal progress event always reports completion.
	last := obs.progress[len(obs.progress)-1]
	if !last.Terminal || last.Percent != 100 {
		t.Errorf("terminal event = %+v, expected Terminal at 100%%", last)
	}

	// A consolidated failure report is emitted once failures occurred.
	foundReport := false
	for _, msg := range obs.errors {
		if strings.Contains(msg, "could not be processed") {
			foundReport = true
		}
	}
	if !foundReport {
		t.Errorf("no consolidated failure report in %v", obs.errors)
	}

	if len(obs.finished) != 1 {
		t.Fatalf("got %d finished signals, expected 1", len(obs.finished))
	}
	sum := obs.finished[0]
	if sum.Processed != 3 || sum.Failed != 1 || sum.Cancelled {
		t.Errorf("summary = %+v, expected 3 processed, 1 failed, not cancelled", sum)
	}
}

func TestCancelStopsDispatch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	writeTestImage(t, src)

	tasks := []fileset.Task{
		{SourcePath: src, RelPath: "a.png"},
		{SourcePath: src, RelPath: "b.png"},
	}

	obs := &recordingObserver{}
	manager := compressor.NewManager(quietLogger(), nil, false, false)
	p := New(quietLogger(), manager, obs)

	// Cancellation is checked at task boundaries; requesting it before the
	// worker starts means nothing gets dispatched.
	p.Cancel()
	if err := p.Start(context.Background(), tasks, filepath.Join(dir, "out"), policy.TierLow); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	p.Wait()

	if got := p.State(); got != StateCancelled {
		t.Fatalf("state = %v, expected cancelled", got)
	}
	if len(obs.results) != 0 {
		t.Errorf("got %d results, expected none after pre-start cancel", len(obs.results))
	}

	if len(obs.finished) != 1 || !obs.finished[0].Cancelled {
		t.Errorf("finished = %v, expected one cancelled summary", obs.finished)
	}

	// The terminal event is emitted even for cancelled batches.
	last := obs.progress[len(obs.progress)-1]
	if !last.Terminal {
		t.Errorf("terminal event missing, got %+v", last)
	}
}

func TestStartRejectsNonIdle(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	writeTestImage(t, src)
	tasks := []fileset.Task{{SourcePath: src, RelPath: "a.png"}}

	manager := compressor.NewManager(quietLogger(), nil, false, false)
	p := New(quietLogger(), manager, NopObserver{})

	if err := p.Start(context.Background(), tasks, filepath.Join(dir, "out"), policy.TierMedium); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	p.Wait()

	if err := p.Start(context.Background(), tasks, filepath.Join(dir, "out"), policy.TierMedium); err == nil {
		t.Fatal("second Start should be rejected once the pipeline left idle")
	}
}

func TestProgressEventETA(t *testing.T) {
	p := &Pipeline{}

	first := p.progressEvent("a.jpg", 0, 4, time.Now())
	if first.Remaining != nil {
		t.Error("ETA should be undefined before the first file completes")
	}
	if first.Percent != 0 {
		t.Errorf("percent = %d, expected 0", first.Percent)
	}

	mid := p.progressEvent("c.jpg", 2, 4, time.Now())
	if mid.Percent != 50 {
		t.Errorf("percent = %d, expected 50", mid.Percent)
	}
	if mid.Remaining == nil {
		t.Error("ETA should be projected once files have completed")
	}
}
