package compressor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"squeezer-go/internal/policy"
)

// The chain must try every mechanism before giving up: a failing early
// step is logged and skipped, and only the exhaustion of all steps
// surfaces as an error, classified as a HEIC decode failure and carrying
// the last step's cause.
func TestHeicChainFailsOnlyAfterAllSteps(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.heic")
	if err := os.WriteFile(src, []byte("not a heic payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Empty the search path so the external steps (sips, convert,
	// exiftool) fail deterministically regardless of the host.
	t.Setenv("PATH", t.TempDir())

	c := NewImageCompressor(quietLogger(), nil, false)
	_, err := c.Compress(context.Background(), src, dir, policy.TierHigh)
	if err == nil {
		t.Fatal("expected failure when every conversion mechanism fails")
	}

	if got := KindOf(err); got != KindHeicDecodeFailed {
		t.Errorf("KindOf = %v, expected KindHeicDecodeFailed", got)
	}
	if !strings.Contains(err.Error(), "all HEIC conversion mechanisms failed") {
		t.Errorf("error should report chain exhaustion, got %q", err)
	}

	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected typed error, got %T", err)
	}
	if ce.Err == nil {
		t.Error("the last step's underlying error should be carried")
	}

	if _, statErr := os.Stat(filepath.Join(dir, "broken.jpg")); !os.IsNotExist(statErr) {
		t.Error("no output should exist after a fully failed chain")
	}
}

// Each external step must fail cleanly when its tool is missing so the
// chain can move on to the next mechanism.
func TestHeicStepsFailCleanlyWithoutTools(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	c := NewImageCompressor(quietLogger(), nil, false)
	ctx := context.Background()

	if err := c.heicSips(ctx, "in.heic", "out.jpg", 80); err == nil {
		t.Error("sips step should fail without the tool present")
	}
	if err := c.heicImageMagick(ctx, "in.heic", "out.jpg", 80); err == nil {
		t.Error("imagemagick step should fail without convert on the path")
	}
	if err := c.heicFFmpeg(ctx, "in.heic", "out.jpg", 80); err == nil {
		t.Error("ffmpeg step should fail when the toolchain is unavailable")
	}
}

// A corrupt payload must fail the in-process decode step without touching
// the destination.
func TestHeicNativeDecodeRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "garbage.heic")
	if err := os.WriteFile(src, []byte{0x00, 0x01, 0x02, 0x03}, 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "garbage.jpg")

	c := NewImageCompressor(quietLogger(), nil, false)
	if err := c.heicNativeDecode(context.Background(), src, dst, 80); err == nil {
		t.Fatal("expected decode failure for a corrupt payload")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("failed decode should not leave an output file")
	}
}
