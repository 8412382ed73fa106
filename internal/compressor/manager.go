package compressor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"squeezer-go/internal/media"
	"squeezer-go/internal/policy"
	"squeezer-go/internal/toolchain"
)

// Manager routes a single file to the correct compressor based on its
// media kind. It is the single synchronous unit of work the batch
// pipeline sequences over.
type Manager struct {
	log    *logrus.Logger
	tools  *toolchain.Toolchain
	images *ImageCompressor
	videos *VideoCompressor
}

// NewManager wires the image and video compressors to a shared toolchain.
func NewManager(log *logrus.Logger, tools *toolchain.Toolchain, preserveMetadata, verbose bool) *Manager {
	return &Manager{
		log:    log,
		tools:  tools,
		images: NewImageCompressor(log, tools, preserveMetadata),
		videos: NewVideoCompressor(log, tools, verbose),
	}
}

// Toolchain returns the manager's toolchain, for precondition checks
// before a batch starts.
func (m *Manager) Toolchain() *toolchain.Toolchain {
	return m.tools
}

// Compress validates the source, ensures the output directory exists,
// classifies the file, and dispatches to the matching compressor. Returns
// the output path.
func (m *Manager) Compress(ctx context.Context, path, outputDir string, tier policy.Tier) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", newError(KindSourceNotFound, path, "source file not found", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory %s: %w", outputDir, err)
	}

	kind := media.Classify(path)
	switch {
	case kind.IsImage():
		return m.images.Compress(ctx, path, outputDir, tier)
	case kind.IsVideo():
		return m.videos.Compress(ctx, path, outputDir, tier)
	}

	msg := fmt.Sprintf("unsupported file type (supported images: %s; videos: %s)",
		strings.Join(media.ImageExtensions(), ", "),
		strings.Join(media.VideoExtensions(), ", "))
	return "", newError(KindUnsupportedFormat, path, msg, nil)
}
