// Package compressor compresses single media files by delegating to the
// image codec library or the external encoder toolchain, selecting
// parameters from the quality policy.
package compressor

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"squeezer-go/internal/policy"
)

// FileCompressor compresses a single file into outputDir at the given
// quality tier and returns the output path. Implementations write exactly
// one output file per call and never delete the source.
type FileCompressor interface {
	Compress(ctx context.Context, path, outputDir string, tier policy.Tier) (string, error)
}

// maxImageDimension caps the longest side of any re-encoded image.
// Larger inputs are downscaled preserving aspect ratio to bound memory
// and output size.
const maxImageDimension = 4096

// samePath reports whether two paths refer to the same file name after
// cleaning. Symlinked aliases are out of scope.
func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

// copyFile copies src to dst byte for byte.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
