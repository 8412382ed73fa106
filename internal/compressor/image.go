package compressor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"squeezer-go/internal/fileset"
	"squeezer-go/internal/media"
	"squeezer-go/internal/policy"
	"squeezer-go/internal/toolchain"
)

// ImageCompressor compresses raster images. JPEG is re-encoded at the
// policy quality factor, PNG is losslessly re-optimized, GIF is copied
// verbatim, and HEIC goes through the cascading fallback chain.
type ImageCompressor struct {
	log              *logrus.Logger
	tools            *toolchain.Toolchain
	preserveMetadata bool
}

var _ FileCompressor = (*ImageCompressor)(nil)

// NewImageCompressor returns an ImageCompressor. The toolchain is only
// consulted for the last step of the HEIC fallback chain.
func NewImageCompressor(log *logrus.Logger, tools *toolchain.Toolchain, preserveMetadata bool) *ImageCompressor {
	return &ImageCompressor{
		log:              log,
		tools:            tools,
		preserveMetadata: preserveMetadata,
	}
}

// Compress compresses a single image into outputDir and returns the
// output path. The source file is never modified or deleted.
func (c *ImageCompressor) Compress(ctx context.Context, path, outputDir string, tier policy.Tier) (string, error) {
	fileName := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(fileName))

	kind := media.Classify(path)
	profile, err := policy.Resolve(tier, kind)
	if err != nil {
		return "", newError(KindConfigurationError, path, "resolve encode profile", err)
	}

	if kind == media.KindHeicImage {
		return c.compressHeic(ctx, path, outputDir, profile)
	}

	outputPath := filepath.Join(outputDir, fileName)
	if samePath(outputPath, path) {
		// Compressing into the source directory must not clobber the
		// source; pick a suffixed sibling name instead.
		outputPath = fileset.UniqueOutputPath(path, outputDir, "_compressed")
	}

	switch ext {
	case ".gif":
		// Lossy re-encoding breaks multi-frame animation, so GIF is
		// copied byte for byte.
		if err := copyFile(path, outputPath); err != nil {
			return "", fmt.Errorf("copy gif %s: %w", fileName, err)
		}
		return outputPath, nil

	case ".jpg", ".jpeg":
		return c.reencodeJPEG(path, outputPath, profile.ImageQuality)

	case ".png":
		return c.reencodePNG(path, outputPath)
	}

	return "", newError(KindUnsupportedFormat, path, fmt.Sprintf("no image handler for %s", ext), nil)
}

// reencodeJPEG decodes, downscales oversized sides, and re-encodes at the
// policy quality. Embedded EXIF is carried over to the output when the
// source has any and metadata preservation is enabled.
func (c *ImageCompressor) reencodeJPEG(path, outputPath string, quality int) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image %s: %w", filepath.Base(path), err)
	}
	img = capDimensions(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return "", fmt.Errorf("encode jpeg %s: %w", filepath.Base(path), err)
	}
	if err := writeAtomic(outputPath, buf.Bytes()); err != nil {
		return "", err
	}

	if c.preserveMetadata && hasExifData(path) {
		if err := copyMetadata(path, outputPath); err != nil {
			c.log.WithField("file", path).Warnf("EXIF not carried over: %v", err)
		}
	}
	return outputPath, nil
}

// reencodePNG re-encodes losslessly with the best compression level. The
// quality factor does not apply to PNG.
func (c *ImageCompressor) reencodePNG(path, outputPath string) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image %s: %w", filepath.Base(path), err)
	}
	img = capDimensions(img)

	var buf bytes.Buffer
	err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	if err != nil {
		return "", fmt.Errorf("encode png %s: %w", filepath.Base(path), err)
	}
	if err := writeAtomic(outputPath, buf.Bytes()); err != nil {
		return "", err
	}
	return outputPath, nil
}

// capDimensions downscales any side exceeding maxImageDimension,
// preserving aspect ratio. Smaller images pass through untouched.
func capDimensions(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxImageDimension && b.Dy() <= maxImageDimension {
		return img
	}
	return imaging.Fit(img, maxImageDimension, maxImageDimension, imaging.Lanczos)
}

// writeAtomic writes data through a temp file and renames it into place so
// a failed write never leaves a truncated output.
func writeAtomic(outputPath string, data []byte) error {
	tmpPath := outputPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(outputPath), err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", filepath.Base(outputPath), err)
	}
	return nil
}
