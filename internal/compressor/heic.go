package compressor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"

	"squeezer-go/internal/policy"
)

// heicScaleFilter caps both sides at maxImageDimension without upscaling,
// used when the chain falls through to the video encoder.
var heicScaleFilter = fmt.Sprintf(
	`scale=iw*min(%d/iw\,1):ih*min(%d/ih\,1):force_original_aspect_ratio=decrease`,
	maxImageDimension, maxImageDimension)

// heicStep is one mechanism in the HEIC fallback chain.
type heicStep struct {
	name string
	run  func(ctx context.Context, src, dst string, quality int) error
}

// compressHeic converts a HEIC image to JPEG at the HEIC-specific quality
// factor. No single HEIC decoder is reliably present across platforms, so
// an ordered chain of mechanisms is attempted, stopping at the first
// success. Each step's failure is logged at warning level and does not
// abort the chain; only if every step fails does the call fail, carrying
// the last underlying error.
func (c *ImageCompressor) compressHeic(ctx context.Context, path, outputDir string, profile policy.EncodeProfile) (string, error) {
	fileName := filepath.Base(path)
	stem := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	outputPath := filepath.Join(outputDir, stem+".jpg")

	steps := []heicStep{
		{name: "native decode", run: c.heicNativeDecode},
		{name: "sips", run: c.heicSips},
		{name: "imagemagick", run: c.heicImageMagick},
		{name: "ffmpeg still frame", run: c.heicFFmpeg},
	}

	var lastErr error
	for _, step := range steps {
		if err := step.run(ctx, path, outputPath, profile.ImageQuality); err != nil {
			c.log.WithFields(map[string]interface{}{
				"file": path,
				"step": step.name,
			}).Warnf("HEIC conversion step failed: %v", err)
			lastErr = err
			continue
		}

		c.log.WithField("file", path).Debugf("HEIC converted via %s", step.name)
		if c.preserveMetadata {
			if err := copyMetadata(path, outputPath); err != nil {
				c.log.WithField("file", path).Warnf("EXIF not carried over: %v", err)
			}
		}
		return outputPath, nil
	}

	return "", newError(KindHeicDecodeFailed, path, "all HEIC conversion mechanisms failed", lastErr)
}

// heicNativeDecode decodes in-process via the still-image decode library
// and re-encodes as JPEG, downscaling oversized sides first.
func (c *ImageCompressor) heicNativeDecode(_ context.Context, src, dst string, quality int) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	img, err := goheif.Decode(f)
	if err != nil {
		return fmt.Errorf("decode heic: %w", err)
	}
	img = capDimensions(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return writeAtomic(dst, buf.Bytes())
}

// heicSips converts via the platform image-conversion tool. Only present
// on macOS; elsewhere the step reports unavailable and the chain moves on.
func (c *ImageCompressor) heicSips(ctx context.Context, src, dst string, _ int) error {
	if runtime.GOOS != "darwin" {
		return fmt.Errorf("sips only available on darwin")
	}
	if _, err := exec.LookPath("sips"); err != nil {
		return fmt.Errorf("sips not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sips", "-s", "format", "jpeg", "--out", dst, src)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("sips: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// heicImageMagick converts via the general-purpose conversion tool when it
// is discoverable on the search path.
func (c *ImageCompressor) heicImageMagick(ctx context.Context, src, dst string, quality int) error {
	convertPath, err := exec.LookPath("convert")
	if err != nil {
		return fmt.Errorf("imagemagick convert not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, convertPath, src, "-quality", strconv.Itoa(quality), dst)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("convert: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// heicFFmpeg drives the video encoder in single-frame mode with a scale
// cap filter. Last resort: ffmpeg is the most widely available of the
// mechanisms but the least suited to still images.
func (c *ImageCompressor) heicFFmpeg(ctx context.Context, src, dst string, quality int) error {
	if !c.tools.Available() {
		return fmt.Errorf("ffmpeg not available")
	}

	result := c.tools.RunFFmpeg(ctx, false,
		"-i", src,
		"-vf", heicScaleFilter,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(jpegQualityToFFmpegQ(quality)),
		"-y",
		dst,
	)
	if result.Err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", result.Err, tailLines(result.Stderr, 5))
	}
	return nil
}

// jpegQualityToFFmpegQ maps a 0-100 JPEG quality factor onto ffmpeg's
// inverted 2-31 mjpeg quantizer scale.
func jpegQualityToFFmpegQ(quality int) int {
	if quality >= 100 {
		return 2
	}
	if quality <= 0 {
		return 31
	}
	q := 2 + (100-quality)*29/100
	if q > 31 {
		q = 31
	}
	return q
}

// tailLines returns the last n lines of s, for compact diagnostics.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
