package compressor

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"squeezer-go/internal/fileset"
	"squeezer-go/internal/media"
	"squeezer-go/internal/policy"
	"squeezer-go/internal/toolchain"
)

// Retry fallback parameters: a conservative, hardware-independent set used
// for exactly one retry after a failed primary invocation.
const (
	retryCRF          = 28
	retryPreset       = "medium"
	retryAudioBitrate = "192k"
)

// VideoCompressor re-encodes videos to a normalized MP4/H.264/AAC output
// via the external encoder toolchain.
type VideoCompressor struct {
	log     *logrus.Logger
	tools   *toolchain.Toolchain
	verbose bool
}

var _ FileCompressor = (*VideoCompressor)(nil)

// NewVideoCompressor returns a VideoCompressor bound to the toolchain.
func NewVideoCompressor(log *logrus.Logger, tools *toolchain.Toolchain, verbose bool) *VideoCompressor {
	return &VideoCompressor{log: log, tools: tools, verbose: verbose}
}

// Compress re-encodes a single video into outputDir and returns the output
// path. The output container and codecs are fixed regardless of input;
// downstream consumers expect one normalized format.
func (c *VideoCompressor) Compress(ctx context.Context, path, outputDir string, tier policy.Tier) (string, error) {
	fileName := filepath.Base(path)

	// The bundled encoder can be unusable even after discovery (stripped
	// executable bit, broken dylib); fall back to system tools and rebind.
	if !c.tools.Verify(ctx) {
		return "", newError(KindToolUnavailable, path, "ffmpeg is not callable", nil)
	}

	info, err := c.tools.ProbeMedia(ctx, path)
	if err != nil {
		return "", newError(KindVideoEncodeFailed, path, "probe stream metadata", err)
	}
	if info.VideoCodec == "" {
		return "", newError(KindVideoEncodeFailed, path, "no video stream found", nil)
	}

	profile, err := policy.Resolve(tier, media.KindVideo)
	if err != nil {
		return "", newError(KindConfigurationError, path, "resolve encode profile", err)
	}

	stem := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	outputPath := filepath.Join(outputDir, stem+".mp4")
	if samePath(outputPath, path) {
		outputPath = fileset.UniqueOutputPath(outputPath, outputDir, "_compressed")
	}

	backend := c.tools.PreferredBackend()

	entry := c.log.WithFields(logrus.Fields{
		"file":       path,
		"codec":      info.VideoCodec,
		"resolution": fmt.Sprintf("%dx%d", info.Width, info.Height),
		"hwaccel":    backend.String(),
	})
	entry.Info("Compressing video")
	if created := readMetadataField(path, "CreateDate"); created != "" {
		entry.Debugf("Source creation date: %s", created)
	}

	args := buildVideoArgs(profile, backend, path, outputPath)
	result := c.tools.RunFFmpeg(ctx, c.verbose, args...)
	if result.Err == nil {
		return outputPath, nil
	}

	// Retry exactly once with conservative software parameters.
	// Acceleration failures are handled the same way as software
	// failures; there is no third attempt.
	entry.Warnf("Primary encode failed, retrying with fallback parameters: %v", result.Err)

	retryArgs := buildRetryArgs(path, outputPath)
	retryResult := c.tools.RunFFmpeg(ctx, c.verbose, retryArgs...)
	if retryResult.Err != nil {
		return "", &Error{
			Kind:       KindVideoEncodeFailed,
			Path:       path,
			Message:    "encode failed after fallback retry",
			Diagnostic: retryResult.Stderr,
			Err:        retryResult.Err,
		}
	}
	return outputPath, nil
}

// buildVideoArgs assembles the primary encoder invocation from the encode
// profile. The acceleration flag, when present, precedes all other
// arguments; the metadata map and faststart flags are always passed so the
// source metadata block is preserved and the container index is relocated
// for progressive playback.
func buildVideoArgs(p policy.EncodeProfile, backend toolchain.Backend, inputPath, outputPath string) []string {
	args := make([]string, 0, 32)

	if backend != toolchain.BackendNone {
		args = append(args, "-hwaccel", backend.String())
	}

	args = append(args, "-i", inputPath)

	codec := "libx264"
	if enc := backend.EncoderName(); enc != "" {
		codec = enc
	}

	args = append(args,
		"-c:v", codec,
		"-crf", strconv.Itoa(p.VideoCRF),
		"-preset", p.VideoPreset,
		"-vf", scaleFilter(p.MaxWidth, p.MaxHeight),
		"-c:a", "aac",
		"-b:a", p.AudioBitrate,
		"-profile:v", p.CodecProfile,
		"-level:v", p.CodecLevel,
		"-threads", strconv.Itoa(p.Threads),
	)

	if p.Tune != "" {
		args = append(args, "-tune", p.Tune)
	}

	args = append(args,
		"-map_metadata", "0",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	)
	return args
}

// buildRetryArgs assembles the conservative fallback invocation: fixed
// quality and preset, no scaling, no hardware acceleration.
func buildRetryArgs(inputPath, outputPath string) []string {
	return []string{
		"-i", inputPath,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(retryCRF),
		"-preset", retryPreset,
		"-c:a", "aac",
		"-b:a", retryAudioBitrate,
		"-map_metadata", "0",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	}
}

// scaleFilter caps width and height while preserving aspect ratio. The
// min() terms guarantee the expression never upscales.
func scaleFilter(maxWidth, maxHeight int) string {
	return fmt.Sprintf(
		`scale=iw*min(%d/iw\,1):ih*min(%d/ih\,1):force_original_aspect_ratio=decrease`,
		maxWidth, maxHeight)
}
