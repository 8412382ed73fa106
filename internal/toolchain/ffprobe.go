package toolchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// MediaInfo is the parsed result of a single metadata-extraction call
// against the decoder tool.
type MediaInfo struct {
	FormatName string
	Duration   float64
	Size       int64

	VideoCodec string
	Width      int
	Height     int

	AudioCodec string
}

// ProbeMedia runs one ffprobe JSON call against path and returns the
// parsed stream metadata. Non-zero exit or unparsable output is a plain
// failure; the caller decides whether it is fatal.
func (tc *Toolchain) ProbeMedia(ctx context.Context, path string) (*MediaInfo, error) {
	probePath := tc.FFprobePath()
	if probePath == "" {
		return nil, fmt.Errorf("ffprobe not available")
	}

	cmd := exec.CommandContext(ctx, probePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %q: %w", path, err)
	}

	return ParseProbeJSON(out)
}

// ParseProbeJSON converts raw ffprobe JSON output into a MediaInfo.
// Exported for testing without a real ffprobe binary.
func ParseProbeJSON(data []byte) (*MediaInfo, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	info := &MediaInfo{
		FormatName: raw.Format.FormatName,
		Duration:   parseFloat(raw.Format.Duration),
		Size:       parseInt64(raw.Format.Size),
	}
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
				info.Width = s.Width
				info.Height = s.Height
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		}
	}
	return info, nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

type ffprobeStream struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// ffprobe returns numbers as strings.

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

// ExecResult holds the outcome of one encoder invocation. Stderr is kept
// verbatim for operator troubleshooting on failure.
type ExecResult struct {
	Stderr string
	Err    error
}

// RunFFmpeg invokes the encoder with the given arguments, capturing stderr
// for diagnostics. When verbose is set, stderr is additionally tee'd to
// the process stderr in real time.
func (tc *Toolchain) RunFFmpeg(ctx context.Context, verbose bool, args ...string) ExecResult {
	path := tc.FFmpegPath()
	if path == "" {
		return ExecResult{Err: fmt.Errorf("ffmpeg not available")}
	}

	cmd := exec.CommandContext(ctx, path, args...)

	var stderrBuf bytes.Buffer
	if verbose {
		cmd.Stderr = io.MultiWriter(&stderrBuf, os.Stderr)
	} else {
		cmd.Stderr = &stderrBuf
	}

	err := cmd.Run()
	return ExecResult{Stderr: stderrBuf.String(), Err: err}
}
