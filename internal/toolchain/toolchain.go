// Package toolchain locates the external encoder/decoder binaries and
// probes them for hardware-acceleration capabilities.
package toolchain

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Backend identifies a hardware-acceleration backend supported by the
// encoder. The list returned by Discover is a preference ordering: the
// first entry is used, and an empty list means software encoding.
type Backend int

const (
	BackendNone Backend = iota
	BackendVideoToolbox
	BackendCUDA
	BackendQuickSync
)

// String returns the ffmpeg -hwaccel identifier for the backend.
func (b Backend) String() string {
	switch b {
	case BackendVideoToolbox:
		return "videotoolbox"
	case BackendCUDA:
		return "cuda"
	case BackendQuickSync:
		return "qsv"
	default:
		return "none"
	}
}

// EncoderName returns the accelerated H.264 encoder identifier for the
// backend, or empty for the software path.
func (b Backend) EncoderName() string {
	switch b {
	case BackendVideoToolbox:
		return "h264_videotoolbox"
	case BackendCUDA:
		return "h264_nvenc"
	case BackendQuickSync:
		return "h264_qsv"
	default:
		return ""
	}
}

// Toolchain holds the resolved encoder/decoder paths and the discovered
// acceleration backends. It is built once by Discover, passed by reference
// to all components, and only mutated through RebindSystem. A nil
// *Toolchain is valid and behaves as a fully unavailable one.
type Toolchain struct {
	mu sync.RWMutex

	ffmpegPath  string
	ffprobePath string
	backends    []Backend
	available   bool
}

// Discover resolves the encoder and decoder paths and probes the encoder
// for acceleration backends. Path resolution order: a bundled binary in
// bin/ beside the executable, then a binary on PATH. Backend discovery
// failures are non-fatal and simply leave the backend list empty.
func Discover(log *logrus.Logger) *Toolchain {
	tc := &Toolchain{
		ffmpegPath:  resolveToolPath("ffmpeg"),
		ffprobePath: resolveToolPath("ffprobe"),
	}
	tc.available = tc.ffmpegPath != "" && tc.ffprobePath != ""

	if !tc.available {
		log.Warn("ffmpeg/ffprobe not found (bundled or on PATH); video compression disabled")
		return tc
	}

	tc.backends = probeBackends(tc.ffmpegPath)

	fields := logrus.Fields{
		"ffmpeg":  tc.ffmpegPath,
		"ffprobe": tc.ffprobePath,
	}
	if len(tc.backends) > 0 {
		names := make([]string, len(tc.backends))
		for i, b := range tc.backends {
			names[i] = b.String()
		}
		fields["hwaccel"] = strings.Join(names, ",")
	} else {
		fields["hwaccel"] = "none (software)"
	}
	log.WithFields(fields).Info("Encoder toolchain discovered")

	return tc
}

// FFmpegPath returns the resolved encoder path, or empty if unavailable.
func (tc *Toolchain) FFmpegPath() string {
	if tc == nil {
		return ""
	}
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.ffmpegPath
}

// FFprobePath returns the resolved decoder path, or empty if unavailable.
func (tc *Toolchain) FFprobePath() string {
	if tc == nil {
		return ""
	}
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.ffprobePath
}

// Available reports whether both encoder and decoder were resolved.
func (tc *Toolchain) Available() bool {
	if tc == nil {
		return false
	}
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.available
}

// PreferredBackend returns the first discovered acceleration backend, or
// BackendNone for the software path.
func (tc *Toolchain) PreferredBackend() Backend {
	if tc == nil {
		return BackendNone
	}
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if len(tc.backends) == 0 {
		return BackendNone
	}
	return tc.backends[0]
}

// Backends returns the discovered backends in preference order.
func (tc *Toolchain) Backends() []Backend {
	if tc == nil {
		return nil
	}
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	out := make([]Backend, len(tc.backends))
	copy(out, tc.backends)
	return out
}

// Verify runs the encoder's version check. On failure it attempts to fall
// back to the system PATH binaries and, if that succeeds, rebinds both
// encoder and decoder paths for the remainder of the process.
func (tc *Toolchain) Verify(ctx context.Context) bool {
	if tc == nil {
		return false
	}
	tc.mu.RLock()
	path := tc.ffmpegPath
	tc.mu.RUnlock()

	if path != "" && runVersionCheck(ctx, path) {
		return true
	}
	return tc.RebindSystem(ctx)
}

// RebindSystem re-resolves ffmpeg and ffprobe from PATH and adopts them if
// the encoder passes a version check. Used when a bundled binary turned
// out to be unusable after initial discovery.
func (tc *Toolchain) RebindSystem(ctx context.Context) bool {
	if tc == nil {
		return false
	}
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return false
	}
	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		return false
	}
	if !runVersionCheck(ctx, ffmpeg) {
		return false
	}

	tc.mu.Lock()
	tc.ffmpegPath = ffmpeg
	tc.ffprobePath = ffprobe
	tc.available = true
	tc.mu.Unlock()
	return true
}

// resolveToolPath looks for a bundled binary in bin/ beside the running
// executable, then falls back to PATH lookup. Returns empty when neither
// is executable.
func resolveToolPath(name string) string {
	if exe, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(exe), "bin", name)
		if info, err := os.Stat(bundled); err == nil && !info.IsDir() {
			if info.Mode()&0111 != 0 {
				return bundled
			}
			// Bundled binaries can lose the executable bit when unpacked.
			if chmodErr := os.Chmod(bundled, 0o755); chmodErr == nil {
				return bundled
			}
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return ""
}

// probeBackends invokes the encoder's capability-listing mode and pattern
// matches the known backend identifiers. The returned slice is ordered by
// preference: VideoToolbox, CUDA, QuickSync.
func probeBackends(ffmpegPath string) []Backend {
	cmd := exec.Command(ffmpegPath, "-hide_banner", "-hwaccels")
	out, err := cmd.Output()
	if err != nil {
		return nil
	}
	return parseBackends(string(out))
}

// parseBackends extracts known backend identifiers from the capability
// listing output. Split out from probeBackends for testing without a real
// ffmpeg binary.
func parseBackends(output string) []Backend {
	lower := strings.ToLower(output)
	var backends []Backend
	if strings.Contains(lower, "videotoolbox") {
		backends = append(backends, BackendVideoToolbox)
	}
	if strings.Contains(lower, "cuda") {
		backends = append(backends, BackendCUDA)
	}
	if strings.Contains(lower, "qsv") {
		backends = append(backends, BackendQuickSync)
	}
	return backends
}

func runVersionCheck(ctx context.Context, path string) bool {
	cmd := exec.CommandContext(ctx, path, "-version")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}
