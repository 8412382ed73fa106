// Package policy maps quality tiers to concrete encoder parameters per
// media kind. It is pure configuration data: no I/O, no side effects.
package policy

import (
	"errors"
	"fmt"
	"strings"

	"squeezer-go/internal/media"
)

// Tier is a named quality preset controlling the fidelity/size trade-off
// for a whole batch. Tiers are ordered: higher values mean higher quality.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
	TierMaximum
)

// tierCount is the number of populated rows in the profile table.
const tierCount = 4

// ErrNotConfigured is returned by Resolve when a (tier, kind) cell of the
// profile table is empty. This is unreachable in a correct build; it exists
// so an incomplete table fails loudly instead of encoding at zero quality.
var ErrNotConfigured = errors.New("encode profile not configured")

// ParseTier converts a configuration string into a Tier.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "maximum", "max":
		return TierMaximum, nil
	case "high":
		return TierHigh, nil
	case "medium":
		return TierMedium, nil
	case "low":
		return TierLow, nil
	}
	return 0, fmt.Errorf("unknown quality tier %q (valid: maximum, high, medium, low)", s)
}

// String returns the string representation of the Tier.
func (t Tier) String() string {
	switch t {
	case TierMaximum:
		return "maximum"
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "unknown"
	}
}

// EncodeProfile holds the external-tool parameters for one (tier, kind)
// cell. Image kinds use only ImageQuality; video kinds use the rest.
// Profiles are static configuration and never mutated at runtime.
type EncodeProfile struct {
	// ImageQuality is the JPEG quality factor (0-100).
	ImageQuality int

	// VideoCRF is the constant rate factor; lower means higher quality.
	VideoCRF int

	// VideoPreset is the encoder speed/efficiency preset.
	VideoPreset string

	// MaxWidth and MaxHeight cap the output resolution. The scale filter
	// built from them preserves aspect ratio and never upscales.
	MaxWidth  int
	MaxHeight int

	// AudioBitrate is the AAC bitrate, e.g. "128k".
	AudioBitrate string

	// Threads is the encoder thread count; 0 selects automatically.
	Threads int

	// CodecProfile and CodecLevel pin the H.264 profile/level pair.
	CodecProfile string
	CodecLevel   string

	// Tune is an optional encoder tuning option; empty means none.
	Tune string
}

// populated reports whether the cell was filled in. Every real profile has
// either an image quality or a video preset.
func (p EncodeProfile) populated() bool {
	return p.ImageQuality > 0 || p.VideoPreset != ""
}

// profiles is the static lookup table indexed by (Tier, media.Kind).
//
// Image and HEIC rows differ deliberately: HEIC sources are already
// near-optimally compressed, so re-encoding them at JPEG-equivalent quality
// factors produces worse size/quality trade-offs. The video rows trade
// preset speed against CRF and resolution caps tier by tier.
var profiles = [tierCount][4]EncodeProfile{
	TierLow: {
		media.KindImage:     {ImageQuality: 50},
		media.KindHeicImage: {ImageQuality: 40},
		media.KindVideo: {
			VideoCRF:     33,
			VideoPreset:  "veryfast",
			MaxWidth:     854,
			MaxHeight:    480,
			AudioBitrate: "96k",
			CodecProfile: "main",
			CodecLevel:   "3.1",
			Tune:         "fastdecode",
		},
	},
	TierMedium: {
		media.KindImage:     {ImageQuality: 65},
		media.KindHeicImage: {ImageQuality: 60},
		media.KindVideo: {
			VideoCRF:     28,
			VideoPreset:  "faster",
			MaxWidth:     1280,
			MaxHeight:    720,
			AudioBitrate: "128k",
			CodecProfile: "high",
			CodecLevel:   "4.0",
		},
	},
	TierHigh: {
		media.KindImage:     {ImageQuality: 80},
		media.KindHeicImage: {ImageQuality: 75},
		media.KindVideo: {
			VideoCRF:     23,
			VideoPreset:  "medium",
			MaxWidth:     1920,
			MaxHeight:    1080,
			AudioBitrate: "192k",
			CodecProfile: "high",
			CodecLevel:   "4.2",
		},
	},
	TierMaximum: {
		media.KindImage:     {ImageQuality: 90},
		media.KindHeicImage: {ImageQuality: 85},
		media.KindVideo: {
			VideoCRF:     20,
			VideoPreset:  "slow",
			MaxWidth:     3840,
			MaxHeight:    2160,
			AudioBitrate: "256k",
			CodecProfile: "high",
			CodecLevel:   "5.1",
		},
	},
}

// Resolve returns the encode profile for the given tier and kind. It is a
// total function over the declared enumerations; ErrNotConfigured can only
// surface if the table above loses a cell.
func Resolve(tier Tier, kind media.Kind) (EncodeProfile, error) {
	if tier < TierLow || tier > TierMaximum {
		return EncodeProfile{}, fmt.Errorf("resolve profile for tier %d: %w", int(tier), ErrNotConfigured)
	}
	if kind != media.KindImage && kind != media.KindHeicImage && kind != media.KindVideo {
		return EncodeProfile{}, fmt.Errorf("resolve profile for kind %s: %w", kind, ErrNotConfigured)
	}
	p := profiles[tier][kind]
	if !p.populated() {
		return EncodeProfile{}, fmt.Errorf("resolve profile for (%s, %s): %w", tier, kind, ErrNotConfigured)
	}
	return p, nil
}

// presetSpeedRank orders libx264 presets from slowest to fastest. Used by
// tests to assert tier monotonicity and by callers that want to compare
// profiles.
var presetSpeedRank = map[string]int{
	"placebo":   0,
	"veryslow":  1,
	"slower":    2,
	"slow":      3,
	"medium":    4,
	"fast":      5,
	"faster":    6,
	"veryfast":  7,
	"superfast": 8,
	"ultrafast": 9,
}

// PresetSpeed returns the speed rank of a preset (higher = faster), or -1
// for an unknown preset name.
func PresetSpeed(preset string) int {
	rank, ok := presetSpeedRank[preset]
	if !ok {
		return -1
	}
	return rank
}
