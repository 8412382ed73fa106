// Package media classifies files into the media kinds the compression
// engine knows how to handle.
package media

import (
	"path/filepath"
	"strings"
)

// Kind represents the media kind of a file, derived from its extension.
type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindHeicImage
	KindVideo
)

// imageExtensions are the raster image extensions handled by the image
// compressor. HEIC is listed separately because it takes a different
// decode path.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}

// videoExtensions are the container extensions handled by the video
// compressor. Output is always normalized to MP4 regardless of input.
var videoExtensions = []string{".mp4", ".mov", ".avi"}

// Classify returns the media kind for the given file path. Classification
// is purely extension-based and case-insensitive; no I/O is performed.
func Classify(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".heic" {
		return KindHeicImage
	}
	for _, e := range imageExtensions {
		if ext == e {
			return KindImage
		}
	}
	for _, e := range videoExtensions {
		if ext == e {
			return KindVideo
		}
	}
	return KindUnsupported
}

// ImageExtensions returns the supported image extensions, including HEIC.
func ImageExtensions() []string {
	exts := make([]string, 0, len(imageExtensions)+1)
	exts = append(exts, imageExtensions...)
	exts = append(exts, ".heic")
	return exts
}

// VideoExtensions returns the supported video extensions.
func VideoExtensions() []string {
	exts := make([]string, len(videoExtensions))
	copy(exts, videoExtensions)
	return exts
}

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindHeicImage:
		return "heic"
	case KindVideo:
		return "video"
	default:
		return "unsupported"
	}
}

// IsImage reports whether the kind is handled by the image compressor.
func (k Kind) IsImage() bool {
	return k == KindImage || k == KindHeicImage
}

// IsVideo reports whether the kind is handled by the video compressor.
func (k Kind) IsVideo() bool {
	return k == KindVideo
}
