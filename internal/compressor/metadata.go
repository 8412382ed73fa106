package compressor

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
)

// hasExifData reports whether the file carries an EXIF block. Decoded
// in-process; any parse failure just means there is nothing to preserve.
func hasExifData(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	_, err = exif.Decode(f)
	return err == nil
}

// copyMetadata copies the source's metadata block onto the output file
// using the exiftool binary.
func copyMetadata(src, dst string) error {
	if _, err := exec.LookPath("exiftool"); err != nil {
		return fmt.Errorf("exiftool not found: %w", err)
	}
	cmd := exec.Command("exiftool", "-TagsFromFile", src, "-overwrite_original", dst)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("exiftool copy failed: %v: %s", err, string(out))
	}
	return nil
}

// readMetadataField extracts a single metadata field from a file via the
// exiftool library. Works for formats goexif cannot parse (HEIC, video
// containers). Returns empty when the field is absent or extraction fails.
func readMetadataField(path, field string) string {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return ""
	}
	defer et.Close()

	files := et.ExtractMetadata(path)
	if len(files) == 0 || files[0].Err != nil {
		return ""
	}
	if v, ok := files[0].Fields[field].(string); ok {
		return v
	}
	return ""
}
