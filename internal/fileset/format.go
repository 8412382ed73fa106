package fileset

import (
	"fmt"
	"time"
)

// FormatBytes returns a human-readable string for a byte count.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatETA returns a coarse human-readable estimate of the remaining
// duration: seconds under a minute, minutes under an hour, otherwise
// hours and minutes.
func FormatETA(d time.Duration) string {
	secs := d.Seconds()
	switch {
	case secs < 60:
		return fmt.Sprintf("%.0fs", secs)
	case secs < 3600:
		return fmt.Sprintf("%.0fm", secs/60)
	default:
		hours := int(secs) / 3600
		mins := (int(secs) % 3600) / 60
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
}
