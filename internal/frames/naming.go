package frames

import (
	"strings"
	"time"
)

const (
	// Ext is the file extension of every stored frame.
	Ext = ".jpg"

	nameLayout = "20060102_150405"
	dateLayout = "20060102"
)

// Name returns the frame filename for a capture instant, truncated to the
// second. Names sort lexicographically in capture order.
func Name(ts time.Time) string {
	return ts.Format(nameLayout) + Ext
}

// DateString formats the calendar date used as the day group key.
func DateString(ts time.Time) string {
	return ts.Format(dateLayout)
}

// ParseName reports the capture instant encoded in a frame filename. Files that
// are not frames (manifests, thumbnails, temp files) return false.
func ParseName(name string) (time.Time, bool) {
	stem, ok := strings.CutSuffix(name, Ext)
	if !ok || len(stem) != len(nameLayout) {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(nameLayout, stem, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// DateOf extracts the day group key from a frame filename. It is the only
// place that knows how the date is encoded in a frame identity.
func DateOf(name string) (string, bool) {
	if _, ok := ParseName(name); !ok {
		return "", false
	}
	return name[:len(dateLayout)], true
}

// ValidDate reports whether s is a YYYYMMDD day key.
func ValidDate(s string) bool {
	if len(s) != len(dateLayout) {
		return false
	}
	_, err := time.ParseInLocation(dateLayout, s, time.Local)
	return err == nil
}
