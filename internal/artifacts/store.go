// Package artifacts persists test artifacts such as screenshots. Each Save
// produces a new, uniquely named object and returns where it was written.
package artifacts

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Store persists one artifact per Save call.
type Store interface {
	// Save writes data under a unique name derived from name and returns its
	// location (a file path or object URL).
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// ScreenshotExt is appended to every screenshot artifact.
const ScreenshotExt = ".png"

var nameSanitizePattern = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeName makes name safe as a single path component. Empty input
// becomes "unknown".
func SanitizeName(name string) string {
	safe := strings.Trim(nameSanitizePattern.ReplaceAllString(strings.TrimSpace(name), "_"), "._")
	if safe == "" {
		return "unknown"
	}
	return safe
}

// FileName returns "<name>-<epochMillis>.png" for a sanitized name.
func FileName(name string, epochMillis int64) string {
	return fmt.Sprintf("%s-%d%s", SanitizeName(name), epochMillis, ScreenshotExt)
}
