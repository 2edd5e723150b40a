package action

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

var screenshotNameRe = regexp.MustCompile(`(?i)^screenshot\s+(\d+)\.png$`)

// ScreenshotNamer hands out auto-numbered file names like
// "screenshot 1.png" inside a fixed directory, continuing from the
// highest number already present.
type ScreenshotNamer struct {
	dir string
}

// NewScreenshotNamer creates a namer for dir.
func NewScreenshotNamer(dir string) *ScreenshotNamer {
	return &ScreenshotNamer{dir: dir}
}

// Next returns the next free screenshot path, creating the directory
// if needed. Numbering survives gaps: deleting "screenshot 2.png" does
// not reuse its number while a higher one exists.
func (n *ScreenshotNamer) Next() (string, error) {
	if err := os.MkdirAll(n.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating screenshots dir: %w", err)
	}

	entries, err := os.ReadDir(n.dir)
	if err != nil {
		return "", fmt.Errorf("scanning screenshots dir: %w", err)
	}
	maxN := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if m := screenshotNameRe.FindStringSubmatch(entry.Name()); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil && v > maxN {
				maxN = v
			}
		}
	}

	// Keep probing in case an unnumbered collision exists.
	for i := maxN + 1; ; i++ {
		candidate := filepath.Join(n.dir, fmt.Sprintf("screenshot %d.png", i))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
}
