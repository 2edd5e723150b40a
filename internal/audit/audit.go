// Package audit keeps a plain-text trail of every command the daemon
// acted on, denied, or failed. The file is append-only and prunes
// itself by age once it grows large.
package audit

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	// pruneSizeBytes triggers an age-based prune once the file exceeds it.
	pruneSizeBytes = 1_000_000
)

// Logger appends audit records. Safe for concurrent use, although the
// pipeline writes one record at a time.
type Logger struct {
	mu        sync.Mutex
	path      string
	retention time.Duration
	now       func() time.Time
}

// NewLogger creates an audit logger writing to path, keeping records
// for retentionDays. The parent directory is created if missing.
func NewLogger(path string, retentionDays int) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating audit log dir: %w", err)
	}
	return &Logger{
		path:      path,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}, nil
}

// Record appends one line:
//
//	[2026-08-30 14:02:11] ACTION: open youtube → SUCCESS (opened https://www.youtube.com)
//
// The detail part is omitted when empty. Audit failures are logged but
// never propagated; a broken audit file must not stop the pipeline.
func (l *Logger) Record(command, outcome, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := fmt.Sprintf("[%s] ACTION: %s → %s", l.now().Format(timestampLayout), command, outcome)
	if detail != "" {
		entry += fmt.Sprintf(" (%s)", detail)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Error().Err(err).Msg("Cannot open audit log")
		return
	}
	_, werr := f.WriteString(entry + "\n")
	f.Close()
	if werr != nil {
		log.Error().Err(werr).Msg("Cannot append audit record")
		return
	}

	if info, err := os.Stat(l.path); err == nil && info.Size() > pruneSizeBytes {
		if err := l.pruneLocked(); err != nil {
			log.Warn().Err(err).Msg("Audit log prune failed")
		}
	}
}

// Prune drops records older than the retention window.
func (l *Logger) Prune() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pruneLocked()
}

func (l *Logger) pruneLocked() error {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening audit log: %w", err)
	}

	cutoff := l.now().Add(-l.retention)
	var kept []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		ts, ok := parseLineTimestamp(line)
		// Lines without a parsable timestamp are kept rather than lost.
		if !ok || !ts.Before(cutoff) {
			kept = append(kept, line)
		}
	}
	f.Close()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning audit log: %w", err)
	}

	content := strings.Join(kept, "\n")
	if content != "" {
		content += "\n"
	}
	if err := os.WriteFile(l.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("rewriting audit log: %w", err)
	}
	return nil
}

// parseLineTimestamp extracts the bracketed timestamp from a record.
func parseLineTimestamp(line string) (time.Time, bool) {
	if !strings.HasPrefix(line, "[") {
		return time.Time{}, false
	}
	end := strings.IndexByte(line, ']')
	if end < 0 {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(timestampLayout, line[1:end], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
