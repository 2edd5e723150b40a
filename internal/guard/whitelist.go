// Package guard decides whether a resolved target may be dispatched.
// The whitelist is a plain text file, one entry per line: application
// paths or executable names, and site domains. Built-in verbs never
// need an entry.
package guard

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/TUF-SCAR/Jarvis-Local/internal/action"
)

// Decision is the result of one whitelist check.
type Decision struct {
	Allowed bool
	// Reason explains a denial for the audit record.
	Reason string
}

// Set is an immutable whitelist snapshot. App entries are exact matches
// on the full path or the executable base name; site entries are exact
// hosts, so allowing "youtube.com" allows neither "music.youtube.com"
// nor "www.youtube.com".
type Set struct {
	apps    map[string]struct{}
	domains map[string]struct{}
}

// ParseWhitelist builds a Set from file content. Blank lines and lines
// starting with # are ignored.
func ParseWhitelist(content string) *Set {
	s := &Set{
		apps:    make(map[string]struct{}),
		domains: make(map[string]struct{}),
	}
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		entry := strings.TrimSpace(scanner.Text())
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}
		entry = strings.ToLower(entry)
		if looksLikeSite(entry) {
			s.domains[canonicalDomain(entry)] = struct{}{}
		} else {
			s.apps[entry] = struct{}{}
		}
	}
	return s
}

// LoadWhitelist reads and parses the whitelist file at path.
func LoadWhitelist(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading whitelist file: %w", err)
	}
	return ParseWhitelist(string(data)), nil
}

// Len returns the total number of entries.
func (s *Set) Len() int {
	return len(s.apps) + len(s.domains)
}

// Check decides whether target may run. It is a pure function of the
// snapshot and the target; it never touches the filesystem or network.
func (s *Set) Check(t action.Target) Decision {
	// Verbs act on the session, not on arbitrary programs or sites.
	if t.IsVerb() {
		return Decision{Allowed: true}
	}

	switch t.Kind {
	case action.KindApp:
		if s.checkApp(t.Value) {
			return Decision{Allowed: true}
		}
		return Decision{Reason: fmt.Sprintf("application %q is not whitelisted", t.Value)}
	case action.KindURL:
		if s.checkURL(t.Value) {
			return Decision{Allowed: true}
		}
		return Decision{Reason: fmt.Sprintf("site %q is not whitelisted", t.Value)}
	}
	return Decision{Reason: fmt.Sprintf("unknown target kind %v", t.Kind)}
}

// checkApp matches the full target string or its executable base name.
func (s *Set) checkApp(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if _, ok := s.apps[v]; ok {
		return true
	}
	base := strings.ToLower(filepath.Base(strings.ReplaceAll(v, `\`, `/`)))
	_, ok := s.apps[base]
	return ok
}

// checkURL matches the exact host regardless of scheme, port, or path.
// A www prefix is a subdomain like any other and needs its own entry.
func (s *Set) checkURL(value string) bool {
	_, ok := s.domains[canonicalDomain(strings.ToLower(value))]
	return ok
}

// looksLikeSite reports whether a whitelist entry names a domain rather
// than an application.
func looksLikeSite(entry string) bool {
	if strings.HasPrefix(entry, "http://") || strings.HasPrefix(entry, "https://") || strings.HasPrefix(entry, "www.") {
		return true
	}
	// "youtube.com" is a domain; "steam.exe" and "/usr/bin/code" are not.
	if strings.ContainsAny(entry, `/\`) {
		return false
	}
	if strings.HasSuffix(entry, ".exe") {
		return false
	}
	return strings.Contains(entry, ".")
}

// canonicalDomain reduces a URL or domain entry to a bare host name.
func canonicalDomain(entry string) string {
	d := entry
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "https://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.Index(d, ":"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, ".")
}

// Guard checks targets against the current whitelist snapshot, with an
// off switch for unattended use on a trusted machine.
type Guard struct {
	path     string
	safeMode bool
	current  atomic.Pointer[Set]
}

// NewGuard loads the whitelist at path. With safeMode false, every
// target is allowed and the whitelist is only advisory.
func NewGuard(path string, safeMode bool) (*Guard, error) {
	set, err := LoadWhitelist(path)
	if err != nil {
		return nil, err
	}
	g := &Guard{path: path, safeMode: safeMode}
	g.current.Store(set)
	log.Info().
		Str("file", path).
		Int("entries", set.Len()).
		Bool("safe_mode", safeMode).
		Msg("Whitelist loaded")
	if !safeMode {
		log.Warn().Msg("Safe mode is off; whitelist gating is disabled")
	}
	return g, nil
}

// Check gates one target against the active snapshot.
func (g *Guard) Check(t action.Target) Decision {
	if !g.safeMode {
		return Decision{Allowed: true}
	}
	return g.current.Load().Check(t)
}

// Current returns the active snapshot.
func (g *Guard) Current() *Set {
	return g.current.Load()
}

// Reload re-reads the whitelist file. On error the previous snapshot
// stays active.
func (g *Guard) Reload() error {
	set, err := LoadWhitelist(g.path)
	if err != nil {
		return err
	}
	g.current.Store(set)
	log.Info().Str("file", g.path).Int("entries", set.Len()).Msg("Whitelist reloaded")
	return nil
}
