// Package intent maps normalized transcripts to actionable targets.
// Intents come from a JSON file that maps spoken labels to targets and
// can be reloaded without restarting the daemon.
package intent

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Intent is one named command a user can speak.
type Intent struct {
	// Label is the canonical spoken form, stored normalized.
	Label string
	// Target is what the label resolves to: a URL, an application path,
	// or an executable name.
	Target string
	// Enabled gates the intent without removing it from the file.
	Enabled bool
	// Aliases are alternate spoken forms that resolve to the same target.
	Aliases []string
}

// intentSpec is the rich JSON form of an intent entry. The file also
// accepts a bare string as shorthand for {"target": ...}.
type intentSpec struct {
	Target  string   `json:"target"`
	Enabled *bool    `json:"enabled"`
	Aliases []string `json:"aliases"`
}

// Map is an immutable snapshot of the loaded intents. Lookups never
// mutate it, so readers need no locking.
type Map struct {
	byLabel map[string]*Intent
	byAlias map[string]*Intent
	// labelsByLength holds enabled labels sorted longest first for
	// substring matching, where the longest label wins.
	labelsByLength []string
}

// Lookup returns the enabled intent with the given normalized label.
func (m *Map) Lookup(label string) (*Intent, bool) {
	it, ok := m.byLabel[label]
	if !ok || !it.Enabled {
		return nil, false
	}
	return it, true
}

// LookupAlias returns the enabled intent registered under the alias.
func (m *Map) LookupAlias(alias string) (*Intent, bool) {
	it, ok := m.byAlias[alias]
	if !ok || !it.Enabled {
		return nil, false
	}
	return it, true
}

// Labels returns the enabled labels, longest first.
func (m *Map) Labels() []string {
	return m.labelsByLength
}

// Len returns the number of enabled intents.
func (m *Map) Len() int {
	return len(m.labelsByLength)
}

// ParseIntents builds a Map from raw JSON. Both entry forms are
// accepted per label: a bare target string, or an object with target,
// enabled, and aliases fields. Labels and aliases are normalized; a
// duplicate alias keeps its first owner.
func ParseIntents(data []byte) (*Map, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing intents file: %w", err)
	}

	m := &Map{
		byLabel: make(map[string]*Intent, len(raw)),
		byAlias: make(map[string]*Intent),
	}

	for label, entry := range raw {
		normLabel := NormalizeLabel(label)
		if normLabel == "" {
			continue
		}

		var spec intentSpec
		var target string
		if err := json.Unmarshal(entry, &target); err == nil {
			spec = intentSpec{Target: target}
		} else if err := json.Unmarshal(entry, &spec); err != nil {
			return nil, fmt.Errorf("intent %q: expected a target string or an object: %w", label, err)
		}
		if strings.TrimSpace(spec.Target) == "" {
			return nil, fmt.Errorf("intent %q: empty target", label)
		}

		it := &Intent{
			Label:   normLabel,
			Target:  strings.TrimSpace(spec.Target),
			Enabled: spec.Enabled == nil || *spec.Enabled,
		}
		for _, a := range spec.Aliases {
			normAlias := NormalizeLabel(a)
			if normAlias == "" || normAlias == normLabel {
				continue
			}
			it.Aliases = append(it.Aliases, normAlias)
		}

		m.byLabel[normLabel] = it
		for _, a := range it.Aliases {
			if _, taken := m.byAlias[a]; !taken {
				m.byAlias[a] = it
			}
		}
	}

	for label, it := range m.byLabel {
		if it.Enabled {
			m.labelsByLength = append(m.labelsByLength, label)
		}
	}
	sort.Slice(m.labelsByLength, func(i, j int) bool {
		a, b := m.labelsByLength[i], m.labelsByLength[j]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})

	return m, nil
}

// LoadIntents reads and parses the intents file at path.
func LoadIntents(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading intents file: %w", err)
	}
	return ParseIntents(data)
}

// Store holds the current intent Map and swaps it atomically on
// reload, so in-flight lookups always see a consistent snapshot.
type Store struct {
	path    string
	current atomic.Pointer[Map]
}

// NewStore loads the intents file and returns a reloadable store.
func NewStore(path string) (*Store, error) {
	m, err := LoadIntents(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.current.Store(m)
	log.Info().Str("file", path).Int("intents", m.Len()).Msg("Intents loaded")
	return s, nil
}

// Current returns the active snapshot.
func (s *Store) Current() *Map {
	return s.current.Load()
}

// Reload re-reads the file. On error the previous snapshot stays
// active.
func (s *Store) Reload() error {
	m, err := LoadIntents(s.path)
	if err != nil {
		return err
	}
	s.current.Store(m)
	log.Info().Str("file", s.path).Int("intents", m.Len()).Msg("Intents reloaded")
	return nil
}
