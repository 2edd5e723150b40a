package intent

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/rs/zerolog/log"

	"github.com/TUF-SCAR/Jarvis-Local/internal/action"
)

// MatchKind records which resolution stage produced a match, for logs
// and the audit trail.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchBuiltin
	MatchExact
	MatchAlias
	MatchFuzzy
	MatchSubstring
)

func (k MatchKind) String() string {
	switch k {
	case MatchBuiltin:
		return "builtin"
	case MatchExact:
		return "exact"
	case MatchAlias:
		return "alias"
	case MatchFuzzy:
		return "fuzzy"
	case MatchSubstring:
		return "substring"
	}
	return "none"
}

// Resolution is the outcome of resolving one normalized utterance.
type Resolution struct {
	Target action.Target
	Match  MatchKind
}

const (
	// phoneticThreshold is the minimum Jaro-Winkler score accepted when
	// the utterance and a label share a Double Metaphone code.
	phoneticThreshold = 0.70
	// fuzzyThreshold is the minimum score without phonetic agreement.
	fuzzyThreshold = 0.85
)

var (
	helpRe       = regexp.MustCompile(`^(help|\?)$`)
	stopRe       = regexp.MustCompile(`^(stop|exit|quit)$`)
	intentsRe    = regexp.MustCompile(`^intents$`)
	screenshotRe = regexp.MustCompile(`^(take a screenshot|take screenshot|screenshot)$`)
	sayRe        = regexp.MustCompile(`^say (.+)$`)
	typeRe       = regexp.MustCompile(`^type (.+)$`)
	openAppRe    = regexp.MustCompile(`^open app (.+)$`)
	openSiteRe   = regexp.MustCompile(`^open site (.+)$`)
	openRe       = regexp.MustCompile(`^open (.+)$`)
)

// Resolver turns normalized utterances into targets against the current
// intent snapshot.
type Resolver struct {
	store *Store
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve maps a normalized utterance to a target. Built-in verbs are
// checked before any configured intent, so an intent label can never
// shadow "stop" or "help". The second return is false when nothing
// matched.
func (r *Resolver) Resolve(utterance string) (Resolution, bool) {
	s := strings.TrimSpace(utterance)
	if s == "" {
		return Resolution{}, false
	}
	m := r.store.Current()

	// Built-in verbs first.
	switch {
	case helpRe.MatchString(s):
		return builtin(action.KindHelp, ""), true
	case stopRe.MatchString(s):
		return builtin(action.KindStop, ""), true
	case intentsRe.MatchString(s):
		return builtin(action.KindListIntents, ""), true
	case screenshotRe.MatchString(s):
		return builtin(action.KindScreenshot, ""), true
	}
	if g := sayRe.FindStringSubmatch(s); g != nil {
		return builtin(action.KindSay, g[1]), true
	}
	if g := typeRe.FindStringSubmatch(s); g != nil {
		return builtin(action.KindType, g[1]), true
	}

	// "open app X" and "open site X" restrict the lookup to one kind.
	if g := openAppRe.FindStringSubmatch(s); g != nil {
		return r.resolveLabel(m, g[1], action.KindApp)
	}
	if g := openSiteRe.FindStringSubmatch(s); g != nil {
		return r.resolveLabel(m, g[1], action.KindURL)
	}
	if g := openRe.FindStringSubmatch(s); g != nil {
		// Sites take priority over apps for a bare "open X".
		if res, ok := r.resolveLabel(m, g[1], action.KindURL); ok {
			return res, true
		}
		return r.resolveLabel(m, g[1], action.KindApp)
	}

	// A bare utterance can still name an intent directly.
	return r.resolveAny(m, s)
}

func builtin(kind action.Kind, value string) Resolution {
	return Resolution{
		Target: action.Target{Kind: kind, Value: value},
		Match:  MatchBuiltin,
	}
}

// resolveLabel resolves spoken against intents whose target classifies
// as wantKind.
func (r *Resolver) resolveLabel(m *Map, spoken string, wantKind action.Kind) (Resolution, bool) {
	res, ok := r.resolveAny(m, spoken)
	if !ok || res.Target.Kind != wantKind {
		return Resolution{}, false
	}
	return res, true
}

// resolveAny runs the full resolution ladder: exact label, alias,
// fuzzy, then delimited substring where the longest label wins.
func (r *Resolver) resolveAny(m *Map, spoken string) (Resolution, bool) {
	s := strings.TrimSpace(spoken)
	if s == "" {
		return Resolution{}, false
	}

	if it, ok := m.Lookup(s); ok {
		return fromIntent(it, MatchExact), true
	}
	if it, ok := m.LookupAlias(s); ok {
		return fromIntent(it, MatchAlias), true
	}
	if it, ok := r.fuzzyMatch(m, s); ok {
		return fromIntent(it, MatchFuzzy), true
	}
	if it, ok := substringMatch(m, s); ok {
		return fromIntent(it, MatchSubstring), true
	}
	return Resolution{}, false
}

func fromIntent(it *Intent, match MatchKind) Resolution {
	return Resolution{
		Target: action.Target{
			Kind:  action.ClassifyTarget(it.Target),
			Value: it.Target,
			Label: it.Label,
		},
		Match: match,
	}
}

// fuzzyMatch ranks labels and aliases by Jaro-Winkler similarity.
// Candidates that share a Double Metaphone code with the utterance pass
// at a lower threshold, since phonetic agreement makes a mishearing
// more plausible.
func (r *Resolver) fuzzyMatch(m *Map, spoken string) (*Intent, bool) {
	spokenCodes := metaphoneCodes(spoken)

	var best *Intent
	var bestScore float64
	bestPhonetic := false

	consider := func(candidate string, it *Intent) {
		score := jaroWinklerScore(spoken, candidate)
		phonetic := codesOverlap(spokenCodes, metaphoneCodes(candidate))
		switch {
		case phonetic && score >= phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				best, bestScore, bestPhonetic = it, score, true
			}
		case !phonetic && !bestPhonetic && score >= fuzzyThreshold:
			if score > bestScore {
				best, bestScore = it, score
			}
		}
	}

	for _, label := range m.Labels() {
		it, _ := m.Lookup(label)
		consider(label, it)
		for _, alias := range it.Aliases {
			consider(alias, it)
		}
	}

	if best != nil {
		log.Debug().
			Str("spoken", spoken).
			Str("label", best.Label).
			Float64("score", bestScore).
			Bool("phonetic", bestPhonetic).
			Msg("Fuzzy intent match")
		return best, true
	}
	return nil, false
}

// substringMatch finds labels contained in the utterance (or vice
// versa) at word boundaries. Labels are scanned longest first, so
// "open youtube music" prefers "youtube music" over "youtube".
func substringMatch(m *Map, spoken string) (*Intent, bool) {
	for _, label := range m.Labels() {
		if containsDelimited(spoken, label) || containsDelimited(label, spoken) {
			it, _ := m.Lookup(label)
			return it, true
		}
	}
	return nil, false
}

// containsDelimited reports whether needle occurs in haystack on word
// boundaries.
func containsDelimited(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	idx := 0
	for {
		i := strings.Index(haystack[idx:], needle)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(needle)
		leftOK := start == 0 || haystack[start-1] == ' '
		rightOK := end == len(haystack) || haystack[end] == ' '
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
	}
}

// metaphoneCodes returns the Double Metaphone codes of every token.
func metaphoneCodes(s string) map[string]struct{} {
	codes := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		p, sec := matchr.DoubleMetaphone(tok)
		if p != "" {
			codes[p] = struct{}{}
		}
		if sec != "" {
			codes[sec] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// jaroWinklerScore takes the best of the full-string, space-stripped,
// and pairwise-token comparisons, so multi-word mishearings still rank
// well.
func jaroWinklerScore(a, b string) float64 {
	score := matchr.JaroWinkler(a, b, false)

	aTokens, bTokens := strings.Fields(a), strings.Fields(b)
	if len(aTokens) > 1 || len(bTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false); s > score {
			score = s
		}
	}
	for _, at := range aTokens {
		for _, bt := range bTokens {
			if s := matchr.JaroWinkler(at, bt, false); s > score {
				score = s
			}
		}
	}
	return score
}
