package intent

import (
	"regexp"
	"strings"
)

var (
	punctRe      = regexp.MustCompile(`[^\w\s]`)
	spaceRe      = regexp.MustCompile(`\s+`)
	wakeWordRe   = regexp.MustCompile(`^(hey jarvis|jarvis|hey|okay|ok)\s+`)
	politenessRe = regexp.MustCompile(`\b(please|kindly|could you|can you|will you|would you)\b`)
)

// synonymRule rewrites one common mishearing to its canonical form.
// Rules apply in order, so multi-word patterns come before the single
// words they contain.
type synonymRule struct {
	re   *regexp.Regexp
	repl string
}

var synonymRules = []synonymRule{
	// command words
	{regexp.MustCompile(`\b(show|list) intents?\b`), "intents"},
	{regexp.MustCompile(`\bintense\b`), "intents"},
	{regexp.MustCompile(`\bintents?\b`), "intents"},
	{regexp.MustCompile(`\bhalp\b`), "help"},
	{regexp.MustCompile(`\bhelps\b`), "help"},
	{regexp.MustCompile(`\b(stop|quit) now\b`), "stop"},

	// "open" mishears
	{regexp.MustCompile(`\bhope (?:and|n)\b`), "open"},
	{regexp.MustCompile(`\bhop(?:e|ing)\b`), "open"},

	// site name variants
	{regexp.MustCompile(`\byou ?(dude|doob|tube|two|to)\b`), "youtube"},
	{regexp.MustCompile(`\bu ?tube\b`), "youtube"},

	// editor variants
	{regexp.MustCompile(`\bv ?s ?(code|scored|good|gold)\b`), "visual studio code"},
	{regexp.MustCompile(`\b(via|we) scored\b`), "visual studio code"},
	{regexp.MustCompile(`\bvsc\b`), "visual studio code"},
	{regexp.MustCompile(`\bcode editor\b`), "visual studio code"},

	// typing variants
	{regexp.MustCompile(`\btight\b`), "type"},
	{regexp.MustCompile(`\btype in\b`), "type"},
}

// Normalize canonicalizes a raw transcript for resolution: lowercase,
// punctuation stripped, leading wake words and politeness fillers
// removed, and common mishearings rewritten.
func Normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = wakeWordRe.ReplaceAllString(s, "")
	s = politenessRe.ReplaceAllString(s, " ")
	for _, rule := range synonymRules {
		s = rule.re.ReplaceAllString(s, rule.repl)
	}
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeLabel canonicalizes an intent label or alias from the
// intents file. Labels skip wake-word and mishearing rewrites; they are
// authored, not spoken.
func NormalizeLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
