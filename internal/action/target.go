// Package action defines the targets a spoken command can resolve to
// and the dispatcher that executes them on the host.
package action

import "strings"

// Kind classifies what a resolved target does when dispatched.
type Kind int

const (
	// KindApp launches a local application by path or executable name.
	KindApp Kind = iota
	// KindURL opens a web address in the default browser.
	KindURL
	// KindType types literal text into the focused window.
	KindType
	// KindSay speaks a message through TTS without touching the host.
	KindSay
	// KindScreenshot captures the screen to an auto-numbered file.
	KindScreenshot
	// KindHelp prints the command reference.
	KindHelp
	// KindListIntents lists the configured intent labels.
	KindListIntents
	// KindStop shuts the daemon down cleanly.
	KindStop
)

// String returns the kind name used in logs and audit records.
func (k Kind) String() string {
	switch k {
	case KindApp:
		return "app"
	case KindURL:
		return "url"
	case KindType:
		return "type"
	case KindSay:
		return "say"
	case KindScreenshot:
		return "screenshot"
	case KindHelp:
		return "help"
	case KindListIntents:
		return "intents"
	case KindStop:
		return "stop"
	}
	return "unknown"
}

// Target is a fully resolved action ready for the whitelist check and
// dispatch.
type Target struct {
	Kind Kind
	// Value is the payload: an app path, a URL, text to type, or a
	// message to speak. Empty for screenshot, help, intents, and stop.
	Value string
	// Label is the intent label that produced this target, when one did.
	Label string
}

// IsVerb reports whether the target is a built-in verb rather than a
// configured app or URL. Verbs are always allowed by the whitelist.
func (t Target) IsVerb() bool {
	return t.Kind != KindApp && t.Kind != KindURL
}

// ClassifyTarget decides whether a configured intent target is a URL or
// an application reference.
func ClassifyTarget(value string) Kind {
	v := strings.ToLower(strings.TrimSpace(value))
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") || strings.HasPrefix(v, "www.") {
		return KindURL
	}
	return KindApp
}
