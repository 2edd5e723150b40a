package intent

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase and trim", "  Open YouTube  ", "open youtube"},
		{"punctuation stripped", "open youtube, now!", "open youtube now"},
		{"wake word removed", "jarvis open youtube", "open youtube"},
		{"hey jarvis removed", "hey jarvis open youtube", "open youtube"},
		{"okay prefix removed", "okay open youtube", "open youtube"},
		{"politeness removed", "could you open youtube please", "open youtube"},
		{"intense rewritten", "intense", "intents"},
		{"list intents rewritten", "list intents", "intents"},
		{"exit stays for the stop verb", "exit", "exit"},
		{"youtube mishearing", "open you tube", "open youtube"},
		{"vs code mishearing", "open vs gold", "open visual studio code"},
		{"tight becomes type", "tight hello world", "type hello world"},
		{"empty input", "   ", ""},
		{"only wake word", "jarvis", "jarvis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"YouTube", "youtube"},
		{"  VS Code  ", "vs code"},
		{"what's up", "what s up"},
	}
	for _, tt := range tests {
		if got := NormalizeLabel(tt.in); got != tt.want {
			t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
