// Package feedback gives the user audible confirmation: spoken
// responses through an external TTS command and a short chime when a
// phrase is picked up.
package feedback

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"
)

// Announcer speaks short messages to the user. Announcements happen
// before the action runs, so the user hears what is about to happen.
type Announcer interface {
	Announce(ctx context.Context, message string) error
}

// TTSAnnouncer shells out to a text-to-speech command such as
// espeak-ng or say, passing the message as the last argument.
type TTSAnnouncer struct {
	command string
	mute    bool
}

// NewTTSAnnouncer creates an announcer using command. With mute set,
// messages are logged instead of spoken.
func NewTTSAnnouncer(command string, mute bool) *TTSAnnouncer {
	return &TTSAnnouncer{command: command, mute: mute}
}

// Announce speaks the message, blocking until the TTS command exits so
// speech finishes before the action starts.
func (a *TTSAnnouncer) Announce(ctx context.Context, message string) error {
	if message == "" {
		return nil
	}
	log.Info().Str("message", message).Msg("Announcing")
	if a.mute || a.command == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, a.command, message)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running tts command %q: %w", a.command, err)
	}
	return nil
}
