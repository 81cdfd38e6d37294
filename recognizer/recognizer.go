// Package recognizer streams PCM16 audio to a speech-to-text service and
// delivers live transcript updates back to the capture core.
package recognizer

import (
	"context"
	"fmt"
	"os"
)

const (
	SampleRate = 16000
	Channels   = 1
)

// Config describes one recognition session.
type Config struct {
	Language string
}

// Update is one live transcript event. Text is the cumulative transcript
// for the session so far. Final is set when the service marks the
// utterance complete; everything else is a partial.
type Update struct {
	Text  string
	Final bool
}

// Result is the terminal output of a closed session.
type Result struct {
	Text   string
	AudioS float64 // seconds of audio sent
}

// Session is one live recognition stream. Feed never blocks the caller
// for long. Done closes when the stream dies underneath the caller
// (dial or mid-session failure), letting the owner finalize instead of
// waiting on a dead socket. Close flushes, waits for the service's
// final text and reports any stream error; it also closes Updates.
type Session interface {
	Feed(pcm []byte)
	Updates() <-chan Update
	Done() <-chan struct{}
	Close() (Result, error)
}

// Recognizer creates sessions against one transcription backend.
type Recognizer interface {
	Name() string
	NewSession(ctx context.Context, cfg Config) (Session, error)
}

// New selects a backend from the environment.
func New() (Recognizer, error) {
	if key := os.Getenv("DEEPGRAM_API_KEY"); key != "" {
		return NewDeepgram(key), nil
	}
	return nil, fmt.Errorf("no recognizer configured: set DEEPGRAM_API_KEY")
}
