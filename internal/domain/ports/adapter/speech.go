package adapter

import (
	"context"
	"io"
)

type SpeechRequest struct {
	Text  string
	Voice string
	// Attempt is the caller's retry index; remote clients forward it so the
	// server can widen its own upstream deadline.
	Attempt int
}

// Audio is a complete synthesized clip.
type Audio struct {
	Data        []byte
	ContentType string
}

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) (Audio, error)
}

type TranscriptionRequest struct {
	Audio       io.Reader
	Filename    string
	ContentType string
}

type Transcriber interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}

// AudioHandle is one loaded clip. Release must be called exactly once.
type AudioHandle interface {
	// Play blocks until playback ends or ctx is canceled.
	Play(ctx context.Context) error
	Stop()
	Release() error
}

// AudioPlayer turns synthesized audio into a playable handle.
type AudioPlayer interface {
	Load(audio Audio) (AudioHandle, error)
}

// CaptureSession is a single-use recording of one utterance.
type CaptureSession interface {
	Start(ctx context.Context) error
	// Stop is the explicit end trigger.
	Stop() error
	// Done is closed when capture ended, by Stop or by provider end-of-speech.
	Done() <-chan struct{}
	// Recording returns the captured utterance once Done is closed.
	Recording() (TranscriptionRequest, error)
	Close() error
}
