package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"crazeai/internal/domain"
	"crazeai/internal/domain/ports/adapter"
)

var _ adapter.CaptureSession = (*BufferCapture)(nil)

// BufferCapture is an in-memory capture session. A recorder (or a file reader in
// the demo) writes into it between Start and Stop; EndOfSpeech is the recognizer's
// own end trigger. It is single-use.
type BufferCapture struct {
	filename    string
	contentType string
	maxDuration time.Duration

	mu      sync.Mutex
	buf     bytes.Buffer
	started bool
	ended   bool
	closed  bool
	done    chan struct{}
	running chan struct{}
	timer   *time.Timer
}

type CaptureOption func(*BufferCapture)

// WithMaxDuration ends the capture automatically after d.
func WithMaxDuration(d time.Duration) CaptureOption {
	return func(c *BufferCapture) { c.maxDuration = d }
}

func NewBufferCapture(filename, contentType string, opts ...CaptureOption) *BufferCapture {
	c := &BufferCapture{filename: filename, contentType: contentType, done: make(chan struct{}), running: make(chan struct{})}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *BufferCapture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return domain.ErrCaptureConsumed
	}
	c.started = true
	close(c.running)
	if c.maxDuration > 0 {
		c.timer = time.AfterFunc(c.maxDuration, func() { _ = c.Stop() })
	}
	return ctx.Err()
}

// Write appends captured audio. Writes outside Start..Stop fail.
func (c *BufferCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.ended {
		return 0, io.ErrClosedPipe
	}
	return c.buf.Write(p)
}

func (c *BufferCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLocked()
	return nil
}

// EndOfSpeech marks the utterance complete, as a recognizer would on silence.
func (c *BufferCapture) EndOfSpeech() { _ = c.Stop() }

func (c *BufferCapture) endLocked() {
	if c.ended {
		return
	}
	c.ended = true
	if c.timer != nil {
		c.timer.Stop()
	}
	close(c.done)
}

func (c *BufferCapture) Done() <-chan struct{} { return c.done }

// Started is closed once Start succeeds; feeders wait on it before writing.
func (c *BufferCapture) Started() <-chan struct{} { return c.running }

func (c *BufferCapture) Recording() (adapter.TranscriptionRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ended {
		return adapter.TranscriptionRequest{}, errors.New("capture still running")
	}
	if c.buf.Len() == 0 {
		return adapter.TranscriptionRequest{}, domain.ErrNoAudio
	}
	return adapter.TranscriptionRequest{
		Audio:       bytes.NewReader(c.buf.Bytes()),
		Filename:    c.filename,
		ContentType: c.contentType,
	}, nil
}

func (c *BufferCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLocked()
	c.closed = true
	return nil
}
