// Package audio holds the local playback and capture used by the client driver.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"crazeai/internal/domain/ports/adapter"
)

var _ adapter.AudioPlayer = (*CommandPlayer)(nil)

var ErrNoPlayer = errors.New("no audio player command found")

// candidates are tried in order by DetectPlayer; the clip path is appended.
var candidates = [][]string{
	{"afplay"},
	{"mpg123", "-q"},
	{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
	{"paplay"},
}

// CommandPlayer plays clips by writing them to a temp file and running an external
// player on it.
type CommandPlayer struct {
	name string
	args []string
	dir  string
}

func NewCommandPlayer(name string, args ...string) *CommandPlayer {
	return &CommandPlayer{name: name, args: args, dir: os.TempDir()}
}

// DetectPlayer picks the first known player on PATH.
func DetectPlayer() (*CommandPlayer, error) {
	for _, c := range candidates {
		if _, err := exec.LookPath(c[0]); err == nil {
			return NewCommandPlayer(c[0], c[1:]...), nil
		}
	}
	return nil, ErrNoPlayer
}

func (p *CommandPlayer) Name() string { return p.name }

func (p *CommandPlayer) Load(a adapter.Audio) (adapter.AudioHandle, error) {
	if len(a.Data) == 0 {
		return nil, errors.New("empty audio clip")
	}
	f, err := os.CreateTemp(p.dir, "craze-tts-*"+extFor(a.ContentType))
	if err != nil {
		return nil, fmt.Errorf("create clip file: %w", err)
	}
	if _, err := f.Write(a.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write clip file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, err
	}
	return &clip{player: p, path: f.Name()}, nil
}

func extFor(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "ogg"), strings.Contains(ct, "opus"):
		return ".ogg"
	case strings.Contains(ct, "aac"):
		return ".aac"
	case strings.Contains(ct, "flac"):
		return ".flac"
	default:
		return ".mp3"
	}
}

type clip struct {
	player *CommandPlayer
	path   string

	mu       sync.Mutex
	cancel   context.CancelFunc
	stopped  bool
	released bool
}

var errReleased = errors.New("audio clip already released")

func (c *clip) Play(ctx context.Context) error {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return errReleased
	}
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	args := append(append([]string{}, c.player.args...), c.path)
	cmd := exec.CommandContext(ctx, c.player.name, args...)
	c.mu.Unlock()
	defer cancel()

	err := cmd.Run()
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped || ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", c.player.name, err)
	}
	return nil
}

func (c *clip) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
}

// Release stops playback and deletes the clip file. Only the first call does work.
func (c *clip) Release() error {
	c.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return errReleased
	}
	c.released = true
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
