package usecase

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"crazeai/internal/domain"
	"crazeai/internal/domain/ports/adapter"
	"crazeai/internal/retry"
)

// SpeechHooks observe playback. All are optional and run on the playback goroutine.
type SpeechHooks struct {
	OnPlaybackStart func()
	OnPlaybackEnd   func()
	OnError         func(error)
}

// SpeechBridge plays replies and transcribes captured utterances on the client.
// At most one clip is live; replacing it stops and releases the previous handle first.
type SpeechBridge struct {
	tts    adapter.SpeechSynthesizer
	stt    adapter.Transcriber
	player adapter.AudioPlayer
	policy retry.Policy
	voice  string
	log    *zerolog.Logger

	hooksMu sync.RWMutex
	hooks   SpeechHooks

	slot    retry.Slot
	mu      sync.Mutex
	current adapter.AudioHandle
	wg      sync.WaitGroup
}

func NewSpeechBridge(tts adapter.SpeechSynthesizer, stt adapter.Transcriber, player adapter.AudioPlayer, policy retry.Policy, voice string, log *zerolog.Logger) *SpeechBridge {
	return &SpeechBridge{tts: tts, stt: stt, player: player, policy: policy, voice: voice, log: log}
}

func (b *SpeechBridge) SetHooks(h SpeechHooks) {
	b.hooksMu.Lock()
	b.hooks = h
	b.hooksMu.Unlock()
}

func (b *SpeechBridge) getHooks() SpeechHooks {
	b.hooksMu.RLock()
	defer b.hooksMu.RUnlock()
	return b.hooks
}

// Speak synthesizes text and plays it in the background. Any clip already playing is
// stopped and released before this call returns.
func (b *SpeechBridge) Speak(ctx context.Context, text string) {
	ctx, release := b.slot.Begin(ctx)
	b.stopCurrent()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer release()
		b.play(ctx, text)
	}()
}

func (b *SpeechBridge) play(ctx context.Context, text string) {
	hooks := b.getHooks()
	fail := func(err error) {
		if ctx.Err() != nil {
			return
		}
		b.log.Warn().Err(err).Msg("speech playback failed")
		if hooks.OnError != nil {
			hooks.OnError(err)
		}
	}

	audio, err := retry.Do(ctx, b.policy, func(ctx context.Context, a retry.Attempt) (adapter.Audio, error) {
		return b.tts.Synthesize(ctx, adapter.SpeechRequest{Text: text, Voice: b.voice, Attempt: a.Index})
	}, retry.WithOp("text-to-speech"))
	if err != nil {
		fail(err)
		return
	}

	h, err := b.player.Load(audio)
	if err != nil {
		fail(err)
		return
	}

	b.mu.Lock()
	if ctx.Err() != nil {
		// superseded while loading; nobody else has seen h
		b.mu.Unlock()
		_ = h.Release()
		return
	}
	b.current = h
	b.mu.Unlock()

	if hooks.OnPlaybackStart != nil {
		hooks.OnPlaybackStart()
	}
	perr := h.Play(ctx)

	b.mu.Lock()
	if b.current == h {
		b.current = nil
		if rerr := h.Release(); rerr != nil {
			b.log.Debug().Err(rerr).Msg("audio release failed")
		}
	}
	b.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if perr != nil {
		fail(perr)
		return
	}
	if hooks.OnPlaybackEnd != nil {
		hooks.OnPlaybackEnd()
	}
}

func (b *SpeechBridge) stopCurrent() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return
	}
	b.current.Stop()
	if err := b.current.Release(); err != nil {
		b.log.Debug().Err(err).Msg("audio release failed")
	}
	b.current = nil
}

// Stop cancels pending synthesis and silences the live clip.
func (b *SpeechBridge) Stop() {
	b.slot.Cancel()
	b.stopCurrent()
}

// Close stops playback and waits for background work to finish.
func (b *SpeechBridge) Close() {
	b.Stop()
	b.wg.Wait()
}

// Transcribe records one utterance and returns its transcript. The capture starts now and
// ends when Done closes (explicit Stop or end of speech); canceling ctx aborts it.
// A capture can be used once; reuse yields domain.ErrCaptureConsumed.
func (b *SpeechBridge) Transcribe(ctx context.Context, capture adapter.CaptureSession) (string, error) {
	// the bridge owns the capture from here on, whatever happens
	defer func() {
		if err := capture.Close(); err != nil {
			b.log.Debug().Err(err).Msg("capture close failed")
		}
	}()
	if b.stt == nil {
		return "", domain.ErrUnsupported
	}
	if err := capture.Start(ctx); err != nil {
		return "", err
	}

	select {
	case <-ctx.Done():
		_ = capture.Stop()
		return "", ctx.Err()
	case <-capture.Done():
	}

	text, err := retry.Do(ctx, b.policy, func(ctx context.Context, a retry.Attempt) (string, error) {
		rec, err := capture.Recording()
		if err != nil {
			return "", err
		}
		return b.stt.Transcribe(ctx, rec)
	}, retry.WithOp("speech-to-text"))
	if err != nil {
		return "", err
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", domain.ErrEmptyMessage
	}
	return text, nil
}
