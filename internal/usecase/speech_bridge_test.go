package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crazeai/internal/domain"
	"crazeai/internal/infra/logging"
	"crazeai/internal/retry"
)

func speechPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, BaseTimeout: time.Second, RetryDelay: time.Millisecond}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSpeechBridge_ReplacementReleasesPreviousOnce(t *testing.T) {
	player := &fakePlayer{}
	b := NewSpeechBridge(&fakeTTS{}, nil, player, speechPolicy(), "onyx", logging.Nop())

	var starts atomic.Int32
	b.SetHooks(SpeechHooks{OnPlaybackStart: func() { starts.Add(1) }})

	b.Speak(context.Background(), "one")
	waitFor(t, func() bool { return starts.Load() == 1 })

	b.Speak(context.Background(), "two")
	waitFor(t, func() bool { return starts.Load() == 2 })

	handles := player.all()
	require.Len(t, handles, 2)
	assert.EqualValues(t, 1, handles[0].stopped.Load())
	assert.EqualValues(t, 1, handles[0].released.Load())
	assert.EqualValues(t, 0, handles[1].released.Load(), "live clip must stay loaded")

	b.Close()
	assert.EqualValues(t, 1, handles[0].released.Load())
	assert.EqualValues(t, 1, handles[1].released.Load())
}

func TestSpeechBridge_NaturalEndReleasesAndNotifies(t *testing.T) {
	player := &fakePlayer{finishAll: true}
	b := NewSpeechBridge(&fakeTTS{}, nil, player, speechPolicy(), "", logging.Nop())
	ended := make(chan struct{})
	b.SetHooks(SpeechHooks{OnPlaybackEnd: func() { close(ended) }})

	b.Speak(context.Background(), "hello")
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("OnPlaybackEnd not called")
	}
	b.Close()
	require.Len(t, player.all(), 1)
	assert.EqualValues(t, 1, player.all()[0].released.Load())
}

func TestSpeechBridge_SynthesisFailureReported(t *testing.T) {
	tts := &fakeTTS{err: &domain.ServiceError{Service: "tts", StatusCode: 500}}
	b := NewSpeechBridge(tts, nil, &fakePlayer{}, speechPolicy(), "", logging.Nop())
	errCh := make(chan error, 1)
	b.SetHooks(SpeechHooks{OnError: func(err error) { errCh <- err }})

	b.Speak(context.Background(), "hello")
	select {
	case err := <-errCh:
		assert.True(t, domain.IsService(err))
	case <-time.After(2 * time.Second):
		t.Fatal("OnError not called")
	}
	b.Close()
	assert.EqualValues(t, 1, tts.calls.Load(), "service errors are not retried")
}

func TestSpeechBridge_TranscribeOneShot(t *testing.T) {
	stt := &fakeSTT{text: "hello there"}
	b := NewSpeechBridge(nil, stt, nil, speechPolicy(), "", logging.Nop())
	capture := newFakeCapture("pcm")
	_ = capture.Stop() // end-of-speech already signaled

	text, err := b.Transcribe(context.Background(), capture)
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.EqualValues(t, 1, capture.closed.Load())

	_, err = b.Transcribe(context.Background(), capture)
	assert.ErrorIs(t, err, domain.ErrCaptureConsumed)
	assert.EqualValues(t, 2, capture.closed.Load())
}

func TestSpeechBridge_TranscribeCanceled(t *testing.T) {
	b := NewSpeechBridge(nil, &fakeSTT{text: "x"}, nil, speechPolicy(), "", logging.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Transcribe(ctx, newFakeCapture("pcm"))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSpeechBridge_TranscribeWithoutRecognizer(t *testing.T) {
	b := NewSpeechBridge(nil, nil, nil, speechPolicy(), "", logging.Nop())
	capture := newFakeCapture("")
	_, err := b.Transcribe(context.Background(), capture)
	assert.ErrorIs(t, err, domain.ErrUnsupported)
	assert.EqualValues(t, 1, capture.closed.Load())
}

func TestSpeechBridge_TranscribeClosesCaptureWhenStartFails(t *testing.T) {
	b := NewSpeechBridge(nil, &fakeSTT{text: "x"}, nil, speechPolicy(), "", logging.Nop())
	capture := newFakeCapture("")
	denied := errors.New("microphone permission denied")
	capture.startErr = denied

	_, err := b.Transcribe(context.Background(), capture)
	assert.ErrorIs(t, err, denied)
	assert.EqualValues(t, 1, capture.closed.Load(), "a capture that never started still releases the device")
}
