package usecase

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"crazeai/internal/domain"
	"crazeai/internal/domain/model"
	"crazeai/internal/domain/ports/adapter"
	"crazeai/internal/infra/logging"
)

// SpeechUseCase serves /text-to-speech and /speech-to-text. Either side may be nil when
// the provider cannot serve it.
type SpeechUseCase struct {
	tts adapter.SpeechSynthesizer
	stt adapter.Transcriber

	voice         string
	ttsTimeout    time.Duration
	ttsGrowth     time.Duration
	lengthBonus   time.Duration
	lengthMax     time.Duration
	sttTimeout    time.Duration
	maxTextLength int
	log           *zerolog.Logger
}

type SpeechSettings struct {
	Voice         string
	TTSTimeout    time.Duration
	TTSGrowth     time.Duration
	// LengthBonus is added per rune of input, capped at LengthBonusMax.
	LengthBonus    time.Duration
	LengthBonusMax time.Duration
	STTTimeout     time.Duration
	MaxTextLength int
}

func NewSpeechUseCase(tts adapter.SpeechSynthesizer, stt adapter.Transcriber, s SpeechSettings, log *zerolog.Logger) *SpeechUseCase {
	if s.TTSTimeout <= 0 {
		s.TTSTimeout = 20 * time.Second
	}
	if s.TTSGrowth < 0 {
		s.TTSGrowth = 0
	}
	if s.LengthBonus < 0 {
		s.LengthBonus = 0
	}
	if s.LengthBonusMax < 0 {
		s.LengthBonusMax = 0
	}
	if s.STTTimeout <= 0 {
		s.STTTimeout = 30 * time.Second
	}
	if s.MaxTextLength <= 0 {
		s.MaxTextLength = 4096
	}
	return &SpeechUseCase{
		tts: tts, stt: stt,
		voice: s.Voice, ttsTimeout: s.TTSTimeout, ttsGrowth: s.TTSGrowth,
		lengthBonus: s.LengthBonus, lengthMax: s.LengthBonusMax, sttTimeout: s.STTTimeout,
		maxTextLength: s.MaxTextLength, log: log,
	}
}

// SynthesisTimeout widens the upstream deadline with the client's retry index and
// with the length of the text to speak.
func (s *SpeechUseCase) SynthesisTimeout(attempt int, text string) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	bonus := time.Duration(utf8.RuneCountInString(text)) * s.lengthBonus
	if bonus > s.lengthMax {
		bonus = s.lengthMax
	}
	return s.ttsTimeout + time.Duration(attempt)*s.ttsGrowth + bonus
}

func (s *SpeechUseCase) Synthesize(ctx context.Context, req adapter.SpeechRequest) (adapter.Audio, error) {
	if s.tts == nil {
		return adapter.Audio{}, domain.ErrUnsupported
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return adapter.Audio{}, &domain.ValidationError{Field: "text", Reason: "required"}
	}
	if len([]rune(req.Text)) > s.maxTextLength {
		return adapter.Audio{}, &domain.ValidationError{Field: "text", Reason: "too long"}
	}
	if req.Voice == "" {
		req.Voice = s.voice
	}

	timeout := s.SynthesisTimeout(req.Attempt, req.Text)
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	audio, err := s.tts.Synthesize(cctx, req)
	if err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			err = asTimeout(err, "text-to-speech", timeout, req.Attempt+1)
		}
		logging.With(ctx, s.log).Error().Err(err).Int("attempt", req.Attempt).Msg("synthesis failed")
		return adapter.Audio{}, err
	}
	if len(audio.Data) == 0 {
		return adapter.Audio{}, &domain.ServiceError{Service: "text-to-speech", Detail: "empty audio"}
	}
	if audio.ContentType == "" {
		audio.ContentType = "audio/mpeg"
	}
	return audio, nil
}

func (s *SpeechUseCase) Transcribe(ctx context.Context, req adapter.TranscriptionRequest) (string, error) {
	if s.stt == nil {
		return "", domain.ErrUnsupported
	}
	if req.Audio == nil {
		return "", domain.ErrNoAudio
	}
	cctx, cancel := context.WithTimeout(ctx, s.sttTimeout)
	defer cancel()

	text, err := s.stt.Transcribe(cctx, req)
	if err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			err = asTimeout(err, "speech-to-text", s.sttTimeout, 1)
		}
		logging.With(ctx, s.log).Error().Err(err).Msg("transcription failed")
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Capabilities reports which speech directions are configured.
func (s *SpeechUseCase) Capabilities(context.Context) (model.Capabilities, error) {
	return model.Capabilities{
		CanRecognizeSpeech:  s.stt != nil,
		CanSynthesizeSpeech: s.tts != nil,
	}, nil
}

// asTimeout replaces an expired upstream call's error with a TimeoutError carrying
// the deadline that was actually applied. The adapter's own cause is kept.
func asTimeout(err error, op string, timeout time.Duration, attempts int) error {
	var inner *domain.TimeoutError
	if errors.As(err, &inner) {
		err = inner.Err
	}
	return &domain.TimeoutError{Op: op, Timeout: timeout, Attempts: attempts, Err: err}
}
