// Command demo is a terminal client for CrazeAI: it keeps the learned name on disk,
// retries timed-out turns and can speak replies or send a recorded clip as a voice turn.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"crazeai/internal/config"
	"crazeai/internal/domain/model"
	"crazeai/internal/domain/ports/adapter"
	"crazeai/internal/infra/adapters/ai"
	"crazeai/internal/infra/adapters/crazeapi"
	"crazeai/internal/infra/audio"
	"crazeai/internal/infra/i18n"
	"crazeai/internal/infra/logging"
	"crazeai/internal/infra/memory"
	"crazeai/internal/infra/security"
	"crazeai/internal/retry"
	"crazeai/internal/usecase"
)

const help = `commands: /retry  /reset  /forget  /voice <file>  /quit`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	local := flag.Bool("local", false, "answer in-process with the noop model instead of calling a server")
	speak := flag.Bool("speak", false, "play replies through a local audio player")
	flag.Parse()

	_ = godotenv.Load()
	// client-only runs never need a provider key
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg.Log.Format = "console"
	logger := logging.New(cfg.Log, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conv, err := build(ctx, cfg, *local, *speak, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("demo setup failed")
	}
	defer conv.Close()

	if err := loop(ctx, conv, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("demo stopped")
	}
}

func build(ctx context.Context, cfg *config.Config, local, speak bool, logger *zerolog.Logger) (*usecase.Conversation, error) {
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Persona.Locale)
	if err != nil {
		return nil, err
	}
	prompts := usecase.NewPromptBuilder(tr)

	path := cfg.Client.StorePath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		path = filepath.Join(dir, "crazeai", "state.json")
	}
	var storeOpts []memory.FileOption
	if cfg.Client.StoreKey != "" {
		sealer, err := security.NewSealer(cfg.Client.StoreKey)
		if err != nil {
			return nil, err
		}
		storeOpts = append(storeOpts, memory.WithSealer(sealer))
	}
	kv, err := memory.NewFileStore(path, storeOpts...)
	if err != nil {
		return nil, err
	}
	store := usecase.NewSessionStore(kv, prompts, logger)
	if err := store.Load(ctx); err != nil {
		return nil, err
	}

	chatPolicy := retry.FromConfig(cfg.Client.Chat, cfg.Client.Device)
	speechPolicy := retry.FromConfig(cfg.Client.Speech, cfg.Client.Device)

	var (
		chat   adapter.ChatService
		source adapter.CapabilitySource
		tts    adapter.SpeechSynthesizer
		stt    adapter.Transcriber
	)
	if local {
		chat = usecase.InProcess(usecase.NewChatUseCase(ai.NewNoopAIAdapter(logger), prompts, cfg.AI.UpstreamTimeout, logger, true))
	} else {
		client, err := crazeapi.New(cfg.Client.BaseURL, nil)
		if err != nil {
			return nil, err
		}
		chat, source, tts, stt = client, client, client, client
	}

	caps, err := usecase.NewCapabilityCache(source).Detect(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("capability check failed; voice features off")
	}

	var bridge *usecase.SpeechBridge
	if caps.CanSynthesizeSpeech || caps.CanRecognizeSpeech {
		var player adapter.AudioPlayer
		if speak {
			p, err := audio.DetectPlayer()
			if err != nil {
				logger.Warn().Err(err).Msg("no audio player; replies stay text-only")
			} else {
				player = p
			}
		}
		if player == nil {
			caps.CanSynthesizeSpeech = false
		}
		bridge = usecase.NewSpeechBridge(tts, stt, player, speechPolicy, cfg.Speech.Voice, logger)
	}

	conv := usecase.NewConversation(usecase.ConversationDeps{
		Store:        store,
		Chat:         chat,
		Speech:       bridge,
		Prompts:      prompts,
		Policy:       chatPolicy,
		Capabilities: caps,
		Log:          logger,
		Diagnostic: &model.DiagnosticInfo{
			IsMobile:    retry.DeviceClass(cfg.Client.Device) == retry.DeviceMobile,
			BrowserName: "crazeai-demo/" + runtime.GOOS,
		},
	})
	conv.SpeakReplies = speak
	conv.Voice().OnTransition(func(t model.Transition) {
		logger.Debug().Str("from", string(t.From)).Str("event", string(t.Event)).Str("to", string(t.To)).Msg("voice")
	})
	return conv, nil
}

func loop(ctx context.Context, conv *usecase.Conversation, in io.Reader, out io.Writer) error {
	snap := conv.Snapshot()
	for _, m := range snap.Messages {
		printMessage(out, m)
	}
	fmt.Fprintln(out, help)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		fmt.Fprint(out, "> ")
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}

		var err error
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/reset":
			conv.Reset()
		case line == "/forget":
			err = conv.ForgetName(ctx)
		case line == "/retry":
			_, err = conv.Retry(ctx)
		case strings.HasPrefix(line, "/voice "):
			err = voiceTurn(ctx, conv, strings.TrimSpace(strings.TrimPrefix(line, "/voice ")))
		default:
			_, err = conv.Submit(ctx, line)
		}
		if err != nil && !errors.Is(err, retry.ErrSuperseded) {
			fmt.Fprintf(out, "(%v)\n", err)
		}
		printTail(out, conv)
	}
}

// voiceTurn replays a recorded clip through a capture session as if it had been spoken.
func voiceTurn(ctx context.Context, conv *usecase.Conversation, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	capture := audio.NewBufferCapture(filepath.Base(file), "", audio.WithMaxDuration(time.Minute))
	go func() {
		select {
		case <-capture.Started():
		case <-capture.Done():
			return
		case <-ctx.Done():
			return
		}
		if _, err := capture.Write(data); err == nil {
			capture.EndOfSpeech()
		}
	}()
	_, err = conv.SubmitVoice(ctx, capture)
	return err
}

func printTail(out io.Writer, conv *usecase.Conversation) {
	snap := conv.Snapshot()
	if n := len(snap.Messages); n > 0 && !snap.Messages[n-1].IsUser {
		printMessage(out, snap.Messages[n-1])
	}
}

func printMessage(out io.Writer, m model.ChatMessage) {
	who := "craze"
	if m.IsUser {
		who = "you"
	}
	fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Format("15:04"), who, m.Text)
}
