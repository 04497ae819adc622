// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	RequestTimeout  time.Duration `yaml:"request_timeout"` // whole-request ceiling applied by middleware
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL           string `yaml:"url"` // optional; enables the exchange log
	RetentionDays int    `yaml:"retention_days"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // optional; enables name mirror + rate limiting
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	Provider        string        `yaml:"provider"` // openai | gemini | anthropic | noop
	OpenAIKey       string        `yaml:"openai_key"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiURL       string        `yaml:"gemini_url"`
	AnthropicKey    string        `yaml:"anthropic_key"`
	DefaultModel    string        `yaml:"default_model"`
	MaxTokens       int           `yaml:"max_tokens"`
	Temperature     float64       `yaml:"temperature"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
}

type SpeechConfig struct {
	Enabled          bool          `yaml:"enabled"`
	TTSModel         string        `yaml:"tts_model"`
	Voice            string        `yaml:"voice"`
	Format           string        `yaml:"format"`
	STTModel         string        `yaml:"stt_model"`
	TTSTimeout       time.Duration `yaml:"tts_timeout"`
	TTSTimeoutGrowth time.Duration `yaml:"tts_timeout_growth"` // per retryAttempt
	TTSLengthBonus   time.Duration `yaml:"tts_length_bonus"`   // per character of input
	TTSLengthMax     time.Duration `yaml:"tts_length_max"`     // cap on the length bonus
	STTTimeout       time.Duration `yaml:"stt_timeout"`
	Speed            float64       `yaml:"speed"`
	Language         string        `yaml:"language"` // transcription language hint
}

// RetryConfig mirrors retry.Policy for one operation class.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseTimeout       time.Duration `yaml:"base_timeout"`
	MobileBaseTimeout time.Duration `yaml:"mobile_base_timeout"`
	TimeoutIncrement  time.Duration `yaml:"timeout_increment"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
}

type ClientConfig struct {
	BaseURL   string      `yaml:"base_url"`
	Device    string      `yaml:"device"` // desktop | mobile
	StorePath string      `yaml:"store_path"`
	StoreKey  string      `yaml:"store_key"` // optional; encrypts the saved conversation
	Chat      RetryConfig `yaml:"chat"`
	Speech    RetryConfig `yaml:"speech"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type SecurityConfig struct {
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SecureCookie  bool          `yaml:"secure_cookie"`
}

type PersonaConfig struct {
	Locale string `yaml:"locale"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Speech    SpeechConfig    `yaml:"speech"`
	Client    ClientConfig    `yaml:"client"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Security  SecurityConfig  `yaml:"security"`
	Persona   PersonaConfig   `yaml:"persona"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (a missing file is fine: defaults and env still apply).
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes raw YAML and applies defaults; used by tests and tooling.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	setFromEnv(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	setFromEnv(&cfg.AI.AnthropicKey, "ANTHROPIC_API_KEY")
	setFromEnv(&cfg.Redis.URL, "REDIS_URL")
	setFromEnv(&cfg.Database.URL, "DATABASE_URL")
	setFromEnv(&cfg.Security.SessionSecret, "SESSION_SECRET")
	setFromEnv(&cfg.Client.BaseURL, "CRAZEAI_URL")
	setFromEnv(&cfg.Client.StoreKey, "CRAZEAI_STORE_KEY")
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 150 * time.Second
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = 10 << 20
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.RetentionDays <= 0 {
		cfg.Database.RetentionDays = 30
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = detectProvider(cfg.AI)
	}
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if cfg.AI.DefaultModel == "" {
		switch cfg.AI.Provider {
		case "gemini":
			cfg.AI.DefaultModel = "gemini-2.0-flash"
		case "anthropic":
			cfg.AI.DefaultModel = "claude-3-5-haiku-latest"
		default:
			cfg.AI.DefaultModel = "gpt-4o-mini"
		}
	}
	if cfg.AI.MaxTokens <= 0 {
		cfg.AI.MaxTokens = 160
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.8
	}
	if cfg.AI.UpstreamTimeout <= 0 {
		cfg.AI.UpstreamTimeout = 25 * time.Second
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}

	if cfg.Speech.TTSModel == "" {
		cfg.Speech.TTSModel = "tts-1"
	}
	if cfg.Speech.Voice == "" {
		cfg.Speech.Voice = "onyx"
	}
	if cfg.Speech.Format == "" {
		cfg.Speech.Format = "mp3"
	}
	if cfg.Speech.STTModel == "" {
		cfg.Speech.STTModel = "whisper-1"
	}
	if cfg.Speech.TTSTimeout <= 0 {
		cfg.Speech.TTSTimeout = 60 * time.Second
	}
	// negative values switch the growth terms off
	if cfg.Speech.TTSTimeoutGrowth < 0 {
		cfg.Speech.TTSTimeoutGrowth = 0
	} else if cfg.Speech.TTSTimeoutGrowth == 0 {
		cfg.Speech.TTSTimeoutGrowth = 30 * time.Second
	}
	if cfg.Speech.TTSLengthBonus < 0 {
		cfg.Speech.TTSLengthBonus = 0
	} else if cfg.Speech.TTSLengthBonus == 0 {
		cfg.Speech.TTSLengthBonus = 100 * time.Millisecond
	}
	if cfg.Speech.TTSLengthMax <= 0 {
		cfg.Speech.TTSLengthMax = 30 * time.Second
	}
	if cfg.Speech.Speed <= 0 {
		cfg.Speech.Speed = 0.92
	}
	if cfg.Speech.Language == "" {
		cfg.Speech.Language = "en"
	}
	if cfg.Speech.STTTimeout <= 0 {
		cfg.Speech.STTTimeout = 30 * time.Second
	}

	if cfg.Client.BaseURL == "" {
		cfg.Client.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.Client.Device == "" {
		cfg.Client.Device = "desktop"
	}
	cfg.Client.Chat = withRetryDefaults(cfg.Client.Chat, RetryConfig{
		MaxAttempts:       3,
		BaseTimeout:       20 * time.Second,
		MobileBaseTimeout: 15 * time.Second,
		TimeoutIncrement:  5 * time.Second,
		RetryDelay:        1500 * time.Millisecond,
	})
	cfg.Client.Speech = withRetryDefaults(cfg.Client.Speech, RetryConfig{
		MaxAttempts:       2,
		BaseTimeout:       15 * time.Second,
		MobileBaseTimeout: 15 * time.Second,
		TimeoutIncrement:  0,
		RetryDelay:        1500 * time.Millisecond,
	})

	if cfg.RateLimit.Requests <= 0 {
		cfg.RateLimit.Requests = 30
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.Security.SessionTTL <= 0 {
		cfg.Security.SessionTTL = 30 * 24 * time.Hour
	}
	if cfg.Persona.Locale == "" {
		cfg.Persona.Locale = "en"
	}
}

func withRetryDefaults(rc, def RetryConfig) RetryConfig {
	if rc.MaxAttempts <= 0 {
		rc.MaxAttempts = def.MaxAttempts
	}
	if rc.BaseTimeout <= 0 {
		rc.BaseTimeout = def.BaseTimeout
	}
	if rc.MobileBaseTimeout <= 0 {
		rc.MobileBaseTimeout = def.MobileBaseTimeout
	}
	// A negative increment explicitly disables timeout growth.
	if rc.TimeoutIncrement < 0 {
		rc.TimeoutIncrement = 0
	} else if rc.TimeoutIncrement == 0 {
		rc.TimeoutIncrement = def.TimeoutIncrement
	}
	if rc.RetryDelay <= 0 {
		rc.RetryDelay = def.RetryDelay
	}
	return rc
}

func detectProvider(ai AIConfig) string {
	switch {
	case ai.OpenAIKey != "":
		return "openai"
	case ai.GeminiKey != "":
		return "gemini"
	case ai.AnthropicKey != "":
		return "anthropic"
	default:
		return "noop"
	}
}

// Validate checks the provider selection has the key it needs.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "openai":
		if c.AI.OpenAIKey == "" {
			return errors.New("ai.openai_key is required for provider openai")
		}
	case "gemini":
		if c.AI.GeminiKey == "" {
			return errors.New("ai.gemini_key is required for provider gemini")
		}
	case "anthropic":
		if c.AI.AnthropicKey == "" {
			return errors.New("ai.anthropic_key is required for provider anthropic")
		}
	case "noop":
		if !c.Runtime.Dev {
			return errors.New("no AI provider configured: set ai.openai_key, ai.gemini_key or ai.anthropic_key (or run with -dev)")
		}
	default:
		return fmt.Errorf("unknown ai.provider %q", c.AI.Provider)
	}
	if c.Client.Device != "desktop" && c.Client.Device != "mobile" {
		return fmt.Errorf("client.device must be desktop or mobile, got %q", c.Client.Device)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * 24 * time.Hour
	}
	return d
}
