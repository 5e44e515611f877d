package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"aispam/internal/classifier"
)

const envPrefix = "AISPAM_"

var defaults = map[string]any{
	"server.port":         ":8080",
	"thresholds.user":     0.75,
	"thresholds.resource": 0.75,
	"log.level":           "info",
	"log.format":          "text",
}

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Queue      QueueConfig      `koanf:"queue"`
	Log        LogConfig        `koanf:"log"`
	Classify   ClassifyConfig   `koanf:"classify"`
	Thresholds ThresholdConfig  `koanf:"thresholds"`
	Strategies []StrategyConfig `koanf:"strategies"`
}

type ServerConfig struct {
	Port string `koanf:"port"`
}

type QueueConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	GroupID string   `koanf:"group_id"`
	// ResultsTopic receives one verdict event per record. Empty disables publishing.
	ResultsTopic string `koanf:"results_topic"`
}

type ClassifyConfig struct {
	// MaxConcurrency bounds strategies in flight per record, 0 means all at once.
	MaxConcurrency int `koanf:"max_concurrency"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ThresholdConfig holds the score above which content is reported as spam.
// User applies to the third_party_user strategy, Resource to every other one.
type ThresholdConfig struct {
	User     float64 `koanf:"user"`
	Resource float64 `koanf:"resource"`
}

type StrategyConfig struct {
	Name      string `koanf:"name"`
	Protocol  string `koanf:"protocol"`
	Endpoint  string `koanf:"endpoint"`
	Secret    string `koanf:"secret"`
	SecretEnv string `koanf:"secret_env"`
	// Policy overrides the protocol default, "degrade" or "propagate".
	Policy string `koanf:"policy"`

	Model           string  `koanf:"model"`
	SystemMessage   string  `koanf:"system_message"`
	MaxTokens       int     `koanf:"max_tokens"`
	Temperature     float64 `koanf:"temperature"`
	TopP            float64 `koanf:"top_p"`
	PresencePenalty float64 `koanf:"presence_penalty"`
	Stream          bool    `koanf:"stream"`
}

// Load reads the YAML file at path, then applies AISPAM_SECTION_KEY
// environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("default %s: %w", key, err)
		}
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.resolveSecrets()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envKey maps AISPAM_QUEUE_GROUP_ID to queue.group_id.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
}

func (c *Config) resolveSecrets() {
	for i := range c.Strategies {
		s := &c.Strategies[i]
		if s.Secret == "" && s.SecretEnv != "" {
			s.Secret = os.Getenv(s.SecretEnv)
		}
	}
}

func (c *Config) Validate() error {
	if len(c.Strategies) == 0 {
		return errors.New("config: at least one strategy is required")
	}

	seen := make(map[string]bool, len(c.Strategies))
	for i, s := range c.Strategies {
		if s.Name == "" {
			return fmt.Errorf("config: strategies[%d]: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("config: duplicate strategy %q", s.Name)
		}
		seen[s.Name] = true

		switch s.Protocol {
		case "openai", "scaleway":
		default:
			return fmt.Errorf("config: strategy %q: unknown protocol %q", s.Name, s.Protocol)
		}

		u, err := url.Parse(s.Endpoint)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("config: strategy %q: endpoint must be an https URL", s.Name)
		}

		if s.Policy != "" {
			if _, err := classifier.ParsePolicy(s.Policy); err != nil {
				return fmt.Errorf("config: strategy %q: %w", s.Name, err)
			}
		}
	}

	for name, v := range map[string]float64{"user": c.Thresholds.User, "resource": c.Thresholds.Resource} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config: thresholds.%s must be within [0, 1], got %v", name, v)
		}
	}
	if c.Classify.MaxConcurrency < 0 {
		return errors.New("config: classify.max_concurrency must not be negative")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func (s StrategyConfig) ProviderConfig() classifier.ProviderConfig {
	return classifier.ProviderConfig{
		Endpoint:        s.Endpoint,
		Secret:          s.Secret,
		Model:           s.Model,
		SystemMessage:   s.SystemMessage,
		MaxTokens:       s.MaxTokens,
		Temperature:     s.Temperature,
		TopP:            s.TopP,
		PresencePenalty: s.PresencePenalty,
		Stream:          s.Stream,
	}
}

// Logger builds the process logger described by the log section.
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log level: %w", err)
	}
	return level, nil
}

// Path is the config file location, AISPAM_CONFIG or config.yaml.
func Path() string {
	if p := os.Getenv(envPrefix + "CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}
