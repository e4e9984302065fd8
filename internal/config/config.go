// Package config loads the defaults of the httpc command from, in rising
// priority, built-in values, an optional YAML file, HTTPC_ environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/nspteam/httpclient/client"
)

// EnvPrefix marks the environment variables read by [Load]. A double
// underscore separates nesting levels: HTTPC_THROTTLE__RPS sets throttle.rps.
const EnvPrefix = "HTTPC_"

// Config holds the request defaults of the httpc command.
type Config struct {
	Headers           map[string]string `koanf:"headers"`
	Cookies           map[string]string `koanf:"cookies"`
	Retry             int               `koanf:"retry" validate:"gte=0"`
	Timeout           time.Duration     `koanf:"timeout" validate:"gt=0"`
	ConnectTimeout    time.Duration     `koanf:"connect_timeout" validate:"gt=0"`
	UserAgent         string            `koanf:"user_agent"`
	NoFollowRedirects bool              `koanf:"no_follow_redirects"`
	DownloadConfig    bool              `koanf:"download_config"`
	Trace             bool              `koanf:"trace"`
	Throttle          ThrottleConfig    `koanf:"throttle"`
	Log               LogConfig         `koanf:"log"`
}

// ThrottleConfig enables per-host rate limiting when RPS is positive.
type ThrottleConfig struct {
	RPS   int `koanf:"rps" validate:"gte=0"`
	Burst int `koanf:"burst" validate:"gte=0"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// flagKeys maps command-line flags onto configuration keys. Flags not
// listed here are not configuration.
var flagKeys = map[string]string{
	"retry":           "retry",
	"timeout":         "timeout",
	"connect-timeout": "connect_timeout",
	"user-agent":      "user_agent",
	"no-follow":       "no_follow_redirects",
	"download-config": "download_config",
	"trace":           "trace",
	"rps":             "throttle.rps",
	"burst":           "throttle.burst",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

var validate = validator.New()

// Load builds the configuration. path names an optional YAML file; flags,
// when not nil, contribute every flag the user set.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"retry":               0,
		"timeout":             "5s",
		"connect_timeout":     "1s",
		"user_agent":          "httpc/1.0",
		"no_follow_redirects": false,
		"download_config":     false,
		"trace":               false,
		"throttle.rps":        0,
		"throttle.burst":      1,
		"log.level":           "warn",
		"log.format":          "text",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// Logger returns a logger writing to w as configured.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ClientOptions translates the configuration into transport options.
func (c *Config) ClientOptions(logger *slog.Logger) ([]client.Option, error) {
	if logger == nil {
		return nil, errors.New("logger must not be nil")
	}

	opts := []client.Option{client.WithLogger(logger)}
	if c.UserAgent != "" {
		opts = append(opts, client.WithUserAgent(c.UserAgent))
	}
	if c.NoFollowRedirects {
		opts = append(opts, client.WithNoFollowRedirects())
	}
	if c.Throttle.RPS > 0 {
		opts = append(opts, client.WithThrottle(c.Throttle.RPS, max(c.Throttle.Burst, 1)))
	}

	return opts, nil
}
