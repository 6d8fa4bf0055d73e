package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Redis       RedisConfig       `koanf:"redis"`
	Auth        AuthConfig        `koanf:"auth"`
	Jobs        JobsConfig        `koanf:"jobs"`
	YtDlp       YtDlpConfig       `koanf:"ytdlp"`
	Artifacts   ArtifactsConfig   `koanf:"artifacts"`
	Transcriber TranscriberConfig `koanf:"transcriber"`
	Logging     LoggingConfig     `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type RedisConfig struct {
	URL string `koanf:"url"`
}

type AuthConfig struct {
	// Token is the shared secret for authenticated routes. No default:
	// unset means every authenticated request is rejected.
	Token string `koanf:"token"`
}

type JobsConfig struct {
	TTL             string `koanf:"ttl"`
	ProcessingDelay string `koanf:"processing_delay"`
	CompletionDelay string `koanf:"completion_delay"`
}

type YtDlpConfig struct {
	Binary          string `koanf:"binary"`
	DownloadDir     string `koanf:"download_dir"`
	FallbackRuntime string `koanf:"fallback_runtime"`
}

type ArtifactsConfig struct {
	SweepInterval string `koanf:"sweep_interval"`
	Retention     string `koanf:"retention"`
}

type TranscriberConfig struct {
	URL    string `koanf:"url"`
	APIKey string `koanf:"api_key"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

// Load reads config from a TOML file (if provided) then overlays env vars.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// Env vars: MG_SERVER_PORT -> server.port. Empty values are skipped so
	// they never clobber file-provided settings.
	if err := k.Load(env.ProviderWithValue("MG_", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		mapped := strings.Replace(
			strings.ToLower(strings.TrimPrefix(key, "MG_")),
			"_", ".", 1,
		)
		return mapped, value
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Duration parses s, falling back to def on empty or malformed input.
func Duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
