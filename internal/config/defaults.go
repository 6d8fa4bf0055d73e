package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"server.host": "0.0.0.0",
		"server.port": 3000,

		// redis.url, auth.token and transcriber.* are secrets: no defaults.

		"jobs.ttl":              "72h",
		"jobs.processing_delay": "150ms",
		"jobs.completion_delay": "250ms",

		"ytdlp.binary":           "yt-dlp",
		"ytdlp.download_dir":     "/tmp/mediagrab",
		"ytdlp.fallback_runtime": "deno",

		"artifacts.sweep_interval": "10m",
		"artifacts.retention":      "30m",

		"logging.level": "info",
	}

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return err
		}
	}
	return nil
}
