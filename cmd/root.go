package cmd

import (
	"github.com/urfave/cli/v3"
)

var version = "dev"

func App() *cli.Command {
	return &cli.Command{
		Name:    "mediagrab",
		Version: version,
		Usage:   "Media download and transcription API — yt-dlp extraction with Redis-backed transcript jobs.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("MEDIAGRAB_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("MG_LOGGING_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
		},
	}
}
