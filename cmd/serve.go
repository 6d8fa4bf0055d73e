package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"mediagrab/internal/config"
	"mediagrab/internal/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL",
				Sources: cli.EnvVars("MG_REDIS_URL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if v := cmd.String("redis-url"); v != "" {
				cfg.Redis.URL = v
			}
			if cmd.IsSet("log-level") {
				cfg.Logging.Level = cmd.String("log-level")
			}

			return server.Run(ctx, cfg)
		},
	}
}
