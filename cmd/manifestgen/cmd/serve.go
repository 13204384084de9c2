package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pbar1/ssh-benchmark/internal/api"
	"github.com/pbar1/ssh-benchmark/internal/cache"
)

func serveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the render service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var client *redis.Client
			if cfg.RedisURL != "" {
				client, err = cache.NewClient(cfg.RedisURL)
				if err != nil {
					return err
				}
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn("Redis unavailable, bundles will be rendered on every request", zap.Error(err))
				} else {
					logger.Info("Connected to Redis")
				}
			}
			bundles := cache.New(client, cfg.CacheTTL, logger)
			defer func() {
				if err := bundles.Close(); err != nil {
					logger.Error("Error closing Redis connection", zap.Error(err))
				}
			}()

			return api.NewServer(cfg, bundles, logger).Start(ctx)
		},
	}

	cmd.Flags().String("http-host", "", "listen host (default \"0.0.0.0\")")
	cmd.Flags().String("http-port", "", "listen port (default \"8080\")")
	cmd.Flags().String("redis-url", "", "Redis URL of the bundle cache (disabled when empty)")
	cmd.Flags().Duration("cache-ttl", 0, "lifetime of cached bundles (default 10m)")
	a.flagKeys["http-host"] = "httpHost"
	a.flagKeys["http-port"] = "httpPort"
	a.flagKeys["redis-url"] = "redisURL"
	a.flagKeys["cache-ttl"] = "cacheTTL"

	return cmd
}
