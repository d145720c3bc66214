package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/njoerd114/medtrack/internal/config"
	"github.com/njoerd114/medtrack/internal/server"
	"github.com/njoerd114/medtrack/internal/telemetry"
)

func newServeCmd(g *globals) *cobra.Command {
	var (
		addr      string
		storage   string
		dataFile  string
		redisAddr string
		redisKey  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MedTrack backend",
		Long:  "Serve GET/POST /api/data from a JSON file or a Redis key. Flags override the server block of the config file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := g.newLogger(cmd.ErrOrStderr(), slog.LevelInfo)
			if err != nil {
				return err
			}
			cfg, _, err := g.loadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			sc := cfg.Server
			flags := cmd.Flags()
			if flags.Changed("addr") {
				sc.Addr = addr
			}
			if flags.Changed("storage") {
				sc.Storage = storage
			}
			if flags.Changed("data-file") {
				sc.DataFile = dataFile
			}
			if flags.Changed("redis-addr") {
				sc.RedisAddr = redisAddr
			}
			if flags.Changed("redis-key") {
				sc.RedisKey = redisKey
			}

			return runServe(cmd.Context(), cfg, sc, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultServerAddr, "listen address")
	cmd.Flags().StringVar(&storage, "storage", config.StorageFile, "document store (file|redis)")
	cmd.Flags().StringVar(&dataFile, "data-file", config.DefaultDataFile, "JSON document for the file store")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis host:port for the redis store")
	cmd.Flags().StringVar(&redisKey, "redis-key", config.DefaultRedisKey, "Redis key holding the document")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, sc config.ServerConfig, logger *slog.Logger) error {
	if tc, ok := telemetry.FromConfig(cfg.Telemetry, Version, "server"); ok {
		shutdown, err := telemetry.Setup(ctx, tc)
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger.Info("telemetry enabled", "endpoint", tc.OTLPEndpoint)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
				defer cancel()
				if err := shutdown(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			}()
		}
	}

	store, err := openDataStore(ctx, sc)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing data store", "error", err)
		}
	}()

	logger.Info("backend starting", "addr", sc.Addr, "storage", sc.Storage)
	srv := server.New(store, server.Options{CORSOrigins: sc.CORSOrigins, Version: Version}, logger)
	if err := srv.Run(ctx, sc.Addr); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func openDataStore(ctx context.Context, sc config.ServerConfig) (server.DataStore, error) {
	switch sc.Storage {
	case "", config.StorageFile:
		path := sc.DataFile
		if path == "" {
			path = config.DefaultDataFile
		}
		fst, err := server.NewFileStore(path)
		if err != nil {
			return nil, fmt.Errorf("opening data file: %w", err)
		}
		return fst, nil
	case config.StorageRedis:
		if sc.RedisAddr == "" {
			return nil, fmt.Errorf("--redis-addr is required with --storage redis")
		}
		key := sc.RedisKey
		if key == "" {
			key = config.DefaultRedisKey
		}
		rs, err := server.NewRedisStore(ctx, sc.RedisAddr, key)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown storage %q (want %s or %s)", sc.Storage, config.StorageFile, config.StorageRedis)
	}
}
