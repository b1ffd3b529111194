package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"birthdaybot/announce"
	"birthdaybot/bot"
	"birthdaybot/commands"
	"birthdaybot/config"
	"birthdaybot/dal"
	"birthdaybot/delivery"
	"birthdaybot/httpserver"
	"birthdaybot/logging"
	"birthdaybot/metrics"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and start announcing birthdays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("token", "", "bot access token")
	cmd.Flags().String("http-addr", ":8080", "health and metrics listen address, empty to disable")

	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Discord.Token == "" {
		return errors.New("DISCORD_TOKEN or --token must be provided")
	}

	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	backend, err := openBackend(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	store, err := dal.Open(ctx, backend, logger, dal.WithObserver(m))
	if err != nil {
		return err
	}

	b, err := bot.New(cfg.Discord.Token, logger)
	if err != nil {
		return err
	}

	queue := delivery.NewQueue(b, delivery.Config{
		Workers:    cfg.Delivery.Workers,
		MaxRetries: cfg.Delivery.Retries,
		RetryDelay: cfg.Delivery.RetryDelay,
		Logger:     logger,
		Observer:   m,
	})
	queue.Start(ctx)
	defer queue.Stop()

	scheduler := announce.New(store, queue, logger, announce.WithWakeOffset(cfg.Announce.WakeOffset))
	router := commands.NewRouter(store, b, scheduler, logger, commands.WithObserver(m))
	b.SetHandler(router)
	b.OnReady(func() { go scheduler.Run(ctx) })

	if cfg.HTTP.Addr != "" {
		srv := httpserver.New(cfg.HTTP.Addr, httpserver.NewRouter(b.Ready, m.Handler(), logger), logger)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("http server failed", zap.Error(err))
			}
		}()
	}

	if err := b.Open(); err != nil {
		return err
	}
	defer b.Close()

	logger.Info("birthdaybot running",
		zap.String("env", cfg.Env),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("guild", cfg.Discord.Guild))

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
