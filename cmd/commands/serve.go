package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/adelaroche/roam/internal/assistant"
	"github.com/adelaroche/roam/internal/config"
	"github.com/adelaroche/roam/internal/conversations"
	"github.com/adelaroche/roam/internal/events"
	"github.com/adelaroche/roam/internal/followup"
	"github.com/adelaroche/roam/internal/gateway"
	"github.com/adelaroche/roam/internal/generator"
	"github.com/adelaroche/roam/internal/heartbeat"
	"github.com/adelaroche/roam/internal/scheduler"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Roam daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(_ context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg := loadConfig(cmd)

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = int(cmd.Int("port"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	store, err := conversations.NewSQLiteStore(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Shutdown()

	registry := generator.NewRegistry(cfg.Models)
	chatModel, err := registry.Default(ctx)
	if err != nil {
		return fmt.Errorf("init default model: %w", err)
	}
	gen := generator.New(chatModel)

	sched := scheduler.New(scheduler.Config{
		Store: scheduler.NewEntryStore(filepath.Join(config.RoamPath(), "deferred")),
		Bus:   bus,
	})

	locks := conversations.NewLocks()
	workflow := followup.New(followup.Config{
		Store:      store,
		Locks:      locks,
		Deferrer:   sched,
		Generator:  gen,
		Bus:        bus,
		Delay:      cfg.FollowUp.Delay.Duration(),
		RetryDelay: cfg.FollowUp.RetryDelay.Duration(),
		MaxRetries: cfg.FollowUp.MaxRetries,
	})
	sched.Register(followup.HandlerName, followup.NewRunner(workflow).Handle)

	sched.Start()
	defer sched.Stop()

	asst := assistant.New(assistant.Config{
		Store:     store,
		Locks:     locks,
		Generator: gen,
		Workflow:  workflow,
		Bus:       bus,
	})

	server := gateway.NewServer(bus, store, asst, sched, cfg.Gateway.Host, cfg.Gateway.Port)

	hb := heartbeat.NewWriter(
		filepath.Join(config.RoamPath(), "heartbeat.json"),
		fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
	)
	hb.Start()
	defer hb.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
