package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/desertthunder/crate/internal/events"
	"github.com/desertthunder/crate/internal/library"
	"github.com/desertthunder/crate/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until interrupted.
//
// Committed changes go to the websocket hub directly, or through Redis when events.redis_url is set so that
// every instance sharing the channel relays them to its own clients.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := r.config
	serverCfg := cfg.Server
	if host := cmd.String("host"); host != "" {
		serverCfg.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		serverCfg.Port = port
	}

	hub := events.NewHub(r.logger)

	var publisher events.Publisher = hub
	if url := cfg.Events.RedisURL; url != "" {
		rdb, err := events.DialRedis(ctx, url)
		if err != nil {
			return err
		}
		defer rdb.Close()

		redisPublisher := events.NewRedisPublisher(rdb, cfg.Events.Channel, r.logger)
		if _, err := redisPublisher.Subscribe(ctx, hub); err != nil {
			return err
		}
		publisher = redisPublisher
		r.logger.Info("relaying events through redis", "channel", redisPublisher.Channel())
	}

	lib, db, err := r.openLibrary(library.WithPublisher(publisher))
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Library.SweepOnStart {
		report, err := lib.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("failed to sweep songs directory: %w", err)
		}
		r.logger.Info("swept songs directory", "adopted", len(report.Adopted), "dropped", len(report.Dropped))
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	if cfg.Library.Watch && !cmd.Bool("no-watch") {
		watcher, err := library.NewWatcher(lib, library.DefaultSettle)
		if err != nil {
			stop()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Run(ctx); err != nil {
				r.logger.Error("watcher stopped", "error", err)
			}
		}()
	}

	router := server.NewRouter(lib, server.Options{
		MaxUploadBytes: serverCfg.MaxUploadMB << 20,
		UploadRate:     serverCfg.UploadRate,
		Events:         hub,
		Logger:         r.logger,
	})

	err = server.NewServer(serverCfg.Addr(), router, r.logger).Run(ctx)
	stop()
	return err
}
