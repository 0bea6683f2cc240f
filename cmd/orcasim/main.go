package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeusync/orca/internal/config"
	"github.com/zeusync/orca/internal/core/observability/log"
	"github.com/zeusync/orca/internal/replay"
	"github.com/zeusync/orca/internal/scenario"
	"github.com/zeusync/orca/internal/server"
	"github.com/zeusync/orca/pkg/rvo"
)

func main() {
	var (
		configPath = flag.String("config", "", "scenario YAML file")
		steps      = flag.Int("steps", -1, "ticks to run, overrides run.steps (0 runs until arrival)")
		replayDir  = flag.String("replay", "", "directory for replay recordings, overrides replay.dir")
		listen     = flag.String("listen", "", "websocket listen address, overrides server.listen")
		seed       = flag.Uint64("seed", 1, "seed for preferred velocity perturbation")
	)
	flag.Parse()

	if err := run(*configPath, *steps, *replayDir, *listen, *seed); err != nil {
		fmt.Fprintln(os.Stderr, "orcasim:", err)
		os.Exit(1)
	}
}

func run(configPath string, steps int, replayDir, listen string, seed uint64) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if steps >= 0 {
		cfg.Run.Steps = steps
	}
	if replayDir != "" {
		cfg.Replay.Dir = replayDir
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.New(level)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := []scenario.Option{scenario.WithSeed(seed)}

	if cfg.Replay.Dir != "" {
		rec, err := replay.NewRecorder(cfg.Replay.Dir, cfg.World.TimeStep, nil, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Error("Error closing replay", log.Error(err))
			}
		}()
		opts = append(opts, scenario.WithObserver(scenario.ObserverFunc(rec.Record)))
	}

	if cfg.Server.Listen != "" {
		srvConfig := server.DefaultConfig()
		srvConfig.ListenAddr = cfg.Server.Listen
		srvConfig.MaxFrameRate = cfg.Server.MaxFrameRate
		srv := server.NewServer(srvConfig, logger)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			if err := srv.Stop(stopCtx); err != nil {
				logger.Error("Error stopping server", log.Error(err))
			}
		}()

		// Viewers watch in real time.
		ticker := time.NewTicker(time.Duration(cfg.World.TimeStep * float64(time.Second)))
		defer ticker.Stop()
		opts = append(opts, scenario.WithObserver(scenario.ObserverFunc(func(snap rvo.Snapshot) error {
			if err := srv.Broadcast(snap); err != nil {
				return err
			}
			select {
			case <-ticker.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})))
	}

	runner, err := scenario.Build(&cfg, logger, opts...)
	if err != nil {
		return err
	}

	err = runner.Run(ctx, cfg.Run.Steps)
	if ctx.Err() != nil {
		logger.Info("Interrupted", log.Uint64("tick", runner.Tick()))
		return nil
	}
	return err
}
