package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"heartguard/consensus"
	hhttp "heartguard/http"
	"heartguard/monitoring"
	"heartguard/registry"
)

var portFlag = &cli.IntFlag{
	Name:  "port",
	Usage: "HTTP port (optional, overrides the config file)",
}

var serveCmd = &cli.Command{
	Name:   "serve",
	Usage:  "Runs the dashboard and JSON API",
	Flags:  []cli.Flag{portFlag},
	Action: cmdServe,
}

func cmdServe(ctx context.Context, cmd *cli.Command) error {
	if p := cmd.Int(portFlag.Name); p > 0 {
		cfg.Http.Port = int(p)
	}

	set := models.Get()
	defer closeModels(set)
	monitoring.SetModelStatus(set.Len(), len(set.Diagnostics()))
	if set.Empty() {
		logger.Error("no models loaded; assessments will be refused", zap.String("dir", loader.Dir))
	}

	reg := prometheus.NewRegistry()
	if err := monitoring.Register(reg); err != nil {
		return err
	}

	engine, err := consensus.NewEngine(set, cfg.Consensus.MemoSize, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := monitoring.NewHub(logger)
	hub.SetStatus(func() any {
		return map[string]any{
			"loaded":      set.Names(),
			"diagnostics": set.Diagnostics(),
		}
	})
	hhttp.SetLogger(logger)
	hhttp.SetEngine(engine)
	hhttp.SetHub(hub)

	server := hhttp.NewServer(hhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		MaxUploadBytes: cfg.Http.MaxUploadBytes,
		Gatherer:       reg,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if cfg.Models.Watch {
		w, err := registry.NewWatcher(loader, logger)
		if err != nil {
			logger.Warn("artifact watcher disabled", zap.Error(err))
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return server.Stop()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("exiting")
	return nil
}
