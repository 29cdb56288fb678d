package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mdtasks/internal/config"
	"mdtasks/internal/render"
	"mdtasks/internal/syncer"
	"mdtasks/internal/web"
	"mdtasks/internal/workspace"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI with live checklist sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg)
		},
	}
}

func openWorkspace(ctx context.Context, cfg config.Config) (*workspace.Workspace, error) {
	return workspace.Open(ctx, workspace.Options{
		Root:        cfg.RootPath,
		DataDir:     cfg.DataPath,
		Include:     cfg.Include,
		Exclude:     cfg.Exclude,
		BusyTimeout: cfg.DBBusyTimeout,
		LockTimeout: cfg.DBLockTimeout,
	})
}

func debounce(cfg config.Config) syncer.Debounce {
	return syncer.Debounce{
		Toggle: cfg.ToggleDebounce,
		Edit:   cfg.EditDebounce,
		Scroll: cfg.ScrollDebounce,
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	slog.Info("startup", "build_version", version(), "root", cfg.RootPath)
	ws, err := openWorkspace(ctx, cfg)
	if err != nil {
		return err
	}
	defer ws.Close()

	renderer, err := render.New(render.Options{CacheSize: cfg.RenderCacheSize})
	if err != nil {
		return err
	}
	hub := web.NewHub()
	coord := syncer.New(ws, hub, syncer.Options{
		Debounce:    debounce(cfg),
		ShowHeaders: cfg.ShowHeaders,
		Renderer:    renderer,
	})
	ws.Subscribe(coord.Changed)

	srv, err := web.NewServer(cfg, ws, coord, hub, renderer)
	if err != nil {
		return err
	}
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := coord.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if cfg.Watch {
		g.Go(func() error { return ws.Watch(ctx) })
	}
	g.Go(func() error {
		slog.Info("listening", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
