package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/app"
	"github.com/dshills/manivault/internal/config"
	"github.com/dshills/manivault/internal/feed"
	"github.com/dshills/manivault/internal/metrics"
)

type serveFlags struct {
	addr       string
	project    string
	saveOnExit string
	noWatch    bool
}

func newServeCommand(global *globalFlags) *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a session and serve its event feed and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, global, flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.addr, "addr", "", "Listen address (default from configuration)")
	f.StringVarP(&flags.project, "project", "p", "", "Project URL to load at startup")
	f.StringVar(&flags.saveOnExit, "save-on-exit", "", "Project URL the session is saved to on shutdown")
	f.BoolVar(&flags.noWatch, "no-watch", false, "Do not reload the configuration file when it changes")
	return cmd
}

func runServe(cmd *cobra.Command, global *globalFlags, flags *serveFlags) error {
	store, logging, core, err := global.newCore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()
	logger := logging.Logger.Named("serve")
	defer func() { _ = logging.Logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := core.Config()
	hub, err := feed.New(core.Bus(), feed.WithLogger(logging.Logger), feed.WithBuffer(cfg.Server.FeedBuffer))
	if err != nil {
		_ = core.Close(context.Background())
		return err
	}
	defer hub.Close()
	reg, err := metrics.NewRegistry(core.Bus(), metrics.WithLogger(logging.Logger), metrics.WithRuntime())
	if err != nil {
		_ = core.Close(context.Background())
		return err
	}
	defer reg.Close()
	if err := reg.RegisterFeed(hub); err != nil {
		_ = core.Close(context.Background())
		return err
	}

	if url := firstNonEmpty(flags.project, cfg.Project.Autoload); url != "" {
		info, err := core.Project().Load(ctx, url)
		if err != nil {
			_ = core.Close(context.Background())
			return fmt.Errorf("load project: %w", err)
		}
		logger.Info("project loaded", zap.String("url", url), zap.Int("items", info.Items))
	}

	if !flags.noWatch {
		cancel := store.OnChange(func(_, next *config.Config) {
			if err := logging.Apply(global.override(next).Logging); err != nil {
				logger.Warn("logging not reconfigured", zap.Error(err))
			}
		})
		defer cancel()
		if err := store.Watch(); err != nil {
			logger.Warn("configuration not watched", zap.Error(err))
		}
	}

	addr := firstNonEmpty(flags.addr, cfg.Server.Addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(cfg.Server, hub, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr),
			zap.String("feed", cfg.Server.FeedPath), zap.String("metrics", cfg.Server.MetricsPath))
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		} else if err != nil {
			logger.Error("server failed", zap.Error(err))
			cancelRun()
		}
		serveErr <- err
	}()

	runErr := core.Run(runCtx)
	hub.Close()
	err = shutdown(core, srv, flags.saveOnExit, logger)
	return errors.Join(<-serveErr, runErr, err)
}

// shutdown stops the listener, optionally saves the session and closes
// the core.
func shutdown(core *app.Core, srv *http.Server, saveURL string, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()

	var err error
	if serr := srv.Shutdown(ctx); serr != nil {
		err = errors.Join(err, serr)
	}
	if saveURL != "" {
		if _, serr := core.Project().Save(ctx, saveURL); serr != nil {
			err = errors.Join(err, fmt.Errorf("save project: %w", serr))
		} else {
			logger.Info("project saved", zap.String("url", saveURL))
		}
	}
	if cerr := core.Close(ctx); cerr != nil {
		err = errors.Join(err, cerr)
	}
	logger.Info("stopped")
	return err
}

func newMux(cfg config.ServerConfig, hub *feed.Hub, reg *metrics.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(cfg.FeedPath, hub)
	mux.Handle(cfg.MetricsPath, reg.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
