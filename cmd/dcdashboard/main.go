// dcdashboard serves the DC operations alerting API: an embedded analytical
// store fed by table snapshots, a rule engine evaluating exception rules
// against it, and the HTTP surface the dashboard UI talks to.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/rpogula2014/dcdashboard/internal/api"
	"github.com/rpogula2014/dcdashboard/internal/conf"
	"github.com/rpogula2014/dcdashboard/internal/loaders"
	"github.com/rpogula2014/dcdashboard/internal/logger"
	"github.com/rpogula2014/dcdashboard/internal/queryengine"
	"github.com/rpogula2014/dcdashboard/internal/rules"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "dcdashboard",
		Short: "DC operations dashboard alerting service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := conf.Load(configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), settings)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&configFile, "config", "", "path to config file")
	return cmd
}

func run(ctx context.Context, settings *conf.Settings) error {
	log := newLogger(settings)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := queryengine.New(queryengine.Config{
		DSN:            settings.Engine.DSN,
		ColumnCacheTTL: settings.Engine.ColumnCacheTTL.Std(),
	}, log)
	if err := engine.Initialize(ctx); err != nil {
		return fmt.Errorf("query engine init failed: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Error("query engine close failed", logger.Error(err))
		}
	}()

	db, err := badger.Open(badger.DefaultOptions(settings.Storage.DataDir).WithLogger(nil))
	if err != nil {
		return fmt.Errorf("failed to open rule storage: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("rule storage close failed", logger.Error(err))
		}
	}()

	compiler := rules.NewCompiler(log)
	validator := rules.NewValidator(engine, compiler)

	store, err := rules.NewStore(db, validator, log)
	if err != nil {
		return err
	}

	executor := rules.NewExecutor(engine, compiler, log)
	scheduler := rules.NewScheduler(store, executor, settings.Alerting.MinRefreshInterval.Std(), log)
	scheduler.Start()
	defer scheduler.Stop()

	manager := loaders.NewManager(engine, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.NewController(store, scheduler, compiler, validator, engine, manager, log).RegisterRoutes(e)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", logger.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Error(err))
	}
	return nil
}

func newLogger(settings *conf.Settings) logger.Logger {
	level := logger.LogLevelInfo
	switch settings.Log.Level {
	case "debug":
		level = logger.LogLevelDebug
	case "warn":
		level = logger.LogLevelWarn
	case "error":
		level = logger.LogLevelError
	}
	return logger.NewSlogLogger(os.Stdout, level, &logger.Options{JSON: settings.Log.JSON})
}
