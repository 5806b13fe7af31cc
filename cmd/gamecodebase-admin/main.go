package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/gamecodebase/internal/config"
	"github.com/MarcoPoloResearchLab/gamecodebase/internal/metrics"
	"github.com/MarcoPoloResearchLab/gamecodebase/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gamecodebase-admin",
		Short: "GameCodeBase redeem code catalog admin",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(
		newPullCommand(),
		newPushCommand(),
		newPendingCommand(),
		newReviewCommand("approve", true),
		newReviewCommand("reject", false),
		newAddGameCommand(),
		newValidateCommand(),
	)
	return rootCmd
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("catalog-path", defaults.GetString("catalog.path"), "Path to the GameCodeBase.json document")
	cmd.PersistentFlags().Bool("auto-push", defaults.GetBool("catalog.auto_push"), "Push to the remote after every save")
	cmd.PersistentFlags().String("git-binary", defaults.GetString("git.binary"), "git executable")
	cmd.PersistentFlags().String("git-remote", defaults.GetString("git.remote"), "git remote name")
	cmd.PersistentFlags().String("git-branch", defaults.GetString("git.branch"), "git branch")
	cmd.PersistentFlags().String("git-workdir", defaults.GetString("git.workdir"), "git working tree (defaults to the catalog directory)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite audit database path")
	cmd.PersistentFlags().Bool("watch", defaults.GetBool("watch.enabled"), "Watch the catalog document for external edits")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-file", defaults.GetString("log.file"), "Rotating log file (stderr only when empty)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "catalog.path", "catalog-path")
	bindFlag(cmd, "catalog.auto_push", "auto-push")
	bindFlag(cmd, "git.binary", "git-binary")
	bindFlag(cmd, "git.remote", "git-remote")
	bindFlag(cmd, "git.branch", "git-branch")
	bindFlag(cmd, "git.workdir", "git-workdir")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "watch.enabled", "watch")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.file", "log-file")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	app, err := newApplication(appConfig)
	if err != nil {
		return err
	}
	defer app.Close()

	dispatcher := server.NewRealtimeDispatcher()
	adminMetrics := metrics.NewAdminMetrics()
	adminService, err := app.adminService(dispatcher, adminMetrics)
	if err != nil {
		return err
	}

	deps := server.Dependencies{
		Admin:    adminService,
		Realtime: dispatcher,
		Metrics:  adminMetrics.Handler(),
		Logger:   app.logger,
	}
	if app.audit != nil {
		deps.Audit = app.audit
	}
	handler, err := server.NewHTTPHandler(deps)
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Request contexts end with the signal context, which closes open event streams.
	httpServer := &http.Server{
		Addr:        appConfig.HTTPAddress,
		Handler:     handler,
		BaseContext: func(net.Listener) context.Context { return signalCtx },
	}

	if appConfig.WatchEnabled {
		watcher, err := server.NewCatalogWatcher(server.CatalogWatcherConfig{
			DocumentPath: app.store.Path(),
			Notifier:     dispatcher,
			Logger:       app.logger,
		})
		if err != nil {
			app.logger.Warn("catalog watcher disabled", zap.Error(err))
		} else {
			go watcher.Run(signalCtx)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("catalog", app.store.Path()))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
