package main

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/MarcoPoloResearchLab/gamecodebase/internal/admin"
	"github.com/MarcoPoloResearchLab/gamecodebase/internal/audit"
	"github.com/MarcoPoloResearchLab/gamecodebase/internal/catalog"
	"github.com/MarcoPoloResearchLab/gamecodebase/internal/config"
	"github.com/MarcoPoloResearchLab/gamecodebase/internal/database"
	"github.com/MarcoPoloResearchLab/gamecodebase/internal/gitsync"
	"github.com/MarcoPoloResearchLab/gamecodebase/internal/logging"
	"go.uber.org/zap"
)

// application holds the components shared by the server and the subcommands.
type application struct {
	config AppConfig
	logger *zap.Logger
	store  *catalog.Store
	syncer *gitsync.Adapter
	audit  *audit.Service
	sqlDB  *sql.DB
}

// AppConfig is the loaded runtime configuration.
type AppConfig = config.AppConfig

func newApplication(appConfig AppConfig) (*application, error) {
	logger, err := logging.NewLogger(logging.Options{
		Level:      appConfig.LogLevel,
		File:       appConfig.LogFile,
		MaxSizeMB:  appConfig.LogMaxSizeMB,
		MaxBackups: appConfig.LogMaxBackups,
		MaxAgeDays: appConfig.LogMaxAgeDays,
	})
	if err != nil {
		return nil, err
	}

	documentPath, err := filepath.Abs(appConfig.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog path: %w", err)
	}
	workDir := appConfig.GitWorkDir
	if workDir == "" {
		workDir = filepath.Dir(documentPath)
	}

	syncer, err := gitsync.NewAdapter(gitsync.Config{
		Binary:       appConfig.GitBinary,
		WorkDir:      workDir,
		Remote:       appConfig.GitRemote,
		Branch:       appConfig.GitBranch,
		DocumentPath: documentPath,
		Clock:        time.Now,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	store, err := catalog.NewStore(catalog.StoreConfig{
		Path:   documentPath,
		Clock:  time.Now,
		Pusher: syncer,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	app := &application{
		config: appConfig,
		logger: logger,
		store:  store,
		syncer: syncer,
	}

	if appConfig.DatabasePath == "" {
		logger.Info("audit trail disabled")
		return app, nil
	}
	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	auditService, err := audit.NewService(audit.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	app.audit = auditService
	app.sqlDB = sqlDB
	return app, nil
}

func (a *application) adminService(notifier admin.ChangeNotifier, observer admin.Observer) (*admin.Service, error) {
	cfg := admin.ServiceConfig{
		Store:    a.store,
		Syncer:   a.syncer,
		Notifier: notifier,
		Observer: observer,
		AutoPush: a.config.CatalogAutoPush,
		Clock:    time.Now,
		Logger:   a.logger,
	}
	if a.audit != nil {
		cfg.Audit = a.audit
	}
	return admin.NewService(cfg)
}

func (a *application) Close() {
	if a.sqlDB != nil {
		_ = a.sqlDB.Close()
	}
	_ = a.logger.Sync()
}
