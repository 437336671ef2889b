// Package wire provides dependency injection for the faultline application.
// It creates singleton services with lazy initialization.
package wire

import (
	"io"
	"log"
	"os"
	"sync"

	"go.uber.org/zap"

	cliadapter "github.com/example/faultline/internal/adapters/cli"
	"github.com/example/faultline/internal/adapters/notify"
	"github.com/example/faultline/internal/adapters/sheet"
	"github.com/example/faultline/internal/adapters/sqlite"
	"github.com/example/faultline/internal/adapters/storeretry"
	"github.com/example/faultline/internal/app"
	"github.com/example/faultline/internal/authz"
	"github.com/example/faultline/internal/config"
	"github.com/example/faultline/internal/core/datetime"
	"github.com/example/faultline/internal/db"
	"github.com/example/faultline/internal/logging"
	"github.com/example/faultline/internal/ports/primary"
	"github.com/example/faultline/internal/ports/secondary"
)

var (
	workDir = "."

	cfg             *config.Config
	logger          *zap.Logger
	incidentService primary.IncidentService
	routingService  primary.RoutingService
	rollupService   primary.RollupService
	logService      primary.LogService
	notifier        *notify.Webhook
	once            sync.Once
)

// SetWorkDir sets the directory whose .faultline/config.yaml is loaded.
// Must be called before any service is requested.
func SetWorkDir(dir string) {
	workDir = dir
}

// Config returns the loaded configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// Logger returns the application logger.
func Logger() *zap.Logger {
	once.Do(initServices)
	return logger
}

// IncidentService returns the singleton IncidentService instance.
func IncidentService() primary.IncidentService {
	once.Do(initServices)
	return incidentService
}

// RoutingService returns the singleton RoutingService instance.
func RoutingService() primary.RoutingService {
	once.Do(initServices)
	return routingService
}

// RollupService returns the singleton RollupService instance.
func RollupService() primary.RollupService {
	once.Do(initServices)
	return rollupService
}

// LogService returns the singleton LogService instance.
func LogService() primary.LogService {
	once.Do(initServices)
	return logService
}

// Notifier returns the webhook notifier. It drops messages when no URL is configured.
func Notifier() secondary.Notifier {
	once.Do(initServices)
	return notifier
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	var err error
	cfg, err = config.LoadConfig(workDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := datetime.SetZone(cfg.Timezone); err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}
	logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	// The SQLite database always holds the outbox and audit log, and the
	// incidents themselves when the sqlite backend is selected.
	db.SetPath(cfg.Store.SQLitePath)
	database, err := db.GetDB()
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	var (
		store     secondary.IncidentStore
		subStores secondary.SubStores
	)
	switch cfg.Store.Backend {
	case config.BackendXLSX:
		wb := sheet.NewWorkbook(cfg.Store.WorkbookPath, cfg.Store.LogSheet, logger)
		store, subStores = wb, wb
	default:
		store = sqlite.NewIncidentStore(database, logger)
		subStores = sqlite.NewPositionStores(database)
	}
	store = storeretry.New(store, storeretry.Options{
		Attempts:  cfg.Retry.Attempts,
		BaseDelay: cfg.Retry.BaseDelay,
		MaxDelay:  cfg.Retry.MaxDelay,
	}, logger)

	auth, err := authz.New(cfg.Authz.Enabled, cfg.Authz.Users)
	if err != nil {
		logger.Fatal("failed to initialize authorization", zap.Error(err))
	}

	// Create repository adapters (secondary ports) - sqlite adapters with injected DB
	outbox := sqlite.NewRoutingOutboxRepository(database)
	logRepo := sqlite.NewIncidentLogRepository(database)
	logWriter := sqlite.NewLogWriterAdapter(logRepo)

	// Create services (primary ports implementation)
	routingService = app.NewRoutingService(store, subStores, outbox, app.RoutingOptions{
		Timeout:     cfg.Store.Timeout,
		MaxAttempts: cfg.Routing.MaxAttempts,
		Auth:        auth,
	}, logger)
	executor := app.NewEffectExecutor(routingService, logger)
	incidentService = app.NewIncidentService(store, logWriter, executor, auth, app.IncidentOptions{
		Timeout:     cfg.Store.Timeout,
		AllowReopen: cfg.Lifecycle.AllowReopen,
	}, logger)
	rollupService = app.NewRollupService(incidentService, sheet.NewReportWriter(), logger)
	logService = app.NewLogService(logRepo)
	notifier = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout, logger)

	logger.Debug("services initialized",
		zap.String("backend", cfg.Store.Backend),
		zap.String("sqlite_path", cfg.Store.SQLitePath))
}

// Close flushes the logger and closes the database.
func Close() {
	if logger != nil {
		_ = logger.Sync()
	}
	_ = db.Close()
}

// IncidentAdapter returns a new IncidentAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func IncidentAdapter() *cliadapter.IncidentAdapter {
	return IncidentAdapterWithOutput(os.Stdout)
}

// IncidentAdapterWithOutput returns a new IncidentAdapter writing to the given output.
func IncidentAdapterWithOutput(out io.Writer) *cliadapter.IncidentAdapter {
	once.Do(initServices)
	return cliadapter.NewIncidentAdapter(incidentService, out)
}

// RollupAdapter returns a new RollupAdapter writing to stdout.
func RollupAdapter() *cliadapter.RollupAdapter {
	return RollupAdapterWithOutput(os.Stdout)
}

// RollupAdapterWithOutput returns a new RollupAdapter writing to the given output.
func RollupAdapterWithOutput(out io.Writer) *cliadapter.RollupAdapter {
	once.Do(initServices)
	return cliadapter.NewRollupAdapter(rollupService, out)
}
