package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/approval"
	auditPostgres "github.com/frahmantamala/research-hours/internal/audit/postgres"
	"github.com/frahmantamala/research-hours/internal/auth"
	authPostgres "github.com/frahmantamala/research-hours/internal/auth/postgres"
	"github.com/frahmantamala/research-hours/internal/core/events"
	"github.com/frahmantamala/research-hours/internal/hours"
	hoursPostgres "github.com/frahmantamala/research-hours/internal/hours/postgres"
	"github.com/frahmantamala/research-hours/internal/notification"
	"github.com/frahmantamala/research-hours/internal/orgunit"
	orgunitPostgres "github.com/frahmantamala/research-hours/internal/orgunit/postgres"
	"github.com/frahmantamala/research-hours/internal/record"
	recordPostgres "github.com/frahmantamala/research-hours/internal/record/postgres"
	"github.com/frahmantamala/research-hours/internal/report"
	reportPostgres "github.com/frahmantamala/research-hours/internal/report/postgres"
	"github.com/frahmantamala/research-hours/internal/transport"
	"github.com/frahmantamala/research-hours/internal/transport/rest"
	"github.com/frahmantamala/research-hours/internal/user"
	userPostgres "github.com/frahmantamala/research-hours/internal/user/postgres"
	"github.com/frahmantamala/research-hours/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Dependencies holds the process-wide resources. Close releases them in
// reverse order of acquisition.
type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Redis    *redis.Client
	Bus      *events.EventBus
	Notifier *notification.Notifier
	Logger   *slog.Logger
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	deps := &Dependencies{
		Config: config,
		DB:     db,
		Gorm:   gormDB,
		Bus:    events.NewEventBus(lg),
		Logger: lg,
	}

	if config.Cache.Enabled {
		deps.Redis = redis.NewClient(&redis.Options{Addr: config.Cache.RedisAddr})
		if err := deps.Redis.Ping(ctx).Err(); err != nil {
			// reports still work uncached; the health check shows redis down
			lg.Warn("redis unreachable at startup", "addr", config.Cache.RedisAddr, "error", err)
		}
	}

	if config.Notification.Enabled {
		deps.Notifier = notification.NewNotifier(notification.Config{
			WebhookURL:   config.Notification.WebhookURL,
			Timeout:      config.Notification.Timeout,
			MaxWorkers:   config.Notification.MaxWorkers,
			JobQueueSize: config.Notification.JobQueueSize,
		}, lg)
	}

	return deps, nil
}

func (d *Dependencies) Close() {
	d.Bus.Wait()
	if d.Notifier != nil {
		d.Notifier.Shutdown()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("redis close error", "error", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

// Application is the assembled service graph.
type Application struct {
	Rules    *hours.RuleStore
	Handlers rest.Handlers
}

func buildApplication(deps *Dependencies) *Application {
	lg := deps.Logger
	base := transport.NewBaseHandler(lg)
	sec := deps.Config.Security

	tokenGen := auth.NewJWTTokenGenerator(sec.AccessTokenSecret, sec.RefreshTokenSecret, sec.AccessTokenDuration, sec.RefreshTokenDuration)
	authService := auth.NewService(authPostgres.NewRepository(deps.Gorm), tokenGen, sec.BCryptCost).WithLogger(lg)

	userService := user.NewService(userPostgres.NewUserRepository(deps.Gorm), authService, lg)
	orgService := orgunit.NewService(orgunitPostgres.NewOrgUnitRepository(deps.Gorm), lg)
	rules := hours.NewRuleStore(hoursPostgres.NewRuleTableRepository(deps.Gorm), lg)

	records := recordPostgres.NewRecordRepository(deps.Gorm)
	approvalService := approval.NewService(
		records,
		auditPostgres.NewAuditRepository(deps.Gorm),
		orgService,
		rules,
		deps.Bus,
		lg,
	)
	recordService := record.NewService(records, approvalService, lg)

	reportService := report.NewService(reportPostgres.NewReportRepository(deps.DB), rules, orgService, lg)
	healthChecks := map[string]rest.Check{}
	if deps.Redis != nil {
		reportService.WithCache(report.NewRedisCache(deps.Redis, deps.Config.Cache.ReportTTL))
		healthChecks["redis"] = func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() }
	}

	report.NewEventHandler(reportService, lg).RegisterEventHandlers(deps.Bus)
	if deps.Notifier != nil {
		notification.NewEventHandler(deps.Notifier, lg).RegisterEventHandlers(deps.Bus)
	}

	return &Application{
		Rules: rules,
		Handlers: rest.Handlers{
			Health:   rest.NewHealthHandler(deps.DB.DB, healthChecks),
			Auth:     auth.NewHandler(base, authService),
			User:     user.NewHandler(base, userService),
			OrgUnit:  orgunit.NewHandler(base, orgService),
			Record:   record.NewHandler(base, recordService),
			Approval: approval.NewHandler(base, approvalService),
			Report:   report.NewHandler(base, reportService),
			Rules:    hours.NewHandler(base, rules),
		},
	}
}

// initDB opens the pgx-backed pool shared by sqlx readers and gorm.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}
