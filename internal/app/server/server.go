package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"wipetrace/internal/domain/audit"
	"wipetrace/internal/domain/companies"
	"wipetrace/internal/domain/deletion"
	"wipetrace/internal/domain/dispatch"
	"wipetrace/internal/domain/emailjobs"
	"wipetrace/internal/domain/emaillog"
	"wipetrace/internal/domain/notifications"
	"wipetrace/internal/domain/templates"
	"wipetrace/internal/platform/config"
	"wipetrace/internal/platform/crypto"
	"wipetrace/internal/platform/db"
	"wipetrace/internal/platform/email"
	"wipetrace/internal/platform/events"
	"wipetrace/internal/platform/jobs"
	"wipetrace/internal/platform/lock"
	"wipetrace/internal/platform/logger"
	companieshandler "wipetrace/internal/transport/http/handlers/companies"
	deletionhandler "wipetrace/internal/transport/http/handlers/deletion"
	emailhandler "wipetrace/internal/transport/http/handlers/email"
	jobshandler "wipetrace/internal/transport/http/handlers/jobs"
	notificationshandler "wipetrace/internal/transport/http/handlers/notifications"
	templateshandler "wipetrace/internal/transport/http/handlers/templates"
)

const serviceName = "wipetrace"

// Version is stamped at build time.
var Version = "dev"

// App is the assembled service. Close releases everything Build opened.
type App struct {
	Config config.Config
	Log    *zap.Logger
	DB     *pgxpool.Pool
	Router http.Handler
	Jobs   *jobs.Service

	closers []func()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Run loads configuration, builds the app and serves until ctx is cancelled.
func Run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(logger.Config{Env: cfg.Environment, Level: cfg.LogLevel, Service: serviceName, Version: Version})
	defer func() { _ = log.Sync() }()
	undo := zap.ReplaceGlobals(log)
	defer undo()

	app, err := Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Addr), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Build connects infrastructure and wires stores, services and handlers.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Log: log}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	app.DB = pool
	app.closers = append(app.closers, pool.Close)

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir, log); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	cipher, err := crypto.NewFieldCipher(cfg.DataEncryptionKey)
	if err != nil {
		app.Close()
		return nil, err
	}
	if !cipher.Enabled() {
		log.Warn("DATA_ENCRYPTION_KEY not set; requestor phone and address are stored unencrypted")
	}

	publisher := newPublisher(cfg, log)
	app.closers = append(app.closers, publisher.Close)

	locker := newLocker(ctx, cfg, log, app)

	auditLog := audit.New(pool)
	companyService := companies.NewService(companies.NewStore(pool), log.Named("companies"))
	templateService := templates.NewService(templates.NewStore(pool), cfg.TemplateCacheTTL, log.Named("templates"))
	requestService := deletion.NewService(deletion.NewStore(pool, cipher), companyService, publisher, log.Named("deletion"))
	logService := emaillog.NewService(emaillog.NewStore(pool), log.Named("emaillog"))

	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, templateService, log); err != nil {
			app.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	sender := newSender(cfg, log)
	throttle := dispatch.NewThrottle(cfg.Email.SendInterval)
	dispatcher := dispatch.New(dispatch.Config{
		FromEmail:   cfg.Email.FromEmail,
		FromName:    cfg.Email.FromName,
		ReplyTo:     cfg.Email.ReplyTo,
		SendTimeout: cfg.Email.SendTimeout,
		Interval:    cfg.Email.SendInterval,
	}, dispatch.Deps{
		Requests:  requestService,
		Companies: companyService,
		Templates: templateService,
		Logs:      logService,
		Sender:    sender,
		Throttle:  throttle,
		Events:    publisher,
		Log:       log.Named("dispatch"),
	})

	notifier := notifications.New(notifications.NewStore(pool), sender, publisher, cfg.Email.FromEmail, cfg.Email.FromName, cfg.Email.ReplyTo, log.Named("notifications"))

	runner := emailjobs.NewRunner(emailjobs.Config{
		BatchSize:    cfg.Jobs.PendingBatchSize,
		DashboardURL: cfg.DashboardURL,
	}, requestService, dispatcher, notifier, throttle, log.Named("emailjobs"))

	app.Jobs = jobs.New(runner, jobs.NewStore(pool), locker, cfg.Jobs.LockTTL,
		jobs.ScheduleFor(cfg.Jobs.PendingInterval, cfg.Jobs.FollowUpInterval, cfg.Jobs.OverdueInterval, cfg.Jobs.SummariesInterval),
		log.Named("jobs"))

	app.Router = NewRouter(cfg, log, Handlers{
		Deletion:      deletionhandler.NewHandler(requestService, dispatcher, logService, auditLog),
		Companies:     companieshandler.NewHandler(companyService),
		Templates:     templateshandler.NewHandler(templateService),
		Notifications: notificationshandler.NewHandler(notifier),
		Email:         emailhandler.NewHandler(logService, requestService, cfg.WebhookSecret),
		Jobs:          jobshandler.NewHandler(app.Jobs, cfg.CronSecret),
	}, pool.Ping)

	return app, nil
}

// newSender builds the SendGrid-then-SMTP chain from whichever providers are
// configured. With neither, every send fails with a clear error.
func newSender(cfg config.Config, log *zap.Logger) *dispatch.Chain {
	var primary, fallback dispatch.Transport
	if cfg.Email.SendGridAPIKey != "" {
		primary = email.NewSendGrid(cfg.Email.SendGridAPIKey, cfg.Email.SendGridURL)
	}
	if cfg.Email.SMTPHost != "" {
		fallback = email.NewSMTP(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPUser, cfg.Email.SMTPPassword, cfg.Email.SMTPTLSMode)
	}
	if primary == nil && fallback == nil {
		log.Warn("no email provider configured; sends will fail")
	}
	return dispatch.NewChain(primary, fallback, cfg.Email.SendTimeout, log.Named("email"))
}

func newPublisher(cfg config.Config, log *zap.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.NewLog(log.Named("events"))
	}
	pub, err := events.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		log.Warn("amqp unavailable, events will only be logged", zap.Error(err))
		return events.NewLog(log.Named("events"))
	}
	return pub
}

func newLocker(ctx context.Context, cfg config.Config, log *zap.Logger, app *App) lock.Locker {
	if cfg.RedisAddr == "" {
		return lock.NewLocal()
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	app.closers = append(app.closers, func() { _ = rdb.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis ping failed; job locks will fail open until it recovers", zap.Error(err))
	}
	return lock.NewRedis(rdb, log.Named("lock"))
}
