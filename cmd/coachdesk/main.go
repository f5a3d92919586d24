package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CoachDesk/app/controllers"
	"github.com/ManuelReschke/CoachDesk/app/repository"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/archive"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/billing"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/cache"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/calendar"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/config"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/database"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/env"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/events"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/jobqueue"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/mail"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/middleware"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/notify"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/router"
)

const shutdownTimeout = 15 * time.Second

func main() {
	env.SetupEnvFile()
	cfg, err := config.Load(env.Merged())
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[Config] Invalid configuration:\n%v", err)
	}
	setLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := NewApplication(ctx, cfg)
	if err != nil {
		log.Fatalf("[App] Startup failed: %v", err)
	}

	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort)
		log.Infof("[App] Listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Errorf("[App] Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("[App] Shutting down...")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Errorf("[App] Shutdown: %v", err)
	}
	cleanup()
	log.Info("[App] Bye")
}

// NewApplication wires every service and returns the HTTP app together with a
// cleanup func that drains background work.
func NewApplication(ctx context.Context, cfg *config.Config) (*fiber.App, func(), error) {
	db, err := database.SetupDatabase(cfg.Database, cfg.IsDev())
	if err != nil {
		return nil, nil, err
	}
	if cfg.IsDev() {
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	repos := repository.NewFactory(db).GetRepositories()

	redisClient, cacheErr := cache.NewClient(ctx, cfg.Cache)
	redisUp := cacheErr == nil
	if !redisUp {
		log.Warn("[Cache] Continuing without Redis, notifications are sent inline")
	}

	mailer := newMailer(cfg.Mail, repos.EmailHistory)

	var (
		dispatcher notify.Dispatcher
		queue      *jobqueue.Queue
		inline     *notify.InlineDispatcher
	)
	if cfg.Mail.Inline || !redisUp {
		inline = notify.NewInlineDispatcher(mailer)
		dispatcher = inline
	} else {
		queue = jobqueue.NewQueue(redisClient, cfg.Queue.Workers)
		// Each group is attempted once. Retrying would resend messages that
		// already went out.
		queue.RegisterHandler(jobqueue.JobTypeNotification, notify.NewJobHandler(mailer), 0)
		queue.Start()
		dispatcher = notify.NewQueueDispatcher(queue)
	}

	catalog, err := notify.LoadCatalog(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("load mail templates: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Google.TimeZone)
	if err != nil {
		log.Warnf("[App] Unknown time zone %q, using UTC", cfg.Google.TimeZone)
		loc = time.UTC
	}
	notifier := notify.NewNotifier(catalog, dispatcher, notify.Options{
		AdminEmail: cfg.Mail.AdminAddress,
		BaseURL:    cfg.PublicBaseURL,
		Bank:       cfg.Bank,
		Location:   loc,
	})

	publisher := newPublisher(cfg.Kafka)
	reconcilerOpts := []billing.Option{
		billing.WithNotifier(notifier),
		billing.WithPublisher(publisher),
	}
	if cfg.Archive.Enabled {
		archiver, err := archive.NewClient(ctx, cfg.Archive, cfg.IsDev())
		if err != nil {
			log.Errorf("[Archive] Disabled: %v", err)
		} else {
			reconcilerOpts = append(reconcilerOpts, billing.WithArchiver(archiver))
		}
	}
	reconciler := billing.NewReconciler(
		billing.NewRepository(db),
		billing.NewStripeVerifier(cfg.Stripe.WebhookSecret),
		reconcilerOpts...,
	)

	var provider billing.PaymentProvider = billing.DisabledProvider{}
	if cfg.Stripe.Enabled() {
		provider = billing.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.Currency)
	} else {
		log.Warn("[Billing] STRIPE_SECRET_KEY is not set, card payments are disabled")
	}

	var scheduler calendar.MeetingScheduler = calendar.NoopScheduler{}
	if cfg.Google.Enabled() {
		if s, err := calendar.NewGoogleScheduler(ctx, cfg.Google); err != nil {
			log.Errorf("[Calendar] Disabled: %v", err)
		} else {
			scheduler = s
		}
	}

	var monitorQueue controllers.QueueMonitor
	if queue != nil {
		monitorQueue = queue
	}
	deps := router.Dependencies{
		Admin:          cfg.Admin,
		Applications:   controllers.NewApplicationController(repos, provider, notifier, cfg.Pricing, cfg.PublicBaseURL),
		Bookings:       controllers.NewBookingController(repos, scheduler, notifier),
		Webhooks:       controllers.NewWebhookController(reconciler),
		AdminPanel:     controllers.NewAdminController(repos, notifier, cfg.Pricing, monitorQueue),
		Health:         controllers.NewHealthController(healthChecks(db, redisClient)),
		LimiterStorage: newLimiterStorage(cfg.Cache, redisUp),
	}

	app := fiber.New(fiber.Config{
		AppName:   "CoachDesk",
		BodyLimit: 1 << 20,
	})
	app.Use(recover.New(), requestid.New(), logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/monitor", middleware.RequireAdmin(cfg.Admin), monitor.New())

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	router.InstallRouter(app, deps)

	cleanup := func() {
		if queue != nil {
			queue.Stop()
		}
		if inline != nil {
			inline.Wait()
		}
		publisher.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return app, cleanup, nil
}

func newMailer(cfg config.MailConfig, recorder mail.Recorder) *mail.Service {
	var smtpTransport, resendTransport mail.Transport
	if cfg.SMTPEnabled() {
		smtpTransport = mail.RateLimited(mail.NewSMTPTransport(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
		}), mail.NewTokenBucket(cfg.SMTPRate, cfg.Burst))
	}
	if cfg.ResendEnabled() {
		from := cfg.ResendFrom
		if from == "" {
			from = cfg.From
		}
		resendTransport = mail.RateLimited(mail.NewResendTransport(cfg.ResendAPIKey, from), mail.NewTokenBucket(cfg.ResendRate, cfg.Burst))
	}
	return mail.NewService(smtpTransport, resendTransport, recorder)
}

type closablePublisher interface {
	billing.Publisher
	Close()
}

func newPublisher(cfg config.KafkaConfig) closablePublisher {
	if !cfg.Enabled() {
		log.Info("[Events] Kafka is not configured, payment events are not published")
		return events.NoopPublisher{}
	}
	p, err := events.NewKafkaPublisher(cfg)
	if err != nil {
		log.Errorf("[Events] Kafka publisher disabled: %v", err)
		return events.NoopPublisher{}
	}
	return p
}

// newLimiterStorage shares rate limit counters through Redis database 1 so
// several instances enforce one limit.
func newLimiterStorage(cfg config.CacheConfig, useRedis bool) fiber.Storage {
	if !useRedis {
		return nil
	}
	// redisstorage.New panics when the server is unreachable.
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host:     cfg.Host,
		Port:     port,
		Password: cfg.Password,
		Database: 1,
		Reset:    false,
	})
}

func healthChecks(db *gorm.DB, rdb *redis.Client) map[string]controllers.Pinger {
	checks := map[string]controllers.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["cache"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	return checks
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.LevelDebug)
	case "warn":
		log.SetLevel(log.LevelWarn)
	case "error":
		log.SetLevel(log.LevelError)
	default:
		log.SetLevel(log.LevelInfo)
	}
}
