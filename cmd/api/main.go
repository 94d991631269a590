package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinicbase/clinic-platform/cmd/mainconfig"
	"github.com/clinicbase/clinic-platform/internal/api/router"
	"github.com/clinicbase/clinic-platform/internal/appointments"
	"github.com/clinicbase/clinic-platform/internal/automation"
	"github.com/clinicbase/clinic-platform/internal/booking"
	appconfig "github.com/clinicbase/clinic-platform/internal/config"
	"github.com/clinicbase/clinic-platform/internal/consent"
	"github.com/clinicbase/clinic-platform/internal/dispatch"
	"github.com/clinicbase/clinic-platform/internal/messaging"
	"github.com/clinicbase/clinic-platform/internal/observability/metrics"
	"github.com/clinicbase/clinic-platform/internal/patients"
	"github.com/clinicbase/clinic-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	schedMetrics := metrics.NewSchedulingMetrics(registry)
	msgMetrics := metrics.NewMessagingMetrics(registry)

	// Messaging and automation back ends consumed by the side-effect workers.
	providers := map[string]messaging.Provider{
		messaging.ChannelSMS: messaging.NewSMSProvider(messaging.SMSConfig{
			APIURL:   cfg.SMSAPIURL,
			Usercode: cfg.SMSUsercode,
			Password: cfg.SMSPassword,
			From:     cfg.SMSFrom,
		}, logger),
		messaging.ChannelChat: messaging.NewChatProvider(messaging.ChatConfig{
			APIURL: cfg.ChatAPIURL,
			Token:  cfg.ChatAPIToken,
		}, logger),
	}
	msgStore := messaging.NewStore(pool)
	gateway := messaging.NewGateway(providers, msgStore, msgMetrics, logger)
	dispatcher := automation.NewDispatcher(cfg.AutomationBaseURL, automation.NewStore(pool), logger)

	publisher, worker := buildDispatch(ctx, cfg, gateway, dispatcher, logger)
	worker.Start(ctx)

	window := appointments.SlotWindow{
		LookaheadDays: cfg.SlotLookaheadDays,
		DayStartHour:  cfg.DayStartHour,
		DayEndHour:    cfg.DayEndHour,
		Location:      time.UTC,
	}
	apptService := appointments.NewService(appointments.NewRepository(pool), publisher, schedMetrics, window, logger)

	redisClient := mainconfig.NewRedisClient(cfg)
	linkRepo := booking.NewLinkRepository(pool, redisClient, cfg.SlugCacheTTL, logger)
	bookingHandler := booking.NewHandler(linkRepo, patients.NewRepository(pool), apptService, logger)

	consentHandler := consent.NewHandler(consent.NewRegistry(pool, logger), logger)

	r := router.New(&router.Config{
		Logger:              logger,
		AppointmentsHandler: appointments.NewHandler(apptService, logger),
		BookingHandler:      bookingHandler,
		ConsentHandler:      consentHandler,
		MessagingHandler:    messaging.NewHandler(msgStore, logger),
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		StaffAuthSecret:     cfg.StaffJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		PublicRateLimit:     cfg.PublicRateLimit,
		PublicBurst:         cfg.PublicBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	worker.Wait()
	logger.Info("server stopped")
}

func buildDispatch(ctx context.Context, cfg *appconfig.Config, gateway *messaging.Gateway, dispatcher *automation.Dispatcher, logger *logging.Logger) (*dispatch.Publisher, *dispatch.Worker) {
	var publisher *dispatch.Publisher
	var worker *dispatch.Worker

	if cfg.UseMemoryQueue || cfg.SideEffectQueueURL == "" {
		queue := dispatch.NewMemoryQueue(cfg.QueueBuffer)
		publisher = dispatch.NewPublisher(queue, logger)
		worker = dispatch.NewWorker(queue, gateway, dispatcher, logger, dispatch.WithWorkerCount(cfg.WorkerCount))
		return publisher, worker
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	queue := dispatch.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.SideEffectQueueURL)
	publisher = dispatch.NewPublisher(queue, logger)
	worker = dispatch.NewWorker(queue, gateway, dispatcher, logger, dispatch.WithWorkerCount(cfg.WorkerCount))
	return publisher, worker
}
