package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/clinicbase/clinic-platform/internal/campaigns"
	appconfig "github.com/clinicbase/clinic-platform/internal/config"
	"github.com/clinicbase/clinic-platform/internal/consent"
	"github.com/clinicbase/clinic-platform/internal/messaging"
	"github.com/clinicbase/clinic-platform/internal/notify"
	"github.com/clinicbase/clinic-platform/internal/observability/metrics"
	"github.com/clinicbase/clinic-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-platform campaign runner", "env", cfg.Env, "run_at", cfg.CampaignRunAt)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	campaignMetrics := metrics.NewCampaignMetrics(registry)
	msgMetrics := metrics.NewMessagingMetrics(registry)

	providers := map[string]messaging.Provider{
		messaging.ChannelSMS: messaging.NewSMSProvider(messaging.SMSConfig{
			APIURL:   cfg.SMSAPIURL,
			Usercode: cfg.SMSUsercode,
			Password: cfg.SMSPassword,
			From:     cfg.SMSFrom,
		}, logger),
	}
	gateway := messaging.NewGateway(providers, messaging.NewStore(pool), msgMetrics, logger)

	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	} else {
		emailSender = notify.NewStubEmailSender(logger)
	}
	summary := notify.NewService(emailSender, cfg.OpsSummaryRecipient, logger)

	runner := campaigns.NewRunner(
		campaigns.NewRepository(pool),
		gateway,
		consent.NewRegistry(pool, logger),
		summary,
		campaignMetrics,
		logger,
		campaigns.Options{
			RunAt:           cfg.CampaignRunAt,
			RetentionDays:   cfg.RetentionDays,
			TreatmentMarker: cfg.TreatmentTypeMarker,
		},
	)

	if err := runner.RunDaily(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("campaign runner stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("campaign runner stopped")
}
