// Entry point for the attendance bot webhook service.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendance.bot/internal/api"
	"attendance.bot/internal/attendance"
	"attendance.bot/internal/config"
	"attendance.bot/internal/engine"
	"attendance.bot/internal/event"
	"attendance.bot/internal/notify"
	"attendance.bot/internal/report"
	"attendance.bot/internal/schedule"
	"attendance.bot/internal/telegram"
	"attendance.bot/pkg/aws"
	"attendance.bot/pkg/logger"
	"attendance.bot/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}

	// Configure structured logging
	logger.Setup(cfg.IsLocalDev)

	// Configure OpenTelemetry Tracing
	shutdownTracer, err := telemetry.InitTracer("attendance-bot", cfg.OTLPEndpoint, cfg.IsLocalDev)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init tracer")
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	admins, err := cfg.AdminUserIDs()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ADMIN_USER_IDS")
	}
	if len(admins) == 0 {
		log.Warn().Msg("No admin user IDs configured; admin commands are unreachable and the bot will leave every group it is added to")
	}

	resetHour, resetMin, err := config.ParseClock(cfg.DailyResetTime)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid DAILY_RESET_TIME")
	}
	reportHour, reportMin, err := config.ParseClock(cfg.MonthlyReportTime)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid MONTHLY_REPORT_TIME")
	}
	cutoffHour, cutoffMin, err := config.ParseClock(cfg.LateWorkCutoff)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid LATE_WORK_CUTOFF")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bot API client and identity
	tgClient := telegram.NewClient(cfg.BotToken)
	me, err := tgClient.GetMe(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch bot identity")
	}
	log.Info().Int64("bot_id", me.ID).Str("username", me.Username).Msg("Connected to Bot API")

	// Outbound notification dispatcher
	dispatcher := notify.NewDispatcher(tgClient)
	dispatcher.Start(ctx)

	// Optional SES report mailer
	var mailer report.Mailer
	if cfg.ReportEmailFrom != "" && len(cfg.AdminEmails()) > 0 {
		awsCfg, err := aws.NewAWSConfig(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to load SDK config")
		}
		mailer = report.NewSESMailer(ses.NewFromConfig(awsCfg), cfg.ReportEmailFrom, cfg.AdminEmails())
		log.Info().Strs("recipients", cfg.AdminEmails()).Msg("Monthly report email copy enabled")
	}

	// Timer service and the activity engine
	timers := schedule.NewService(ctx)
	store := attendance.NewStore()
	eng := engine.New(engine.Params{
		Store:            store,
		Notifier:         dispatcher,
		Timers:           timers,
		Mailer:           mailer,
		Mention:          telegram.Mention,
		Limits:           cfg.ActivityLimits(),
		Admins:           admins,
		LateCutoffHour:   cutoffHour,
		LateCutoffMinute: cutoffMin,
		LateWorkFine:     cfg.LateWorkFine,
	})

	// Recurring jobs
	timers.Daily(resetHour, resetMin, eng.DailyReset)
	timers.Monthly(cfg.MonthlyReportDay, reportHour, reportMin, eng.MonthlyReport)

	// Setup router and server
	events := event.NewDispatcher(eng)
	webhook := &api.WebhookHandler{Dispatcher: events, SelfID: me.ID}
	router := api.NewRouter(webhook)

	// Middleware to inject logger with trace ID
	loggerMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.EnrichContextWithLogger(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	// Wrap the router with OpenTelemetry middleware to create spans for each request
	handler := otelhttp.NewHandler(loggerMiddleware(router), "webhook")

	// Register the webhook with the platform
	if err := tgClient.SetWebhook(ctx, cfg.WebhookURL); err != nil {
		log.Fatal().Err(err).Msg("Failed to set webhook")
	}

	serverAddr := ":" + cfg.ServerPort
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: handler,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("Attendance bot starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// Stop timers and delivery workers before the listener closes.
	cancel()
	timers.Stop()

	// The context is used to inform the server it has 5 seconds to finish
	// the requests it is currently handling
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
