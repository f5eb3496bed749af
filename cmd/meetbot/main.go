package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DevRickLin/feishu-meetbot/internal/api"
	"github.com/DevRickLin/feishu-meetbot/internal/biz/usecase"
	"github.com/DevRickLin/feishu-meetbot/internal/conf"
	"github.com/DevRickLin/feishu-meetbot/internal/data"
	"github.com/DevRickLin/feishu-meetbot/internal/infra/feishu"
	"github.com/DevRickLin/feishu-meetbot/internal/infra/transcript"
	"github.com/DevRickLin/feishu-meetbot/internal/infra/tropo"
	"github.com/DevRickLin/feishu-meetbot/internal/logging"
	"github.com/DevRickLin/feishu-meetbot/internal/server"
	"github.com/DevRickLin/feishu-meetbot/internal/service"
	"github.com/DevRickLin/feishu-meetbot/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file
	envErr := godotenv.Load()

	// Load configuration
	cfg := conf.LoadFromEnv()
	logging.InitStructureLogConfig(os.Stdout, cfg.Debug)
	if envErr != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", logging.ErrKey, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.ConfigFromEnv())
	if err != nil {
		slog.Error("failed to set up telemetry", logging.ErrKey, err)
		os.Exit(1)
	}

	store, err := data.OpenStore(ctx, cfg.Store.Backend, cfg.Store.DBPath, cfg.Store.NatsURL)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.Store.Backend, logging.ErrKey, err)
		os.Exit(1)
	}
	slog.Info("store opened", "backend", cfg.Store.Backend)

	// Initialize clients
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
	var tropoClient *tropo.Client
	if cfg.Voice.Enabled() {
		tropoClient = tropo.NewClient(cfg.Voice.APIURL, cfg.Voice.Token)
		slog.Info("telephony enabled", "public_url", cfg.Server.PublicURL)
	}

	// Initialize repository layer
	repos := data.NewRepositories(store, feishuClient, tropoClient, transcript.NewRenderer(cfg.Transcript.FontPath))
	defer repos.Close()

	// Initialize usecase layer
	meetingUC := usecase.NewMeetingUsecase(
		repos.Meeting, repos.Topic, repos.Caller,
		repos.Message, repos.Voice, repos.Transcript,
		cfg.ToTemplates(), cfg.ToVoiceSettings(),
	)
	voiceUC := usecase.NewVoiceUsecase(repos.Meeting, repos.Topic, repos.Caller)

	// Initialize service layer
	scheduler := service.NewLifecycleScheduler(meetingUC, cfg.ToScheduleConfig())
	scheduler.Start(ctx)
	janitor := service.NewStaleJanitor(meetingUC, cfg.Schedule.StaleAfter, 0)
	janitor.Start()
	router := service.NewCommandRouter(meetingUC, scheduler)

	// HTTP API: chat webhook, IVR callbacks, transcripts, admin
	apiServer := api.NewServer(meetingUC, voiceUC, router, repos.Message, api.Options{
		Port:         cfg.Server.Port,
		PublicURL:    cfg.Server.PublicURL,
		RecordingURL: cfg.Voice.RecordingURL,
	})
	go func() {
		if err := apiServer.Start(); err != nil {
			slog.Error("API server error", logging.ErrKey, err)
			stop()
		}
	}()

	// Feishu websocket events
	feishuServer := server.NewFeishuServer(feishuClient, router, meetingUC)
	go func() {
		if err := feishuServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Feishu connection error", logging.ErrKey, err)
			stop()
		}
	}()

	slog.Info("meetbot started", "port", apiServer.GetPort())
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	feishuServer.Stop()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("API server shutdown", logging.ErrKey, err)
	}
	scheduler.Stop()
	janitor.Stop()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown", logging.ErrKey, err)
	}
}
