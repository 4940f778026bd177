package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/ai-assistant-tgbot-go/internal/handlers"
	"github.com/ai-assistant-tgbot-go/internal/i18n"
	"github.com/ai-assistant-tgbot-go/internal/middleware"
	"github.com/ai-assistant-tgbot-go/internal/server"
	"github.com/ai-assistant-tgbot-go/internal/services/ai"
	"github.com/ai-assistant-tgbot-go/internal/services/cache"
	"github.com/ai-assistant-tgbot-go/internal/services/state"
	"github.com/ai-assistant-tgbot-go/internal/services/storage"
	"github.com/ai-assistant-tgbot-go/internal/services/voice"
	"github.com/ai-assistant-tgbot-go/internal/telegram"
	"github.com/ai-assistant-tgbot-go/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load .env file if exists
	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting Telegram Bot...")

	// Initialize bot
	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.WithError(err).Fatal("Failed to create bot")
	}

	bot.Debug = cfg.Logging.Level == "debug"
	log.WithField("username", bot.Self.UserName).Info("Bot authorized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics
	metrics := middleware.NewMetrics()

	// Initialize storage
	storageManager, err := storage.NewManager(&cfg.Database, metrics, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	defer storageManager.Close()

	// Initialize mode store
	modeStore, err := state.NewStore(&cfg.State, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize mode store")
	}
	defer modeStore.Close()

	// Initialize i18n
	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Initialize AI services
	completer, err := ai.NewCompleter(&cfg.AI, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize AI provider")
	}

	transport := telegram.NewTransport(bot, log)

	deps := handlers.Dependencies{
		Transport:   transport,
		Records:     storageManager,
		Modes:       modeStore,
		Completer:   completer,
		Cache:       cache.NewCache(&cfg.Cache, log),
		RateLimiter: middleware.NewRateLimiter(&cfg.RateLimit, log),
		Metrics:     metrics,
		Localizer:   localizer,
	}

	// Media and voice are optional: a misconfigured backend only disables its mode
	if deps.Image, err = ai.NewGenerator("image", &cfg.AI.Image, &cfg.AI.OpenAI, log); err != nil {
		log.WithError(err).Warn("Image generation disabled")
	}
	if deps.Video, err = ai.NewGenerator("video", &cfg.AI.Video, &cfg.AI.OpenAI, log); err != nil {
		log.WithError(err).Warn("Video generation disabled")
	}
	if transcriber, err := ai.NewTranscriber(&cfg.AI, log); err != nil {
		log.WithError(err).Warn("Voice messages disabled")
	} else {
		deps.Voice = voice.NewService(transport, transcriber, log)
	}

	dispatcher := handlers.NewDispatcher(deps, handlers.Options{
		SystemPrompt:   cfg.Context.SystemPrompt,
		HistoryLimit:   cfg.Context.HistoryLimit,
		SupportContact: cfg.Bot.SupportContact,
		RequestTimeout: cfg.AI.RequestTimeout,
	}, log)

	if rl, ok := deps.RateLimiter.(*middleware.UserRateLimiter); ok {
		go startPeriodicTasks(ctx, rl, log)
	}

	var webhookServer *server.Server
	if cfg.Bot.Webhook.Enabled {
		metricsPath := ""
		if cfg.Monitoring.Metrics.Enabled {
			metricsPath = cfg.Monitoring.Metrics.Path
		}
		webhookServer = server.New(&cfg.Bot.Webhook, metricsPath, cfg.AI.RequestTimeout, dispatcher.Handle, metrics, log)

		if cfg.Bot.Webhook.URL != "" {
			webhookURL := telegram.WebhookURL(cfg.Bot.Webhook.URL, cfg.Bot.Webhook.Path)
			if err := telegram.SetWebhook(bot, webhookURL, cfg.Bot.Webhook.Secret); err != nil {
				log.WithError(err).Fatal("Failed to set webhook")
			}
			log.WithField("url", webhookURL).Info("Webhook set")
		}

		go func() {
			if err := webhookServer.Start(); err != nil {
				log.WithError(err).Fatal("Webhook server stopped")
			}
		}()
	} else {
		// Start metrics server if enabled
		if cfg.Monitoring.Metrics.Enabled {
			go func() {
				log.WithFields(logrus.Fields{
					"port": cfg.Monitoring.Metrics.Port,
					"path": cfg.Monitoring.Metrics.Path,
				}).Info("Starting metrics server")

				if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
					log.WithError(err).Error("Metrics server failed")
				}
			}()
		}

		// getUpdates is refused while a webhook is registered
		if err := telegram.DeleteWebhook(bot); err != nil {
			log.WithError(err).Warn("Failed to delete webhook")
		}
		go telegram.Poll(ctx, bot, cfg.Bot.UpdateTimeout, dispatcher.Handle, log)
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	<-sigChan
	log.Info("Shutdown signal received")

	if webhookServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := webhookServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Failed to shut down webhook server")
		}
		shutdownCancel()
	}

	// Cancel context to stop all goroutines
	cancel()

	// Give goroutines time to finish
	time.Sleep(2 * time.Second)

	log.Info("Bot stopped")
}

// startPeriodicTasks starts periodic background tasks
func startPeriodicTasks(ctx context.Context, rateLimiter *middleware.UserRateLimiter, log *logrus.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := rateLimiter.Cleanup(); removed > 0 {
				log.WithField("removed", removed).Debug("Idle rate limiters cleaned up")
			}
		}
	}
}
