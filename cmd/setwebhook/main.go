package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/ai-assistant-tgbot-go/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	deleteHook := flag.Bool("delete", false, "Delete the webhook instead of setting it")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [https://your-domain/api/webhook]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := config.LoadBotConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		fmt.Printf("Failed to create bot: %v\n", err)
		os.Exit(1)
	}

	if *deleteHook {
		if err := telegram.DeleteWebhook(bot); err != nil {
			fmt.Printf("%v\n", err)
			os.Exit(1)
		}
		fmt.Println("Webhook deleted")
		return
	}

	webhookURL := flag.Arg(0)
	if webhookURL == "" {
		if cfg.Webhook.URL == "" {
			flag.Usage()
			os.Exit(2)
		}
		webhookURL = telegram.WebhookURL(cfg.Webhook.URL, cfg.Webhook.Path)
	}

	if err := telegram.SetWebhook(bot, webhookURL, cfg.Webhook.Secret); err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Webhook set: %s\n", webhookURL)

	info, err := bot.GetWebhookInfo()
	if err != nil {
		fmt.Printf("Failed to get webhook info: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Pending updates: %d\n", info.PendingUpdateCount)
	if info.LastErrorMessage != "" {
		fmt.Printf("Last error: %s\n", info.LastErrorMessage)
	}
}
