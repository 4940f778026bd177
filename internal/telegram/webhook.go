package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Requester is the part of *tgbotapi.BotAPI used for webhook maintenance
type Requester interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// WebhookURL joins the public base URL and the webhook path
func WebhookURL(baseURL, path string) string {
	if path == "" {
		return strings.TrimRight(baseURL, "/")
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// SetWebhook registers url with Telegram. A non-empty secret is echoed back
// by Telegram in every update request.
func SetWebhook(bot Requester, url, secret string) error {
	if !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("webhook url must use https: %s", url)
	}

	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)

	if _, err := bot.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes the webhook so that long polling can be used
func DeleteWebhook(bot Requester) error {
	if _, err := bot.MakeRequest("deleteWebhook", tgbotapi.Params{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}
