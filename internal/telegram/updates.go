package telegram

import (
	"context"

	"github.com/ai-assistant-tgbot-go/internal/handlers"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// HandleFunc processes one inbound message
type HandleFunc func(ctx context.Context, in handlers.Inbound) error

// ToInbound extracts the dispatcher input from an update. Updates without a
// user message (edits, callbacks, channel posts, bots) are reported as false.
func ToInbound(update tgbotapi.Update) (handlers.Inbound, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.From.IsBot {
		return handlers.Inbound{}, false
	}

	in := handlers.Inbound{
		UserID:       msg.From.ID,
		ChatID:       msg.Chat.ID,
		Username:     msg.From.UserName,
		FirstName:    msg.From.FirstName,
		LastName:     msg.From.LastName,
		LanguageCode: msg.From.LanguageCode,
		Text:         msg.Text,
	}
	if msg.Voice != nil {
		in.VoiceFileID = msg.Voice.FileID
	}
	if msg.Date != 0 {
		in.SentAt = msg.Time()
	}

	if in.Text == "" && in.VoiceFileID == "" {
		return handlers.Inbound{}, false
	}
	return in, true
}

// Poll receives updates with long polling until ctx is cancelled. Updates are
// handled one at a time.
func Poll(ctx context.Context, bot *tgbotapi.BotAPI, timeout int, handle HandleFunc, logger logrus.FieldLogger) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout

	updates := bot.GetUpdatesChan(u)
	logger.Info("Using long polling")

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			Dispatch(ctx, update, handle, logger)
		}
	}
}

// Dispatch hands one update to handle. Errors are logged, never returned:
// the update counts as delivered either way.
func Dispatch(ctx context.Context, update tgbotapi.Update, handle HandleFunc, logger logrus.FieldLogger) {
	in, ok := ToInbound(update)
	if !ok {
		logger.WithField("update_id", update.UpdateID).Debug("Ignoring unsupported update")
		return
	}

	if err := handle(ctx, in); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"update_id": update.UpdateID,
			"chat_id":   in.ChatID,
		}).Error("Failed to handle message")
	}
}
