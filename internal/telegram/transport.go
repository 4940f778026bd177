package telegram

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/ai-assistant-tgbot-go/internal/handlers"
	"github.com/ai-assistant-tgbot-go/pkg/markdown"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const maxMessageLength = 4096

// BotAPI is the part of *tgbotapi.BotAPI used by the transport
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Transport sends dispatcher replies through the Bot API
type Transport struct {
	bot    BotAPI
	logger *logrus.Logger
}

// NewTransport creates a new Telegram transport
func NewTransport(bot BotAPI, logger *logrus.Logger) *Transport {
	return &Transport{
		bot:    bot,
		logger: logger,
	}
}

// FileURL resolves a file id to a download link
func (t *Transport) FileURL(ctx context.Context, fileID string) (string, error) {
	link, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to get file %s: %w", fileID, err)
	}
	return link, nil
}

// Send delivers a reply as a text, photo or video message
func (t *Transport) Send(ctx context.Context, reply handlers.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	markup := replyKeyboard(reply.Keyboard)

	switch {
	case reply.PhotoURL != "":
		photo := tgbotapi.NewPhoto(reply.ChatID, tgbotapi.FileURL(reply.PhotoURL))
		photo.Caption = reply.Text
		if markup != nil {
			photo.ReplyMarkup = markup
		}
		if _, err := t.bot.Send(photo); err != nil {
			return fmt.Errorf("failed to send photo: %w", err)
		}
		return nil

	case reply.VideoURL != "":
		video := tgbotapi.NewVideo(reply.ChatID, tgbotapi.FileURL(reply.VideoURL))
		video.Caption = reply.Text
		if markup != nil {
			video.ReplyMarkup = markup
		}
		if _, err := t.bot.Send(video); err != nil {
			return fmt.Errorf("failed to send video: %w", err)
		}
		return nil
	}

	return t.sendText(reply, markup)
}

func (t *Transport) sendText(reply handlers.Reply, markup *tgbotapi.ReplyKeyboardMarkup) error {
	text, parseMode := reply.Text, ""
	switch reply.Format {
	case handlers.FormatRich:
		text, parseMode = markdown.ToTelegramHTML(reply.Text), tgbotapi.ModeHTML
	case handlers.FormatMarkdown:
		parseMode = tgbotapi.ModeMarkdown
	}

	if parseMode != "" && utf8.RuneCountInString(text) <= maxMessageLength {
		msg := newMessage(reply.ChatID, text, markup)
		msg.ParseMode = parseMode
		_, err := t.bot.Send(msg)
		if err == nil {
			return nil
		}
		t.logger.WithError(err).WithField("parse_mode", parseMode).Warn("Formatted send failed, falling back to plain text")
	}

	// Plain text, split at the message size limit. The keyboard goes with the last part.
	chunks := splitText(reply.Text, maxMessageLength)
	for i, chunk := range chunks {
		var m *tgbotapi.ReplyKeyboardMarkup
		if i == len(chunks)-1 {
			m = markup
		}
		if _, err := t.bot.Send(newMessage(reply.ChatID, chunk, m)); err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
	}
	return nil
}

func newMessage(chatID int64, text string, markup *tgbotapi.ReplyKeyboardMarkup) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	return msg
}

func replyKeyboard(rows [][]string) *tgbotapi.ReplyKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}

	buttons := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			line = append(line, tgbotapi.NewKeyboardButton(label))
		}
		buttons = append(buttons, line)
	}

	keyboard := tgbotapi.NewReplyKeyboard(buttons...)
	keyboard.ResizeKeyboard = true
	return &keyboard
}

func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		n := limit
		if n > len(runes) {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
