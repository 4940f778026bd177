package handlers

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ai-assistant-tgbot-go/internal/i18n"
	"github.com/ai-assistant-tgbot-go/internal/middleware"
	"github.com/ai-assistant-tgbot-go/internal/models"
	"github.com/ai-assistant-tgbot-go/internal/services/ai"
	"github.com/ai-assistant-tgbot-go/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Format tells the transport how to render Reply.Text
type Format string

const (
	FormatPlain Format = ""
	// FormatMarkdown is sent with Telegram's Markdown parse mode.
	FormatMarkdown Format = "markdown"
	// FormatRich is model output in CommonMark, rendered to Telegram HTML.
	FormatRich Format = "rich"
)

// maxCaptionLength is the Telegram limit for media captions.
const maxCaptionLength = 1024

// Inbound is one user message as seen by the dispatcher
type Inbound struct {
	UserID       int64
	ChatID       int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	Text         string
	VoiceFileID  string
	// SentAt is when the user sent the message; zero when unknown.
	SentAt time.Time
}

// Reply is one outbound message. PhotoURL or VideoURL turn it into a media
// message with Text as the caption.
type Reply struct {
	ChatID   int64
	Text     string
	Format   Format
	Keyboard [][]string
	PhotoURL string
	VideoURL string
}

// Transport delivers replies to the messenger
type Transport interface {
	Send(ctx context.Context, reply Reply) error
	FileURL(ctx context.Context, fileID string) (string, error)
}

// RecordStore persists users and their conversation turns
type RecordStore interface {
	UpsertUser(ctx context.Context, user *models.User) error
	TouchUser(ctx context.Context, user *models.User) error
	AppendTurn(ctx context.Context, userID int64, role models.Role, content string) error
	// RecentTurns returns at most limit turns, newest first.
	RecentTurns(ctx context.Context, userID int64, limit int) ([]models.Turn, error)
	DeleteTurns(ctx context.Context, userID int64) error
}

// ModeStore keeps the selected conversation mode per user
type ModeStore interface {
	Get(ctx context.Context, userID int64) (models.Mode, error)
	Set(ctx context.Context, userID int64, mode models.Mode) error
	Clear(ctx context.Context, userID int64) error
}

// VoiceTranscriber turns a voice file id into text
type VoiceTranscriber interface {
	Transcribe(ctx context.Context, fileID string) (string, error)
}

// MediaCache remembers generated media per (kind, prompt)
type MediaCache interface {
	Get(ctx context.Context, kind, prompt string) (string, bool)
	Set(ctx context.Context, kind, prompt, url string) error
	Delete(ctx context.Context, kind, prompt string) error
}

// Options are the fixed dispatcher parameters
type Options struct {
	SystemPrompt   string
	HistoryLimit   int
	SupportContact string
	// RequestTimeout bounds each AI call; zero means no limit.
	RequestTimeout time.Duration
}

// Dependencies groups the collaborators of a Dispatcher. Voice, Cache,
// RateLimiter and the generators are optional.
type Dependencies struct {
	Transport   Transport
	Records     RecordStore
	Modes       ModeStore
	Completer   ai.Completer
	Image       ai.Generator
	Video       ai.Generator
	Voice       VoiceTranscriber
	Cache       MediaCache
	RateLimiter middleware.RateLimiter
	Metrics     *middleware.Metrics
	Localizer   *i18n.Localizer
}

// Dispatcher decides what to do with every inbound message
type Dispatcher struct {
	transport   Transport
	records     RecordStore
	modes       ModeStore
	completer   ai.Completer
	generators  map[models.Mode]ai.Generator
	voice       VoiceTranscriber
	cache       MediaCache
	rateLimiter middleware.RateLimiter
	metrics     *middleware.Metrics
	localizer   *i18n.Localizer
	parser      *CommandParser
	opts        Options
	logger      *logrus.Logger
}

// NewDispatcher creates a new conversation dispatcher
func NewDispatcher(deps Dependencies, opts Options, logger *logrus.Logger) *Dispatcher {
	generators := make(map[models.Mode]ai.Generator)
	if deps.Image != nil {
		generators[models.ModeImage] = deps.Image
	}
	if deps.Video != nil {
		generators[models.ModeVideo] = deps.Video
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = middleware.NewMetrics()
	}

	return &Dispatcher{
		transport:   deps.Transport,
		records:     deps.Records,
		modes:       deps.Modes,
		completer:   deps.Completer,
		generators:  generators,
		voice:       deps.Voice,
		cache:       deps.Cache,
		rateLimiter: deps.RateLimiter,
		metrics:     metrics,
		localizer:   deps.Localizer,
		parser:      NewCommandParser(deps.Localizer),
		opts:        opts,
		logger:      logger,
	}
}

// Handle processes one inbound message. Failures of external services are
// turned into user-facing messages; only a failed send is returned.
func (d *Dispatcher) Handle(ctx context.Context, in Inbound) error {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.VoiceFileID == "" {
		d.metrics.RecordMessageReceived("other")
		return nil
	}

	lang := d.localizer.Match(in.LanguageCode)
	log := logger.ForChat(d.logger, in.ChatID, in.UserID)

	// Transcriptions are never treated as menu commands.
	cmd := CommandNone
	if in.VoiceFileID == "" {
		d.metrics.RecordMessageReceived("text")
		cmd = d.parser.Parse(text)
	} else {
		d.metrics.RecordMessageReceived("voice")
	}

	d.recordUser(ctx, in, cmd == CommandStart, log)

	if in.VoiceFileID != "" {
		transcript, err := d.transcribe(ctx, in.VoiceFileID)
		if err != nil {
			log.WithError(err).Error("Failed to transcribe voice message")
			d.metrics.RecordMessageProcessed("error")
			return d.reply(ctx, in.ChatID, lang, i18n.MsgVoiceFailed, nil)
		}
		if err := d.reply(ctx, in.ChatID, lang, i18n.MsgVoiceEcho, map[string]interface{}{"Text": transcript}); err != nil {
			return err
		}
		text = transcript
	}

	if cmd != CommandNone {
		d.metrics.RecordCommandExecuted(cmd.String())
		return d.handleCommand(ctx, in, cmd, lang, log)
	}

	return d.handleFreeText(ctx, in, text, lang, log)
}

func (d *Dispatcher) recordUser(ctx context.Context, in Inbound, register bool, log *logrus.Entry) {
	user := &models.User{
		ID:         in.UserID,
		Username:   in.Username,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		LastActive: in.SentAt,
	}

	var err error
	if register {
		err = d.records.UpsertUser(ctx, user)
	} else {
		err = d.records.TouchUser(ctx, user)
	}
	if err != nil {
		log.WithError(err).Warn("Failed to record user activity")
	}
}

func (d *Dispatcher) transcribe(ctx context.Context, fileID string) (string, error) {
	if d.voice == nil {
		return "", ai.ErrEmptyTranscript
	}

	aiCtx, cancel := d.aiContext(ctx)
	defer cancel()

	start := time.Now()
	transcript, err := d.voice.Transcribe(aiCtx, fileID)
	if err == nil && strings.TrimSpace(transcript) == "" {
		err = ai.ErrEmptyTranscript
	}
	d.metrics.RecordAIRequest("transcription", middleware.StatusLabel(err), time.Since(start))
	return strings.TrimSpace(transcript), err
}

func (d *Dispatcher) handleCommand(ctx context.Context, in Inbound, cmd Command, lang string, log *logrus.Entry) error {
	switch cmd {
	case CommandStart:
		if err := d.modes.Clear(ctx, in.UserID); err != nil {
			log.WithError(err).Error("Failed to reset mode")
		}
		return d.reply(ctx, in.ChatID, lang, i18n.MsgWelcome, map[string]interface{}{
			"Provider": d.completer.Name(),
		})

	case CommandModeText, CommandModeImage, CommandModeVideo:
		mode, _ := cmd.Mode()
		if err := d.modes.Set(ctx, in.UserID, mode); err != nil {
			log.WithError(err).WithField("mode", mode).Error("Failed to set mode")
			return d.reply(ctx, in.ChatID, lang, i18n.MsgAIError, nil)
		}
		return d.reply(ctx, in.ChatID, lang, modeMessages[mode], nil)

	case CommandClearHistory:
		if err := d.records.DeleteTurns(ctx, in.UserID); err != nil {
			log.WithError(err).Error("Failed to clear history")
			return d.reply(ctx, in.ChatID, lang, i18n.MsgHistoryClearFailed, nil)
		}
		log.Info("History cleared")
		return d.reply(ctx, in.ChatID, lang, i18n.MsgHistoryCleared, nil)

	case CommandInfo:
		return d.send(ctx, Reply{
			ChatID: in.ChatID,
			Text: d.localizer.Get(lang, i18n.MsgInfo, map[string]interface{}{
				"Provider": d.completer.Name(),
				"Support":  d.opts.SupportContact,
			}),
			Format:   FormatMarkdown,
			Keyboard: MenuKeyboard(d.localizer, lang),
		})

	case CommandDisableAds:
		return d.reply(ctx, in.ChatID, lang, i18n.MsgNoAdsStub, nil)
	}

	return nil
}

var modeMessages = map[models.Mode]string{
	models.ModeText:  i18n.MsgModeText,
	models.ModeImage: i18n.MsgModeImage,
	models.ModeVideo: i18n.MsgModeVideo,
}

func (d *Dispatcher) handleFreeText(ctx context.Context, in Inbound, text, lang string, log *logrus.Entry) error {
	mode, err := d.modes.Get(ctx, in.UserID)
	if err != nil {
		log.WithError(err).Error("Failed to read mode")
		mode = models.ModeUnset
	}

	if mode == models.ModeUnset {
		d.metrics.RecordMessageProcessed("no_mode")
		return d.reply(ctx, in.ChatID, lang, i18n.MsgChooseMode, nil)
	}

	if err := middleware.ValidateInput(text); err != nil {
		log.WithError(err).Warn("Input validation failed")
		d.metrics.RecordMessageProcessed("rejected")
		return d.reply(ctx, in.ChatID, lang, i18n.MsgMessageTooLong, map[string]interface{}{
			"Limit": middleware.MaxMessageLength,
		})
	}

	if d.rateLimiter != nil && !d.rateLimiter.Allow(in.UserID) {
		d.metrics.RecordRateLimitExceeded()
		d.metrics.RecordMessageProcessed("rate_limited")
		return d.reply(ctx, in.ChatID, lang, i18n.MsgRateLimitExceeded, nil)
	}

	log.WithField("mode", mode).Debug("Processing free text")

	switch mode {
	case models.ModeText:
		return d.handleTextMode(ctx, in, text, lang, log)
	default:
		return d.handleMediaMode(ctx, in, mode, text, lang, log)
	}
}

func (d *Dispatcher) handleTextMode(ctx context.Context, in Inbound, text, lang string, log *logrus.Entry) error {
	if err := d.reply(ctx, in.ChatID, lang, i18n.MsgProcessing, nil); err != nil {
		return err
	}

	history, err := d.records.RecentTurns(ctx, in.UserID, d.opts.HistoryLimit)
	if err != nil {
		log.WithError(err).Warn("Failed to load history, answering without context")
		history = nil
	}
	messages := BuildContext(d.opts.SystemPrompt, history, text)

	aiCtx, cancel := d.aiContext(ctx)
	start := time.Now()
	answer, err := d.completer.Complete(aiCtx, messages)
	cancel()
	d.metrics.RecordAIRequest("completion", middleware.StatusLabel(err), time.Since(start))

	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"provider": d.completer.Name(),
			"history":  len(history),
		}).Error("AI completion failed")
		d.metrics.RecordMessageProcessed("error")
		return d.reply(ctx, in.ChatID, lang, i18n.MsgAIError, nil)
	}

	if err := d.records.AppendTurn(ctx, in.UserID, models.RoleUser, text); err != nil {
		log.WithError(err).Error("Failed to save user turn")
	} else if err := d.records.AppendTurn(ctx, in.UserID, models.RoleAssistant, answer); err != nil {
		log.WithError(err).Error("Failed to save assistant turn")
	}

	d.metrics.RecordMessageProcessed("success")
	return d.send(ctx, Reply{
		ChatID:   in.ChatID,
		Text:     answer,
		Format:   FormatRich,
		Keyboard: MenuKeyboard(d.localizer, lang),
	})
}

func (d *Dispatcher) handleMediaMode(ctx context.Context, in Inbound, mode models.Mode, prompt, lang string, log *logrus.Entry) error {
	kind := string(mode)
	log = log.WithField("kind", kind)

	if err := d.reply(ctx, in.ChatID, lang, i18n.MsgGenerating, nil); err != nil {
		return err
	}

	link, delivery, err := d.generate(ctx, mode, prompt)
	if err != nil {
		log.WithError(err).Error("Media generation failed")
		d.metrics.RecordMessageProcessed("error")
		return d.reply(ctx, in.ChatID, lang, i18n.MsgGenerationFailed, nil)
	}

	reply := Reply{
		ChatID:   in.ChatID,
		Text:     truncateRunes(prompt, maxCaptionLength),
		Keyboard: MenuKeyboard(d.localizer, lang),
	}
	if delivery == ai.DeliveryVideo {
		reply.VideoURL = link
	} else {
		reply.PhotoURL = link
	}

	// Telegram fetches the URL itself and rejects the message when it cannot.
	if err := d.send(ctx, reply); err != nil {
		log.WithError(err).Error("Failed to deliver generated media")
		if d.cache != nil {
			if err := d.cache.Delete(ctx, kind, prompt); err != nil {
				log.WithError(err).Warn("Failed to evict media url")
			}
		}
		d.metrics.RecordMessageProcessed("error")
		return d.reply(ctx, in.ChatID, lang, i18n.MsgGenerationFailed, nil)
	}

	d.metrics.RecordMessageProcessed("success")
	return nil
}

func (d *Dispatcher) generate(ctx context.Context, mode models.Mode, prompt string) (string, ai.Delivery, error) {
	kind := string(mode)
	generator, ok := d.generators[mode]
	if !ok {
		return "", "", ai.ErrEmptyMedia
	}
	delivery := generator.Delivery()

	if d.cache != nil {
		if link, found := d.cache.Get(ctx, kind, prompt); found {
			d.metrics.RecordCacheHit()
			return link, delivery, nil
		}
		d.metrics.RecordCacheMiss()
	}

	aiCtx, cancel := d.aiContext(ctx)
	defer cancel()

	start := time.Now()
	link, err := generator.Generate(aiCtx, prompt)
	if err == nil && link == "" {
		err = ai.ErrEmptyMedia
	}
	d.metrics.RecordAIRequest(kind, middleware.StatusLabel(err), time.Since(start))
	if err != nil {
		return "", "", err
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, kind, prompt, link); err != nil {
			d.logger.WithError(err).Warn("Failed to cache media url")
		}
	}
	return link, delivery, nil
}

func (d *Dispatcher) aiContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.opts.RequestTimeout > 0 {
		return context.WithTimeout(ctx, d.opts.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// reply sends a localized message with the main menu attached
func (d *Dispatcher) reply(ctx context.Context, chatID int64, lang, messageID string, data map[string]interface{}) error {
	return d.send(ctx, Reply{
		ChatID:   chatID,
		Text:     d.localizer.Get(lang, messageID, data),
		Keyboard: MenuKeyboard(d.localizer, lang),
	})
}

func (d *Dispatcher) send(ctx context.Context, reply Reply) error {
	if err := d.transport.Send(ctx, reply); err != nil {
		d.logger.WithError(err).WithField("chat_id", reply.ChatID).Error("Failed to send reply")
		return err
	}
	return nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
