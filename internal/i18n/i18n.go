package i18n

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	languages       []string
	matcher         language.Matcher
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer from the embedded locale files
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	defaultTag, err := language.Parse(cfg.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", cfg.DefaultLanguage, err)
	}

	bundle := i18n.NewBundle(defaultTag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	languages := cfg.Languages
	if len(languages) == 0 {
		languages = []string{cfg.DefaultLanguage}
	}

	tags := make([]language.Tag, 0, len(languages))
	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range languages {
		if _, err := bundle.LoadMessageFileFS(localeFS, fmt.Sprintf("locales/%s.json", lang)); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
		tags = append(tags, language.Make(lang))
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	if _, ok := localizers[cfg.DefaultLanguage]; !ok {
		return nil, fmt.Errorf("default language %s is not in the language list", cfg.DefaultLanguage)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		languages:       languages,
		matcher:         language.NewMatcher(tags),
		localizers:      localizers,
	}, nil
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// Match picks the supported language closest to a Telegram language code.
func (l *Localizer) Match(code string) string {
	if code == "" {
		return l.defaultLanguage
	}
	_, idx, confidence := l.matcher.Match(language.Make(code))
	if confidence == language.No {
		return l.defaultLanguage
	}
	return l.languages[idx]
}

// Labels returns the translation of messageID in every loaded language.
func (l *Localizer) Labels(messageID string) []string {
	labels := make([]string, 0, len(l.languages))
	for _, lang := range l.languages {
		labels = append(labels, l.Get(lang, messageID, nil))
	}
	return labels
}

// Message IDs
const (
	MsgWelcome            = "welcome"
	MsgModeText           = "mode_text"
	MsgModeImage          = "mode_image"
	MsgModeVideo          = "mode_video"
	MsgInfo               = "info"
	MsgHistoryCleared     = "history_cleared"
	MsgHistoryClearFailed = "history_clear_failed"
	MsgNoAdsStub          = "noads_stub"
	MsgChooseMode         = "choose_mode"
	MsgProcessing         = "processing"
	MsgGenerating         = "generating"
	MsgAIError            = "ai_error"
	MsgGenerationFailed   = "generation_failed"
	MsgVoiceFailed        = "voice_failed"
	MsgVoiceEcho          = "voice_echo"
	MsgRateLimitExceeded  = "rate_limit_exceeded"
	MsgMessageTooLong     = "message_too_long"

	ButtonText  = "button.text"
	ButtonImage = "button.image"
	ButtonVideo = "button.video"
	ButtonInfo  = "button.info"
	ButtonClear = "button.clear"
	ButtonNoAds = "button.noads"
)
