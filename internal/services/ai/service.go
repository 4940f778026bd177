package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/ai-assistant-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyCompletion = errors.New("no response from AI")
	ErrEmptyTranscript = errors.New("empty transcript")
	ErrEmptyMedia      = errors.New("no media generated")
)

// Completer turns an ordered conversation into one assistant answer.
type Completer interface {
	Complete(ctx context.Context, messages []models.Message) (string, error)
	Name() string
}

// Delivery is how a generated link is handed to Telegram.
type Delivery string

const (
	DeliveryPhoto Delivery = "photo"
	DeliveryVideo Delivery = "video"
)

// Generator turns a free-text prompt into a media URL.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Delivery() Delivery
}

// Transcriber turns raw audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// NewCompleter builds the completion provider selected in the config.
func NewCompleter(cfg *config.AIConfig, logger *logrus.Logger) (Completer, error) {
	switch cfg.Provider {
	case "groq":
		return NewOpenAICompatible("Groq AI", &cfg.Groq, logger), nil
	case "openai":
		return NewOpenAICompatible("OpenAI", &cfg.OpenAI, logger), nil
	case "yandex":
		return NewYandexGPT(&cfg.Yandex, logger), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

// NewTranscriber builds the speech-to-text backend. Groq and OpenAI both
// serve Whisper behind the same API shape.
func NewTranscriber(cfg *config.AIConfig, logger *logrus.Logger) (Transcriber, error) {
	var endpoint *config.OpenAICompatConfig
	switch cfg.Transcription.Backend {
	case "groq":
		endpoint = &cfg.Groq
	case "openai":
		endpoint = &cfg.OpenAI
	default:
		return nil, fmt.Errorf("unsupported transcription backend: %s", cfg.Transcription.Backend)
	}
	if endpoint.APIKey == "" {
		return nil, fmt.Errorf("transcription backend %s has no api key", cfg.Transcription.Backend)
	}
	return NewWhisper(endpoint, &cfg.Transcription, logger), nil
}

// NewGenerator builds an image or video generator.
func NewGenerator(kind string, cfg *config.GeneratorConfig, openaiCfg *config.OpenAICompatConfig, logger *logrus.Logger) (Generator, error) {
	switch cfg.Backend {
	case "url":
		if cfg.Template == "" {
			return nil, fmt.Errorf("%s generator: url template is required", kind)
		}
		return NewURLGenerator(kind, cfg, logger), nil
	case "openai":
		if openaiCfg.APIKey == "" {
			return nil, fmt.Errorf("%s generator: openai api key is required", kind)
		}
		if cfg.Delivery == string(DeliveryVideo) {
			return nil, fmt.Errorf("%s generator: the images api cannot deliver video", kind)
		}
		return NewOpenAIImageGenerator(openaiCfg, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported %s generator backend: %s", kind, cfg.Backend)
	}
}
