package ai

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/ai-assistant-tgbot-go/internal/models"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

func newOpenAIClient(endpoint *config.OpenAICompatConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(endpoint.APIKey)
	if endpoint.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(endpoint.BaseURL, "/")
	}
	return openai.NewClientWithConfig(clientCfg)
}

// OpenAICompatible talks to any OpenAI-style chat completions endpoint (Groq, OpenAI).
type OpenAICompatible struct {
	name   string
	client *openai.Client
	cfg    *config.OpenAICompatConfig
	logger *logrus.Logger
}

// NewOpenAICompatible creates a completion provider for an OpenAI-compatible endpoint
func NewOpenAICompatible(name string, cfg *config.OpenAICompatConfig, logger *logrus.Logger) *OpenAICompatible {
	logger.WithFields(logrus.Fields{
		"provider": name,
		"baseURL":  cfg.BaseURL,
		"model":    cfg.Model,
	}).Info("AI provider initialized")

	return &OpenAICompatible{
		name:   name,
		client: newOpenAIClient(cfg),
		cfg:    cfg,
		logger: logger,
	}
}

func (s *OpenAICompatible) Name() string {
	return s.name
}

// Complete sends the conversation in one request. There is no retry: a
// failure is reported to the caller as is.
func (s *OpenAICompatible) Complete(ctx context.Context, messages []models.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    toOpenAIMessages(messages),
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}

	s.logger.WithFields(logrus.Fields{
		"provider": s.name,
		"model":    s.cfg.Model,
		"messages": len(messages),
	}).Debug("Sending AI request")

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", s.name, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return out
}

// Whisper transcribes audio through the OpenAI audio API.
type Whisper struct {
	client   *openai.Client
	model    string
	language string
	logger   *logrus.Logger
}

// NewWhisper creates a transcriber for an OpenAI-compatible endpoint
func NewWhisper(endpoint *config.OpenAICompatConfig, cfg *config.TranscriptionConfig, logger *logrus.Logger) *Whisper {
	return &Whisper{
		client:   newOpenAIClient(endpoint),
		model:    cfg.Model,
		language: cfg.Language,
		logger:   logger,
	}
}

func (w *Whisper) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		Reader:   bytes.NewReader(audio),
		FilePath: filename,
		Language: w.language,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}

	w.logger.WithFields(logrus.Fields{
		"bytes": len(audio),
		"chars": len(text),
	}).Debug("Voice transcribed")
	return text, nil
}
