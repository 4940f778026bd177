package ai

import (
	"context"
	"fmt"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/ai-assistant-tgbot-go/internal/models"
	yandexgpt "github.com/sheeiavellie/go-yandexgpt"
	"github.com/sirupsen/logrus"
)

type yandexCompletionFunc func(ctx context.Context, request yandexgpt.YandexGPTRequest) (string, error)

// YandexGPT implements Completer on top of the Yandex Foundation Models API
type YandexGPT struct {
	complete    yandexCompletionFunc
	modelURI    string
	temperature float64
	maxTokens   int
	logger      *logrus.Logger
}

// NewYandexGPT creates a Yandex GPT provider authenticated with an API key
func NewYandexGPT(cfg *config.YandexConfig, logger *logrus.Logger) *YandexGPT {
	modelURI := yandexModelURI(cfg.FolderID, cfg.Model)
	logger.WithField("model", modelURI).Info("AI provider initialized")

	client := yandexgpt.NewYandexGPTClientWithAPIKey(cfg.APIKey)
	complete := func(ctx context.Context, request yandexgpt.YandexGPTRequest) (string, error) {
		response, err := client.GetCompletion(ctx, request)
		if err != nil {
			return "", err
		}
		if len(response.Result.Alternatives) == 0 {
			return "", nil
		}
		return response.Result.Alternatives[0].Message.Text, nil
	}

	return &YandexGPT{
		complete:    complete,
		modelURI:    modelURI,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

func (s *YandexGPT) Name() string {
	return "Yandex GPT"
}

func (s *YandexGPT) Complete(ctx context.Context, messages []models.Message) (string, error) {
	request := yandexgpt.YandexGPTRequest{
		ModelURI: s.modelURI,
		CompletionOptions: yandexgpt.YandexGPTCompletionOptions{
			Stream:      false,
			Temperature: s.temperature,
			MaxTokens:   s.maxTokens,
		},
		Messages: toYandexMessages(messages),
	}

	s.logger.WithFields(logrus.Fields{
		"model":    s.modelURI,
		"messages": len(messages),
	}).Debug("Sending AI request")

	text, err := s.complete(ctx, request)
	if err != nil {
		return "", fmt.Errorf("yandex gpt completion: %w", err)
	}
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func yandexModelURI(folderID, model string) string {
	return fmt.Sprintf("gpt://%s/%s", folderID, model)
}

func toYandexMessages(messages []models.Message) []yandexgpt.YandexGPTMessage {
	out := make([]yandexgpt.YandexGPTMessage, 0, len(messages))
	for _, msg := range messages {
		m := yandexgpt.YandexGPTMessage{Text: msg.Content}
		switch msg.Role {
		case models.RoleSystem:
			m.Role = yandexgpt.YandexGPTMessageRoleSystem
		case models.RoleAssistant:
			m.Role = yandexgpt.YandexGPTMessageRoleAssistant
		default:
			m.Role = yandexgpt.YandexGPTMessageRoleUser
		}
		out = append(out, m)
	}
	return out
}
