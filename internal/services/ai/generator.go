package ai

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ai-assistant-tgbot-go/internal/config"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// URLGenerator renders the prompt into a URL template served by a public
// generation endpoint. Nothing is fetched: the URL is handed to Telegram as is,
// so a broken result only shows up when Telegram tries to download it.
type URLGenerator struct {
	kind     string
	template string
	model    string
	width    int
	height   int
	delivery Delivery
	logger   *logrus.Logger
}

// NewURLGenerator creates a template-based generator
func NewURLGenerator(kind string, cfg *config.GeneratorConfig, logger *logrus.Logger) *URLGenerator {
	delivery := DeliveryPhoto
	if cfg.Delivery == string(DeliveryVideo) {
		delivery = DeliveryVideo
	}

	return &URLGenerator{
		kind:     kind,
		template: cfg.Template,
		model:    cfg.Model,
		width:    cfg.Width,
		height:   cfg.Height,
		delivery: delivery,
		logger:   logger,
	}
}

func (g *URLGenerator) Delivery() Delivery {
	return g.delivery
}

func (g *URLGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyMedia
	}

	link := strings.NewReplacer(
		"{prompt}", url.PathEscape(prompt),
		"{model}", url.QueryEscape(g.model),
		"{width}", strconv.Itoa(g.width),
		"{height}", strconv.Itoa(g.height),
	).Replace(g.template)

	if _, err := url.Parse(link); err != nil {
		return "", fmt.Errorf("%s generator: invalid url: %w", g.kind, err)
	}

	g.logger.WithFields(logrus.Fields{
		"kind":  g.kind,
		"model": g.model,
	}).Debug("Media url generated")
	return link, nil
}

// OpenAIImageGenerator uses the OpenAI Images API.
type OpenAIImageGenerator struct {
	client *openai.Client
	model  string
	size   string
	logger *logrus.Logger
}

// NewOpenAIImageGenerator creates an Images API generator
func NewOpenAIImageGenerator(endpoint *config.OpenAICompatConfig, cfg *config.GeneratorConfig, logger *logrus.Logger) *OpenAIImageGenerator {
	return &OpenAIImageGenerator{
		client: newOpenAIClient(endpoint),
		model:  cfg.Model,
		size:   fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		logger: logger,
	}
}

func (g *OpenAIImageGenerator) Delivery() Delivery {
	return DeliveryPhoto
}

func (g *OpenAIImageGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           g.size,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("image generation: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", ErrEmptyMedia
	}
	return resp.Data[0].URL, nil
}
