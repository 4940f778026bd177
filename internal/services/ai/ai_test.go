package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/ai-assistant-tgbot-go/internal/models"
	"github.com/ai-assistant-tgbot-go/pkg/logger"
	yandexgpt "github.com/sheeiavellie/go-yandexgpt"
)

func TestOpenAICompatibleComplete(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"pong"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAICompatible("Groq AI", &config.OpenAICompatConfig{
		BaseURL:     srv.URL + "/v1/",
		APIKey:      "key",
		Model:       "llama-3.3-70b-versatile",
		Temperature: 0.7,
		MaxTokens:   2000,
	}, logger.NewDiscardLogger())

	answer, err := p.Complete(context.Background(), []models.Message{
		{Role: models.RoleSystem, Content: "sys"},
		{Role: models.RoleUser, Content: "ping"},
	})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if answer != "pong" {
		t.Fatalf("unexpected answer %q", answer)
	}
	if got.Model != "llama-3.3-70b-versatile" || got.MaxTokens != 2000 || got.Temperature != 0.7 {
		t.Fatalf("unexpected request params %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "ping" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
	if p.Name() != "Groq AI" {
		t.Fatalf("unexpected name %q", p.Name())
	}
}

func TestOpenAICompatibleCompleteFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"empty choices", http.StatusOK, `{"choices":[]}`, ErrEmptyCompletion},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			p := NewOpenAICompatible("test", &config.OpenAICompatConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"}, logger.NewDiscardLogger())
			_, err := p.Complete(context.Background(), []models.Message{{Role: models.RoleUser, Content: "hi"}})
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestWhisperTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("model") != "whisper-large-v3" || r.FormValue("language") != "ru" {
			t.Errorf("unexpected form %v", r.MultipartForm.Value)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"  привет мир "}`)
	}))
	defer srv.Close()

	w := NewWhisper(
		&config.OpenAICompatConfig{BaseURL: srv.URL, APIKey: "k"},
		&config.TranscriptionConfig{Model: "whisper-large-v3", Language: "ru"},
		logger.NewDiscardLogger(),
	)
	text, err := w.Transcribe(context.Background(), []byte("OggS"), "voice.ogg")
	if err != nil {
		t.Fatalf("Transcribe error: %v", err)
	}
	if text != "привет мир" {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestWhisperEmptyTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"   "}`)
	}))
	defer srv.Close()

	w := NewWhisper(&config.OpenAICompatConfig{BaseURL: srv.URL, APIKey: "k"}, &config.TranscriptionConfig{Model: "m"}, logger.NewDiscardLogger())
	if _, err := w.Transcribe(context.Background(), []byte("x"), "voice.ogg"); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
}

func TestURLGenerator(t *testing.T) {
	g := NewURLGenerator("image", &config.GeneratorConfig{
		Template: "https://img.example/prompt/{prompt}?w={width}&h={height}&model={model}",
		Model:    "flux",
		Width:    512,
		Height:   256,
	}, logger.NewDiscardLogger())

	link, err := g.Generate(context.Background(), " red cat/dog ")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	want := "https://img.example/prompt/red%20cat%2Fdog?w=512&h=256&model=flux"
	if link != want {
		t.Fatalf("unexpected url\n got %s\nwant %s", link, want)
	}

	if _, err := g.Generate(context.Background(), "   "); !errors.Is(err, ErrEmptyMedia) {
		t.Fatalf("expected ErrEmptyMedia for blank prompt, got %v", err)
	}
}

func TestOpenAIImageGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"size":"1024x1024"`) {
			t.Errorf("size not sent: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"created":1,"data":[{"url":"https://cdn.example/img.png"}]}`)
	}))
	defer srv.Close()

	g := NewOpenAIImageGenerator(
		&config.OpenAICompatConfig{BaseURL: srv.URL, APIKey: "k"},
		&config.GeneratorConfig{Model: "dall-e-3", Width: 1024, Height: 1024},
		logger.NewDiscardLogger(),
	)
	link, err := g.Generate(context.Background(), "a cat")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if link != "https://cdn.example/img.png" {
		t.Fatalf("unexpected url %q", link)
	}
}

func TestToYandexMessages(t *testing.T) {
	out := toYandexMessages([]models.Message{
		{Role: models.RoleSystem, Content: "s"},
		{Role: models.RoleUser, Content: "u"},
		{Role: models.RoleAssistant, Content: "a"},
	})
	if len(out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out))
	}
	if out[0].Role != yandexgpt.YandexGPTMessageRoleSystem ||
		out[1].Role != yandexgpt.YandexGPTMessageRoleUser ||
		out[2].Role != yandexgpt.YandexGPTMessageRoleAssistant {
		t.Fatalf("unexpected roles %+v", out)
	}
	if out[2].Text != "a" {
		t.Fatalf("unexpected text %q", out[2].Text)
	}
}

func TestYandexGPTComplete(t *testing.T) {
	var sent yandexgpt.YandexGPTRequest
	p := &YandexGPT{
		modelURI:    yandexModelURI("folder", "yandexgpt-lite"),
		temperature: 0.3,
		maxTokens:   500,
		logger:      logger.NewDiscardLogger(),
		complete: func(ctx context.Context, request yandexgpt.YandexGPTRequest) (string, error) {
			sent = request
			return "ответ", nil
		},
	}
	answer, err := p.Complete(context.Background(), []models.Message{{Role: models.RoleUser, Content: "вопрос"}})
	if err != nil || answer != "ответ" {
		t.Fatalf("unexpected result %q %v", answer, err)
	}
	if sent.ModelURI != "gpt://folder/yandexgpt-lite" {
		t.Fatalf("unexpected model uri %q", sent.ModelURI)
	}
	if sent.CompletionOptions.Temperature != 0.3 || sent.CompletionOptions.MaxTokens != 500 {
		t.Fatalf("completion options not taken from config: %+v", sent.CompletionOptions)
	}

	p.complete = func(ctx context.Context, request yandexgpt.YandexGPTRequest) (string, error) {
		return "", nil
	}
	if _, err := p.Complete(context.Background(), nil); !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestNewCompleterSelectsProvider(t *testing.T) {
	log := logger.NewDiscardLogger()
	cfg := &config.AIConfig{
		Provider: "groq",
		Groq:     config.OpenAICompatConfig{APIKey: "k", BaseURL: "https://api.groq.com/openai/v1"},
		Yandex:   config.YandexConfig{APIKey: "k", FolderID: "f", Model: "yandexgpt-lite"},
	}
	c, err := NewCompleter(cfg, log)
	if err != nil || c.Name() != "Groq AI" {
		t.Fatalf("unexpected completer %v %v", c, err)
	}

	cfg.Provider = "yandex"
	c, err = NewCompleter(cfg, log)
	if err != nil || c.Name() != "Yandex GPT" {
		t.Fatalf("unexpected completer %v %v", c, err)
	}

	cfg.Provider = "unknown"
	if _, err := NewCompleter(cfg, log); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestNewGeneratorValidation(t *testing.T) {
	log := logger.NewDiscardLogger()
	if _, err := NewGenerator("image", &config.GeneratorConfig{Backend: "url"}, &config.OpenAICompatConfig{}, log); err == nil {
		t.Fatalf("expected error for missing template")
	}
	if _, err := NewGenerator("image", &config.GeneratorConfig{Backend: "openai"}, &config.OpenAICompatConfig{}, log); err == nil {
		t.Fatalf("expected error for missing api key")
	}
	if _, err := NewGenerator("video", &config.GeneratorConfig{Backend: "openai", Delivery: "video"}, &config.OpenAICompatConfig{APIKey: "k"}, log); err == nil {
		t.Fatalf("expected error for images api delivering video")
	}
	g, err := NewGenerator("video", &config.GeneratorConfig{Backend: "url", Template: "https://x/{prompt}", Delivery: "video"}, &config.OpenAICompatConfig{}, log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Delivery() != DeliveryVideo {
		t.Fatalf("expected video delivery, got %q", g.Delivery())
	}
}

func TestDefaultVideoGeneratorDeliversPhoto(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("GROQ_API_KEY", "gsk")
	t.Setenv("DATABASE_URL", "postgres://localhost/bot")
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	g, err := NewGenerator("video", &cfg.AI.Video, &cfg.AI.OpenAI, logger.NewDiscardLogger())
	if err != nil {
		t.Fatalf("NewGenerator error: %v", err)
	}
	link, err := g.Generate(context.Background(), "a cat surfing")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if !strings.HasPrefix(link, "https://image.pollinations.ai/prompt/a%20cat%20surfing?width=1280&height=720") {
		t.Fatalf("unexpected link %q", link)
	}
	// The template renders an image, which Telegram refuses as video.
	if g.Delivery() != DeliveryPhoto {
		t.Fatalf("default video generator must deliver a photo, got %q", g.Delivery())
	}
}
