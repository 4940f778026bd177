package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/ai-assistant-tgbot-go/internal/services/ai"
	"github.com/sirupsen/logrus"
)

// maxVoiceSize caps downloads at the Bot API file limit.
const maxVoiceSize = 20 << 20

// FileResolver turns a Telegram file id into a downloadable URL
type FileResolver interface {
	FileURL(ctx context.Context, fileID string) (string, error)
}

// Service downloads voice notes and converts them to text
type Service struct {
	resolver    FileResolver
	transcriber ai.Transcriber
	client      *http.Client
	logger      *logrus.Logger
}

// NewService creates a voice transcription service
func NewService(resolver FileResolver, transcriber ai.Transcriber, logger *logrus.Logger) *Service {
	return &Service{
		resolver:    resolver,
		transcriber: transcriber,
		client:      &http.Client{Timeout: 60 * time.Second},
		logger:      logger,
	}
}

// Transcribe fetches the voice file and returns its transcript
func (s *Service) Transcribe(ctx context.Context, fileID string) (string, error) {
	fileURL, err := s.resolver.FileURL(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve voice file: %w", err)
	}

	audio, err := s.download(ctx, fileURL)
	if err != nil {
		return "", err
	}

	filename := path.Base(fileURL)
	if filename == "" || filename == "." || filename == "/" {
		filename = "voice.ogg"
	}

	s.logger.WithFields(logrus.Fields{
		"file_id": fileID,
		"bytes":   len(audio),
	}).Debug("Transcribing voice message")

	return s.transcriber.Transcribe(ctx, audio, filename)
}

func (s *Service) download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download voice file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download voice file: status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxVoiceSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read voice file: %w", err)
	}
	if len(audio) > maxVoiceSize {
		return nil, fmt.Errorf("voice file exceeds %d bytes", maxVoiceSize)
	}
	return audio, nil
}
