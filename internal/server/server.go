package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/ai-assistant-tgbot-go/internal/middleware"
	"github.com/ai-assistant-tgbot-go/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// SecretHeader carries the secret token registered with setWebhook
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateSize = 1 << 20

// aiCallsPerUpdate is the most AI calls one update makes: a voice message is
// transcribed and then answered.
const aiCallsPerUpdate = 2

// writeMargin covers the file download and the Telegram sends around AI calls.
const writeMargin = time.Minute

// Server receives Telegram updates over HTTPS webhooks
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	handle     telegram.HandleFunc
	secret     string
	metrics    *middleware.Metrics
	logger     *logrus.Logger
}

// New creates a webhook server. metricsPath mounts the Prometheus handler on
// the same router when not empty. requestTimeout is the per-call AI limit the
// handler runs under; zero means unbounded.
func New(cfg *config.WebhookConfig, metricsPath string, requestTimeout time.Duration, handle telegram.HandleFunc, metrics *middleware.Metrics, logger *logrus.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		handle:  handle,
		secret:  cfg.Secret,
		metrics: metrics,
		logger:  logger,
	}

	s.router.HandleFunc(cfg.Path, s.handleWebhook).Methods(http.MethodPost)
	s.router.HandleFunc(cfg.Path, s.handleStatus).Methods(http.MethodGet)
	middleware.RegisterRoutes(s.router, metricsPath)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
		// Replies are produced inside the request, AI calls included.
		WriteTimeout: writeTimeout(requestTimeout),
	}
	return s
}

func writeTimeout(requestTimeout time.Duration) time.Duration {
	if requestTimeout <= 0 {
		return 0
	}
	return aiCallsPerUpdate*requestTimeout + writeMargin
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Webhook server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webhook server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for running ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleWebhook always acknowledges with {"ok":true} so Telegram never
// redelivers an update, whatever happened while processing it.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	log := s.logger.WithField("request_id", uuid.New().String())
	defer writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})

	if s.secret != "" && r.Header.Get(SecretHeader) != s.secret {
		log.WithField("remote_addr", r.RemoteAddr).Warn("Webhook secret mismatch")
		s.metrics.RecordWebhookRequest("unauthorized")
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateSize)).Decode(&update); err != nil {
		log.WithError(err).Warn("Malformed update")
		s.metrics.RecordWebhookRequest("malformed")
		return
	}

	log.WithField("update_id", update.UpdateID).Debug("Update received")

	// Processing outlives a client that hangs up.
	ctx := context.WithoutCancel(r.Context())
	telegram.Dispatch(ctx, update, s.handle, log)
	s.metrics.RecordWebhookRequest("handled")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "Bot is running"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
