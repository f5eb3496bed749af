package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meetbot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meetbot/internal/biz/usecase"
	"github.com/DevRickLin/feishu-meetbot/internal/logging"
	"github.com/DevRickLin/feishu-meetbot/internal/service"
)

// Server serves the chat webhook, the telephony IVR callbacks, transcript
// downloads and the admin API used by meet-mcp
type Server struct {
	meetings *usecase.MeetingUsecase
	calls    *usecase.VoiceUsecase
	router   *service.CommandRouter
	messages repo.MessageRepo

	publicURL    string
	recordingURL string

	server *http.Server
	port   int
	log    *slog.Logger
}

// Options configures the callback URLs handed to Tropo
type Options struct {
	Port         int
	PublicURL    string // Base URL of this server as seen by Tropo
	RecordingURL string // Where Tropo uploads recordings; empty disables recording
}

// NewServer creates a new API server
func NewServer(
	meetings *usecase.MeetingUsecase,
	calls *usecase.VoiceUsecase,
	router *service.CommandRouter,
	messages repo.MessageRepo,
	opts Options,
) *Server {
	s := &Server{
		meetings:     meetings,
		calls:        calls,
		router:       router,
		messages:     messages,
		publicURL:    opts.PublicURL,
		recordingURL: opts.RecordingURL,
		port:         opts.Port,
		log:          slog.With("component", "api"),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed, traced HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Chat webhook
	mux.HandleFunc("POST /webhook", s.handleWebhook)

	// Tropo IVR callbacks
	mux.HandleFunc("POST /voice/initiate", s.handleVoiceInitiate)
	mux.HandleFunc("POST /voice/validate", s.handleVoiceValidate)
	mux.HandleFunc("POST /voice/next/{meeting}", s.handleVoiceNext)
	mux.HandleFunc("POST /voice/hangup/{meeting}", s.handleVoiceHangup)
	mux.HandleFunc("POST /voice/transcribe/{topic}", s.handleVoiceTranscribe)

	// Transcript download
	mux.HandleFunc("GET /transcripts/{file}", s.handleTranscript)

	// Admin
	mux.HandleFunc("GET /api/meetings", s.handleListMeetings)
	mux.HandleFunc("GET /api/meetings/{id}", s.handleGetMeeting)
	mux.HandleFunc("POST /api/meetings/{id}/next", s.handleNextTopic)
	mux.HandleFunc("POST /api/meetings/{id}/cancel", s.handleCancelMeeting)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return otelhttp.NewHandler(mux, "meetbot")
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "port", s.port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server; safe to call before or during Start
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// GetPort returns the server port
func (s *Server) GetPort() int {
	return s.port
}

// url builds an absolute callback URL
func (s *Server) url(format string, args ...any) string {
	return s.publicURL + fmt.Sprintf(format, args...)
}

// ============ Chat Webhook ============

type webhookRequest struct {
	Resource string `json:"resource"`
	Event    string `json:"event"`
	Data     struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Resource == "" || req.Event == "" {
		http.Error(w, "invalid webhook payload", http.StatusBadRequest)
		return
	}
	if req.Resource != "messages" || req.Event != "created" || req.Data.ID == "" {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	ctx := r.Context()
	msg, err := s.messages.GetMessage(ctx, req.Data.ID)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to fetch webhook message", "msg_id", req.Data.ID, logging.ErrKey, err)
		s.writeError(w, err)
		return
	}
	if !msg.IsFromBot("") {
		if err := s.router.HandleMessage(ctx, msg.ChatID, msg.Content); err != nil {
			s.log.ErrorContext(ctx, "failed to handle message", "chat_id", msg.ChatID, logging.ErrKey, err)
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeValidation:
		status = http.StatusBadRequest
	case domain.ErrorTypeNotFound:
		status = http.StatusNotFound
	case domain.ErrorTypeConflict:
		status = http.StatusConflict
	case domain.ErrorTypeUnavailable:
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
