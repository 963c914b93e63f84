package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sweetpotato0/tutorgraph/middleware"
	"github.com/sweetpotato0/tutorgraph/middleware/limiter"
	"github.com/sweetpotato0/tutorgraph/middleware/validator"
	"github.com/sweetpotato0/tutorgraph/pkg/logging"
	"github.com/sweetpotato0/tutorgraph/tutor"
)

// Tutoring is the part of the orchestrator the server depends on.
type Tutoring interface {
	Invoke(ctx context.Context, sessionID, prompt string) (response string, id string, err error)
	Health(ctx context.Context) tutor.Health
}

// ChatRequest is the /chat request body.
type ChatRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the /chat response body.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Server exposes the tutoring pipeline over HTTP and WebSocket.
type Server struct {
	tutoring  Tutoring
	chain     *middleware.Chain
	hub       *Hub
	logger    *slog.Logger
	staticDir string
	upgrader  websocket.Upgrader
}

// Option configures the server.
type Option func(*Server)

// WithChain installs the middleware chain run around each chat invocation.
func WithChain(chain *middleware.Chain) Option {
	return func(s *Server) { s.chain = chain }
}

// WithStaticDir serves index.html and /static/ assets from dir.
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server around the given tutoring pipeline.
func New(tutoring Tutoring, opts ...Option) *Server {
	s := &Server{
		tutoring: tutoring,
		chain:    middleware.NewChain(),
		hub:      NewHub(),
		logger:   logging.WithComponent("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hub returns the WebSocket hub, mainly for inspection in tests.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws/{session_id}", s.handleWebSocket)

	if s.staticDir != "" {
		fs := http.FileServer(http.Dir(filepath.Join(s.staticDir, "static")))
		mux.Handle("GET /static/", http.StripPrefix("/static/", fs))
		mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, filepath.Join(s.staticDir, "index.html"))
		})
	}

	return mux
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	response, sessionID, err := s.invoke(r.Context(), req.SessionID, req.Prompt)
	if err != nil {
		status, detail := mapError(err)
		s.logger.Error("chat request failed", "session_id", req.SessionID, "error", err)
		writeError(w, status, detail)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Response: response, SessionID: sessionID})
}

// invoke runs one chat turn through the middleware chain and the pipeline.
func (s *Server) invoke(ctx context.Context, sessionID, prompt string) (string, string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	mctx := middleware.NewContext(ctx, sessionID, prompt)
	err := s.chain.Execute(mctx, func(c *middleware.Context) error {
		response, id, err := s.tutoring.Invoke(c.Context(), c.SessionID, c.Prompt)
		if err != nil {
			return err
		}
		c.Response = response
		c.SessionID = id
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return mctx.Response, mctx.SessionID, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.tutoring.Health(r.Context())

	status := http.StatusOK
	if h.Status != tutor.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	c := &client{
		sessionID: sessionID,
		clientID:  clientID,
		conn:      conn,
		send:      make(chan []byte, clientSendBuffer),
	}
	s.hub.register(c)
	go c.writePump()

	s.logger.Info("websocket client connected", "session_id", sessionID, "client_id", clientID)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		prompt := string(data)

		response, _, err := s.invoke(r.Context(), sessionID, prompt)
		if err != nil {
			_, detail := mapError(err)
			s.logger.Error("websocket chat failed", "session_id", sessionID, "error", err)
			s.hub.sendPersonal(c, "error: "+detail)
			continue
		}

		// The sender gets the reply directly, the rest of the room sees
		// both sides of the exchange.
		s.hub.sendPersonal(c, response)
		s.hub.broadcast(sessionID, clientID+": "+prompt, c)
		s.hub.broadcast(sessionID, response, c)
	}

	s.hub.unregister(c)
	s.hub.broadcast(sessionID, clientID+" has left "+sessionID+".", nil)
	s.logger.Info("websocket client disconnected", "session_id", sessionID, "client_id", clientID)
}

// mapError translates pipeline errors into HTTP status codes.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, validator.ErrEmptyPrompt), errors.Is(err, validator.ErrPromptTooLong):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, limiter.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, tutor.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, tutor.ErrNoResponse):
		return http.StatusInternalServerError, "No response generated"
	default:
		return http.StatusInternalServerError, "Error: " + err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
