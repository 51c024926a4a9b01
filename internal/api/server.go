// Package api exposes the study session over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/p-n-ai/pai-studio/internal/chat"
	"github.com/p-n-ai/pai-studio/internal/session"
)

const requestTimeout = 2 * time.Minute

// Checker is a dependency probed by /readyz.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Options configures a Server.
type Options struct {
	Session     *session.Session
	Gateway     *chat.Gateway      // optional, replies to chat messages
	WebSocket   http.Handler       // optional, mounted at /ws
	Checks      map[string]Checker // probed by /readyz
	CORSOrigins []string
}

// Server serializes every call into the session: one interaction runs to
// completion before the next starts.
type Server struct {
	mu   sync.Mutex
	sess *session.Session

	gw      *chat.Gateway
	ws      http.Handler
	checks  map[string]Checker
	origins []string
}

// New creates a Server.
func New(opts Options) *Server {
	return &Server{
		sess:    opts.Session,
		gw:      opts.Gateway,
		ws:      opts.WebSocket,
		checks:  opts.Checks,
		origins: opts.CORSOrigins,
	}
}

// Router returns the HTTP handler with all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.ws != nil {
		r.Handle("/ws", s.ws)
	}

	r.Route("/api", func(ar chi.Router) {
		ar.Use(middleware.Logger)
		ar.Use(middleware.Timeout(requestTimeout))
		ar.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           300,
		}))

		ar.Get("/exam", s.handleExam)
		ar.Get("/today", s.handleToday)
		ar.Get("/plan", s.handlePlan)
		ar.Get("/progress", s.handleProgress)
		ar.Get("/topics", s.handleTopics)
		ar.Put("/topics/{topic}/status", s.handleSetStatus)

		ar.Post("/study", s.handleStudy)
		ar.Post("/prefetch", s.handlePrefetch)
		ar.Post("/chat", s.handleChat)
		ar.Get("/transcript", s.handleTranscript)

		ar.Route("/test", func(tr chi.Router) {
			tr.Get("/", s.handleActiveTest)
			tr.Post("/", s.handleStartTest)
			tr.Post("/answer", s.handleAnswer)
			tr.Delete("/", s.handleCloseTest)
		})

		ar.Route("/scores", func(sr chi.Router) {
			sr.Get("/", s.handleScores)
			sr.Get("/stats", s.handleStats)
			sr.Delete("/", s.handleDeleteScore)
			sr.Delete("/{id}", s.handleDeleteScoreByID)
		})

		ar.Route("/transcripts", func(tr chi.Router) {
			tr.Get("/", s.handleTranscripts)
			tr.Get("/{name}", s.handleReadTranscript)
			tr.Delete("/{name}", s.handleDeleteTranscript)
		})

		ar.Get("/export.xlsx", s.handleExport)
	})

	return r
}

// ChatHandler returns the inbound handler for chat channels. Replies are
// sent back through the gateway on the originating channel.
func (s *Server) ChatHandler(ctx context.Context) func(chat.InboundMessage) {
	return func(msg chat.InboundMessage) {
		if s.gw != nil {
			_ = s.gw.SendTyping(ctx, msg.Channel, msg.UserID)
		}

		s.mu.Lock()
		reply, err := s.sess.HandleMessage(ctx, msg.Text)
		s.mu.Unlock()
		if err != nil {
			slog.Error("failed to handle chat message", "channel", msg.Channel, "user_id", msg.UserID, "error", err)
			return
		}
		if reply == "" || s.gw == nil {
			return
		}

		err = s.gw.Send(ctx, chat.OutboundMessage{
			Channel: msg.Channel,
			UserID:  msg.UserID,
			Kind:    chat.KindReply,
			Text:    reply,
		})
		if err != nil {
			slog.Warn("failed to send chat reply", "channel", msg.Channel, "user_id", msg.UserID, "error", err)
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
