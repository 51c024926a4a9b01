package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-studio/internal/api"
	"github.com/p-n-ai/pai-studio/internal/app"
	"github.com/p-n-ai/pai-studio/internal/chat"
	"github.com/p-n-ai/pai-studio/internal/platform/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	gw := chat.NewGateway()
	ws := chat.NewWebSocketChannel(originPatterns(cfg.CORSOrigins))
	gw.Register(chat.ChannelWebSocket, ws)

	a, err := app.Open(ctx, cfg, chat.NewNotifier(gw))
	if err != nil {
		return err
	}
	defer a.Close()

	studio := api.New(api.Options{
		Session:     a.Session,
		Gateway:     gw,
		WebSocket:   ws,
		Checks:      a.Checks,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err := gw.StartAll(ctx, studio.ChatHandler(ctx)); err != nil {
		return err
	}

	// No WriteTimeout: /ws connections are long-lived and /api requests are
	// bounded by the router's timeout middleware.
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           studio.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			"addr", srv.Addr,
			"exam", cfg.Exam.Name,
			"exam_date", cfg.Exam.Date.Format(config.DateLayout),
			"storage", cfg.Storage.Driver,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("listening: %w", err)
	}
	slog.Info("shutting down")

	if err := gw.StopAll(); err != nil {
		slog.Warn("stopping chat channels", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return nil
}

// newLogger builds the process logger from LEARN_LOG_LEVEL and
// LEARN_LOG_FORMAT. Unknown levels fall back to info.
func newLogger(c config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Level)}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// originPatterns turns CORS origins into the host patterns accepted by the
// WebSocket handshake.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			out = append(out, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
