package logger

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// Handler is a slog.Handler that enriches records with the request id
// carried in the context.
type Handler struct {
	inner slog.Handler
}

// NewHandler creates a Handler. Passing nil uses a JSON handler on stdout.
func NewHandler(inner slog.Handler) *Handler {
	if inner == nil {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	return &Handler{inner: inner}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		record.AddAttrs(slog.String("request_id", requestID))
	}

	return h.inner.Handle(ctx, record)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}

// NewLoggerMiddleware logs every request with method, path, status and
// duration, and threads the chi request id into the logging context.
func NewLoggerMiddleware(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := r.Context()
			if requestID := middleware.GetReqID(ctx); requestID != "" {
				ctx = context.WithValue(ctx, requestIDKey, requestID)
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			log.InfoContext(ctx, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
			)
		})
	}
}
