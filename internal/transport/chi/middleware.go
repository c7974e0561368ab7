package chi

import (
	"errors"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	logpkg "github.com/kailas-cloud/ragstore/internal/logger"
)

// jsonRecoverer answers a panicking handler with the JSON error envelope.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if err, ok := rvr.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rvr)
				}
				logger.Error("handler panic",
					zap.Any("panic", rvr),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
					zap.Stack("stacktrace"),
				)
				writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func levelForStatus(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}

// wideEventMiddleware writes one log line per request and echoes the request
// id in X-Request-ID. Handlers find the request logger via logger.FromContext.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := chiMiddleware.GetReqID(r.Context())
			if id != "" {
				w.Header().Set("X-Request-ID", id)
			}
			ctx, reqLogger := logpkg.With(logpkg.ContextWithLogger(r.Context(), logger), zap.String("request_id", id))

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ce := reqLogger.Check(levelForStatus(status), "http_request")
			if ce == nil {
				return
			}
			ce.Write(
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int64("request_bytes", r.ContentLength),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
