package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	logpkg "github.com/kailas-cloud/ragstore/internal/logger"
)

func TestWideEventMiddleware(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusNotFound, zapcore.WarnLevel},
		{http.StatusServiceUnavailable, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := chiMiddleware.RequestID(wideEventMiddleware(zap.New(core))(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					logpkg.FromContext(r.Context()).Debug("inside")
					w.WriteHeader(tt.status)
				})))

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/documents?limit=2", http.NoBody))

			if rr.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID")
			}
			entries := logs.All()
			if len(entries) != 2 {
				t.Fatalf("got %d log entries, want 2", len(entries))
			}
			inner, line := entries[0], entries[1]
			if inner.ContextMap()["request_id"] != line.ContextMap()["request_id"] {
				t.Error("handler logger lacks the request id")
			}
			if line.Level != tt.level {
				t.Errorf("level %s, want %s", line.Level, tt.level)
			}
			fields := line.ContextMap()
			if fields["status"] != int64(tt.status) || fields["query"] != "limit=2" {
				t.Errorf("unexpected fields %v", fields)
			}
		})
	}
}

func TestJSONRecoverer(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := jsonRecoverer(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tags", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rr.Code)
	}
	if logs.FilterMessage("handler panic").Len() != 1 {
		t.Error("panic not logged")
	}
}

func TestJSONRecoverer_AbortHandler(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if recover() != http.ErrAbortHandler {
			t.Error("ErrAbortHandler must propagate")
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
}
