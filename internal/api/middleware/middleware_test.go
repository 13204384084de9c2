package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	before := testutil.ToFloat64(PanicsRecoveredTotal)

	handler := Recovery(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/manifests", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
	assert.Equal(t, before+1, testutil.ToFloat64(PanicsRecoveredTotal))
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(Logger(zap.New(core)))
	r.Get("/api/v1/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/api/v1/manifests", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("nope"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/manifests", nil))

	entries := logs.FilterMessage("HTTP request").All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
		assert.Equal(t, zapcore.InfoLevel, entries[1].Level)

		fields := entries[1].ContextMap()
		assert.Equal(t, int64(http.StatusBadRequest), fields["status"])
		assert.Equal(t, int64(4), fields["bytes"])
		assert.NotEmpty(t, fields["request_id"])
	}
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/api/v1/strategies/{name}", func(w http.ResponseWriter, r *http.Request) {})

	before := testutil.ToFloat64(requestCount.WithLabelValues(http.MethodGet, "/api/v1/strategies/{name}", "200"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/strategies/hybrid", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/strategies/single-container", nil))

	after := testutil.ToFloat64(requestCount.WithLabelValues(http.MethodGet, "/api/v1/strategies/{name}", "200"))
	assert.Equal(t, before+2, after)
}
