package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/catalogmirror/backend/internal/infrastructure/logger"
)

type echoRoutes struct{}

func (echoRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/echo", func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.String(http.StatusOK, string(body))
	})
	rg.GET("/panic", func(*gin.Context) { panic("boom") })
}

func TestRouter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r, err := NewRouter(Config{Mode: gin.TestMode, MaxBodySize: 16}, zap.New(core))
	require.NoError(t, err)
	engine := r.Register(echoRoutes{}).Setup()

	t.Run("routes at root", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hi")))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hi", w.Body.String())
		assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
	})

	t.Run("body over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 64))))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("panic recovered", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
		assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
	})
}

func TestRouter_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	r, err := NewRouter(Config{Mode: gin.TestMode, ServiceName: "catalog-mirror", TracingEnabled: true}, zap.NewNop())
	require.NoError(t, err)
	engine := r.Register(echoRoutes{}).Setup()

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("{}"))
	req.Header.Set("X-Shopify-Topic", "products/create")
	req.Header.Set("X-Shopify-Webhook-Id", "wh-9")
	engine.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := spans[0].Attributes()
	assert.Contains(t, attrs, attribute.String("webhook.topic", "products/create"))
	assert.Contains(t, attrs, attribute.String("webhook.id", "wh-9"))
}
