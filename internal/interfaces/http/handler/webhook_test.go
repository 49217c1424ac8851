package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/catalogmirror/backend/internal/application/ingest"
	"github.com/catalogmirror/backend/internal/infrastructure/shopify"
)

const testSecret = "shpss_test_secret"

type mockAcceptor struct {
	mock.Mock
}

func (m *mockAcceptor) Accept(ctx context.Context, d ingest.Delivery) (ingest.Result, error) {
	args := m.Called(ctx, d)
	return args.Get(0).(ingest.Result), args.Error(1)
}

type countingRecorder struct {
	results []string
}

func (r *countingRecorder) RecordWebhook(_ context.Context, _, result string) {
	r.results = append(r.results, result)
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newWebhookRequest(body string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func deliveryHeaders(body string) map[string]string {
	return map[string]string{
		shopify.HeaderTopic:      "products/update",
		shopify.HeaderShopDomain: "source.myshopify.com",
		shopify.HeaderWebhookID:  "wh-123",
		shopify.HeaderHmac:       sign(body),
	}
}

func setupWebhookRouter(t *testing.T, acceptor Acceptor, verify bool) (*gin.Engine, *countingRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var verifier SignatureVerifier
	if verify {
		v, err := shopify.NewWebhookVerifier(testSecret)
		require.NoError(t, err)
		verifier = v
	}
	rec := &countingRecorder{}
	h := NewWebhookHandler(acceptor, verifier, rec, zap.NewNop())

	r := gin.New()
	h.RegisterRoutes(r.Group("/"))
	return r, rec
}

func TestWebhookHandler_HandleShopify(t *testing.T) {
	const body = `{"id":42,"title":"Linen shirt"}`

	tests := []struct {
		name       string
		verify     bool
		body       string
		headers    func() map[string]string
		result     ingest.Result
		acceptErr  error
		wantAccept bool
		wantStatus int
		wantBody   string
	}{
		{
			name:       "queued",
			verify:     true,
			body:       body,
			headers:    func() map[string]string { return deliveryHeaders(body) },
			result:     ingest.ResultQueued,
			wantAccept: true,
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"queued"}`,
		},
		{
			name:       "duplicate",
			verify:     true,
			body:       body,
			headers:    func() map[string]string { return deliveryHeaders(body) },
			result:     ingest.ResultDuplicate,
			wantAccept: true,
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"duplicate"}`,
		},
		{
			name:   "missing topic header",
			verify: true,
			body:   body,
			headers: func() map[string]string {
				h := deliveryHeaders(body)
				delete(h, shopify.HeaderTopic)
				return h
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "empty body",
			verify:     true,
			body:       "",
			headers:    func() map[string]string { return deliveryHeaders("") },
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:   "bad signature",
			verify: true,
			body:   body,
			headers: func() map[string]string {
				h := deliveryHeaders(body)
				h[shopify.HeaderHmac] = sign("something else")
				return h
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "missing signature",
			verify: true,
			body:   body,
			headers: func() map[string]string {
				h := deliveryHeaders(body)
				delete(h, shopify.HeaderHmac)
				return h
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "verification off ignores signature",
			verify: false,
			body:   body,
			headers: func() map[string]string {
				h := deliveryHeaders(body)
				delete(h, shopify.HeaderHmac)
				return h
			},
			result:     ingest.ResultQueued,
			wantAccept: true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown shop",
			verify:     true,
			body:       body,
			headers:    func() map[string]string { return deliveryHeaders(body) },
			acceptErr:  ingest.ErrUnknownShop,
			wantAccept: true,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "invalid payload",
			verify:     true,
			body:       `not json`,
			headers:    func() map[string]string { return deliveryHeaders(`not json`) },
			acceptErr:  ingest.ErrInvalidPayload,
			wantAccept: true,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "storage failure",
			verify:     true,
			body:       body,
			headers:    func() map[string]string { return deliveryHeaders(body) },
			acceptErr:  errors.New("db down"),
			wantAccept: true,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acceptor := &mockAcceptor{}
			if tt.wantAccept {
				acceptor.On("Accept", mock.Anything, mock.MatchedBy(func(d ingest.Delivery) bool {
					return d.WebhookID == "wh-123" &&
						d.Topic == "products/update" &&
						d.ShopDomain == "source.myshopify.com" &&
						string(d.Payload) == tt.body
				})).Return(tt.result, tt.acceptErr).Once()
			}
			r, rec := setupWebhookRouter(t, acceptor, tt.verify)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, newWebhookRequest(tt.body, tt.headers()))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
			assert.Len(t, rec.results, 1)
			acceptor.AssertExpectations(t)
		})
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		path       string
		pingErr    error
		wantStatus int
	}{
		{"health", "/health", errors.New("db down"), http.StatusOK},
		{"ready", "/ready", nil, http.StatusOK},
		{"not ready", "/ready", errors.New("db down"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			NewHealthHandler(stubPinger{err: tt.pingErr}).RegisterRoutes(r.Group("/"))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
