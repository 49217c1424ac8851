// Package handler holds the gin handlers of the webhook receiver.
package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/catalogmirror/backend/internal/application/ingest"
	"github.com/catalogmirror/backend/internal/infrastructure/logger"
	"github.com/catalogmirror/backend/internal/infrastructure/shopify"
)

// Webhook results reported to the recorder besides the ingest results
const (
	resultInvalid      = "invalid"
	resultUnauthorized = "unauthorized"
	resultForbidden    = "forbidden"
	resultError        = "error"
)

// Acceptor takes a verified delivery into the ingestion pipeline.
type Acceptor interface {
	Accept(ctx context.Context, d ingest.Delivery) (ingest.Result, error)
}

// SignatureVerifier checks the HMAC of a delivery.
type SignatureVerifier interface {
	Verify(r *http.Request) bool
}

// WebhookRecorder counts deliveries per topic and result.
type WebhookRecorder interface {
	RecordWebhook(ctx context.Context, topic, result string)
}

type nopWebhookRecorder struct{}

func (nopWebhookRecorder) RecordWebhook(context.Context, string, string) {}

// WebhookResponse is the body of every webhook answer
type WebhookResponse struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// WebhookHandler receives product webhooks from shops.
type WebhookHandler struct {
	acceptor Acceptor
	verifier SignatureVerifier
	recorder WebhookRecorder
	logger   *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler. A nil verifier turns
// signature checking off.
func NewWebhookHandler(acceptor Acceptor, verifier SignatureVerifier, recorder WebhookRecorder, logger *zap.Logger) *WebhookHandler {
	if recorder == nil {
		recorder = nopWebhookRecorder{}
	}
	return &WebhookHandler{
		acceptor: acceptor,
		verifier: verifier,
		recorder: recorder,
		logger:   logger,
	}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/shopify", h.HandleShopify)
}

// HandleShopify accepts one delivery.
//
//	422 missing delivery headers or body
//	401 bad signature
//	403 unknown shop
//	200 {"status":"queued"} or {"status":"duplicate"}
func (h *WebhookHandler) HandleShopify(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.GetGinLogger(c, h.logger)

	topic := c.GetHeader(shopify.HeaderTopic)
	shopDomain := c.GetHeader(shopify.HeaderShopDomain)
	webhookID := c.GetHeader(shopify.HeaderWebhookID)
	if topic == "" || shopDomain == "" || webhookID == "" {
		h.reject(c, topic, http.StatusUnprocessableEntity, resultInvalid, "missing webhook headers")
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(c, topic, http.StatusRequestEntityTooLarge, resultInvalid, "request body too large")
			return
		}
		h.reject(c, topic, http.StatusBadRequest, resultInvalid, "failed to read request body")
		return
	}
	if len(payload) == 0 {
		h.reject(c, topic, http.StatusUnprocessableEntity, resultInvalid, "empty body")
		return
	}

	if h.verifier != nil {
		c.Request.Body = io.NopCloser(bytes.NewReader(payload))
		if !h.verifier.Verify(c.Request) {
			log.Warn("webhook signature rejected")
			h.reject(c, topic, http.StatusUnauthorized, resultUnauthorized, "invalid signature")
			return
		}
	}

	ctx, _ = logger.WithShopDomain(ctx, log, shopDomain)
	res, err := h.acceptor.Accept(ctx, ingest.Delivery{
		WebhookID:  webhookID,
		Topic:      topic,
		ShopDomain: shopDomain,
		Payload:    payload,
	})
	switch {
	case errors.Is(err, ingest.ErrInvalidDelivery), errors.Is(err, ingest.ErrInvalidPayload):
		h.reject(c, topic, http.StatusUnprocessableEntity, resultInvalid, err.Error())
	case errors.Is(err, ingest.ErrUnknownShop):
		h.reject(c, topic, http.StatusForbidden, resultForbidden, "unknown shop")
	case err != nil:
		log.Error("failed to accept webhook", zap.Error(err))
		_ = c.Error(err)
		h.reject(c, topic, http.StatusInternalServerError, resultError, "internal error")
	default:
		h.recorder.RecordWebhook(ctx, topic, string(res))
		c.JSON(http.StatusOK, WebhookResponse{Status: string(res)})
	}
}

func (h *WebhookHandler) reject(c *gin.Context, topic string, status int, result, msg string) {
	h.recorder.RecordWebhook(c.Request.Context(), topic, result)
	c.JSON(status, WebhookResponse{Error: msg})
}
