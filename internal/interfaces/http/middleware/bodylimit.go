// Package middleware provides gin middleware for the webhook receiver.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/catalogmirror/backend/internal/infrastructure/shopify"
)

// BodyLimit caps webhook payloads at maxBytes. A delivery that declares a
// larger body is refused before it is read and logged with its webhook
// headers; a streamed body is cut off at the cap, which the handler reports
// as 413 since a partial payload can never pass HMAC verification.
func BodyLimit(maxBytes int64, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			log.Warn("webhook body over limit",
				zap.Int64("content_length", c.Request.ContentLength),
				zap.Int64("limit", maxBytes),
				zap.String("topic", c.GetHeader(shopify.HeaderTopic)),
				zap.String("shop_domain", c.GetHeader(shopify.HeaderShopDomain)),
				zap.String("webhook_id", c.GetHeader(shopify.HeaderWebhookID)),
			)
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
