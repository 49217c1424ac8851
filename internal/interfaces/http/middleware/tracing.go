package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/catalogmirror/backend/internal/infrastructure/shopify"
)

// maxAttributeLength caps header values copied onto spans.
const maxAttributeLength = 128

// Tracing returns otelgin middleware followed by a handler that tags the
// server span with the request id and the webhook delivery headers. otelgin
// runs the rest of the chain itself, so tagging has to happen below it.
func Tracing(serviceName string, enabled bool) []gin.HandlerFunc {
	if !enabled {
		return nil
	}
	return []gin.HandlerFunc{otelgin.Middleware(serviceName), enrichSpan}
}

func enrichSpan(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	if span.IsRecording() {
		span.SetAttributes(spanAttributes(c)...)
	}
	c.Next()
}

func spanAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if id := c.GetString("request_id"); id != "" {
		attrs = append(attrs, attribute.String("request_id", truncate(id)))
	}
	for header, key := range map[string]string{
		shopify.HeaderTopic:      "webhook.topic",
		shopify.HeaderShopDomain: "webhook.shop_domain",
		shopify.HeaderWebhookID:  "webhook.id",
	} {
		if v := c.GetHeader(header); v != "" {
			attrs = append(attrs, attribute.String(key, truncate(v)))
		}
	}
	return attrs
}

func truncate(s string) string {
	if len(s) > maxAttributeLength {
		return s[:maxAttributeLength]
	}
	return s
}
