package shopify

import (
	"net/http"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// Webhook delivery headers
const (
	HeaderTopic      = "X-Shopify-Topic"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderWebhookID  = "X-Shopify-Webhook-Id"
	HeaderHmac       = "X-Shopify-Hmac-Sha256"
)

// WebhookVerifier checks the HMAC signature of webhook deliveries with the
// app secret.
type WebhookVerifier struct {
	app goshopify.App
}

// NewWebhookVerifier creates a verifier for the app secret
func NewWebhookVerifier(appSecret string) (*WebhookVerifier, error) {
	if appSecret == "" {
		return nil, ErrConfigMissingSecret
	}
	return &WebhookVerifier{app: goshopify.App{ApiSecret: appSecret}}, nil
}

// Verify reports whether r carries a valid signature. The request body is
// restored for later reads.
func (v *WebhookVerifier) Verify(r *http.Request) bool {
	if r.Header.Get(HeaderHmac) == "" {
		return false
	}
	return v.app.VerifyWebhookRequest(r)
}
