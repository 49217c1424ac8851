package mirror

import "errors"

// ---------------------------------------------------------------------------
// Shop errors
// ---------------------------------------------------------------------------

var (
	ErrShopNotFound      = errors.New("mirror: shop not found")
	ErrShopInvalidDomain = errors.New("mirror: invalid shop domain")
	ErrShopInvalidToken  = errors.New("mirror: invalid shop access token")
	ErrShopNotSource     = errors.New("mirror: shop is not an active source")
	ErrConnectionSelf    = errors.New("mirror: a shop cannot be connected to itself")
)

// ---------------------------------------------------------------------------
// Mirror errors
// ---------------------------------------------------------------------------

var (
	ErrProductMirrorNotFound      = errors.New("mirror: product mirror not found")
	ErrTargetProductMissing       = errors.New("mirror: product mirror has no target product")
	ErrMirrorInvalidSourceProduct = errors.New("mirror: invalid source product id")
	ErrVariantMirrorNotFound      = errors.New("mirror: variant mirror not found")
	ErrVariantMirrorInvalid       = errors.New("mirror: variant mirror needs a key or a target variant")
	ErrMediaProcessNotFound       = errors.New("mirror: media process not found")
)

// ---------------------------------------------------------------------------
// Ingestion errors
// ---------------------------------------------------------------------------

var (
	ErrWebhookInvalid = errors.New("mirror: webhook event requires id, topic and payload")
)
