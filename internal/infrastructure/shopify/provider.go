package shopify

import (
	"fmt"
	"net/http"
	"sync"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"go.uber.org/zap"

	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/domain/platform"
)

// Provider hands out catalog clients per shop. Clients are cached by domain,
// token and API version, so a rotated token or version yields a new client.
type Provider struct {
	app        goshopify.App
	cfg        Config
	httpClient *http.Client
	calls      CallRecorder
	logger     *zap.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

var _ platform.CatalogAPIProvider = (*Provider)(nil)

// ProviderOption configures a Provider
type ProviderOption func(*Provider)

// WithHTTPClient sets the HTTP client used for every shop
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) { p.httpClient = c }
}

// WithCallRecorder sets the remote call recorder
func WithCallRecorder(r CallRecorder) ProviderOption {
	return func(p *Provider) { p.calls = r }
}

// NewProvider creates a new Provider
func NewProvider(cfg Config, logger *zap.Logger, opts ...ProviderOption) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Provider{
		app:     goshopify.App{ApiKey: cfg.AppKey, ApiSecret: cfg.AppSecret},
		cfg:     cfg,
		calls:   nopCallRecorder{},
		logger:  logger,
		clients: make(map[string]*Client),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return p, nil
}

// For returns the client of shop
func (p *Provider) For(shop *mirror.Shop) (platform.CatalogAPI, error) {
	if shop == nil || shop.Domain == "" {
		return nil, mirror.ErrShopInvalidDomain
	}
	if shop.AccessToken == "" {
		return nil, mirror.ErrShopInvalidToken
	}
	version := shop.APIVersion
	if version == "" {
		version = p.cfg.APIVersion
	}
	key := shop.Domain + "|" + version + "|" + shop.AccessToken

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c, nil
	}

	api, err := goshopify.NewClient(p.app, shop.Domain, shop.AccessToken,
		goshopify.WithVersion(version),
		goshopify.WithRetry(p.cfg.Retries),
		goshopify.WithHTTPClient(p.httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("shopify: create client for %s: %w", shop.Domain, err)
	}
	c := NewClient(shop.Domain, api, p.calls, p.logger)
	p.clients[key] = c
	p.logger.Debug("shopify client created", zap.String("shop", shop.Domain), zap.String("api_version", version))
	return c, nil
}
