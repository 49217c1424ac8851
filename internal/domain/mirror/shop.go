package mirror

import (
	"context"
	"strings"

	"github.com/catalogmirror/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultAPIVersion is used when a shop is provisioned without one.
const DefaultAPIVersion = "2025-01"

// ---------------------------------------------------------------------------
// Shop Entity
// ---------------------------------------------------------------------------

// Shop is a store taking part in replication, either as source or target.
type Shop struct {
	shared.BaseEntity
	// Name is a human readable label
	Name string
	// Domain is the shop's platform domain, e.g. "acme.myshopify.com"
	Domain string
	// AccessToken authenticates admin API calls
	AccessToken string
	// APIVersion is the admin API version used for this shop
	APIVersion string
	// IsSource marks shops whose catalog changes drive replication
	IsSource bool
	// IsActive disables a shop without deleting it
	IsActive bool
	// LocationGID is the default inventory location on the shop
	LocationGID string
}

// NewShop creates a new shop
func NewShop(domain, accessToken string) (*Shop, error) {
	s := &Shop{
		BaseEntity:  shared.NewBaseEntity(),
		Domain:      NormalizeDomain(domain),
		AccessToken: accessToken,
		APIVersion:  DefaultAPIVersion,
		IsActive:    true,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate validates the shop
func (s *Shop) Validate() error {
	if s.Domain == "" {
		return ErrShopInvalidDomain
	}
	if s.AccessToken == "" {
		return ErrShopInvalidToken
	}
	return nil
}

// RotateToken replaces the access token
func (s *Shop) RotateToken(token string) error {
	if token == "" {
		return ErrShopInvalidToken
	}
	s.AccessToken = token
	s.Touch()
	return nil
}

// Version returns the API version, falling back to the default
func (s *Shop) Version() string {
	if s.APIVersion == "" {
		return DefaultAPIVersion
	}
	return s.APIVersion
}

// NormalizeDomain lowercases a domain and strips scheme and trailing slash.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	return strings.TrimSuffix(d, "/")
}

// ---------------------------------------------------------------------------
// ShopConnection Entity
// ---------------------------------------------------------------------------

// ShopConnection is a directed replication edge from a source shop to a
// target shop. It is unique per pair.
type ShopConnection struct {
	shared.BaseEntity
	SourceShopID uuid.UUID
	TargetShopID uuid.UUID
}

// NewShopConnection creates a connection edge
func NewShopConnection(sourceShopID, targetShopID uuid.UUID) (*ShopConnection, error) {
	if sourceShopID == uuid.Nil || targetShopID == uuid.Nil {
		return nil, ErrShopNotFound
	}
	if sourceShopID == targetShopID {
		return nil, ErrConnectionSelf
	}
	return &ShopConnection{
		BaseEntity:   shared.NewBaseEntity(),
		SourceShopID: sourceShopID,
		TargetShopID: targetShopID,
	}, nil
}

// ---------------------------------------------------------------------------
// Repository interfaces
// ---------------------------------------------------------------------------

// ShopReader defines read access to shops
type ShopReader interface {
	// FindByID finds a shop by id
	FindByID(ctx context.Context, id uuid.UUID) (*Shop, error)
	// FindByDomain finds a shop by its normalized domain
	FindByDomain(ctx context.Context, domain string) (*Shop, error)
	// FindAll lists every shop ordered by domain
	FindAll(ctx context.Context) ([]Shop, error)
	// FindActiveTargets lists active shops connected from sourceShopID
	FindActiveTargets(ctx context.Context, sourceShopID uuid.UUID) ([]Shop, error)
}

// ShopWriter defines write access to shops
type ShopWriter interface {
	// Save creates or updates a shop
	Save(ctx context.Context, shop *Shop) error
}

// ShopRepository is the full shop persistence port
type ShopRepository interface {
	ShopReader
	ShopWriter
}

// ConnectionRepository persists replication edges
type ConnectionRepository interface {
	// Save creates the edge if it does not exist; created reports whether a row was added
	Save(ctx context.Context, conn *ShopConnection) (created bool, err error)
	// FindBySource lists edges leaving sourceShopID
	FindBySource(ctx context.Context, sourceShopID uuid.UUID) ([]ShopConnection, error)
}
