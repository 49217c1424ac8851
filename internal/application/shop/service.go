// Package shop provisions shops and the replication edges between them.
package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"go.uber.org/zap"
)

// AddInput describes a shop to create or update
type AddInput struct {
	Domain     string
	Token      string
	Name       string
	APIVersion string
	IsSource   bool
	Inactive   bool
	// LocationID is the legacy id of the default inventory location; zero
	// leaves it unset
	LocationID int64
}

// ConnectResult is the outcome of connecting one target
type ConnectResult struct {
	Target  string
	Created bool
	Err     error
}

// Listing is a shop with the domains it replicates to
type Listing struct {
	Shop    mirror.Shop
	Targets []string
}

// Service provisions shops
type Service struct {
	shops  mirror.ShopRepository
	conns  mirror.ConnectionRepository
	logger *zap.Logger
}

// NewService creates a new Service
func NewService(shops mirror.ShopRepository, conns mirror.ConnectionRepository, logger *zap.Logger) *Service {
	return &Service{shops: shops, conns: conns, logger: logger}
}

// Add creates the shop, or updates credentials and flags of an existing one
// with the same domain. created reports which happened.
func (s *Service) Add(ctx context.Context, in AddInput) (shop *mirror.Shop, created bool, err error) {
	domain := mirror.NormalizeDomain(in.Domain)
	shop, err = s.shops.FindByDomain(ctx, domain)
	switch {
	case errors.Is(err, mirror.ErrShopNotFound):
		shop, err = mirror.NewShop(domain, in.Token)
		if err != nil {
			return nil, false, err
		}
		created = true
	case err != nil:
		return nil, false, fmt.Errorf("shop: lookup %s: %w", domain, err)
	default:
		if err := shop.RotateToken(in.Token); err != nil {
			return nil, false, err
		}
	}

	shop.Name = strings.TrimSpace(in.Name)
	if shop.Name == "" {
		shop.Name = domain
	}
	if in.APIVersion != "" {
		shop.APIVersion = in.APIVersion
	}
	shop.IsSource = in.IsSource
	shop.IsActive = !in.Inactive
	if in.LocationID > 0 {
		shop.LocationGID = catalog.LocationGID(in.LocationID)
	}

	if err := s.shops.Save(ctx, shop); err != nil {
		return nil, false, fmt.Errorf("shop: save %s: %w", domain, err)
	}
	s.logger.Info("shop saved",
		zap.String("shop", shop.Domain),
		zap.Bool("created", created),
		zap.Bool("source", shop.IsSource),
		zap.Bool("active", shop.IsActive))
	return shop, created, nil
}

// Connect creates edges from one shop to each of the given targets. Existing
// edges are left alone; each target is reported separately.
func (s *Service) Connect(ctx context.Context, from string, to []string) ([]ConnectResult, error) {
	source, err := s.shops.FindByDomain(ctx, mirror.NormalizeDomain(from))
	if err != nil {
		return nil, fmt.Errorf("shop: source %s: %w", from, err)
	}

	results := make([]ConnectResult, 0, len(to))
	for _, domain := range to {
		res := ConnectResult{Target: mirror.NormalizeDomain(domain)}
		target, err := s.shops.FindByDomain(ctx, res.Target)
		if err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}
		conn, err := mirror.NewShopConnection(source.ID, target.ID)
		if err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}
		res.Created, res.Err = s.conns.Save(ctx, conn)
		if res.Err == nil {
			s.logger.Info("shops connected",
				zap.String("source", source.Domain),
				zap.String("target", target.Domain),
				zap.Bool("created", res.Created))
		}
		results = append(results, res)
	}
	return results, nil
}

// List returns every shop with its outgoing edges.
func (s *Service) List(ctx context.Context) ([]Listing, error) {
	shops, err := s.shops.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]string, len(shops))
	for _, sh := range shops {
		byID[sh.ID.String()] = sh.Domain
	}

	out := make([]Listing, 0, len(shops))
	for _, sh := range shops {
		conns, err := s.conns.FindBySource(ctx, sh.ID)
		if err != nil {
			return nil, err
		}
		l := Listing{Shop: sh}
		for _, c := range conns {
			if d, ok := byID[c.TargetShopID.String()]; ok {
				l.Targets = append(l.Targets, d)
			}
		}
		out = append(out, l)
	}
	return out, nil
}
