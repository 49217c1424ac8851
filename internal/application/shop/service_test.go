package shop

import (
	"context"
	"sort"
	"testing"

	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memShops struct {
	byDomain map[string]*mirror.Shop
}

func (s *memShops) FindByID(_ context.Context, id uuid.UUID) (*mirror.Shop, error) {
	for _, sh := range s.byDomain {
		if sh.ID == id {
			cp := *sh
			return &cp, nil
		}
	}
	return nil, mirror.ErrShopNotFound
}

func (s *memShops) FindByDomain(_ context.Context, domain string) (*mirror.Shop, error) {
	sh, ok := s.byDomain[domain]
	if !ok {
		return nil, mirror.ErrShopNotFound
	}
	cp := *sh
	return &cp, nil
}

func (s *memShops) FindAll(_ context.Context) ([]mirror.Shop, error) {
	var out []mirror.Shop
	for _, sh := range s.byDomain {
		out = append(out, *sh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

func (s *memShops) FindActiveTargets(context.Context, uuid.UUID) ([]mirror.Shop, error) {
	return nil, nil
}

func (s *memShops) Save(_ context.Context, shop *mirror.Shop) error {
	cp := *shop
	s.byDomain[shop.Domain] = &cp
	return nil
}

type memConns struct {
	rows []mirror.ShopConnection
}

func (c *memConns) Save(_ context.Context, conn *mirror.ShopConnection) (bool, error) {
	for _, r := range c.rows {
		if r.SourceShopID == conn.SourceShopID && r.TargetShopID == conn.TargetShopID {
			return false, nil
		}
	}
	c.rows = append(c.rows, *conn)
	return true, nil
}

func (c *memConns) FindBySource(_ context.Context, sourceShopID uuid.UUID) ([]mirror.ShopConnection, error) {
	var out []mirror.ShopConnection
	for _, r := range c.rows {
		if r.SourceShopID == sourceShopID {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestService() (*Service, *memShops, *memConns) {
	shops := &memShops{byDomain: map[string]*mirror.Shop{}}
	conns := &memConns{}
	return NewService(shops, conns, zap.NewNop()), shops, conns
}

func TestService_Add(t *testing.T) {
	ctx := context.Background()
	svc, shops, _ := newTestService()

	shop, created, err := svc.Add(ctx, AddInput{Domain: " Source.MyShopify.com ", Token: "t1", IsSource: true, LocationID: 77})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "source.myshopify.com", shop.Domain)
	assert.Equal(t, "source.myshopify.com", shop.Name)
	assert.Equal(t, mirror.DefaultAPIVersion, shop.APIVersion)
	assert.Equal(t, "gid://shopify/Location/77", shop.LocationGID)
	assert.True(t, shop.IsActive)

	again, created, err := svc.Add(ctx, AddInput{Domain: "source.myshopify.com", Token: "t2", Name: "Main", APIVersion: "2025-04", Inactive: true})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, shop.ID, again.ID)

	stored := shops.byDomain["source.myshopify.com"]
	assert.Equal(t, "t2", stored.AccessToken)
	assert.Equal(t, "Main", stored.Name)
	assert.Equal(t, "2025-04", stored.APIVersion)
	assert.False(t, stored.IsActive)
	assert.False(t, stored.IsSource)
	assert.Equal(t, "gid://shopify/Location/77", stored.LocationGID, "an unset location keeps the stored one")
}

func TestService_AddRejectsMissingToken(t *testing.T) {
	svc, _, _ := newTestService()

	_, _, err := svc.Add(context.Background(), AddInput{Domain: "a.myshopify.com"})
	assert.ErrorIs(t, err, mirror.ErrShopInvalidToken)
}

func TestService_ConnectAndList(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	for _, d := range []string{"source.myshopify.com", "a.myshopify.com", "b.myshopify.com"} {
		_, _, err := svc.Add(ctx, AddInput{Domain: d, Token: "t"})
		require.NoError(t, err)
	}

	results, err := svc.Connect(ctx, "source.myshopify.com", []string{"a.myshopify.com", "missing.myshopify.com", "source.myshopify.com"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[0].Created)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, mirror.ErrShopNotFound)
	assert.ErrorIs(t, results[2].Err, mirror.ErrConnectionSelf)

	results, err = svc.Connect(ctx, "source.myshopify.com", []string{"A.myshopify.com", "b.myshopify.com"})
	require.NoError(t, err)
	assert.False(t, results[0].Created, "existing edges are left alone")
	assert.True(t, results[1].Created)

	listing, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, listing, 3)
	for _, l := range listing {
		if l.Shop.Domain == "source.myshopify.com" {
			assert.ElementsMatch(t, []string{"a.myshopify.com", "b.myshopify.com"}, l.Targets)
		} else {
			assert.Empty(t, l.Targets)
		}
	}

	_, err = svc.Connect(ctx, "nobody.myshopify.com", []string{"a.myshopify.com"})
	assert.ErrorIs(t, err, mirror.ErrShopNotFound)
}
