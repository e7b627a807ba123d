package tenantdb

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/legalcrm/legalcrm/internal/models"
	"github.com/legalcrm/legalcrm/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeFinder struct {
	bySubdomain map[string]*models.TenantRecord
	byDomain    map[string]*models.TenantRecord
}

func (f *fakeFinder) FindBySubdomain(ctx context.Context, subdomain string) (*models.TenantRecord, error) {
	if t, ok := f.bySubdomain[subdomain]; ok {
		return t, nil
	}
	return nil, store.ErrTenantNotFound
}

func (f *fakeFinder) FindByCustomDomain(ctx context.Context, domain string) (*models.TenantRecord, error) {
	if t, ok := f.byDomain[domain]; ok {
		return t, nil
	}
	return nil, store.ErrTenantNotFound
}

type fakeConns struct {
	gets atomic.Int64
	err  error
}

func (f *fakeConns) Get(ctx context.Context, tenantID string) (*Handle, error) {
	f.gets.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &Handle{TenantID: tenantID}, nil
}

func newResolverFixture() (*Resolver, *fakeFinder, *fakeConns) {
	acme := &models.TenantRecord{
		ID:        uuid.New(),
		Name:      "Acme Legal",
		Subdomain: "acme",
		Status:    models.TenantStatusActive,
		Plan:      models.TenantPlanProfessional,
	}
	globex := &models.TenantRecord{
		ID:           uuid.New(),
		Name:         "Globex Law",
		Subdomain:    "globex",
		CustomDomain: "globexlaw.com",
		Status:       models.TenantStatusTrial,
		Plan:         models.TenantPlanBasic,
	}
	frozen := &models.TenantRecord{
		ID:        uuid.New(),
		Name:      "Frozen LLP",
		Subdomain: "frozen",
		Status:    models.TenantStatusSuspended,
		Plan:      models.TenantPlanBasic,
	}

	finder := &fakeFinder{
		bySubdomain: map[string]*models.TenantRecord{
			"acme":   acme,
			"globex": globex,
			"frozen": frozen,
		},
		byDomain: map[string]*models.TenantRecord{
			"globexlaw.com": globex,
		},
	}
	conns := &fakeConns{}
	return NewResolver(finder, conns, "/api/admin"), finder, conns
}

func TestResolverResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("subdomain host resolves", func(t *testing.T) {
		r, finder, _ := newResolverFixture()

		tenant, err := r.Resolve(ctx, "acme.legalcrm.example")
		require.NoError(t, err)
		require.Same(t, finder.bySubdomain["acme"], tenant)
	})

	t.Run("custom domain wins over subdomain extraction", func(t *testing.T) {
		r, finder, _ := newResolverFixture()

		tenant, err := r.Resolve(ctx, "globexlaw.com")
		require.NoError(t, err)
		require.Same(t, finder.byDomain["globexlaw.com"], tenant)
	})

	t.Run("host is normalized before lookup", func(t *testing.T) {
		r, _, _ := newResolverFixture()

		for _, host := range []string{
			"ACME.LegalCRM.Example",
			"acme.legalcrm.example:8443",
			"acme.legalcrm.example.",
		} {
			tenant, err := r.Resolve(ctx, host)
			require.NoError(t, err, "host %q", host)
			require.Equal(t, "acme", tenant.Subdomain)
		}
	})

	t.Run("unknown subdomain is not found", func(t *testing.T) {
		r, _, _ := newResolverFixture()

		_, err := r.Resolve(ctx, "nosuch.legalcrm.example")
		require.ErrorIs(t, err, store.ErrTenantNotFound)
	})

	t.Run("two-label host without custom domain is not found", func(t *testing.T) {
		r, _, _ := newResolverFixture()

		// "acme" is a real subdomain, but a bare two-label host is never
		// treated as one.
		_, err := r.Resolve(ctx, "acme.example")
		require.ErrorIs(t, err, store.ErrTenantNotFound)
	})

	t.Run("empty host is not found", func(t *testing.T) {
		r, _, _ := newResolverFixture()

		_, err := r.Resolve(ctx, "")
		require.ErrorIs(t, err, store.ErrTenantNotFound)
	})

	t.Run("suspended tenant is forbidden", func(t *testing.T) {
		r, _, _ := newResolverFixture()

		_, err := r.Resolve(ctx, "frozen.legalcrm.example")
		require.ErrorIs(t, err, ErrTenantForbidden)
	})
}

func TestResolverResolveAndConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("resolution pairs with one connection", func(t *testing.T) {
		r, finder, conns := newResolverFixture()

		res, err := r.ResolveAndConnect(ctx, "acme.legalcrm.example", "/api/workspace")
		require.NoError(t, err)
		require.False(t, res.Bypassed())
		require.Same(t, finder.bySubdomain["acme"], res.Tenant)
		require.Equal(t, res.Tenant.ID.String(), res.Handle.TenantID)
		require.EqualValues(t, 1, conns.gets.Load())
	})

	t.Run("forbidden tenant never reaches the cache", func(t *testing.T) {
		r, _, conns := newResolverFixture()

		_, err := r.ResolveAndConnect(ctx, "frozen.legalcrm.example", "/api/workspace")
		require.ErrorIs(t, err, ErrTenantForbidden)
		require.EqualValues(t, 0, conns.gets.Load())
	})

	t.Run("unknown host never reaches the cache", func(t *testing.T) {
		r, _, conns := newResolverFixture()

		_, err := r.ResolveAndConnect(ctx, "nosuch.legalcrm.example", "/api/workspace")
		require.ErrorIs(t, err, store.ErrTenantNotFound)
		require.EqualValues(t, 0, conns.gets.Load())
	})

	t.Run("admin paths bypass resolution", func(t *testing.T) {
		r, _, conns := newResolverFixture()

		res, err := r.ResolveAndConnect(ctx, "acme.legalcrm.example", "/api/admin/tenants")
		require.NoError(t, err)
		require.True(t, res.Bypassed())
		require.Nil(t, res.Handle)
		require.EqualValues(t, 0, conns.gets.Load())
	})

	t.Run("operator hosts bypass resolution", func(t *testing.T) {
		r, _, conns := newResolverFixture()

		for _, host := range []string{
			"localhost",
			"localhost:8080",
			"127.0.0.1:8080",
			"192.168.4.20",
			"[::1]:8080",
		} {
			res, err := r.ResolveAndConnect(ctx, host, "/health")
			require.NoError(t, err, "host %q", host)
			require.True(t, res.Bypassed(), "host %q", host)
		}
		require.EqualValues(t, 0, conns.gets.Load())
	})

	t.Run("connection failure surfaces", func(t *testing.T) {
		r, _, conns := newResolverFixture()
		conns.err = ErrCacheClosed

		_, err := r.ResolveAndConnect(ctx, "acme.legalcrm.example", "/api/workspace")
		require.ErrorIs(t, err, ErrCacheClosed)
	})
}
