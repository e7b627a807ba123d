package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/legalcrm/legalcrm/internal/models"
	"github.com/legalcrm/legalcrm/internal/store"
	"github.com/stretchr/testify/require"
)

func newTenant(subdomain string) *models.TenantRecord {
	now := time.Now()
	return &models.TenantRecord{
		ID:        uuid.New(),
		Name:      "Firm " + subdomain,
		Subdomain: subdomain,
		Status:    models.TenantStatusTrial,
		Plan:      models.TenantPlanBasic,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTenantStoreCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("create and find round trip", func(t *testing.T) {
		st := NewTenantStore()
		tenant := newTenant("acme")
		require.NoError(t, st.Create(ctx, tenant))

		found, err := st.Find(ctx, tenant.ID)
		require.NoError(t, err)
		require.Equal(t, tenant.Subdomain, found.Subdomain)

		// The store hands out clones, not its own record.
		found.Name = "mutated"
		again, err := st.Find(ctx, tenant.ID)
		require.NoError(t, err)
		require.Equal(t, "Firm acme", again.Name)
	})

	t.Run("duplicate subdomain is rejected", func(t *testing.T) {
		st := NewTenantStore()
		require.NoError(t, st.Create(ctx, newTenant("acme")))
		err := st.Create(ctx, newTenant("acme"))
		require.ErrorIs(t, err, store.ErrDuplicateSubdomain)
	})

	t.Run("duplicate custom domain is rejected", func(t *testing.T) {
		st := NewTenantStore()
		a := newTenant("acme")
		a.CustomDomain = "acmelaw.com"
		require.NoError(t, st.Create(ctx, a))

		b := newTenant("globex")
		b.CustomDomain = "acmelaw.com"
		require.ErrorIs(t, st.Create(ctx, b), store.ErrDuplicateCustomDomain)
	})

	t.Run("empty custom domains do not collide", func(t *testing.T) {
		st := NewTenantStore()
		require.NoError(t, st.Create(ctx, newTenant("acme")))
		require.NoError(t, st.Create(ctx, newTenant("globex")))
	})
}

func TestTenantStoreLookups(t *testing.T) {
	ctx := context.Background()

	st := NewTenantStore()
	tenant := newTenant("acme")
	tenant.CustomDomain = "acmelaw.com"
	require.NoError(t, st.Create(ctx, tenant))

	t.Run("by subdomain", func(t *testing.T) {
		found, err := st.FindBySubdomain(ctx, "acme")
		require.NoError(t, err)
		require.Equal(t, tenant.ID, found.ID)

		_, err = st.FindBySubdomain(ctx, "nosuch")
		require.ErrorIs(t, err, store.ErrTenantNotFound)
	})

	t.Run("by custom domain", func(t *testing.T) {
		found, err := st.FindByCustomDomain(ctx, "acmelaw.com")
		require.NoError(t, err)
		require.Equal(t, tenant.ID, found.ID)

		_, err = st.FindByCustomDomain(ctx, "nosuch.com")
		require.ErrorIs(t, err, store.ErrTenantNotFound)

		// An empty domain never matches tenants without one.
		_, err = st.FindByCustomDomain(ctx, "")
		require.ErrorIs(t, err, store.ErrTenantNotFound)
	})

	t.Run("by id not found", func(t *testing.T) {
		_, err := st.Find(ctx, uuid.New())
		require.ErrorIs(t, err, store.ErrTenantNotFound)
	})
}

func TestTenantStoreUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("persists field changes", func(t *testing.T) {
		st := NewTenantStore()
		tenant := newTenant("acme")
		require.NoError(t, st.Create(ctx, tenant))

		tenant.Name = "Acme Legal LLP"
		tenant.Plan = models.TenantPlanEnterprise
		require.NoError(t, st.Update(ctx, tenant))

		found, err := st.Find(ctx, tenant.ID)
		require.NoError(t, err)
		require.Equal(t, "Acme Legal LLP", found.Name)
		require.Equal(t, models.TenantPlanEnterprise, found.Plan)
		require.False(t, found.UpdatedAt.Before(found.CreatedAt))
	})

	t.Run("custom domain uniqueness holds across updates", func(t *testing.T) {
		st := NewTenantStore()
		a := newTenant("acme")
		a.CustomDomain = "acmelaw.com"
		require.NoError(t, st.Create(ctx, a))
		b := newTenant("globex")
		require.NoError(t, st.Create(ctx, b))

		b.CustomDomain = "acmelaw.com"
		require.ErrorIs(t, st.Update(ctx, b), store.ErrDuplicateCustomDomain)

		// Re-asserting its own domain is not a conflict.
		require.NoError(t, st.Update(ctx, a))
	})

	t.Run("unknown tenant is not found", func(t *testing.T) {
		st := NewTenantStore()
		require.ErrorIs(t, st.Update(ctx, newTenant("acme")), store.ErrTenantNotFound)
	})
}

func TestTenantStoreUpdateStatus(t *testing.T) {
	ctx := context.Background()

	st := NewTenantStore()
	tenant := newTenant("acme")
	require.NoError(t, st.Create(ctx, tenant))

	updated, err := st.UpdateStatus(ctx, tenant.ID, models.TenantStatusSuspended)
	require.NoError(t, err)
	require.Equal(t, models.TenantStatusSuspended, updated.Status)

	found, err := st.Find(ctx, tenant.ID)
	require.NoError(t, err)
	require.Equal(t, models.TenantStatusSuspended, found.Status)

	_, err = st.UpdateStatus(ctx, uuid.New(), models.TenantStatusActive)
	require.ErrorIs(t, err, store.ErrTenantNotFound)
}

func TestTenantStoreDelete(t *testing.T) {
	ctx := context.Background()

	st := NewTenantStore()
	tenant := newTenant("acme")
	require.NoError(t, st.Create(ctx, tenant))

	require.NoError(t, st.Delete(ctx, tenant.ID))

	_, err := st.Find(ctx, tenant.ID)
	require.ErrorIs(t, err, store.ErrTenantNotFound)

	require.ErrorIs(t, st.Delete(ctx, tenant.ID), store.ErrTenantNotFound)
}

func TestTenantStoreList(t *testing.T) {
	ctx := context.Background()

	st := NewTenantStore()
	base := time.Now()
	for i := range 5 {
		tenant := newTenant(fmt.Sprintf("firm%d", i))
		tenant.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, st.Create(ctx, tenant))
	}

	t.Run("orders newest first", func(t *testing.T) {
		tenants, total, err := st.List(ctx, 10, 0)
		require.NoError(t, err)
		require.EqualValues(t, 5, total)
		require.Len(t, tenants, 5)
		require.Equal(t, "firm4", tenants[0].Subdomain)
		require.Equal(t, "firm0", tenants[4].Subdomain)
	})

	t.Run("paginates with a stable total", func(t *testing.T) {
		page, total, err := st.List(ctx, 2, 2)
		require.NoError(t, err)
		require.EqualValues(t, 5, total)
		require.Len(t, page, 2)
		require.Equal(t, "firm2", page[0].Subdomain)
		require.Equal(t, "firm1", page[1].Subdomain)
	})

	t.Run("offset past the end is empty", func(t *testing.T) {
		page, total, err := st.List(ctx, 10, 100)
		require.NoError(t, err)
		require.EqualValues(t, 5, total)
		require.Empty(t, page)
	})
}
