//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/legalcrm/legalcrm/internal/models"
	"github.com/legalcrm/legalcrm/internal/store"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*TenantStore, func()) {
	// Start postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString})
	require.NoError(t, err)

	err = RunMigrations(ctx, pool)
	require.NoError(t, err)

	// Migrations are idempotent; a second run is a no-op.
	err = RunMigrations(ctx, pool)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return NewTenantStore(pool), cleanup
}

func testTenant(subdomain string) *models.TenantRecord {
	now := time.Now().UTC()
	return &models.TenantRecord{
		ID:            uuid.New(),
		Name:          "Firm " + subdomain,
		Subdomain:     subdomain,
		Status:        models.TenantStatusTrial,
		Plan:          models.TenantPlanBasic,
		EncryptionKey: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		Settings:      map[string]any{"timezone": "Australia/Sydney"},
		ContactInfo:   map[string]any{"email": subdomain + "@example.com"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestIntegration_TenantStore(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	t.Run("create and find round trip", func(t *testing.T) {
		tenant := testTenant("acme")
		tenant.CustomDomain = "acmelaw.com"
		require.NoError(t, st.Create(ctx, tenant))

		found, err := st.Find(ctx, tenant.ID)
		require.NoError(t, err)
		require.Equal(t, tenant.Name, found.Name)
		require.Equal(t, tenant.Subdomain, found.Subdomain)
		require.Equal(t, tenant.CustomDomain, found.CustomDomain)
		require.Equal(t, tenant.EncryptionKey, found.EncryptionKey)
		require.Equal(t, "Australia/Sydney", found.Settings["timezone"])
	})

	t.Run("lookup by subdomain and custom domain", func(t *testing.T) {
		bySub, err := st.FindBySubdomain(ctx, "acme")
		require.NoError(t, err)
		require.Equal(t, "acme", bySub.Subdomain)

		byDomain, err := st.FindByCustomDomain(ctx, "acmelaw.com")
		require.NoError(t, err)
		require.Equal(t, bySub.ID, byDomain.ID)

		_, err = st.FindBySubdomain(ctx, "nosuch")
		require.ErrorIs(t, err, store.ErrTenantNotFound)

		_, err = st.FindByCustomDomain(ctx, "nosuch.com")
		require.ErrorIs(t, err, store.ErrTenantNotFound)
	})

	t.Run("unique constraints map to sentinel errors", func(t *testing.T) {
		dupSub := testTenant("acme")
		require.ErrorIs(t, st.Create(ctx, dupSub), store.ErrDuplicateSubdomain)

		dupDomain := testTenant("globex")
		dupDomain.CustomDomain = "acmelaw.com"
		require.ErrorIs(t, st.Create(ctx, dupDomain), store.ErrDuplicateCustomDomain)
	})

	t.Run("tenants without a custom domain do not collide", func(t *testing.T) {
		require.NoError(t, st.Create(ctx, testTenant("initech")))
		require.NoError(t, st.Create(ctx, testTenant("hooli")))
	})

	t.Run("update persists field changes", func(t *testing.T) {
		tenant := testTenant("umbrella")
		require.NoError(t, st.Create(ctx, tenant))

		tenant.Name = "Umbrella Legal LLP"
		tenant.Plan = models.TenantPlanEnterprise
		tenant.Metadata = map[string]any{"region": "apac"}
		require.NoError(t, st.Update(ctx, tenant))

		found, err := st.Find(ctx, tenant.ID)
		require.NoError(t, err)
		require.Equal(t, "Umbrella Legal LLP", found.Name)
		require.Equal(t, models.TenantPlanEnterprise, found.Plan)
		require.Equal(t, "apac", found.Metadata["region"])
	})

	t.Run("update status returns the updated record", func(t *testing.T) {
		tenant := testTenant("wayne")
		require.NoError(t, st.Create(ctx, tenant))

		updated, err := st.UpdateStatus(ctx, tenant.ID, models.TenantStatusActive)
		require.NoError(t, err)
		require.Equal(t, models.TenantStatusActive, updated.Status)
		require.False(t, updated.UpdatedAt.Before(tenant.UpdatedAt))

		_, err = st.UpdateStatus(ctx, uuid.New(), models.TenantStatusActive)
		require.ErrorIs(t, err, store.ErrTenantNotFound)
	})

	t.Run("delete removes the record", func(t *testing.T) {
		tenant := testTenant("stark")
		require.NoError(t, st.Create(ctx, tenant))

		require.NoError(t, st.Delete(ctx, tenant.ID))

		_, err := st.Find(ctx, tenant.ID)
		require.ErrorIs(t, err, store.ErrTenantNotFound)

		require.ErrorIs(t, st.Delete(ctx, tenant.ID), store.ErrTenantNotFound)
	})

	t.Run("list pages newest first with a stable total", func(t *testing.T) {
		all, total, err := st.List(ctx, 200, 0)
		require.NoError(t, err)
		require.EqualValues(t, len(all), total)
		for i := 1; i < len(all); i++ {
			require.False(t, all[i-1].CreatedAt.Before(all[i].CreatedAt))
		}

		page, pagedTotal, err := st.List(ctx, 2, 1)
		require.NoError(t, err)
		require.Equal(t, total, pagedTotal)
		require.Len(t, page, 2)
		require.Equal(t, all[1].ID, page[0].ID)
	})
}
