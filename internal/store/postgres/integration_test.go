//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/tenant"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
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

	pool, err := NewPool(ctx, &PoolConfig{
		ConnString:  connString,
		AutoMigrate: true,
	})
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup
}

// createOrg inserts an organization and returns a tenant context scoped to it.
func createOrg(t *testing.T, ctx context.Context, pool *pgxpool.Pool, slug string) (*models.Organization, context.Context) {
	now := time.Now().UTC()
	org := &models.Organization{
		OrgID:     uuid.Must(uuid.NewV7()),
		Slug:      slug,
		Name:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, NewOrganizationStore(pool).Create(ctx, org))
	return org, tenant.WithOrganization(ctx, org.OrgID)
}

func createUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, orgID uuid.UUID, email string) *models.User {
	now := time.Now().UTC()
	user := &models.User{
		UserID:    uuid.Must(uuid.NewV7()),
		OrgID:     orgID,
		Email:     email,
		Name:      email,
		Roles:     []string{models.RoleOperator},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, NewUserStore(pool).Create(ctx, user))
	return user
}

func newCase(orgID uuid.UUID, reference string) *models.Case {
	now := time.Now().UTC()
	return &models.Case{
		CaseID:         uuid.Must(uuid.NewV7()),
		OrgID:          orgID,
		ReferenceCode:  reference,
		Source:         models.CaseSourceOperator,
		Subject:        "integration test case",
		Details:        "details",
		PipelineID:     "standard",
		PipelineStage:  "intake",
		StageChangedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestIntegration_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	cases := NewCaseStore(pool)

	orgA, ctxA := createOrg(t, ctx, pool, "org-a")
	orgB, ctxB := createOrg(t, ctx, pool, "org-b")

	caseA := newCase(orgA.OrgID, "HC-AAAA")
	require.NoError(t, cases.Create(ctxA, caseA))

	caseB := newCase(orgB.OrgID, "HC-BBBB")
	require.NoError(t, cases.Create(ctxB, caseB))

	t.Run("matching organization sees its rows", func(t *testing.T) {
		got, err := cases.Get(ctxA, caseA.CaseID)
		require.NoError(t, err)
		require.Equal(t, caseA.ReferenceCode, got.ReferenceCode)

		listed, err := cases.List(ctxA, store.CaseFilter{})
		require.NoError(t, err)
		require.Len(t, listed, 1)
		require.Equal(t, caseA.CaseID, listed[0].CaseID)
	})

	t.Run("other organization sees nothing", func(t *testing.T) {
		_, err := cases.Get(ctxB, caseA.CaseID)
		require.ErrorIs(t, err, store.ErrCaseNotFound)

		listed, err := cases.List(ctxB, store.CaseFilter{})
		require.NoError(t, err)
		require.Len(t, listed, 1)
		require.Equal(t, caseB.CaseID, listed[0].CaseID)
	})

	t.Run("other organization cannot mutate", func(t *testing.T) {
		err := cases.UpdateStage(ctxB, caseA.CaseID, "triage", nil, time.Now().UTC())
		require.ErrorIs(t, err, store.ErrCaseNotFound)

		// Verify the row was untouched.
		got, err := cases.Get(ctxA, caseA.CaseID)
		require.NoError(t, err)
		require.Equal(t, "intake", got.PipelineStage)
	})

	t.Run("system capability sees every tenant", func(t *testing.T) {
		listed, err := cases.List(tenant.AsSystem(ctx), store.CaseFilter{})
		require.NoError(t, err)
		require.Len(t, listed, 2)
	})

	t.Run("no tenant context fails closed", func(t *testing.T) {
		_, err := cases.Get(ctx, caseA.CaseID)
		require.ErrorIs(t, err, store.ErrCaseNotFound)

		listed, err := cases.List(ctx, store.CaseFilter{})
		require.NoError(t, err)
		require.Empty(t, listed)
	})

	t.Run("organizations are exempt from filtering", func(t *testing.T) {
		// Login resolves the organization from a slug before any tenant
		// context exists; this must work with a bare context.
		org, err := NewOrganizationStore(pool).GetBySlug(ctx, "org-a")
		require.NoError(t, err)
		require.Equal(t, "org-a", org.Slug)

		all, err := NewOrganizationStore(pool).List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
	})
}

func TestIntegration_UserDeleteNullsActorRefs(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	cases := NewCaseStore(pool)
	files := NewFileStore(pool)
	activities := NewActivityStore(pool)
	users := NewUserStore(pool)

	org, orgCtx := createOrg(t, ctx, pool, "acme")
	actor := createUser(t, orgCtx, pool, org.OrgID, "casey@acme.example")

	now := time.Now().UTC()

	c := newCase(org.OrgID, "HC-ACTOR")
	c.Source = models.CaseSourceEmployee
	c.ReporterUserID = &actor.UserID
	require.NoError(t, cases.Create(orgCtx, c))

	require.NoError(t, cases.UpdateStage(orgCtx, c.CaseID, "triage", &actor.UserID, now))
	require.NoError(t, cases.RecordOutcome(orgCtx, c.CaseID, models.OutcomeSubstantiated, &actor.UserID, "confirmed", now))

	file := &models.CaseFile{
		FileID:       uuid.Must(uuid.NewV7()),
		OrgID:        org.OrgID,
		CaseID:       c.CaseID,
		Name:         "evidence.pdf",
		ContentType:  "application/pdf",
		SizeBytes:    4,
		StorageKey:   "k",
		UploadedByID: &actor.UserID,
		CreatedAt:    now,
	}
	require.NoError(t, files.Create(orgCtx, file))

	event := &models.ActivityEvent{
		EventID:     uuid.Must(uuid.NewV7()),
		OrgID:       org.OrgID,
		ActorUserID: &actor.UserID,
		Action:      "case.stage_changed",
		EntityType:  "case",
		EntityID:    c.CaseID,
		CreatedAt:   now,
	}
	require.NoError(t, activities.Record(orgCtx, event))

	require.NoError(t, users.Delete(orgCtx, actor.UserID))

	t.Run("case actor columns are nulled, data survives", func(t *testing.T) {
		got, err := cases.Get(orgCtx, c.CaseID)
		require.NoError(t, err)
		require.Nil(t, got.ReporterUserID)
		require.Nil(t, got.StageChangedByID)
		require.Nil(t, got.OutcomeByID)
		require.Equal(t, "triage", got.PipelineStage)
		require.Equal(t, models.OutcomeSubstantiated, got.Outcome)
	})

	t.Run("file uploader is nulled", func(t *testing.T) {
		got, err := files.Get(orgCtx, file.FileID)
		require.NoError(t, err)
		require.Nil(t, got.UploadedByID)
		require.Equal(t, "evidence.pdf", got.Name)
	})

	t.Run("activity actor is nulled, event survives", func(t *testing.T) {
		events, err := activities.ListByEntity(orgCtx, "case", c.CaseID, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Nil(t, events[0].ActorUserID)
		require.Equal(t, "case.stage_changed", events[0].Action)
	})
}

func TestIntegration_CaseDeleteNullsMergePointers(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	cases := NewCaseStore(pool)

	org, orgCtx := createOrg(t, ctx, pool, "acme")

	target := newCase(org.OrgID, "HC-TARGET")
	require.NoError(t, cases.Create(orgCtx, target))

	duplicate := newCase(org.OrgID, "HC-DUP")
	require.NoError(t, cases.Create(orgCtx, duplicate))

	require.NoError(t, cases.Merge(orgCtx, duplicate.CaseID, target.CaseID, nil, "same incident", time.Now().UTC()))

	require.NoError(t, cases.Delete(orgCtx, target.CaseID))

	got, err := cases.Get(orgCtx, duplicate.CaseID)
	require.NoError(t, err)
	require.True(t, got.IsMerged)
	require.Nil(t, got.MergedIntoCaseID, "merge pointer should be orphaned, not cascade deleted")
}

func TestIntegration_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	sessions := NewSessionStore(pool)

	org, orgCtx := createOrg(t, ctx, pool, "acme")
	user := createUser(t, orgCtx, pool, org.OrgID, "casey@acme.example")

	now := time.Now().UTC()
	session := &models.Session{
		SessionID:  uuid.Must(uuid.NewV7()),
		OrgID:      org.OrgID,
		UserID:     user.UserID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
		LastUsedAt: now,
		IPAddress:  "203.0.113.9",
	}
	require.NoError(t, sessions.Create(orgCtx, session))

	t.Run("cookie resolution reads under system capability", func(t *testing.T) {
		got, err := sessions.Get(tenant.AsSystem(ctx), session.SessionID)
		require.NoError(t, err)
		require.Equal(t, user.UserID, got.UserID)
		require.Equal(t, org.OrgID, got.OrgID)
		// round-trips as the host address, not the inet prefix form
		require.Equal(t, "203.0.113.9", got.IPAddress)
	})

	t.Run("bare context cannot read sessions", func(t *testing.T) {
		_, err := sessions.Get(ctx, session.SessionID)
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("deleting the user cascades sessions", func(t *testing.T) {
		require.NoError(t, NewUserStore(pool).Delete(orgCtx, user.UserID))

		_, err := sessions.Get(tenant.AsSystem(ctx), session.SessionID)
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})
}
