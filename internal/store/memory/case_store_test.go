package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/tenant"
)

func testCase(orgID uuid.UUID, reference string) *models.Case {
	now := time.Now().UTC()
	return &models.Case{
		CaseID:         uuid.Must(uuid.NewV7()),
		OrgID:          orgID,
		ReferenceCode:  reference,
		Source:         models.CaseSourceOperator,
		Subject:        "subject",
		PipelineID:     "standard",
		PipelineStage:  "intake",
		StageChangedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMemoryCaseStore_TenantVisibility(t *testing.T) {
	st := NewCaseStore()

	orgA := uuid.Must(uuid.NewV7())
	orgB := uuid.Must(uuid.NewV7())
	ctxA := tenant.WithOrganization(context.Background(), orgA)
	ctxB := tenant.WithOrganization(context.Background(), orgB)

	c := testCase(orgA, "HC-VIS")
	require.NoError(t, st.Create(ctxA, c))

	t.Run("matching organization sees the row", func(t *testing.T) {
		got, err := st.Get(ctxA, c.CaseID)
		require.NoError(t, err)
		require.Equal(t, "HC-VIS", got.ReferenceCode)
	})

	t.Run("other organization does not", func(t *testing.T) {
		_, err := st.Get(ctxB, c.CaseID)
		require.ErrorIs(t, err, store.ErrCaseNotFound)
	})

	t.Run("bare context fails closed", func(t *testing.T) {
		_, err := st.Get(context.Background(), c.CaseID)
		require.ErrorIs(t, err, store.ErrCaseNotFound)

		listed, err := st.List(context.Background(), store.CaseFilter{})
		require.NoError(t, err)
		require.Empty(t, listed)
	})

	t.Run("system capability sees everything", func(t *testing.T) {
		other := testCase(orgB, "HC-OTHER")
		require.NoError(t, st.Create(ctxB, other))

		listed, err := st.List(tenant.AsSystem(context.Background()), store.CaseFilter{})
		require.NoError(t, err)
		require.Len(t, listed, 2)
	})

	t.Run("create outside the tenant context is rejected", func(t *testing.T) {
		err := st.Create(ctxB, testCase(orgA, "HC-XTEN"))
		require.ErrorIs(t, err, store.ErrCaseNotFound)
	})
}

func TestMemoryCaseStore_ReferenceUniqueness(t *testing.T) {
	st := NewCaseStore()

	orgID := uuid.Must(uuid.NewV7())
	ctx := tenant.WithOrganization(context.Background(), orgID)

	require.NoError(t, st.Create(ctx, testCase(orgID, "HC-DUP")))

	err := st.Create(ctx, testCase(orgID, "HC-DUP"))
	require.ErrorIs(t, err, store.ErrCaseAlreadyExists)

	// The same reference code in another organization is fine.
	otherOrg := uuid.Must(uuid.NewV7())
	otherCtx := tenant.WithOrganization(context.Background(), otherOrg)
	require.NoError(t, st.Create(otherCtx, testCase(otherOrg, "HC-DUP")))
}

func TestMemoryCaseStore_ListFilters(t *testing.T) {
	st := NewCaseStore()

	orgID := uuid.Must(uuid.NewV7())
	ctx := tenant.WithOrganization(context.Background(), orgID)

	open := testCase(orgID, "HC-OPEN")
	require.NoError(t, st.Create(ctx, open))

	triaged := testCase(orgID, "HC-TRI")
	triaged.PipelineStage = "triage"
	require.NoError(t, st.Create(ctx, triaged))

	merged := testCase(orgID, "HC-MRG")
	require.NoError(t, st.Create(ctx, merged))
	require.NoError(t, st.Merge(ctx, merged.CaseID, open.CaseID, nil, "duplicate", time.Now().UTC()))

	t.Run("default excludes merged", func(t *testing.T) {
		listed, err := st.List(ctx, store.CaseFilter{})
		require.NoError(t, err)
		require.Len(t, listed, 2)
	})

	t.Run("include merged", func(t *testing.T) {
		listed, err := st.List(ctx, store.CaseFilter{IncludeMerged: true})
		require.NoError(t, err)
		require.Len(t, listed, 3)
	})

	t.Run("filter by stage", func(t *testing.T) {
		listed, err := st.List(ctx, store.CaseFilter{PipelineStage: "triage"})
		require.NoError(t, err)
		require.Len(t, listed, 1)
		require.Equal(t, triaged.CaseID, listed[0].CaseID)
	})

	t.Run("limit and offset", func(t *testing.T) {
		first, err := st.List(ctx, store.CaseFilter{IncludeMerged: true, Limit: 2})
		require.NoError(t, err)
		require.Len(t, first, 2)

		rest, err := st.List(ctx, store.CaseFilter{IncludeMerged: true, Limit: 2, Offset: 2})
		require.NoError(t, err)
		require.Len(t, rest, 1)
	})
}

func TestMemoryCaseStore_DeleteNullsMergePointers(t *testing.T) {
	st := NewCaseStore()

	orgID := uuid.Must(uuid.NewV7())
	ctx := tenant.WithOrganization(context.Background(), orgID)

	target := testCase(orgID, "HC-TGT")
	require.NoError(t, st.Create(ctx, target))

	dup := testCase(orgID, "HC-DUP")
	require.NoError(t, st.Create(ctx, dup))
	require.NoError(t, st.Merge(ctx, dup.CaseID, target.CaseID, nil, "same incident", time.Now().UTC()))

	require.NoError(t, st.Delete(ctx, target.CaseID))

	got, err := st.Get(ctx, dup.CaseID)
	require.NoError(t, err)
	require.True(t, got.IsMerged)
	require.Nil(t, got.MergedIntoCaseID)
}

func TestMemoryCaseStore_DeleteCascadesFiles(t *testing.T) {
	caseStore := NewCaseStore()
	files := NewFileStore()
	caseStore.OnDelete(files.DeleteByCase)

	orgID := uuid.Must(uuid.NewV7())
	ctx := tenant.WithOrganization(context.Background(), orgID)

	c := testCase(orgID, "HC-FILES")
	require.NoError(t, caseStore.Create(ctx, c))

	keep := testCase(orgID, "HC-KEEP")
	require.NoError(t, caseStore.Create(ctx, keep))

	newFile := func(caseID uuid.UUID) *models.CaseFile {
		file := &models.CaseFile{
			FileID:     uuid.Must(uuid.NewV7()),
			OrgID:      orgID,
			CaseID:     caseID,
			Name:       "evidence.pdf",
			StorageKey: "k",
			CreatedAt:  time.Now().UTC(),
		}
		require.NoError(t, files.Create(ctx, file))
		return file
	}

	erased := newFile(c.CaseID)
	kept := newFile(keep.CaseID)

	require.NoError(t, caseStore.Delete(ctx, c.CaseID))

	_, err := files.Get(ctx, erased.FileID)
	require.ErrorIs(t, err, store.ErrFileNotFound)

	_, err = files.Get(ctx, kept.FileID)
	require.NoError(t, err)
}

func TestMemoryCaseStoreImplementsInterface(t *testing.T) {
	var _ store.CaseStore = (*CaseStore)(nil)
}
