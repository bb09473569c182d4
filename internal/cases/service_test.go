package cases

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/activity"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/storage"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store/memory"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/tenant"
)

type serviceFixture struct {
	service    *Service
	cases      *memory.CaseStore
	files      *memory.FileStore
	activities *memory.ActivityStore
	orgID      uuid.UUID
	ctx        context.Context
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	blobs, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	cases := memory.NewCaseStore()
	files := memory.NewFileStore()
	activities := memory.NewActivityStore()
	cases.OnDelete(files.DeleteByCase)

	orgID := uuid.Must(uuid.NewV7())

	return &serviceFixture{
		service:    NewService(cases, files, blobs, activity.NewRecorder(activities), DefaultPipelineConfig()),
		cases:      cases,
		files:      files,
		activities: activities,
		orgID:      orgID,
		ctx:        tenant.WithOrganization(context.Background(), orgID),
	}
}

func (f *serviceFixture) openCase(t *testing.T, source models.CaseSource) *models.Case {
	t.Helper()

	c, _, err := f.service.OpenCase(f.ctx, OpenCaseInput{
		Source:  source,
		Subject: "Expense irregularities",
		Details: "Observed repeated duplicate reimbursements",
	})
	require.NoError(t, err)

	return c
}

func TestOpenCase(t *testing.T) {
	assert := require.New(t)
	f := newServiceFixture(t)

	reporterID := uuid.Must(uuid.NewV7())
	c, accessCode, err := f.service.OpenCase(f.ctx, OpenCaseInput{
		Source:         models.CaseSourceEmployee,
		Subject:        "Harassment complaint",
		Details:        "Details withheld",
		ReporterUserID: &reporterID,
	})
	assert.NoError(err)
	assert.Empty(accessCode, "authenticated intake gets no access code")
	assert.Equal(f.orgID, c.OrgID)
	assert.Equal("standard", c.PipelineID)
	assert.Equal("intake", c.PipelineStage)
	assert.True(strings.HasPrefix(c.ReferenceCode, "HC-"))
	assert.Empty(c.AccessCodeHash)

	got, err := f.service.GetCaseByReference(f.ctx, c.ReferenceCode)
	assert.NoError(err)
	assert.Equal(c.CaseID, got.CaseID)

	events, err := f.activities.ListByEntity(f.ctx, "case", c.CaseID, 10)
	assert.NoError(err)
	assert.Len(events, 1)
	assert.Equal("case.opened", events[0].Action)
}

func TestOpenCaseAnonymousAccessCode(t *testing.T) {
	assert := require.New(t)
	f := newServiceFixture(t)

	c, accessCode, err := f.service.OpenCase(f.ctx, OpenCaseInput{
		Source:  models.CaseSourcePublic,
		Subject: "Safety concern",
	})
	assert.NoError(err)
	assert.NotEmpty(accessCode)
	assert.Equal(HashAccessCode(accessCode), c.AccessCodeHash)
	assert.NotContains(c.AccessCodeHash, accessCode, "only the digest is stored")

	got, err := f.service.StatusByAccessCode(f.ctx, accessCode)
	assert.NoError(err)
	assert.Equal(c.CaseID, got.CaseID)

	_, err = f.service.StatusByAccessCode(f.ctx, "wrong-code")
	assert.ErrorIs(err, store.ErrCaseNotFound)
}

func TestOpenCaseValidation(t *testing.T) {
	assert := require.New(t)
	f := newServiceFixture(t)

	_, _, err := f.service.OpenCase(f.ctx, OpenCaseInput{Source: models.CaseSourceEmployee, Subject: "  "})
	assert.Error(err)

	_, _, err = f.service.OpenCase(f.ctx, OpenCaseInput{Source: models.CaseSourceEmployee, Subject: "x", PipelineID: "nope"})
	assert.ErrorIs(err, ErrUnknownPipeline)

	_, _, err = f.service.OpenCase(context.Background(), OpenCaseInput{Source: models.CaseSourceEmployee, Subject: "x"})
	assert.Error(err, "no tenant context")
}

func TestTransitionStage(t *testing.T) {
	assert := require.New(t)
	f := newServiceFixture(t)

	c := f.openCase(t, models.CaseSourceOperator)
	actorID := uuid.Must(uuid.NewV7())

	got, err := f.service.TransitionStage(f.ctx, c.CaseID, "triage", &actorID)
	assert.NoError(err)
	assert.Equal("triage", got.PipelineStage)
	assert.Equal(actorID, *got.StageChangedByID)
	assert.True(got.StageChangedAt.After(c.StageChangedAt) || got.StageChangedAt.Equal(c.StageChangedAt))

	// skipping forward is allowed
	got, err = f.service.TransitionStage(f.ctx, c.CaseID, "closed", &actorID)
	assert.NoError(err)
	assert.Equal("closed", got.PipelineStage)

	// backward more than one stage is not
	_, err = f.service.TransitionStage(f.ctx, c.CaseID, "intake", &actorID)
	assert.ErrorIs(err, ErrIllegalTransition)

	_, err = f.service.TransitionStage(f.ctx, c.CaseID, "archived", &actorID)
	assert.ErrorIs(err, ErrIllegalTransition)
}

func TestTransitionStageMergedCaseFrozen(t *testing.T) {
	assert := require.New(t)
	f := newServiceFixture(t)

	c := f.openCase(t, models.CaseSourceOperator)
	target := f.openCase(t, models.CaseSourceOperator)
	actorID := uuid.Must(uuid.NewV7())

	_, err := f.service.MergeCases(f.ctx, c.CaseID, target.CaseID, "duplicate", &actorID)
	assert.NoError(err)

	_, err = f.service.TransitionStage(f.ctx, c.CaseID, "triage", &actorID)
	assert.ErrorIs(err, ErrCaseMerged)

	_, err = f.service.RecordOutcome(f.ctx, c.CaseID, models.OutcomeInconclusive, "", &actorID)
	assert.ErrorIs(err, ErrCaseMerged)
}

func TestRecordOutcome(t *testing.T) {
	assert := require.New(t)
	f := newServiceFixture(t)

	c := f.openCase(t, models.CaseSourceEmployee)
	actorID := uuid.Must(uuid.NewV7())

	got, err := f.service.RecordOutcome(f.ctx, c.CaseID, models.OutcomeSubstantiated, "evidence conclusive", &actorID)
	assert.NoError(err)
	assert.Equal(models.OutcomeSubstantiated, got.Outcome)
	assert.Equal("evidence conclusive", got.OutcomeNotes)
	assert.Equal(actorID, *got.OutcomeByID)
	assert.NotNil(got.OutcomeAt)

	// outcomes are write-once
	_, err = f.service.RecordOutcome(f.ctx, c.CaseID, models.OutcomeNoViolation, "", &actorID)
	assert.ErrorIs(err, ErrOutcomeRecorded)
}

func TestRecordOutcomeRejectsInvalidValue(t *testing.T) {
	assert := require.New(t)
	f := newServiceFixture(t)

	c := f.openCase(t, models.CaseSourceEmployee)

	_, err := f.service.RecordOutcome(f.ctx, c.CaseID, models.Outcome("MAYBE"), "", nil)
	assert.ErrorIs(err, ErrInvalidOutcome)
}

func TestMergeCases(t *testing.T) {
	assert := require.New(t)
	f := newServiceFixture(t)

	a := f.openCase(t, models.CaseSourcePublic)
	b := f.openCase(t, models.CaseSourceEmployee)
	actorID := uuid.Must(uuid.NewV7())

	got, err := f.service.MergeCases(f.ctx, a.CaseID, b.CaseID, "same incident", &actorID)
	assert.NoError(err)
	assert.True(got.IsMerged)
	assert.Equal(b.CaseID, *got.MergedIntoCaseID)
	assert.Equal("same incident", got.MergeReason)
	assert.Equal(actorID, *got.MergedByID)

	// already-merged source cannot merge again
	_, err = f.service.MergeCases(f.ctx, a.CaseID, b.CaseID, "", &actorID)
	assert.ErrorIs(err, ErrCaseMerged)
}

func TestMergeCasesRejectsCycles(t *testing.T) {
	assert := require.New(t)
	f := newServiceFixture(t)

	a := f.openCase(t, models.CaseSourceOperator)
	b := f.openCase(t, models.CaseSourceOperator)

	_, err := f.service.MergeCases(f.ctx, a.CaseID, a.CaseID, "", nil)
	assert.ErrorIs(err, ErrMergeCycle)

	_, err = f.service.MergeCases(f.ctx, a.CaseID, b.CaseID, "dup", nil)
	assert.NoError(err)

	// b -> a would loop back through a's pointer
	_, err = f.service.MergeCases(f.ctx, b.CaseID, a.CaseID, "", nil)
	assert.ErrorIs(err, ErrMergeTargetMerged)
}

func TestMergeCasesWithStalePointerChain(t *testing.T) {
	assert := require.New(t)
	f := newServiceFixture(t)

	a := f.openCase(t, models.CaseSourceOperator)
	b := f.openCase(t, models.CaseSourceOperator)
	c := f.openCase(t, models.CaseSourceOperator)

	// a merged into b, then b erased, leaving a merged with a nulled pointer
	_, err := f.service.MergeCases(f.ctx, a.CaseID, b.CaseID, "dup", nil)
	assert.NoError(err)

	assert.NoError(f.service.EraseCase(f.ctx, b.CaseID, nil))

	// a's pointer is now nulled; merging c into a must not trip the walk
	got, err := f.service.GetCase(f.ctx, a.CaseID)
	assert.NoError(err)
	assert.Nil(got.MergedIntoCaseID)
	assert.True(got.IsMerged)

	_, err = f.service.MergeCases(f.ctx, c.CaseID, a.CaseID, "", nil)
	assert.ErrorIs(err, ErrMergeTargetMerged)
}

func TestAttachAndOpenFile(t *testing.T) {
	assert := require.New(t)
	f := newServiceFixture(t)

	c := f.openCase(t, models.CaseSourceEmployee)
	actorID := uuid.Must(uuid.NewV7())

	file, err := f.service.AttachFile(f.ctx, c.CaseID, "receipt.pdf", "application/pdf", strings.NewReader("%PDF-1.4 fake"), &actorID)
	assert.NoError(err)
	assert.Equal(int64(13), file.SizeBytes)
	assert.Equal(c.CaseID, file.CaseID)
	assert.Equal(f.orgID, file.OrgID)

	files, err := f.service.ListFiles(f.ctx, c.CaseID)
	assert.NoError(err)
	assert.Len(files, 1)

	meta, r, err := f.service.OpenFile(f.ctx, file.FileID)
	assert.NoError(err)
	defer r.Close()
	assert.Equal("receipt.pdf", meta.Name)

	data, err := io.ReadAll(r)
	assert.NoError(err)
	assert.Equal("%PDF-1.4 fake", string(data))
}

func TestEraseCase(t *testing.T) {
	assert := require.New(t)
	f := newServiceFixture(t)

	c := f.openCase(t, models.CaseSourceEmployee)

	file, err := f.service.AttachFile(f.ctx, c.CaseID, "notes.txt", "text/plain", strings.NewReader("notes"), nil)
	assert.NoError(err)

	assert.NoError(f.service.EraseCase(f.ctx, c.CaseID, nil))

	_, err = f.service.GetCase(f.ctx, c.CaseID)
	assert.ErrorIs(err, store.ErrCaseNotFound)

	// Attachment metadata goes with the case, so a later download is a
	// clean not-found rather than a dangling record over a deleted blob.
	_, err = f.files.Get(f.ctx, file.FileID)
	assert.ErrorIs(err, store.ErrFileNotFound)

	_, _, err = f.service.OpenFile(f.ctx, file.FileID)
	assert.ErrorIs(err, store.ErrFileNotFound)
}

func TestCaseTenantIsolation(t *testing.T) {
	assert := require.New(t)
	f := newServiceFixture(t)

	c := f.openCase(t, models.CaseSourceEmployee)

	otherCtx := tenant.WithOrganization(context.Background(), uuid.Must(uuid.NewV7()))

	_, err := f.service.GetCase(otherCtx, c.CaseID)
	assert.ErrorIs(err, store.ErrCaseNotFound)

	listed, err := f.service.ListCases(otherCtx, store.CaseFilter{})
	assert.NoError(err)
	assert.Empty(listed)

	// no tenant context at all fails closed
	_, err = f.service.GetCase(context.Background(), c.CaseID)
	assert.ErrorIs(err, store.ErrCaseNotFound)
}
