package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"doc-collab/document-portal/document-portal-backend/internal/identity"
	"doc-collab/document-portal/document-portal-backend/internal/outbox"
	"doc-collab/document-portal/document-portal-backend/pkg/storage"
)

type memoryFileStore struct {
	files map[string][]byte
}

func newMemoryFileStore() *memoryFileStore {
	return &memoryFileStore{files: map[string][]byte{}}
}

func (m *memoryFileStore) Save(ctx context.Context, fileName string, content io.Reader) (*storage.FileRef, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	path := "documents/" + uuid.New().String()
	m.files[path] = data
	return &storage.FileRef{Name: fileName, Path: path, Size: int64(len(data))}, nil
}

func (m *memoryFileStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryFileStore) Delete(ctx context.Context, path string) error {
	delete(m.files, path)
	return nil
}

func (m *memoryFileStore) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := m.files[path]
	return ok, nil
}

type staticDeptCodes struct{ code string }

func (s staticDeptCodes) DepartmentCode(ctx context.Context, id uuid.UUID) (string, error) {
	return s.code, nil
}

func newTestService(store Store, files storage.FileStore) Service {
	return NewService(store, files, NewVersionManager(), NewNumberGenerator("DOC"),
		NewPermissionEvaluator(), staticDeptCodes{code: "ENG"}, zap.NewNop())
}

func TestCreateDocument(t *testing.T) {
	store := newFakeStore()
	files := newMemoryFileStore()
	service := newTestService(store, files)

	department := uuid.New()
	author := uuid.New()
	actor := actorCtx(author, identity.RoleAssistant, department)

	doc, err := service.CreateDocument(context.Background(), actor, CreateRequest{
		Title:       "Travel policy update",
		Description: "Revised per diem rates",
		FileName:    "policy.pdf",
		FileContent: strings.NewReader("pdf bytes"),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, doc.Status)
	assert.Equal(t, LevelAuthor, doc.WorkflowLevel)
	assert.Equal(t, PriorityMedium, doc.Priority)
	assert.Contains(t, doc.DocumentNumber, "DOC-ENG-")
	require.NotNil(t, doc.CurrentHandler)
	assert.Equal(t, author, *doc.CurrentHandler)

	// Initial version, creation history entry and audit effect all land.
	current, err := store.CurrentVersion(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.VersionNumber)

	history, _ := store.ListHistory(context.Background(), doc.ID)
	require.Len(t, history, 1)
	assert.Equal(t, ActionCreate, history[0].Action)

	assert.Len(t, store.effectsOfKind(outbox.KindAudit), 1)
}

func TestCreateDocumentValidation(t *testing.T) {
	service := newTestService(newFakeStore(), newMemoryFileStore())
	actor := actorCtx(uuid.New(), identity.RoleAssistant, uuid.New())

	_, err := service.CreateDocument(context.Background(), actor, CreateRequest{
		FileName:    "policy.pdf",
		FileContent: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = service.CreateDocument(context.Background(), actor, CreateRequest{Title: "No file"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateDocumentRollbackRemovesFile(t *testing.T) {
	store := newFakeStore()
	store.failCreate = true
	files := newMemoryFileStore()
	service := newTestService(store, files)

	actor := actorCtx(uuid.New(), identity.RoleAssistant, uuid.New())
	_, err := service.CreateDocument(context.Background(), actor, CreateRequest{
		Title:       "Doc",
		FileName:    "x.pdf",
		FileContent: strings.NewReader("bytes"),
	})
	assert.ErrorIs(t, err, ErrPersistence)

	// The stored file must not be orphaned when the transaction fails.
	assert.Empty(t, files.files)
}

func TestUpdateDocumentOnlyWhenEditable(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, newMemoryFileStore())

	department := uuid.New()
	author := uuid.New()
	handler := uuid.New()
	doc := seedDocument(store, author, department, StatusPending, LevelViceManager, &handler)

	_, err := service.UpdateDocument(context.Background(), actorCtx(author, identity.RoleAssistant, department), doc.ID, UpdateRequest{
		Title: "New title",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	doc2 := seedDocument(store, author, department, StatusDraft, LevelAuthor, &author)
	updated, err := service.UpdateDocument(context.Background(), actorCtx(author, identity.RoleAssistant, department), doc2.ID, UpdateRequest{
		Title:    "New title",
		Priority: PriorityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, PriorityHigh, updated.Priority)
}

func TestGetDocumentDetail(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, newMemoryFileStore())
	ctx := context.Background()

	department := uuid.New()
	author := uuid.New()
	doc := seedDocument(store, author, department, StatusDraft, LevelAuthor, &author)

	detail, err := service.GetDocumentDetail(ctx, actorCtx(author, identity.RoleAssistant, department), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, detail.ID)
	assert.True(t, detail.Capabilities.CanEdit)
	assert.True(t, detail.Capabilities.CanSubmit)

	// Invisible to an assistant from another department.
	_, err = service.GetDocumentDetail(ctx, actorCtx(uuid.New(), identity.RoleAssistant, uuid.New()), doc.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = service.GetDocumentDetail(ctx, actorCtx(author, identity.RoleAssistant, department), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetDocumentDetailPropagatesVersionLookupFailure(t *testing.T) {
	store := newFakeStore()
	store.failCurrentVersion = true
	service := newTestService(store, newMemoryFileStore())

	department := uuid.New()
	author := uuid.New()
	doc := seedDocument(store, author, department, StatusDraft, LevelAuthor, &author)

	// A missing current version is tolerated; a store failure is not.
	_, err := service.GetDocumentDetail(context.Background(), actorCtx(author, identity.RoleAssistant, department), doc.ID)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestCreateVersionThroughService(t *testing.T) {
	store := newFakeStore()
	files := newMemoryFileStore()
	service := newTestService(store, files)
	ctx := context.Background()

	department := uuid.New()
	author := uuid.New()
	actor := actorCtx(author, identity.RoleAssistant, department)

	doc, err := service.CreateDocument(ctx, actor, CreateRequest{
		Title:       "Spec",
		FileName:    "spec.docx",
		FileContent: strings.NewReader("v1"),
	})
	require.NoError(t, err)

	version, err := service.CreateVersion(ctx, actor, doc.ID, VersionRequest{
		FileName:          "spec.docx",
		FileContent:       strings.NewReader("v2 with more bytes"),
		ChangeDescription: "Added scope section",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, version.VersionNumber)
	assert.True(t, version.IsCurrent)

	versions, err := service.ListVersions(ctx, actor, doc.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestCommentThreading(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, newMemoryFileStore())
	ctx := context.Background()

	department := uuid.New()
	author := uuid.New()
	reviewer := uuid.New()
	doc := seedDocument(store, author, department, StatusPending, LevelViceManager, &reviewer)

	reviewerCtx := actorCtx(reviewer, identity.RoleViceManager, department)
	root, err := service.AddComment(ctx, reviewerCtx, doc.ID, AddCommentRequest{Text: "Section 3 is unclear"})
	require.NoError(t, err)

	// Comment from a non-creator notifies the document owner.
	assert.Len(t, store.effectsOfKind(outbox.KindNotification), 1)

	authorCtx := actorCtx(author, identity.RoleAssistant, department)
	_, err = service.AddComment(ctx, authorCtx, doc.ID, AddCommentRequest{
		Text:     "Will reword it",
		ParentID: &root.ID,
	})
	require.NoError(t, err)

	threads, err := service.ListComments(ctx, authorCtx, doc.ID)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, root.ID, threads[0].ID)
	require.Len(t, threads[0].Replies, 1)
	assert.Equal(t, "Will reword it", threads[0].Replies[0].Text)

	require.NoError(t, service.ResolveComment(ctx, reviewerCtx, doc.ID, root.ID))
	threads, _ = service.ListComments(ctx, reviewerCtx, doc.ID)
	assert.True(t, threads[0].IsResolved)
}

func TestDownloadFile(t *testing.T) {
	store := newFakeStore()
	files := newMemoryFileStore()
	service := newTestService(store, files)
	ctx := context.Background()

	department := uuid.New()
	author := uuid.New()
	actor := actorCtx(author, identity.RoleAssistant, department)

	doc, err := service.CreateDocument(ctx, actor, CreateRequest{
		Title:       "Handbook",
		FileName:    "handbook.pdf",
		FileContent: strings.NewReader("handbook contents"),
	})
	require.NoError(t, err)

	reader, fileName, err := service.DownloadFile(ctx, actor, doc.ID, nil)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "handbook.pdf", fileName)
	data, _ := io.ReadAll(reader)
	assert.Equal(t, "handbook contents", string(data))
}

func TestDashboardStats(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, newMemoryFileStore())
	ctx := context.Background()

	department := uuid.New()
	author := uuid.New()
	handler := uuid.New()
	seedDocument(store, author, department, StatusDraft, LevelAuthor, &author)
	doc := seedDocument(store, author, department, StatusPending, LevelViceManager, &handler)
	store.assignments = append(store.assignments, Assignment{
		ID: uuid.New(), DocumentID: doc.ID, AssignedTo: handler, AssignedBy: author,
		WorkflowLevel: LevelViceManager, IsActive: true,
	})

	stats, err := service.DashboardStats(ctx, actorCtx(handler, identity.RoleViceManager, department))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDocuments)
	assert.Equal(t, 1, stats.PendingAssignments)
}
