package documents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"doc-collab/document-portal/document-portal-backend/internal/identity"
	"doc-collab/document-portal/document-portal-backend/internal/outbox"
)

// fakeStore is an in-memory Store for exercising workflow and service logic
// without a database. RunInTx applies fn directly; tests that need rollback
// semantics assert on state via snapshots instead.
type fakeStore struct {
	documents   map[uuid.UUID]*Document
	versions    []DocumentVersion
	history     []WorkflowHistoryEntry
	assignments []Assignment
	comments    []DocumentComment
	categories  []DocumentCategory
	effects     []outbox.Effect

	failCreate         bool
	failCurrentVersion bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{documents: map[uuid.UUID]*Document{}}
}

func (s *fakeStore) RunInTx(ctx context.Context, fn func(Repository) error) error {
	return fn(s)
}

func (s *fakeStore) CreateDocument(ctx context.Context, doc *Document) error {
	if s.failCreate {
		return fmt.Errorf("%w: forced failure", ErrPersistence)
	}
	copied := *doc
	s.documents[doc.ID] = &copied
	return nil
}

func (s *fakeStore) GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	copied := *doc
	return &copied, nil
}

func (s *fakeStore) GetDocumentForUpdate(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.GetDocumentByID(ctx, id)
}

func (s *fakeStore) UpdateDocument(ctx context.Context, doc *Document) error {
	if _, ok := s.documents[doc.ID]; !ok {
		return fmt.Errorf("%w: document %s", ErrNotFound, doc.ID)
	}
	copied := *doc
	s.documents[doc.ID] = &copied
	return nil
}

func (s *fakeStore) ListDocumentsForUser(ctx context.Context, actor identity.Context, filter ListFilter) (*PagedDocuments, error) {
	items := []Document{}
	for _, doc := range s.documents {
		items = append(items, *doc)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return &PagedDocuments{Items: items, TotalItems: len(items), Page: 1, PageSize: len(items)}, nil
}

func (s *fakeStore) LatestDocumentNumber(ctx context.Context, prefix string) (string, error) {
	latest := ""
	for _, doc := range s.documents {
		if strings.HasPrefix(doc.DocumentNumber, prefix) && doc.DocumentNumber > latest {
			latest = doc.DocumentNumber
		}
	}
	return latest, nil
}

func (s *fakeStore) CreateVersion(ctx context.Context, version *DocumentVersion) error {
	s.versions = append(s.versions, *version)
	return nil
}

func (s *fakeStore) ListVersions(ctx context.Context, documentID uuid.UUID) ([]DocumentVersion, error) {
	out := []DocumentVersion{}
	for _, v := range s.versions {
		if v.DocumentID == documentID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (s *fakeStore) GetVersion(ctx context.Context, documentID uuid.UUID, versionNumber int) (*DocumentVersion, error) {
	for _, v := range s.versions {
		if v.DocumentID == documentID && v.VersionNumber == versionNumber {
			copied := v
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: version %d", ErrNotFound, versionNumber)
}

func (s *fakeStore) CurrentVersion(ctx context.Context, documentID uuid.UUID) (*DocumentVersion, error) {
	if s.failCurrentVersion {
		return nil, fmt.Errorf("%w: forced failure", ErrPersistence)
	}
	for _, v := range s.versions {
		if v.DocumentID == documentID && v.IsCurrent {
			copied := v
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: no current version", ErrNotFound)
}

func (s *fakeStore) MaxVersionNumber(ctx context.Context, documentID uuid.UUID) (int, error) {
	max := 0
	for _, v := range s.versions {
		if v.DocumentID == documentID && v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max, nil
}

func (s *fakeStore) ClearCurrentVersion(ctx context.Context, documentID uuid.UUID) error {
	for i := range s.versions {
		if s.versions[i].DocumentID == documentID {
			s.versions[i].IsCurrent = false
		}
	}
	return nil
}

func (s *fakeStore) AppendHistory(ctx context.Context, entry *WorkflowHistoryEntry) error {
	s.history = append(s.history, *entry)
	return nil
}

func (s *fakeStore) ListHistory(ctx context.Context, documentID uuid.UUID) ([]WorkflowHistoryEntry, error) {
	out := []WorkflowHistoryEntry{}
	for _, e := range s.history {
		if e.DocumentID == documentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateAssignment(ctx context.Context, a *Assignment) error {
	s.assignments = append(s.assignments, *a)
	return nil
}

func (s *fakeStore) DeactivateAssignments(ctx context.Context, documentID uuid.UUID) error {
	for i := range s.assignments {
		if s.assignments[i].DocumentID == documentID {
			s.assignments[i].IsActive = false
		}
	}
	return nil
}

func (s *fakeStore) ActiveAssignment(ctx context.Context, documentID uuid.UUID) (*Assignment, error) {
	for _, a := range s.assignments {
		if a.DocumentID == documentID && a.IsActive {
			copied := a
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ActiveAssignmentsForUser(ctx context.Context, userID uuid.UUID) ([]Assignment, error) {
	out := []Assignment{}
	for _, a := range s.assignments {
		if a.AssignedTo == userID && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateComment(ctx context.Context, c *DocumentComment) error {
	s.comments = append(s.comments, *c)
	return nil
}

func (s *fakeStore) ListComments(ctx context.Context, documentID uuid.UUID) ([]DocumentComment, error) {
	out := []DocumentComment{}
	for _, c := range s.comments {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) ResolveComment(ctx context.Context, commentID, resolvedBy uuid.UUID) error {
	now := time.Now().UTC()
	for i := range s.comments {
		if s.comments[i].ID == commentID {
			s.comments[i].IsResolved = true
			s.comments[i].ResolvedBy = &resolvedBy
			s.comments[i].ResolvedAt = &now
			return nil
		}
	}
	return fmt.Errorf("%w: comment %s", ErrNotFound, commentID)
}

func (s *fakeStore) ListCategories(ctx context.Context) ([]DocumentCategory, error) {
	return s.categories, nil
}

func (s *fakeStore) CountDocumentsForUser(ctx context.Context, actor identity.Context) (int, error) {
	return len(s.documents), nil
}

func (s *fakeStore) CountActiveAssignmentsForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	list, _ := s.ActiveAssignmentsForUser(ctx, userID)
	return len(list), nil
}

func (s *fakeStore) CountDocumentsCreatedSince(ctx context.Context, actor identity.Context, since time.Time) (int, error) {
	count := 0
	for _, doc := range s.documents {
		if !doc.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) CountOverdueDocumentsForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return 0, nil
}

func (s *fakeStore) StatusCountsForUser(ctx context.Context, actor identity.Context) ([]StatusStat, error) {
	counts := map[DocumentStatus]int{}
	for _, doc := range s.documents {
		counts[doc.Status]++
	}
	out := []StatusStat{}
	for status, count := range counts {
		out = append(out, StatusStat{Status: status, Count: count})
	}
	return out, nil
}

func (s *fakeStore) EnqueueEffect(ctx context.Context, effect *outbox.Effect) error {
	s.effects = append(s.effects, *effect)
	return nil
}

func (s *fakeStore) effectsOfKind(kind outbox.EffectKind) []outbox.Effect {
	out := []outbox.Effect{}
	for _, e := range s.effects {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
