package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"doc-collab/document-portal/document-portal-backend/internal/identity"
	"doc-collab/document-portal/document-portal-backend/internal/outbox"
	"doc-collab/document-portal/document-portal-backend/pkg/storage"
)

// DepartmentCodeResolver looks up the short code used in document numbers.
type DepartmentCodeResolver interface {
	DepartmentCode(ctx context.Context, id uuid.UUID) (string, error)
}

type CreateRequest struct {
	Title       string
	Description string
	CategoryID  *uuid.UUID
	Priority    Priority
	DueDate     *time.Time
	FileName    string
	FileContent io.Reader
}

type UpdateRequest struct {
	Title       string
	Description string
	CategoryID  *uuid.UUID
	Priority    Priority
	DueDate     *time.Time
}

type VersionRequest struct {
	FileName          string
	FileContent       io.Reader
	ChangeDescription string
}

type AddCommentRequest struct {
	Text     string
	ParentID *uuid.UUID
}

// Service is the document CRUD and query surface around the workflow core.
type Service interface {
	CreateDocument(ctx context.Context, actor identity.Context, req CreateRequest) (*DocumentSummary, error)
	GetDocumentDetail(ctx context.Context, actor identity.Context, id uuid.UUID) (*DocumentDetail, error)
	UpdateDocument(ctx context.Context, actor identity.Context, id uuid.UUID, req UpdateRequest) (*DocumentSummary, error)
	ListDocuments(ctx context.Context, actor identity.Context, filter ListFilter) (*PagedDocuments, error)

	CreateVersion(ctx context.Context, actor identity.Context, id uuid.UUID, req VersionRequest) (*DocumentVersion, error)
	ListVersions(ctx context.Context, actor identity.Context, id uuid.UUID) ([]DocumentVersion, error)
	DownloadFile(ctx context.Context, actor identity.Context, id uuid.UUID, versionNumber *int) (io.ReadCloser, string, error)

	AddComment(ctx context.Context, actor identity.Context, id uuid.UUID, req AddCommentRequest) (*DocumentComment, error)
	ListComments(ctx context.Context, actor identity.Context, id uuid.UUID) ([]CommentThread, error)
	ResolveComment(ctx context.Context, actor identity.Context, documentID, commentID uuid.UUID) error

	ListHistory(ctx context.Context, actor identity.Context, id uuid.UUID) ([]WorkflowHistoryEntry, error)
	ListCategories(ctx context.Context) ([]DocumentCategory, error)
	PendingAssignments(ctx context.Context, actor identity.Context) ([]Assignment, error)
	DashboardStats(ctx context.Context, actor identity.Context) (*DashboardStats, error)
}

type documentService struct {
	store     Store
	files     storage.FileStore
	versions  *VersionManager
	numbers   *NumberGenerator
	perms     *PermissionEvaluator
	deptCodes DepartmentCodeResolver
	logger    *zap.Logger
}

func NewService(store Store, files storage.FileStore, versions *VersionManager, numbers *NumberGenerator, perms *PermissionEvaluator, deptCodes DepartmentCodeResolver, logger *zap.Logger) Service {
	return &documentService{
		store:     store,
		files:     files,
		versions:  versions,
		numbers:   numbers,
		perms:     perms,
		deptCodes: deptCodes,
		logger:    logger.With(zap.String("component", "document_service")),
	}
}

func (s *documentService) CreateDocument(ctx context.Context, actor identity.Context, req CreateRequest) (*DocumentSummary, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if req.FileContent == nil || req.FileName == "" {
		return nil, fmt.Errorf("%w: a document file is required", ErrValidation)
	}
	if req.Priority == 0 {
		req.Priority = PriorityMedium
	}

	// The file lands in storage before the transaction opens; an orphaned
	// file on rollback is cheaper than holding the transaction over I/O.
	ref, err := s.files.Save(ctx, req.FileName, req.FileContent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	deptCode := ""
	if actor.DepartmentID != nil {
		if code, err := s.deptCodes.DepartmentCode(ctx, *actor.DepartmentID); err == nil {
			deptCode = code
		}
	}

	now := time.Now().UTC()
	var doc *Document
	err = s.store.RunInTx(ctx, func(repo Repository) error {
		number, err := s.numbers.Next(ctx, repo, deptCode, now)
		if err != nil {
			return err
		}

		handler := actor.UserID
		doc = &Document{
			ID:             uuid.New(),
			DocumentNumber: number,
			Title:          req.Title,
			Description:    req.Description,
			CategoryID:     req.CategoryID,
			Status:         StatusDraft,
			WorkflowLevel:  LevelAuthor,
			Priority:       req.Priority,
			FileName:       ref.Name,
			FilePath:       ref.Path,
			FileSize:       ref.Size,
			CreatedBy:      actor.UserID,
			CurrentHandler: &handler,
			DepartmentID:   actor.DepartmentID,
			DueDate:        req.DueDate,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := repo.CreateDocument(ctx, doc); err != nil {
			return err
		}

		version, err := s.versions.CreateInitial(ctx, repo, doc.ID, NewVersionInput{
			FileName:          ref.Name,
			FilePath:          ref.Path,
			FileSize:          ref.Size,
			ChangeDescription: "Initial version",
			CreatedBy:         actor.UserID,
		})
		if err != nil {
			return err
		}

		if err := repo.AppendHistory(ctx, &WorkflowHistoryEntry{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			VersionID:  &version.ID,
			Action:     ActionCreate,
			FromUser:   actor.UserID,
			ToUser:     &handler,
			NewStatus:  StatusDraft,
			Comments:   "Document created",
			ActionAt:   now,
		}); err != nil {
			return err
		}

		effect, err := outbox.NewAuditEffect(outbox.AuditPayload{
			ActorID:     actor.UserID,
			ActionType:  string(ActionCreate),
			EntityType:  "Document",
			EntityID:    doc.ID,
			Description: fmt.Sprintf("Created document %s: %s", number, req.Title),
		})
		if err != nil {
			return fmt.Errorf("%w: encode audit effect: %v", ErrPersistence, err)
		}
		return repo.EnqueueEffect(ctx, effect)
	})
	if err != nil {
		if delErr := s.files.Delete(ctx, ref.Path); delErr != nil {
			s.logger.Warn("failed to remove orphaned file", zap.String("path", ref.Path), zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("document_number", doc.DocumentNumber))
	summary := newDocumentSummary(doc)
	return &summary, nil
}

func (s *documentService) GetDocumentDetail(ctx context.Context, actor identity.Context, id uuid.UUID) (*DocumentDetail, error) {
	doc, err := s.store.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.perms.CanView(doc, actor) {
		return nil, fmt.Errorf("%w: document %s is not visible to actor", ErrPermissionDenied, id)
	}

	detail := &DocumentDetail{
		DocumentSummary: newDocumentSummary(doc),
		Capabilities:    s.perms.Evaluate(doc, actor),
	}

	// A document without a current version is legal; any other failure is not.
	current, err := s.store.CurrentVersion(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	detail.CurrentVersion = current

	history, err := s.store.ListHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.WorkflowHistory = history

	assignment, err := s.store.ActiveAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.CurrentAssignment = assignment

	return detail, nil
}

func (s *documentService) UpdateDocument(ctx context.Context, actor identity.Context, id uuid.UUID, req UpdateRequest) (*DocumentSummary, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	var doc *Document
	err := s.store.RunInTx(ctx, func(repo Repository) error {
		var err error
		doc, err = repo.GetDocumentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !s.perms.CanEdit(doc, actor) {
			return fmt.Errorf("%w: document is not editable by actor", ErrPermissionDenied)
		}

		doc.Title = req.Title
		doc.Description = req.Description
		doc.CategoryID = req.CategoryID
		if req.Priority != 0 {
			doc.Priority = req.Priority
		}
		doc.DueDate = req.DueDate
		doc.UpdatedAt = time.Now().UTC()
		if err := repo.UpdateDocument(ctx, doc); err != nil {
			return err
		}

		effect, err := outbox.NewAuditEffect(outbox.AuditPayload{
			ActorID:     actor.UserID,
			ActionType:  "UPDATE",
			EntityType:  "Document",
			EntityID:    doc.ID,
			Description: fmt.Sprintf("Updated document %s", doc.DocumentNumber),
		})
		if err != nil {
			return fmt.Errorf("%w: encode audit effect: %v", ErrPersistence, err)
		}
		return repo.EnqueueEffect(ctx, effect)
	})
	if err != nil {
		return nil, err
	}

	summary := newDocumentSummary(doc)
	return &summary, nil
}

func (s *documentService) ListDocuments(ctx context.Context, actor identity.Context, filter ListFilter) (*PagedDocuments, error) {
	return s.store.ListDocumentsForUser(ctx, actor, filter)
}

func (s *documentService) CreateVersion(ctx context.Context, actor identity.Context, id uuid.UUID, req VersionRequest) (*DocumentVersion, error) {
	if req.FileContent == nil || req.FileName == "" {
		return nil, fmt.Errorf("%w: a version file is required", ErrValidation)
	}

	ref, err := s.files.Save(ctx, req.FileName, req.FileContent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var version *DocumentVersion
	err = s.store.RunInTx(ctx, func(repo Repository) error {
		doc, err := repo.GetDocumentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !s.perms.CanView(doc, actor) {
			return fmt.Errorf("%w: document %s is not visible to actor", ErrPermissionDenied, id)
		}

		version, err = s.versions.Append(ctx, repo, doc, NewVersionInput{
			FileName:          ref.Name,
			FilePath:          ref.Path,
			FileSize:          ref.Size,
			ChangeDescription: req.ChangeDescription,
			CreatedBy:         actor.UserID,
		})
		return err
	})
	if err != nil {
		if delErr := s.files.Delete(ctx, ref.Path); delErr != nil {
			s.logger.Warn("failed to remove orphaned file", zap.String("path", ref.Path), zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("version created",
		zap.String("document_id", id.String()),
		zap.Int("version_number", version.VersionNumber))
	return version, nil
}

func (s *documentService) ListVersions(ctx context.Context, actor identity.Context, id uuid.UUID) ([]DocumentVersion, error) {
	if err := s.requireView(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.ListVersions(ctx, id)
}

func (s *documentService) DownloadFile(ctx context.Context, actor identity.Context, id uuid.UUID, versionNumber *int) (io.ReadCloser, string, error) {
	doc, err := s.store.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !s.perms.CanView(doc, actor) {
		return nil, "", fmt.Errorf("%w: document %s is not visible to actor", ErrPermissionDenied, id)
	}

	filePath, fileName := doc.FilePath, doc.FileName
	if versionNumber != nil {
		version, err := s.store.GetVersion(ctx, id, *versionNumber)
		if err != nil {
			return nil, "", err
		}
		filePath, fileName = version.FilePath, version.FileName
	}

	reader, err := s.files.Open(ctx, filePath)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return reader, fileName, nil
}

func (s *documentService) AddComment(ctx context.Context, actor identity.Context, id uuid.UUID, req AddCommentRequest) (*DocumentComment, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("%w: comment text is required", ErrValidation)
	}

	var comment *DocumentComment
	err := s.store.RunInTx(ctx, func(repo Repository) error {
		doc, err := repo.GetDocumentByID(ctx, id)
		if err != nil {
			return err
		}
		if !s.perms.CanView(doc, actor) {
			return fmt.Errorf("%w: document %s is not visible to actor", ErrPermissionDenied, id)
		}

		now := time.Now().UTC()
		comment = &DocumentComment{
			ID:         uuid.New(),
			DocumentID: id,
			UserID:     actor.UserID,
			Text:       req.Text,
			ParentID:   req.ParentID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := repo.CreateComment(ctx, comment); err != nil {
			return err
		}

		if doc.CreatedBy != actor.UserID {
			effect, err := outbox.NewNotificationEffect(outbox.NotificationPayload{
				UserID:     doc.CreatedBy,
				TypeCode:   "NEW_COMMENT",
				Title:      "New comment",
				Message:    fmt.Sprintf("A comment was added to document %q", doc.Title),
				DocumentID: &doc.ID,
			})
			if err != nil {
				return fmt.Errorf("%w: encode notification effect: %v", ErrPersistence, err)
			}
			return repo.EnqueueEffect(ctx, effect)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *documentService) ListComments(ctx context.Context, actor identity.Context, id uuid.UUID) ([]CommentThread, error) {
	if err := s.requireView(ctx, actor, id); err != nil {
		return nil, err
	}

	comments, err := s.store.ListComments(ctx, id)
	if err != nil {
		return nil, err
	}

	threads := []CommentThread{}
	index := map[uuid.UUID]int{}
	for _, c := range comments {
		if c.ParentID == nil {
			threads = append(threads, CommentThread{DocumentComment: c, Replies: []DocumentComment{}})
			index[c.ID] = len(threads) - 1
		}
	}
	for _, c := range comments {
		if c.ParentID != nil {
			if i, ok := index[*c.ParentID]; ok {
				threads[i].Replies = append(threads[i].Replies, c)
			}
		}
	}
	return threads, nil
}

func (s *documentService) ResolveComment(ctx context.Context, actor identity.Context, documentID, commentID uuid.UUID) error {
	if err := s.requireView(ctx, actor, documentID); err != nil {
		return err
	}
	return s.store.ResolveComment(ctx, commentID, actor.UserID)
}

func (s *documentService) ListHistory(ctx context.Context, actor identity.Context, id uuid.UUID) ([]WorkflowHistoryEntry, error) {
	if err := s.requireView(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, id)
}

func (s *documentService) ListCategories(ctx context.Context) ([]DocumentCategory, error) {
	return s.store.ListCategories(ctx)
}

func (s *documentService) PendingAssignments(ctx context.Context, actor identity.Context) ([]Assignment, error) {
	return s.store.ActiveAssignmentsForUser(ctx, actor.UserID)
}

func (s *documentService) DashboardStats(ctx context.Context, actor identity.Context) (*DashboardStats, error) {
	total, err := s.store.CountDocumentsForUser(ctx, actor)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.CountActiveAssignmentsForUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	thisMonth, err := s.store.CountDocumentsCreatedSince(ctx, actor, startOfMonth)
	if err != nil {
		return nil, err
	}
	overdue, err := s.store.CountOverdueDocumentsForUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.store.StatusCountsForUser(ctx, actor)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		TotalDocuments:     total,
		PendingAssignments: pending,
		CreatedThisMonth:   thisMonth,
		OverdueDocuments:   overdue,
		ByStatus:           byStatus,
	}, nil
}

func (s *documentService) requireView(ctx context.Context, actor identity.Context, id uuid.UUID) error {
	doc, err := s.store.GetDocumentByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.perms.CanView(doc, actor) {
		return fmt.Errorf("%w: document %s is not visible to actor", ErrPermissionDenied, id)
	}
	return nil
}
