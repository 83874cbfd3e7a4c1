package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"doc-collab/document-portal/document-portal-backend/internal/identity"
	"doc-collab/document-portal/document-portal-backend/internal/outbox"
)

// ListFilter narrows and pages the document list query.
type ListFilter struct {
	Search     string
	Status     *DocumentStatus
	CategoryID *uuid.UUID
	Priority   *Priority
	FromDate   *time.Time
	ToDate     *time.Time
	SortBy     string
	SortDesc   bool
	Page       int
	PageSize   int
}

type PagedDocuments struct {
	Items      []Document `json:"items"`
	TotalItems int        `json:"total_items"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// Repository is the per-entity data access surface. All write methods issued
// from the workflow engine run against a transaction-bound instance obtained
// through Store.RunInTx.
type Repository interface {
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error)
	// GetDocumentForUpdate locks the document row for the duration of the
	// enclosing transaction, serializing transitions on the same document.
	GetDocumentForUpdate(ctx context.Context, id uuid.UUID) (*Document, error)
	UpdateDocument(ctx context.Context, doc *Document) error
	ListDocumentsForUser(ctx context.Context, actor identity.Context, filter ListFilter) (*PagedDocuments, error)
	LatestDocumentNumber(ctx context.Context, prefix string) (string, error)

	CreateVersion(ctx context.Context, version *DocumentVersion) error
	ListVersions(ctx context.Context, documentID uuid.UUID) ([]DocumentVersion, error)
	GetVersion(ctx context.Context, documentID uuid.UUID, versionNumber int) (*DocumentVersion, error)
	CurrentVersion(ctx context.Context, documentID uuid.UUID) (*DocumentVersion, error)
	MaxVersionNumber(ctx context.Context, documentID uuid.UUID) (int, error)
	ClearCurrentVersion(ctx context.Context, documentID uuid.UUID) error

	AppendHistory(ctx context.Context, entry *WorkflowHistoryEntry) error
	ListHistory(ctx context.Context, documentID uuid.UUID) ([]WorkflowHistoryEntry, error)

	CreateAssignment(ctx context.Context, a *Assignment) error
	DeactivateAssignments(ctx context.Context, documentID uuid.UUID) error
	ActiveAssignment(ctx context.Context, documentID uuid.UUID) (*Assignment, error)
	ActiveAssignmentsForUser(ctx context.Context, userID uuid.UUID) ([]Assignment, error)

	CreateComment(ctx context.Context, c *DocumentComment) error
	ListComments(ctx context.Context, documentID uuid.UUID) ([]DocumentComment, error)
	ResolveComment(ctx context.Context, commentID, resolvedBy uuid.UUID) error

	ListCategories(ctx context.Context) ([]DocumentCategory, error)

	CountDocumentsForUser(ctx context.Context, actor identity.Context) (int, error)
	CountActiveAssignmentsForUser(ctx context.Context, userID uuid.UUID) (int, error)
	CountDocumentsCreatedSince(ctx context.Context, actor identity.Context, since time.Time) (int, error)
	CountOverdueDocumentsForUser(ctx context.Context, userID uuid.UUID) (int, error)
	StatusCountsForUser(ctx context.Context, actor identity.Context) ([]StatusStat, error)

	EnqueueEffect(ctx context.Context, effect *outbox.Effect) error
}

// Store is a Repository that can also open an atomic unit of work. Either
// every mutation made inside fn becomes visible together, or none do.
type Store interface {
	Repository
	RunInTx(ctx context.Context, fn func(Repository) error) error
}

type postgresStore struct {
	db *sqlx.DB
	queries
}

type queries struct {
	ext sqlx.ExtContext
}

// NewStore returns the Postgres-backed document store.
func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db, queries: queries{ext: db}}
}

func (s *postgresStore) RunInTx(ctx context.Context, fn func(Repository) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrPersistence, err)
	}

	if err := fn(&queries{ext: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w: rollback after %v: %v", ErrPersistence, err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapPQError(err)
	}
	return nil
}

// mapPQError translates driver errors into the error taxonomy. Serialization
// and deadlock failures are retryable conflicts; everything else is a
// persistence failure.
func mapPQError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
		case "23505": // unique_violation
			return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

func (q *queries) CreateDocument(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (
			id, document_number, title, description, category_id, status,
			workflow_level, priority, file_name, file_path, file_size,
			created_by, current_handler, department_id, due_date,
			completed_at, created_at, updated_at
		) VALUES (
			:id, :document_number, :title, :description, :category_id, :status,
			:workflow_level, :priority, :file_name, :file_path, :file_size,
			:created_by, :current_handler, :department_id, :due_date,
			:completed_at, :created_at, :updated_at
		)`
	_, err := sqlx.NamedExecContext(ctx, q.ext, query, doc)
	return mapPQError(err)
}

func (q *queries) GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	err := sqlx.GetContext(ctx, q.ext, &doc, "SELECT * FROM documents WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, mapPQError(err)
	}
	return &doc, nil
}

func (q *queries) GetDocumentForUpdate(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	err := sqlx.GetContext(ctx, q.ext, &doc, "SELECT * FROM documents WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, mapPQError(err)
	}
	return &doc, nil
}

func (q *queries) UpdateDocument(ctx context.Context, doc *Document) error {
	query := `
		UPDATE documents SET
			title = :title,
			description = :description,
			category_id = :category_id,
			status = :status,
			workflow_level = :workflow_level,
			priority = :priority,
			file_name = :file_name,
			file_path = :file_path,
			file_size = :file_size,
			current_handler = :current_handler,
			due_date = :due_date,
			completed_at = :completed_at,
			updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, q.ext, query, doc)
	if err != nil {
		return mapPQError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: document %s", ErrNotFound, doc.ID)
	}
	return nil
}

// scopeClause restricts a document query to the same set CanView allows:
// admins are unscoped, vice-managers and managers see their whole department,
// assistants see the documents they created or currently handle. An actor
// without a department falls back to the own-documents clause.
func scopeClause(actor identity.Context, args []interface{}) (string, []interface{}) {
	switch {
	case actor.IsAdmin():
		return "", args
	case actor.RoleLevel >= identity.RoleViceManager && actor.DepartmentID != nil:
		args = append(args, actor.DepartmentID)
		return fmt.Sprintf(" AND department_id = $%d", len(args)), args
	default:
		args = append(args, actor.UserID)
		n := len(args)
		return fmt.Sprintf(" AND (created_by = $%d OR current_handler = $%d)", n, n), args
	}
}

func (q *queries) ListDocumentsForUser(ctx context.Context, actor identity.Context, filter ListFilter) (*PagedDocuments, error) {
	where := " WHERE 1=1"
	var args []interface{}

	clause, args := scopeClause(actor, args)
	where += clause

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where += fmt.Sprintf(" AND (document_number ILIKE $%d OR title ILIKE $%d OR description ILIKE $%d)", n, n, n)
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		where += fmt.Sprintf(" AND category_id = $%d", len(args))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		where += fmt.Sprintf(" AND priority = $%d", len(args))
	}
	if filter.FromDate != nil {
		args = append(args, *filter.FromDate)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.ToDate != nil {
		args = append(args, *filter.ToDate)
		where += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	var total int
	if err := sqlx.GetContext(ctx, q.ext, &total, "SELECT COUNT(*) FROM documents"+where, args...); err != nil {
		return nil, mapPQError(err)
	}

	orderBy := "created_at DESC"
	dir := "ASC"
	if filter.SortDesc {
		dir = "DESC"
	}
	switch filter.SortBy {
	case "title":
		orderBy = "title " + dir
	case "priority":
		orderBy = "priority " + dir
	case "created_at":
		orderBy = "created_at " + dir
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf("SELECT * FROM documents%s ORDER BY %s LIMIT $%d OFFSET $%d",
		where, orderBy, len(args)-1, len(args))

	docs := []Document{}
	if err := sqlx.SelectContext(ctx, q.ext, &docs, query, args...); err != nil {
		return nil, mapPQError(err)
	}

	totalPages := (total + pageSize - 1) / pageSize
	return &PagedDocuments{
		Items:      docs,
		TotalItems: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (q *queries) LatestDocumentNumber(ctx context.Context, prefix string) (string, error) {
	var number string
	err := sqlx.GetContext(ctx, q.ext, &number,
		"SELECT document_number FROM documents WHERE document_number LIKE $1 ORDER BY document_number DESC LIMIT 1",
		prefix+"%")
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", mapPQError(err)
	}
	return number, nil
}

func (q *queries) CreateVersion(ctx context.Context, version *DocumentVersion) error {
	query := `
		INSERT INTO document_versions (
			id, document_id, version_number, file_name, file_path, file_size,
			change_description, is_current, created_by, created_at
		) VALUES (
			:id, :document_id, :version_number, :file_name, :file_path, :file_size,
			:change_description, :is_current, :created_by, :created_at
		)`
	_, err := sqlx.NamedExecContext(ctx, q.ext, query, version)
	return mapPQError(err)
}

func (q *queries) ListVersions(ctx context.Context, documentID uuid.UUID) ([]DocumentVersion, error) {
	versions := []DocumentVersion{}
	err := sqlx.SelectContext(ctx, q.ext, &versions,
		"SELECT * FROM document_versions WHERE document_id = $1 ORDER BY version_number DESC", documentID)
	if err != nil {
		return nil, mapPQError(err)
	}
	return versions, nil
}

func (q *queries) GetVersion(ctx context.Context, documentID uuid.UUID, versionNumber int) (*DocumentVersion, error) {
	var version DocumentVersion
	err := sqlx.GetContext(ctx, q.ext, &version,
		"SELECT * FROM document_versions WHERE document_id = $1 AND version_number = $2",
		documentID, versionNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: version %d of document %s", ErrNotFound, versionNumber, documentID)
	}
	if err != nil {
		return nil, mapPQError(err)
	}
	return &version, nil
}

func (q *queries) CurrentVersion(ctx context.Context, documentID uuid.UUID) (*DocumentVersion, error) {
	var version DocumentVersion
	err := sqlx.GetContext(ctx, q.ext, &version,
		"SELECT * FROM document_versions WHERE document_id = $1 AND is_current", documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: current version of document %s", ErrNotFound, documentID)
	}
	if err != nil {
		return nil, mapPQError(err)
	}
	return &version, nil
}

func (q *queries) MaxVersionNumber(ctx context.Context, documentID uuid.UUID) (int, error) {
	var max sql.NullInt64
	err := sqlx.GetContext(ctx, q.ext, &max,
		"SELECT MAX(version_number) FROM document_versions WHERE document_id = $1", documentID)
	if err != nil {
		return 0, mapPQError(err)
	}
	return int(max.Int64), nil
}

func (q *queries) ClearCurrentVersion(ctx context.Context, documentID uuid.UUID) error {
	_, err := q.ext.ExecContext(ctx,
		"UPDATE document_versions SET is_current = FALSE WHERE document_id = $1 AND is_current", documentID)
	return mapPQError(err)
}

func (q *queries) AppendHistory(ctx context.Context, entry *WorkflowHistoryEntry) error {
	query := `
		INSERT INTO workflow_history (
			id, document_id, version_id, action, from_user, to_user,
			previous_status, new_status, comments, action_at
		) VALUES (
			:id, :document_id, :version_id, :action, :from_user, :to_user,
			:previous_status, :new_status, :comments, :action_at
		)`
	_, err := sqlx.NamedExecContext(ctx, q.ext, query, entry)
	return mapPQError(err)
}

func (q *queries) ListHistory(ctx context.Context, documentID uuid.UUID) ([]WorkflowHistoryEntry, error) {
	entries := []WorkflowHistoryEntry{}
	err := sqlx.SelectContext(ctx, q.ext, &entries,
		"SELECT * FROM workflow_history WHERE document_id = $1 ORDER BY action_at DESC", documentID)
	if err != nil {
		return nil, mapPQError(err)
	}
	return entries, nil
}

func (q *queries) CreateAssignment(ctx context.Context, a *Assignment) error {
	query := `
		INSERT INTO document_assignments (
			id, document_id, assigned_to, assigned_by, workflow_level, is_active, assigned_at
		) VALUES (
			:id, :document_id, :assigned_to, :assigned_by, :workflow_level, :is_active, :assigned_at
		)`
	_, err := sqlx.NamedExecContext(ctx, q.ext, query, a)
	return mapPQError(err)
}

func (q *queries) DeactivateAssignments(ctx context.Context, documentID uuid.UUID) error {
	_, err := q.ext.ExecContext(ctx,
		"UPDATE document_assignments SET is_active = FALSE WHERE document_id = $1 AND is_active", documentID)
	return mapPQError(err)
}

func (q *queries) ActiveAssignment(ctx context.Context, documentID uuid.UUID) (*Assignment, error) {
	var a Assignment
	err := sqlx.GetContext(ctx, q.ext, &a,
		"SELECT * FROM document_assignments WHERE document_id = $1 AND is_active ORDER BY assigned_at DESC LIMIT 1",
		documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapPQError(err)
	}
	return &a, nil
}

func (q *queries) ActiveAssignmentsForUser(ctx context.Context, userID uuid.UUID) ([]Assignment, error) {
	assignments := []Assignment{}
	err := sqlx.SelectContext(ctx, q.ext, &assignments,
		"SELECT * FROM document_assignments WHERE assigned_to = $1 AND is_active ORDER BY assigned_at DESC", userID)
	if err != nil {
		return nil, mapPQError(err)
	}
	return assignments, nil
}

func (q *queries) CreateComment(ctx context.Context, c *DocumentComment) error {
	query := `
		INSERT INTO document_comments (
			id, document_id, user_id, text, parent_id, is_resolved,
			resolved_by, resolved_at, created_at, updated_at
		) VALUES (
			:id, :document_id, :user_id, :text, :parent_id, :is_resolved,
			:resolved_by, :resolved_at, :created_at, :updated_at
		)`
	_, err := sqlx.NamedExecContext(ctx, q.ext, query, c)
	return mapPQError(err)
}

func (q *queries) ListComments(ctx context.Context, documentID uuid.UUID) ([]DocumentComment, error) {
	comments := []DocumentComment{}
	err := sqlx.SelectContext(ctx, q.ext, &comments,
		"SELECT * FROM document_comments WHERE document_id = $1 ORDER BY created_at ASC", documentID)
	if err != nil {
		return nil, mapPQError(err)
	}
	return comments, nil
}

func (q *queries) ResolveComment(ctx context.Context, commentID, resolvedBy uuid.UUID) error {
	res, err := q.ext.ExecContext(ctx,
		"UPDATE document_comments SET is_resolved = TRUE, resolved_by = $2, resolved_at = NOW(), updated_at = NOW() WHERE id = $1",
		commentID, resolvedBy)
	if err != nil {
		return mapPQError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: comment %s", ErrNotFound, commentID)
	}
	return nil
}

func (q *queries) ListCategories(ctx context.Context) ([]DocumentCategory, error) {
	categories := []DocumentCategory{}
	err := sqlx.SelectContext(ctx, q.ext, &categories,
		"SELECT * FROM document_categories WHERE is_active ORDER BY category_name")
	if err != nil {
		return nil, mapPQError(err)
	}
	return categories, nil
}

func (q *queries) CountDocumentsForUser(ctx context.Context, actor identity.Context) (int, error) {
	var args []interface{}
	clause, args := scopeClause(actor, args)
	var count int
	err := sqlx.GetContext(ctx, q.ext, &count, "SELECT COUNT(*) FROM documents WHERE 1=1"+clause, args...)
	if err != nil {
		return 0, mapPQError(err)
	}
	return count, nil
}

func (q *queries) CountActiveAssignmentsForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q.ext, &count,
		"SELECT COUNT(*) FROM document_assignments WHERE assigned_to = $1 AND is_active", userID)
	if err != nil {
		return 0, mapPQError(err)
	}
	return count, nil
}

func (q *queries) CountDocumentsCreatedSince(ctx context.Context, actor identity.Context, since time.Time) (int, error) {
	var args []interface{}
	clause, args := scopeClause(actor, args)
	args = append(args, since)
	query := fmt.Sprintf("SELECT COUNT(*) FROM documents WHERE 1=1%s AND created_at >= $%d", clause, len(args))
	var count int
	if err := sqlx.GetContext(ctx, q.ext, &count, query, args...); err != nil {
		return 0, mapPQError(err)
	}
	return count, nil
}

func (q *queries) CountOverdueDocumentsForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q.ext, &count,
		`SELECT COUNT(*) FROM documents
		 WHERE current_handler = $1 AND due_date IS NOT NULL AND due_date < NOW() AND completed_at IS NULL`,
		userID)
	if err != nil {
		return 0, mapPQError(err)
	}
	return count, nil
}

func (q *queries) StatusCountsForUser(ctx context.Context, actor identity.Context) ([]StatusStat, error) {
	var args []interface{}
	clause, args := scopeClause(actor, args)
	query := fmt.Sprintf(
		"SELECT status, COUNT(*) AS count FROM documents WHERE 1=1%s GROUP BY status ORDER BY status", clause)
	stats := []StatusStat{}
	if err := sqlx.SelectContext(ctx, q.ext, &stats, query, args...); err != nil {
		return nil, mapPQError(err)
	}
	return stats, nil
}

func (q *queries) EnqueueEffect(ctx context.Context, effect *outbox.Effect) error {
	query := `
		INSERT INTO workflow_effects (
			id, kind, payload, status, attempts, last_error, created_at, delivered_at
		) VALUES (
			:id, :kind, :payload, :status, :attempts, :last_error, :created_at, :delivered_at
		)`
	_, err := sqlx.NamedExecContext(ctx, q.ext, query, effect)
	return mapPQError(err)
}
