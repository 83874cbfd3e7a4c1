package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VersionManager maintains the append-only version chain of a document and
// the single current-version pointer. All methods expect a transaction-bound
// Repository so the current flip is atomic: a reader never observes zero or
// more than one current version.
type VersionManager struct{}

func NewVersionManager() *VersionManager {
	return &VersionManager{}
}

// NewVersionInput carries the stored file reference for a new version.
type NewVersionInput struct {
	FileName          string
	FilePath          string
	FileSize          int64
	ChangeDescription string
	CreatedBy         uuid.UUID
}

// CreateInitial writes version 1 for a freshly created document.
func (m *VersionManager) CreateInitial(ctx context.Context, repo Repository, documentID uuid.UUID, in NewVersionInput) (*DocumentVersion, error) {
	version := &DocumentVersion{
		ID:                uuid.New(),
		DocumentID:        documentID,
		VersionNumber:     1,
		FileName:          in.FileName,
		FilePath:          in.FilePath,
		FileSize:          in.FileSize,
		ChangeDescription: in.ChangeDescription,
		IsCurrent:         true,
		CreatedBy:         in.CreatedBy,
		CreatedAt:         time.Now().UTC(),
	}
	if err := repo.CreateVersion(ctx, version); err != nil {
		return nil, err
	}
	return version, nil
}

// Append adds the next version in the chain, demotes every prior current
// version and updates the document's denormalized file pointer. Version
// numbers are monotonic and never reused.
func (m *VersionManager) Append(ctx context.Context, repo Repository, doc *Document, in NewVersionInput) (*DocumentVersion, error) {
	if in.FilePath == "" {
		return nil, fmt.Errorf("%w: version file reference is required", ErrValidation)
	}

	max, err := repo.MaxVersionNumber(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	next := max + 1

	if err := repo.ClearCurrentVersion(ctx, doc.ID); err != nil {
		return nil, err
	}

	description := in.ChangeDescription
	if description == "" {
		description = fmt.Sprintf("Version %d", next)
	}

	version := &DocumentVersion{
		ID:                uuid.New(),
		DocumentID:        doc.ID,
		VersionNumber:     next,
		FileName:          in.FileName,
		FilePath:          in.FilePath,
		FileSize:          in.FileSize,
		ChangeDescription: description,
		IsCurrent:         true,
		CreatedBy:         in.CreatedBy,
		CreatedAt:         time.Now().UTC(),
	}
	if err := repo.CreateVersion(ctx, version); err != nil {
		return nil, err
	}

	doc.FileName = in.FileName
	doc.FilePath = in.FilePath
	doc.FileSize = in.FileSize
	doc.UpdatedAt = time.Now().UTC()
	if err := repo.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}

	return version, nil
}
