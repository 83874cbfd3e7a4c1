package documents

import (
	"time"

	"github.com/google/uuid"
)

// DocumentSummary is the list-view projection of a document.
type DocumentSummary struct {
	ID             uuid.UUID      `json:"id"`
	DocumentNumber string         `json:"document_number"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	CategoryID     *uuid.UUID     `json:"category_id,omitempty"`
	Status         DocumentStatus `json:"status"`
	WorkflowLevel  int            `json:"workflow_level"`
	Priority       Priority       `json:"priority"`
	PriorityText   string         `json:"priority_text"`
	FileName       string         `json:"file_name"`
	FileSize       int64          `json:"file_size"`
	CreatedBy      uuid.UUID      `json:"created_by"`
	CurrentHandler *uuid.UUID     `json:"current_handler,omitempty"`
	DepartmentID   *uuid.UUID     `json:"department_id,omitempty"`
	DueDate        *time.Time     `json:"due_date,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// DocumentDetail embeds the summary by composition and adds the detail-only
// fields.
type DocumentDetail struct {
	DocumentSummary
	CurrentVersion    *DocumentVersion       `json:"current_version,omitempty"`
	WorkflowHistory   []WorkflowHistoryEntry `json:"workflow_history"`
	CurrentAssignment *Assignment            `json:"current_assignment,omitempty"`
	Capabilities      Capabilities           `json:"capabilities"`
}

func newDocumentSummary(doc *Document) DocumentSummary {
	return DocumentSummary{
		ID:             doc.ID,
		DocumentNumber: doc.DocumentNumber,
		Title:          doc.Title,
		Description:    doc.Description,
		CategoryID:     doc.CategoryID,
		Status:         doc.Status,
		WorkflowLevel:  doc.WorkflowLevel,
		Priority:       doc.Priority,
		PriorityText:   doc.Priority.String(),
		FileName:       doc.FileName,
		FileSize:       doc.FileSize,
		CreatedBy:      doc.CreatedBy,
		CurrentHandler: doc.CurrentHandler,
		DepartmentID:   doc.DepartmentID,
		DueDate:        doc.DueDate,
		CompletedAt:    doc.CompletedAt,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

// CommentThread is a top-level comment with its replies resolved.
type CommentThread struct {
	DocumentComment
	Replies []DocumentComment `json:"replies"`
}
