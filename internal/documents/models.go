package documents

import (
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	StatusDraft             DocumentStatus = "DRAFT"
	StatusPending           DocumentStatus = "PENDING"
	StatusInReview          DocumentStatus = "IN_REVIEW"
	StatusApproved          DocumentStatus = "APPROVED"
	StatusRejected          DocumentStatus = "REJECTED"
	StatusRevisionRequested DocumentStatus = "REVISION_REQUESTED"
)

// IsTerminal reports whether no further workflow transitions are defined
// from the status.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// StatusOption is the lookup entry behind status filter dropdowns.
type StatusOption struct {
	Code         DocumentStatus `json:"code"`
	Name         string         `json:"name"`
	DisplayOrder int            `json:"display_order"`
}

// StatusOptions lists every workflow status in display order.
func StatusOptions() []StatusOption {
	return []StatusOption{
		{StatusDraft, "Draft", 1},
		{StatusPending, "Pending Approval", 2},
		{StatusInReview, "In Review", 3},
		{StatusApproved, "Approved", 4},
		{StatusRejected, "Rejected", 5},
		{StatusRevisionRequested, "Revision Requested", 6},
	}
}

type ActionCode string

const (
	ActionCreate          ActionCode = "CREATE"
	ActionSubmit          ActionCode = "SUBMIT"
	ActionApprove         ActionCode = "APPROVE"
	ActionReject          ActionCode = "REJECT"
	ActionRequestRevision ActionCode = "REQUEST_REVISION"
)

// Workflow levels mark progress through the fixed three-role chain.
const (
	LevelAuthor      = 1
	LevelViceManager = 2
	LevelManager     = 3
)

type Priority int

const (
	PriorityHigh   Priority = 1
	PriorityMedium Priority = 2
	PriorityLow    Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	default:
		return "Unknown"
	}
}

type Document struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	DocumentNumber string         `json:"document_number" db:"document_number"`
	Title          string         `json:"title" db:"title"`
	Description    string         `json:"description" db:"description"`
	CategoryID     *uuid.UUID     `json:"category_id,omitempty" db:"category_id"`
	Status         DocumentStatus `json:"status" db:"status"`
	WorkflowLevel  int            `json:"workflow_level" db:"workflow_level"`
	Priority       Priority       `json:"priority" db:"priority"`
	FileName       string         `json:"file_name" db:"file_name"`
	FilePath       string         `json:"file_path" db:"file_path"`
	FileSize       int64          `json:"file_size" db:"file_size"`
	CreatedBy      uuid.UUID      `json:"created_by" db:"created_by"`
	CurrentHandler *uuid.UUID     `json:"current_handler,omitempty" db:"current_handler"`
	DepartmentID   *uuid.UUID     `json:"department_id,omitempty" db:"department_id"`
	DueDate        *time.Time     `json:"due_date,omitempty" db:"due_date"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

type DocumentVersion struct {
	ID                uuid.UUID `json:"id" db:"id"`
	DocumentID        uuid.UUID `json:"document_id" db:"document_id"`
	VersionNumber     int       `json:"version_number" db:"version_number"`
	FileName          string    `json:"file_name" db:"file_name"`
	FilePath          string    `json:"file_path" db:"file_path"`
	FileSize          int64     `json:"file_size" db:"file_size"`
	ChangeDescription string    `json:"change_description" db:"change_description"`
	IsCurrent         bool      `json:"is_current" db:"is_current"`
	CreatedBy         uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// WorkflowHistoryEntry is append-only; rows are never updated or deleted.
type WorkflowHistoryEntry struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	DocumentID     uuid.UUID       `json:"document_id" db:"document_id"`
	VersionID      *uuid.UUID      `json:"version_id,omitempty" db:"version_id"`
	Action         ActionCode      `json:"action" db:"action"`
	FromUser       uuid.UUID       `json:"from_user" db:"from_user"`
	ToUser         *uuid.UUID      `json:"to_user,omitempty" db:"to_user"`
	PreviousStatus *DocumentStatus `json:"previous_status,omitempty" db:"previous_status"`
	NewStatus      DocumentStatus  `json:"new_status" db:"new_status"`
	Comments       string          `json:"comments" db:"comments"`
	ActionAt       time.Time       `json:"action_at" db:"action_at"`
}

type Assignment struct {
	ID            uuid.UUID `json:"id" db:"id"`
	DocumentID    uuid.UUID `json:"document_id" db:"document_id"`
	AssignedTo    uuid.UUID `json:"assigned_to" db:"assigned_to"`
	AssignedBy    uuid.UUID `json:"assigned_by" db:"assigned_by"`
	WorkflowLevel int       `json:"workflow_level" db:"workflow_level"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	AssignedAt    time.Time `json:"assigned_at" db:"assigned_at"`
}

type DocumentComment struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	DocumentID uuid.UUID  `json:"document_id" db:"document_id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	Text       string     `json:"text" db:"text"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	IsResolved bool       `json:"is_resolved" db:"is_resolved"`
	ResolvedBy *uuid.UUID `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

type DocumentCategory struct {
	ID           uuid.UUID `json:"id" db:"id"`
	CategoryName string    `json:"category_name" db:"category_name"`
	CategoryCode string    `json:"category_code" db:"category_code"`
	Description  string    `json:"description" db:"description"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type DashboardStats struct {
	TotalDocuments     int          `json:"total_documents"`
	PendingAssignments int          `json:"pending_assignments"`
	CreatedThisMonth   int          `json:"created_this_month"`
	OverdueDocuments   int          `json:"overdue_documents"`
	ByStatus           []StatusStat `json:"by_status"`
}

type StatusStat struct {
	Status DocumentStatus `json:"status" db:"status"`
	Count  int            `json:"count" db:"count"`
}
