package documents

import (
	"doc-collab/document-portal/document-portal-backend/internal/identity"
)

// PermissionEvaluator is a stateless predicate set over (document, actor).
// Department scoping applies only to visibility; action gating is purely
// handler-identity plus role-level.
type PermissionEvaluator struct{}

func NewPermissionEvaluator() *PermissionEvaluator {
	return &PermissionEvaluator{}
}

func (e *PermissionEvaluator) CanView(doc *Document, actor identity.Context) bool {
	if actor.IsAdmin() {
		return true
	}
	if !actor.SameDepartment(doc.DepartmentID) {
		return false
	}
	if actor.RoleLevel >= identity.RoleViceManager {
		return true
	}
	return e.isCreator(doc, actor) || e.isCurrentHandler(doc, actor)
}

func (e *PermissionEvaluator) CanEdit(doc *Document, actor identity.Context) bool {
	return isEditable(doc.Status) && e.isCreator(doc, actor)
}

func (e *PermissionEvaluator) CanSubmit(doc *Document, actor identity.Context) bool {
	return isEditable(doc.Status) && e.isCreator(doc, actor)
}

// isEditable: a document returned for revision re-enters draft-like flow.
func isEditable(s DocumentStatus) bool {
	return s == StatusDraft || s == StatusRevisionRequested
}

func (e *PermissionEvaluator) CanApprove(doc *Document, actor identity.Context) bool {
	return e.isCurrentHandler(doc, actor) && actor.RoleLevel >= identity.RoleViceManager
}

func (e *PermissionEvaluator) CanReject(doc *Document, actor identity.Context) bool {
	return e.CanApprove(doc, actor)
}

func (e *PermissionEvaluator) CanRequestRevision(doc *Document, actor identity.Context) bool {
	return e.CanApprove(doc, actor)
}

// Capabilities is the full allowed-action set for a document detail view.
type Capabilities struct {
	CanView            bool `json:"can_view"`
	CanEdit            bool `json:"can_edit"`
	CanSubmit          bool `json:"can_submit"`
	CanApprove         bool `json:"can_approve"`
	CanReject          bool `json:"can_reject"`
	CanRequestRevision bool `json:"can_request_revision"`
}

func (e *PermissionEvaluator) Evaluate(doc *Document, actor identity.Context) Capabilities {
	return Capabilities{
		CanView:            e.CanView(doc, actor),
		CanEdit:            e.CanEdit(doc, actor),
		CanSubmit:          e.CanSubmit(doc, actor),
		CanApprove:         e.CanApprove(doc, actor),
		CanReject:          e.CanReject(doc, actor),
		CanRequestRevision: e.CanRequestRevision(doc, actor),
	}
}

func (e *PermissionEvaluator) isCreator(doc *Document, actor identity.Context) bool {
	return doc.CreatedBy == actor.UserID
}

func (e *PermissionEvaluator) isCurrentHandler(doc *Document, actor identity.Context) bool {
	return doc.CurrentHandler != nil && *doc.CurrentHandler == actor.UserID
}
