package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"doc-collab/document-portal/document-portal-backend/internal/identity"
	"doc-collab/document-portal/document-portal-backend/internal/outbox"
)

// WorkflowEngine orchestrates document state transitions. Every operation is
// one atomic unit of work: the document row is locked first, the precondition
// is evaluated against the locked snapshot, and the document update,
// assignment change, history entry and pending side effects commit together
// or not at all. Notifications and audit records are enqueued as outbox
// effects, never delivered inline.
type WorkflowEngine struct {
	store       Store
	perms       *PermissionEvaluator
	assignments *AssignmentTracker
	logger      *zap.Logger
}

func NewWorkflowEngine(store Store, perms *PermissionEvaluator, assignments *AssignmentTracker, logger *zap.Logger) *WorkflowEngine {
	return &WorkflowEngine{
		store:       store,
		perms:       perms,
		assignments: assignments,
		logger:      logger.With(zap.String("component", "workflow_engine")),
	}
}

type SubmitInput struct {
	ToUserID uuid.UUID
	Comments string
}

type ApproveInput struct {
	SendToNextLevel bool
	NextLevelUserID *uuid.UUID
	Comments        string
}

type RejectInput struct {
	Comments string
}

type RequestRevisionInput struct {
	SendBackToUserID uuid.UUID
	Comments         string
}

// Submit moves a draft from its creator to the vice-manager level.
func (e *WorkflowEngine) Submit(ctx context.Context, documentID uuid.UUID, actor identity.Context, in SubmitInput) (*Document, error) {
	if in.ToUserID == uuid.Nil {
		return nil, fmt.Errorf("%w: target user is required", ErrValidation)
	}

	var result *Document
	err := e.store.RunInTx(ctx, func(repo Repository) error {
		doc, err := repo.GetDocumentForUpdate(ctx, documentID)
		if err != nil {
			return err
		}
		if !e.isCreator(doc, actor) {
			return fmt.Errorf("%w: only the creator may submit", ErrPermissionDenied)
		}
		if !isEditable(doc.Status) {
			return fmt.Errorf("%w: cannot submit from status %s", ErrInvalidTransition, doc.Status)
		}

		previous := doc.Status
		now := time.Now().UTC()
		doc.Status = StatusPending
		doc.WorkflowLevel = LevelViceManager
		doc.CurrentHandler = &in.ToUserID
		doc.UpdatedAt = now
		if err := repo.UpdateDocument(ctx, doc); err != nil {
			return err
		}

		if _, err := e.assignments.Reassign(ctx, repo, doc.ID, in.ToUserID, actor.UserID, LevelViceManager); err != nil {
			return err
		}

		comments := in.Comments
		if comments == "" {
			comments = "Submitted for approval"
		}
		if err := repo.AppendHistory(ctx, &WorkflowHistoryEntry{
			ID:             uuid.New(),
			DocumentID:     doc.ID,
			Action:         ActionSubmit,
			FromUser:       actor.UserID,
			ToUser:         &in.ToUserID,
			PreviousStatus: &previous,
			NewStatus:      StatusPending,
			Comments:       comments,
			ActionAt:       now,
		}); err != nil {
			return err
		}

		if err := e.enqueueNotification(ctx, repo, outbox.NotificationPayload{
			UserID:     in.ToUserID,
			TypeCode:   "DOC_ASSIGNED",
			Title:      "Document assigned for review",
			Message:    fmt.Sprintf("You have been assigned to review document %q", doc.Title),
			DocumentID: &doc.ID,
		}); err != nil {
			return err
		}
		if err := e.enqueueAudit(ctx, repo, actor.UserID, ActionSubmit, doc.ID,
			fmt.Sprintf("Submitted document %s to user %s", doc.DocumentNumber, in.ToUserID)); err != nil {
			return err
		}

		result = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("document submitted",
		zap.String("document_id", documentID.String()),
		zap.String("to_user", in.ToUserID.String()))
	return result, nil
}

// Approve either forwards the document to the manager level or finishes the
// workflow with a final approval.
func (e *WorkflowEngine) Approve(ctx context.Context, documentID uuid.UUID, actor identity.Context, in ApproveInput) (*Document, error) {
	if in.SendToNextLevel && in.NextLevelUserID == nil {
		return nil, fmt.Errorf("%w: next level user is required when forwarding", ErrValidation)
	}

	var result *Document
	err := e.store.RunInTx(ctx, func(repo Repository) error {
		doc, err := repo.GetDocumentForUpdate(ctx, documentID)
		if err != nil {
			return err
		}
		if err := e.checkHandlerAction(doc, actor); err != nil {
			return err
		}

		previous := doc.Status
		now := time.Now().UTC()
		var newStatus DocumentStatus

		if in.SendToNextLevel {
			newStatus = StatusInReview
			doc.WorkflowLevel = LevelManager
			doc.CurrentHandler = in.NextLevelUserID
			if _, err := e.assignments.Reassign(ctx, repo, doc.ID, *in.NextLevelUserID, actor.UserID, LevelManager); err != nil {
				return err
			}
			if err := e.enqueueNotification(ctx, repo, outbox.NotificationPayload{
				UserID:     *in.NextLevelUserID,
				TypeCode:   "DOC_ASSIGNED",
				Title:      "Document assigned for final approval",
				Message:    fmt.Sprintf("You have been assigned to approve document %q", doc.Title),
				DocumentID: &doc.ID,
			}); err != nil {
				return err
			}
		} else {
			newStatus = StatusApproved
			doc.CompletedAt = &now
			doc.CurrentHandler = nil
			// The workflow is over; nobody owns a next action.
			if err := e.assignments.Clear(ctx, repo, doc.ID); err != nil {
				return err
			}
			if err := e.enqueueNotification(ctx, repo, outbox.NotificationPayload{
				UserID:     doc.CreatedBy,
				TypeCode:   "DOC_APPROVED",
				Title:      "Document approved",
				Message:    fmt.Sprintf("Document %q has been approved", doc.Title),
				DocumentID: &doc.ID,
			}); err != nil {
				return err
			}
		}

		doc.Status = newStatus
		doc.UpdatedAt = now
		if err := repo.UpdateDocument(ctx, doc); err != nil {
			return err
		}

		comments := in.Comments
		if comments == "" {
			comments = "Approved"
		}
		if err := repo.AppendHistory(ctx, &WorkflowHistoryEntry{
			ID:             uuid.New(),
			DocumentID:     doc.ID,
			Action:         ActionApprove,
			FromUser:       actor.UserID,
			ToUser:         in.NextLevelUserID,
			PreviousStatus: &previous,
			NewStatus:      newStatus,
			Comments:       comments,
			ActionAt:       now,
		}); err != nil {
			return err
		}

		if err := e.enqueueAudit(ctx, repo, actor.UserID, ActionApprove, doc.ID,
			fmt.Sprintf("Approved document %s", doc.DocumentNumber)); err != nil {
			return err
		}

		result = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("document approved",
		zap.String("document_id", documentID.String()),
		zap.Bool("forwarded", in.SendToNextLevel))
	return result, nil
}

// Reject ends the workflow with a rejection and notifies the creator.
func (e *WorkflowEngine) Reject(ctx context.Context, documentID uuid.UUID, actor identity.Context, in RejectInput) (*Document, error) {
	if in.Comments == "" {
		return nil, fmt.Errorf("%w: a rejection reason is required", ErrValidation)
	}

	var result *Document
	err := e.store.RunInTx(ctx, func(repo Repository) error {
		doc, err := repo.GetDocumentForUpdate(ctx, documentID)
		if err != nil {
			return err
		}
		if err := e.checkHandlerAction(doc, actor); err != nil {
			return err
		}

		previous := doc.Status
		now := time.Now().UTC()
		doc.Status = StatusRejected
		doc.CurrentHandler = nil
		doc.UpdatedAt = now
		if err := repo.UpdateDocument(ctx, doc); err != nil {
			return err
		}

		// Rejection is terminal: the outstanding assignment is cleared so no
		// stale active handoff survives the workflow.
		if err := e.assignments.Clear(ctx, repo, doc.ID); err != nil {
			return err
		}

		if err := repo.AppendHistory(ctx, &WorkflowHistoryEntry{
			ID:             uuid.New(),
			DocumentID:     doc.ID,
			Action:         ActionReject,
			FromUser:       actor.UserID,
			ToUser:         &doc.CreatedBy,
			PreviousStatus: &previous,
			NewStatus:      StatusRejected,
			Comments:       in.Comments,
			ActionAt:       now,
		}); err != nil {
			return err
		}

		if err := e.enqueueNotification(ctx, repo, outbox.NotificationPayload{
			UserID:     doc.CreatedBy,
			TypeCode:   "DOC_REJECTED",
			Title:      "Document rejected",
			Message:    fmt.Sprintf("Document %q was rejected. Reason: %s", doc.Title, in.Comments),
			DocumentID: &doc.ID,
		}); err != nil {
			return err
		}
		if err := e.enqueueAudit(ctx, repo, actor.UserID, ActionReject, doc.ID,
			fmt.Sprintf("Rejected document %s", doc.DocumentNumber)); err != nil {
			return err
		}

		result = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("document rejected", zap.String("document_id", documentID.String()))
	return result, nil
}

// RequestRevision sends the document back to the author level for rework.
func (e *WorkflowEngine) RequestRevision(ctx context.Context, documentID uuid.UUID, actor identity.Context, in RequestRevisionInput) (*Document, error) {
	if in.SendBackToUserID == uuid.Nil {
		return nil, fmt.Errorf("%w: target user is required", ErrValidation)
	}

	var result *Document
	err := e.store.RunInTx(ctx, func(repo Repository) error {
		doc, err := repo.GetDocumentForUpdate(ctx, documentID)
		if err != nil {
			return err
		}
		if err := e.checkHandlerAction(doc, actor); err != nil {
			return err
		}

		previous := doc.Status
		now := time.Now().UTC()
		doc.Status = StatusRevisionRequested
		doc.WorkflowLevel = LevelAuthor
		doc.CurrentHandler = &in.SendBackToUserID
		doc.UpdatedAt = now
		if err := repo.UpdateDocument(ctx, doc); err != nil {
			return err
		}

		if _, err := e.assignments.Reassign(ctx, repo, doc.ID, in.SendBackToUserID, actor.UserID, LevelAuthor); err != nil {
			return err
		}

		comments := in.Comments
		if comments == "" {
			comments = "Revision requested"
		}
		if err := repo.AppendHistory(ctx, &WorkflowHistoryEntry{
			ID:             uuid.New(),
			DocumentID:     doc.ID,
			Action:         ActionRequestRevision,
			FromUser:       actor.UserID,
			ToUser:         &in.SendBackToUserID,
			PreviousStatus: &previous,
			NewStatus:      StatusRevisionRequested,
			Comments:       comments,
			ActionAt:       now,
		}); err != nil {
			return err
		}

		if err := e.enqueueNotification(ctx, repo, outbox.NotificationPayload{
			UserID:     in.SendBackToUserID,
			TypeCode:   "DOC_REVISION_REQUESTED",
			Title:      "Revision requested",
			Message:    fmt.Sprintf("Document %q needs revision: %s", doc.Title, comments),
			DocumentID: &doc.ID,
		}); err != nil {
			return err
		}
		if err := e.enqueueAudit(ctx, repo, actor.UserID, ActionRequestRevision, doc.ID,
			fmt.Sprintf("Requested revision of document %s", doc.DocumentNumber)); err != nil {
			return err
		}

		result = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("revision requested",
		zap.String("document_id", documentID.String()),
		zap.String("send_back_to", in.SendBackToUserID.String()))
	return result, nil
}

// checkHandlerAction gates approve, reject and request-revision: the
// document must still be in an actionable review state and the actor must be
// the current handler at vice-manager level or above. The state check comes
// first so a transition that already ran reads as InvalidTransition, not as
// a permission problem.
func (e *WorkflowEngine) checkHandlerAction(doc *Document, actor identity.Context) error {
	if doc.Status != StatusPending && doc.Status != StatusInReview {
		return fmt.Errorf("%w: cannot act on status %s", ErrInvalidTransition, doc.Status)
	}
	if doc.CurrentHandler == nil || *doc.CurrentHandler != actor.UserID {
		return fmt.Errorf("%w: actor is not the current handler", ErrPermissionDenied)
	}
	if actor.RoleLevel < identity.RoleViceManager {
		return fmt.Errorf("%w: role level %d may not act on reviews", ErrPermissionDenied, actor.RoleLevel)
	}
	return nil
}

func (e *WorkflowEngine) isCreator(doc *Document, actor identity.Context) bool {
	return doc.CreatedBy == actor.UserID
}

func (e *WorkflowEngine) enqueueNotification(ctx context.Context, repo Repository, p outbox.NotificationPayload) error {
	effect, err := outbox.NewNotificationEffect(p)
	if err != nil {
		return fmt.Errorf("%w: encode notification effect: %v", ErrPersistence, err)
	}
	return repo.EnqueueEffect(ctx, effect)
}

func (e *WorkflowEngine) enqueueAudit(ctx context.Context, repo Repository, actorID uuid.UUID, action ActionCode, documentID uuid.UUID, description string) error {
	effect, err := outbox.NewAuditEffect(outbox.AuditPayload{
		ActorID:     actorID,
		ActionType:  string(action),
		EntityType:  "Document",
		EntityID:    documentID,
		Description: description,
	})
	if err != nil {
		return fmt.Errorf("%w: encode audit effect: %v", ErrPersistence, err)
	}
	return repo.EnqueueEffect(ctx, effect)
}
