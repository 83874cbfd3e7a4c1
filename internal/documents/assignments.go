package documents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AssignmentTracker maintains the single active handoff record per document.
// Reassign runs against a transaction-bound Repository so deactivation and
// activation land atomically; at most one assignment per document is active.
type AssignmentTracker struct{}

func NewAssignmentTracker() *AssignmentTracker {
	return &AssignmentTracker{}
}

// Reassign deactivates every active assignment for the document and inserts
// exactly one new active assignment.
func (t *AssignmentTracker) Reassign(ctx context.Context, repo Repository, documentID, assignedTo, assignedBy uuid.UUID, workflowLevel int) (*Assignment, error) {
	if err := repo.DeactivateAssignments(ctx, documentID); err != nil {
		return nil, err
	}

	assignment := &Assignment{
		ID:            uuid.New(),
		DocumentID:    documentID,
		AssignedTo:    assignedTo,
		AssignedBy:    assignedBy,
		WorkflowLevel: workflowLevel,
		IsActive:      true,
		AssignedAt:    time.Now().UTC(),
	}
	if err := repo.CreateAssignment(ctx, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

// Clear deactivates the outstanding assignment without creating a new one.
// Used when a workflow ends and nobody owns the next action anymore.
func (t *AssignmentTracker) Clear(ctx context.Context, repo Repository, documentID uuid.UUID) error {
	return repo.DeactivateAssignments(ctx, documentID)
}

// Active returns the active assignment for a document, or nil.
func (t *AssignmentTracker) Active(ctx context.Context, repo Repository, documentID uuid.UUID) (*Assignment, error) {
	return repo.ActiveAssignment(ctx, documentID)
}

// PendingForUser lists every document a user currently owns the next action on.
func (t *AssignmentTracker) PendingForUser(ctx context.Context, repo Repository, userID uuid.UUID) ([]Assignment, error) {
	return repo.ActiveAssignmentsForUser(ctx, userID)
}
