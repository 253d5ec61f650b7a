package collab

import (
	"context"
	"fmt"

	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/utils"
)

// AssignmentClient talks to the assignment backend: assignment fetching for
// the loader plus both submit flavors for the grading coordinator.
type AssignmentClient struct {
	*Client
}

func NewAssignmentClient(baseURL string, logger utils.Logger) *AssignmentClient {
	return &AssignmentClient{Client: newClient(baseURL, logger)}
}

func (c *AssignmentClient) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := c.getJSON(ctx, "/api/assignments/"+id, nil, &assignment); err != nil {
		return nil, err
	}
	if assignment.ID == "" {
		assignment.ID = id
	}
	return &assignment, nil
}

func (c *AssignmentClient) SubmitAssignment(ctx context.Context, assignmentID string, sub models.EnhancedSubmission) error {
	path := fmt.Sprintf("/api/assignments/%s/submit", assignmentID)
	return c.postJSON(ctx, path, sub, nil)
}

func (c *AssignmentClient) SubmitLegacy(ctx context.Context, sub models.LegacySubmission) error {
	return c.postJSON(ctx, "/api/assignments/submit", sub, nil)
}
