package collab

import (
	"context"
	"fmt"

	"github.com/scio-practice/session-service/internal/grading"
	"github.com/scio-practice/session-service/internal/utils"
)

// GraderClient sends free-response batches to the online grading backend.
// Scores come back on the same 0-3 scale the local fallback uses.
type GraderClient struct {
	*Client
}

var _ grading.RemoteGrader = (*GraderClient)(nil)

func NewGraderClient(baseURL string, logger utils.Logger) *GraderClient {
	return &GraderClient{Client: newClient(baseURL, logger)}
}

type gradeItem struct {
	Question        string   `json:"question"`
	StudentResponse string   `json:"studentResponse"`
	AcceptedAnswers []string `json:"acceptedAnswers"`
}

type gradeRequest struct {
	Items []gradeItem `json:"items"`
}

type gradeResponse struct {
	Scores []float64 `json:"scores"`
}

func (c *GraderClient) GradeBatch(ctx context.Context, items []grading.FRQItem) ([]float64, error) {
	req := gradeRequest{Items: make([]gradeItem, len(items))}
	for i, item := range items {
		req.Items[i] = gradeItem{
			Question:        item.Question.Text,
			StudentResponse: item.Response,
			AcceptedAnswers: item.Question.AcceptedResponses(),
		}
	}

	var resp gradeResponse
	if err := c.postJSON(ctx, "/api/grade", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Scores) != len(items) {
		return nil, fmt.Errorf("grader returned %d scores for %d items", len(resp.Scores), len(items))
	}
	return resp.Scores, nil
}
