package collab

import (
	"context"

	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/utils"
)

// ExplainClient fetches answer explanations for a single question.
type ExplainClient struct {
	*Client
}

func NewExplainClient(baseURL string, logger utils.Logger) *ExplainClient {
	return &ExplainClient{Client: newClient(baseURL, logger)}
}

type explainRequest struct {
	Question      models.Question `json:"question"`
	StudentAnswer []string        `json:"studentAnswer"`
}

type explainResponse struct {
	Explanation string `json:"explanation"`
}

func (c *ExplainClient) Explain(ctx context.Context, q models.Question, studentAnswer []string) (string, error) {
	var resp explainResponse
	if err := c.postJSON(ctx, "/api/explain", explainRequest{Question: q, StudentAnswer: studentAnswer}, &resp); err != nil {
		return "", err
	}
	return resp.Explanation, nil
}
