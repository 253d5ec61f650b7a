package collab

import (
	"context"
	"fmt"

	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/utils"
)

// MetricsClient reports practice statistics to the user metrics backend.
type MetricsClient struct {
	*Client
}

func NewMetricsClient(baseURL string, logger utils.Logger) *MetricsClient {
	return &MetricsClient{Client: newClient(baseURL, logger)}
}

func (c *MetricsClient) RecordPractice(ctx context.Context, userID string, update models.MetricsUpdate) error {
	path := fmt.Sprintf("/api/users/%s/metrics", userID)
	return c.postJSON(ctx, path, update, nil)
}
