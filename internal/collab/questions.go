package collab

import (
	"context"
	"net/url"
	"strconv"

	"github.com/scio-practice/session-service/internal/loader"
	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/utils"
)

// QuestionClient fetches question sets from the question bank.
type QuestionClient struct {
	*Client
}

var _ loader.QuestionSource = (*QuestionClient)(nil)

func NewQuestionClient(baseURL string, logger utils.Logger) *QuestionClient {
	return &QuestionClient{Client: newClient(baseURL, logger)}
}

func (c *QuestionClient) FetchQuestions(ctx context.Context, query loader.QuestionQuery) ([]models.Question, error) {
	params := url.Values{}
	params.Set("event", query.Event)
	params.Set("count", strconv.Itoa(query.Count))
	if query.Division != "" {
		params.Set("division", query.Division)
	}
	if query.Types != "" {
		params.Set("types", query.Types)
	}

	var questions []models.Question
	if err := c.getJSON(ctx, "/api/questions", params, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}
