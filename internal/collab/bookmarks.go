package collab

import (
	"context"
	"net/url"

	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/utils"
)

// BookmarkClient reads and writes a user's saved questions.
type BookmarkClient struct {
	*Client
}

func NewBookmarkClient(baseURL string, logger utils.Logger) *BookmarkClient {
	return &BookmarkClient{Client: newClient(baseURL, logger)}
}

func (c *BookmarkClient) ListBookmarks(ctx context.Context, userID string) ([]models.Bookmark, error) {
	params := url.Values{}
	params.Set("userId", userID)

	var bookmarks []models.Bookmark
	if err := c.getJSON(ctx, "/api/bookmarks", params, &bookmarks); err != nil {
		return nil, err
	}
	return bookmarks, nil
}

type bookmarkRequest struct {
	UserID     string          `json:"userId"`
	EventName  string          `json:"eventName"`
	Question   models.Question `json:"question"`
	Bookmarked bool            `json:"bookmarked"`
}

// SaveBookmark adds or removes a bookmark for one question.
func (c *BookmarkClient) SaveBookmark(ctx context.Context, userID, eventName string, q models.Question, bookmarked bool) error {
	return c.postJSON(ctx, "/api/bookmarks", bookmarkRequest{
		UserID:     userID,
		EventName:  eventName,
		Question:   q,
		Bookmarked: bookmarked,
	}, nil)
}
