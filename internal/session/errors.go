package session

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrAlreadySubmitted     = errors.New("session already submitted")
	ErrIndexOutOfRange      = errors.New("question index out of range")
	ErrExplainRateLimited   = errors.New("explanation requested too soon")
	ErrExplainUnavailable   = errors.New("explanation backend not configured")
	ErrBookmarksUnavailable = errors.New("bookmark backend not configured")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrExplainRateLimited)
}
