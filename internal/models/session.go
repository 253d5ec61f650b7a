package models

// AnswerRecord maps question index to the student's selections. Multiple
// entries mean a multi-select answer; free-response answers carry a single
// string. A missing index means the question was never answered.
type AnswerRecord map[int][]string

// Answered counts questions with at least one non-empty selection.
func (r AnswerRecord) Answered() int {
	n := 0
	for _, sel := range r {
		if len(sel) > 0 && sel[0] != "" {
			n++
		}
	}
	return n
}

// GradingResults maps question index to the awarded score. Presence means
// the question has been graded.
type GradingResults map[int]float64

// TimeState is the persisted countdown state. All timestamps are unix
// milliseconds so the record survives serialization through the string
// store unchanged.
type TimeState struct {
	TimeLeft           int   `json:"timeLeft"`
	IsTimeSynchronized bool  `json:"isTimeSynchronized"`
	SyncTimestamp      int64 `json:"syncTimestamp"`
	OriginalTimeAtSync int   `json:"originalTimeAtSync"`
	TestStartTime      int64 `json:"testStartTime"`
	LastPauseTime      int64 `json:"lastPauseTime,omitempty"`
	TotalPausedTime    int64 `json:"totalPausedTime"`
	IsPaused           bool  `json:"isPaused"`
}

// SessionRecord is the durable session envelope written to the string
// store. TimeLimit is in minutes; TimeState tracks seconds.
type SessionRecord struct {
	TestID       string    `json:"testId"`
	EventName    string    `json:"eventName"`
	TimeLimit    int       `json:"timeLimit"`
	TimeState    TimeState `json:"timeState"`
	LastActivity int64     `json:"lastActivity"`
	IsSubmitted  bool      `json:"isSubmitted"`
}

// AssignmentSessionState is the scoped session marker stored next to an
// assignment's cached questions. The submitted flag lives here, not under
// the generic key, so a leftover practice session can never mask or replay
// an assignment submission.
type AssignmentSessionState struct {
	EventName        string `json:"eventName,omitempty"`
	TimeLimitMinutes int    `json:"timeLimit,omitempty"`
	TimeLeftSeconds  int    `json:"timeLeft"`
	Submitted        bool   `json:"isSubmitted"`
}

// Assignment is an assignment as returned by the assignment backend.
type Assignment struct {
	ID               string     `json:"id"`
	Title            string     `json:"title,omitempty"`
	EventName        string     `json:"eventName"`
	TimeLimitMinutes *int       `json:"timeLimit,omitempty"`
	Questions        []Question `json:"questions"`
}

// Bookmark is a saved question from the bookmark backend.
type Bookmark struct {
	EventName string   `json:"eventName"`
	Question  Question `json:"question"`
}

// MetricsUpdate is the per-session practice summary reported to the user
// metrics backend after submission.
type MetricsUpdate struct {
	QuestionsAttempted int    `json:"questionsAttempted"`
	CorrectAnswers     int    `json:"correctAnswers"`
	EventName          string `json:"eventName"`
}

// EnhancedSubmission is the payload for the scoped assignment submit
// endpoint. Answers are keyed by question ID.
type EnhancedSubmission struct {
	Answers          map[string][]string `json:"answers"`
	Score            float64             `json:"score"`
	TotalPoints      float64             `json:"totalPoints"`
	TimeSpentSeconds int                 `json:"timeSpent"`
	SubmittedAt      string              `json:"submittedAt"`
}

// LegacySubmission is the payload for the legacy team-assignment submit
// endpoint.
type LegacySubmission struct {
	AssignmentID string              `json:"assignmentId"`
	UserID       string              `json:"userId"`
	Name         string              `json:"name"`
	EventName    string              `json:"eventName"`
	Score        float64             `json:"score"`
	Detail       LegacySubmissionSum `json:"detail"`
}

type LegacySubmissionSum struct {
	Total float64 `json:"total"`
}
