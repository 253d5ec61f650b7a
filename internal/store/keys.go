package store

// Storage keys for the generic (non-assignment) session. The names are part
// of the persistence contract: existing sessions written under them must
// keep resuming across deployments.
const (
	KeyQuestions     = "testQuestions"
	KeyAnswers       = "testUserAnswers"
	KeyGrading       = "testGradingResults"
	KeyParams        = "testParams"
	KeySubmitted     = "testSubmitted"
	KeySession       = "currentTestSession"
	KeyAssignmentID  = "currentAssignmentId"
	KeyFromBookmarks = "testFromBookmarks"
)

// Legacy countdown keys, consumed once by clock migration and removed.
const (
	LegacyKeyTimeLeft            = "testTimeLeft"
	LegacyKeyCodebustersTimeLeft = "codebustersTimeLeft"
	LegacyKeySynchronized        = "isTimeSynchronized"
	LegacyKeyOriginalSyncTime    = "originalSyncTime"
	LegacyKeySyncTimestamp       = "syncTimestamp"
)

// Assignment-scoped keys keep concurrent assignments from clobbering each
// other's cached state.

func AssignmentQuestionsKey(id string) string { return "assignment_" + id + "_questions" }
func AssignmentAnswersKey(id string) string   { return "assignment_" + id + "_answers" }
func AssignmentGradingKey(id string) string   { return "assignment_" + id + "_grading" }
func AssignmentSessionKey(id string) string   { return "assignment_" + id + "_session" }

// AssignmentKeys lists every scoped key for one assignment.
func AssignmentKeys(id string) []string {
	return []string{
		AssignmentQuestionsKey(id),
		AssignmentAnswersKey(id),
		AssignmentGradingKey(id),
		AssignmentSessionKey(id),
	}
}

// SessionKeys lists the generic keys that make up one session's state.
func SessionKeys() []string {
	return []string{
		KeyQuestions,
		KeyAnswers,
		KeyGrading,
		KeyParams,
		KeySubmitted,
		KeySession,
		KeyFromBookmarks,
	}
}
