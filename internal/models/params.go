package models

// RouterParams is the closed set of parameters a practice session can be
// started with. Unknown parameters are dropped at the transport boundary;
// zero values fall back to the documented defaults.
type RouterParams struct {
	EventName     string `json:"eventName,omitempty"`
	Division      string `json:"division,omitempty" validate:"omitempty,oneof=B C"`
	TimeLimitMin  int    `json:"timeLimit,omitempty" validate:"omitempty,min=1,max=240"`
	QuestionCount int    `json:"questionCount,omitempty" validate:"omitempty,min=1,max=200"`
	IDPercentage  *int   `json:"idPercentage,omitempty" validate:"omitempty,id_percentage"`
	Types         string `json:"types,omitempty"`

	AssignmentID   string `json:"assignmentId,omitempty"`
	AssignmentMode bool   `json:"assignmentMode,omitempty"`
	// LegacyTeams marks sessions started from the old team-assignment flow,
	// which reports results through the legacy submit endpoint.
	LegacyTeams bool `json:"teamsAssign,omitempty"`

	FromBookmarks bool `json:"fromBookmarks,omitempty"`
	ViewResults   bool `json:"viewResults,omitempty"`
	Preview       bool `json:"preview,omitempty"`
}

const (
	DefaultEventName       = "Unknown Event"
	DefaultTimeLimitMin    = 30
	AssignmentTimeLimitMin = 60
	DefaultQuestionCount   = 10
)

func (p RouterParams) EventOrDefault() string {
	if p.EventName == "" {
		return DefaultEventName
	}
	return p.EventName
}

// TimeLimitMinutes returns the effective limit: the explicit parameter when
// set, otherwise 60 minutes for assignments and 30 for everything else.
func (p RouterParams) TimeLimitMinutes() int {
	if p.TimeLimitMin > 0 {
		return p.TimeLimitMin
	}
	if p.IsAssignment() {
		return AssignmentTimeLimitMin
	}
	return DefaultTimeLimitMin
}

func (p RouterParams) Count() int {
	if p.QuestionCount > 0 {
		return p.QuestionCount
	}
	return DefaultQuestionCount
}

// IDPercent returns the identification-question blend ratio clamped to
// [0, 100]. Absent means no identification questions are mixed in.
func (p RouterParams) IDPercent() int {
	if p.IDPercentage == nil {
		return 0
	}
	pct := *p.IDPercentage
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// IsAssignment reports whether the session runs against the scoped
// assignment flow. Legacy team sessions keep using the generic storage keys
// and are not considered assignment sessions here.
func (p RouterParams) IsAssignment() bool {
	return p.AssignmentMode && p.AssignmentID != ""
}
