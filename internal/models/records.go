package models

import (
	"time"

	"gorm.io/datatypes"
)

// AssignmentTimeRecord mirrors the authoritative per-assignment countdown
// kept in the structured store. The string-store clock state is the working
// copy; this row is what the backend reconciles against.
type AssignmentTimeRecord struct {
	AssignmentID     string `gorm:"primaryKey;size:64" json:"assignmentId"`
	UserID           string `gorm:"primaryKey;size:64" json:"userId"`
	TimeLeftSeconds  int    `json:"timeLeftSeconds"`
	TimeLimitSeconds int    `json:"timeLimitSeconds"`
	UpdatedAt        time.Time
}

func (AssignmentTimeRecord) TableName() string {
	return "assignment_time_records"
}

// ResultSnapshot is the durable copy of a finished session: questions,
// answers, and validated grades as JSON blobs plus the headline score.
type ResultSnapshot struct {
	ID               string         `gorm:"primaryKey;size:64" json:"id"`
	AssignmentID     string         `gorm:"index;size:64" json:"assignmentId,omitempty"`
	UserID           string         `gorm:"index;size:64" json:"userId"`
	EventName        string         `gorm:"size:128" json:"eventName"`
	Questions        datatypes.JSON `json:"questions"`
	Answers          datatypes.JSON `json:"answers"`
	Grades           datatypes.JSON `json:"grades"`
	Score            float64        `json:"score"`
	TotalPoints      float64        `json:"totalPoints"`
	TimeSpentSeconds int            `json:"timeSpentSeconds"`
	SubmittedAt      time.Time      `json:"submittedAt"`
}

func (ResultSnapshot) TableName() string {
	return "result_snapshots"
}
