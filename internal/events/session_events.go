package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents different types of session events
type EventType string

const (
	// Session lifecycle events
	EventSessionStarted   EventType = "session.started"
	EventSessionSubmitted EventType = "session.submitted"
	EventSessionReset     EventType = "session.reset"

	// Clock events
	EventTimeWarning  EventType = "clock.time_warning"
	EventClockExpired EventType = "clock.expired"

	// Grading events
	EventGradingCorrected EventType = "grading.corrected"
)

// SessionEvent is the base envelope for all session events
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Session event payloads

type SessionStartedEvent struct {
	SessionID        string `json:"session_id"`
	EventName        string `json:"event_name"`
	QuestionSource   string `json:"question_source"`
	QuestionCount    int    `json:"question_count"`
	TimeLimitMinutes int    `json:"time_limit_minutes"`
	AssignmentID     string `json:"assignment_id,omitempty"`
	UserID           string `json:"user_id,omitempty"`
}

type SessionSubmittedEvent struct {
	SessionID        string  `json:"session_id"`
	EventName        string  `json:"event_name"`
	Score            float64 `json:"score"`
	TotalPoints      float64 `json:"total_points"`
	TimeSpentSeconds int     `json:"time_spent_seconds"`
	Expired          bool    `json:"expired"`
	AssignmentID     string  `json:"assignment_id,omitempty"`
	UserID           string  `json:"user_id,omitempty"`
}

type SessionResetEvent struct {
	SessionID string `json:"session_id"`
	EventName string `json:"event_name"`
}

type TimeWarningEvent struct {
	SessionID        string `json:"session_id"`
	EventName        string `json:"event_name"`
	SecondsRemaining int    `json:"seconds_remaining"`
}

type ClockExpiredEvent struct {
	SessionID string `json:"session_id"`
	EventName string `json:"event_name"`
}

type GradingCorrectedEvent struct {
	SessionID     string  `json:"session_id"`
	QuestionIndex int     `json:"question_index"`
	OldScore      float64 `json:"old_score"`
	NewScore      float64 `json:"new_score"`
}

// Event factory functions

func newEvent(eventType EventType, data interface{}) *SessionEvent {
	return &SessionEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    "session-service",
		Version:   "1.0",
		Data:      data,
	}
}

func NewSessionStartedEvent(data SessionStartedEvent) *SessionEvent {
	return newEvent(EventSessionStarted, data)
}

func NewSessionSubmittedEvent(data SessionSubmittedEvent) *SessionEvent {
	return newEvent(EventSessionSubmitted, data)
}

func NewSessionResetEvent(data SessionResetEvent) *SessionEvent {
	return newEvent(EventSessionReset, data)
}

func NewTimeWarningEvent(data TimeWarningEvent) *SessionEvent {
	return newEvent(EventTimeWarning, data)
}

func NewClockExpiredEvent(data ClockExpiredEvent) *SessionEvent {
	return newEvent(EventClockExpired, data)
}

func NewGradingCorrectedEvent(data GradingCorrectedEvent) *SessionEvent {
	return newEvent(EventGradingCorrected, data)
}

// GenerateEventID returns a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
