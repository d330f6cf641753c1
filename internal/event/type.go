package event

import (
	"encoding/json"

	"performance-service/internal/service"
)

// Routing keys on the performance exchange.
const (
	QuizResultSubmit    = "quiz.result.submit"
	QuizResultRecorded  = service.EventResultRecorded
	AchievementUnlocked = service.EventAchievementUnlocked
	PerformancePending  = service.EventPerformancePending
)

// Envelope is the body of every message on the exchange.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type PendingEvent struct {
	UserID   string `json:"userId"`
	ResultID string `json:"resultId,omitempty"`
}
