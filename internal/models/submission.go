package models

const (
	DefaultDifficulty = "medium"
	DefaultCategory   = "general"
)

// Submission is the inbound "submit quiz result" event.
type Submission struct {
	QuizTitle      string           `json:"quizTitle" validate:"required"`
	Topic          string           `json:"topic" validate:"required"`
	Questions      []QuestionDetail `json:"questions" validate:"dive"`
	TotalQuestions int              `json:"totalQuestions" validate:"gte=0"`
	CorrectAnswers int              `json:"correctAnswers" validate:"gte=0,ltefield=TotalQuestions"`
	Score          *float64         `json:"score" validate:"required,gte=0,lte=100"`
	RawScore       float64          `json:"rawScore" validate:"gte=0"`
	MaxScore       float64          `json:"maxScore" validate:"gte=0"`
	TimeTaken      *float64         `json:"timeTaken,omitempty" validate:"omitempty,gte=0"`
	Difficulty     string           `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	Category       string           `json:"category,omitempty"`
}

// SubmissionEvent is the AMQP envelope for a submission arriving off the bus.
type SubmissionEvent struct {
	UserID     string     `json:"userId"`
	Submission Submission `json:"submission"`
}
