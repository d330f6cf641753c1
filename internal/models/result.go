package models

import "time"

type QuestionDetail struct {
	Question      string   `bson:"question" json:"question" validate:"required"`
	Options       []string `bson:"options" json:"options"`
	CorrectAnswer string   `bson:"correct_answer" json:"correctAnswer"`
	UserAnswer    string   `bson:"user_answer" json:"userAnswer"`
	IsCorrect     bool     `bson:"is_correct" json:"isCorrect"`
	TimeTaken     *float64 `bson:"time_taken,omitempty" json:"timeTaken,omitempty" validate:"omitempty,gte=0"`
	Difficulty    string   `bson:"difficulty,omitempty" json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
}

type Feedback struct {
	Strengths       []string `bson:"strengths" json:"strengths"`
	Weaknesses      []string `bson:"weaknesses" json:"weaknesses"`
	Recommendations []string `bson:"recommendations" json:"recommendations"`
}

// QuizResult is written once per attempt. Only Applied changes afterwards,
// once the attempt has been folded into the student's record.
type QuizResult struct {
	ID             string           `bson:"_id" json:"id"`
	StudentID      string           `bson:"student_id" json:"studentId"`
	UserID         string           `bson:"user_id" json:"userId"`
	QuizTitle      string           `bson:"quiz_title" json:"quizTitle"`
	Topic          string           `bson:"topic" json:"topic"`
	Questions      []QuestionDetail `bson:"questions" json:"questions"`
	TotalQuestions int              `bson:"total_questions" json:"totalQuestions"`
	CorrectAnswers int              `bson:"correct_answers" json:"correctAnswers"`
	Score          float64          `bson:"score" json:"score"`
	RawScore       float64          `bson:"raw_score" json:"rawScore"`
	MaxScore       float64          `bson:"max_score" json:"maxScore"`
	TimeTaken      *float64         `bson:"time_taken,omitempty" json:"timeTaken,omitempty"`
	AttemptNumber  int              `bson:"attempt_number" json:"attemptNumber"`
	IsRetake       bool             `bson:"is_retake" json:"isRetake"`
	Difficulty     string           `bson:"difficulty" json:"difficulty"`
	Category       string           `bson:"category" json:"category"`
	Feedback       Feedback         `bson:"feedback" json:"feedback"`
	CompletedAt    time.Time        `bson:"completed_at" json:"completedAt"`
	Applied        bool             `bson:"applied" json:"-"`
}
