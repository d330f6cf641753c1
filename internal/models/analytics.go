package models

import "time"

type TopicBreakdown struct {
	Count        int     `json:"count"`
	TotalScore   float64 `json:"totalScore"`
	AverageScore float64 `json:"averageScore"`
	Mastery      string  `json:"mastery"`
}

type TrendPoint struct {
	Score     float64   `json:"score"`
	Topic     string    `json:"topic"`
	Date      time.Time `json:"date"`
	QuizTitle string    `json:"quizTitle"`
}

type DayActivity struct {
	Date    time.Time `json:"date"`
	Count   int       `json:"count"`
	Weekday string    `json:"weekday"`
}

type Analytics struct {
	TotalQuizzes     int                       `json:"totalQuizzes"`
	AverageScore     float64                   `json:"averageScore"`
	BestScore        float64                   `json:"bestScore"`
	WorstScore       float64                   `json:"worstScore"`
	Consistency      int                       `json:"consistency"`
	TopicBreakdown   map[string]TopicBreakdown `json:"topicBreakdown"`
	PerformanceTrend []TrendPoint              `json:"performanceTrend"`
	RecentActivity   []QuizResult              `json:"recentActivity"`
	WeeklyActivity   []DayActivity             `json:"weeklyActivity"`
}

type LeaderboardEntry struct {
	UserID       string  `json:"userId"`
	Name         string  `json:"name"`
	AverageScore float64 `json:"averageScore"`
	TotalQuizzes int     `json:"totalQuizzes"`
	BestScore    float64 `json:"bestScore"`
}

// UserStats is one user's aggregate over a leaderboard window, joined with
// the user's directory entry.
type UserStats struct {
	UserID       string    `bson:"_id"`
	AverageScore float64   `bson:"average_score"`
	TotalQuizzes int       `bson:"total_quizzes"`
	BestScore    float64   `bson:"best_score"`
	Name         string    `bson:"name"`
	CreatedAt    time.Time `bson:"created_at"`
}

type User struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
