package models

import "time"

const (
	MaxRecentScores     = 10
	MaxAppliedResultIDs = 50
)

type RecentScore struct {
	Score     float64   `bson:"score" json:"score"`
	Topic     string    `bson:"topic" json:"topic"`
	Date      time.Time `bson:"date" json:"date"`
	QuizTitle string    `bson:"quiz_title" json:"quizTitle"`
}

type TopicPerformance struct {
	Topic        string    `bson:"topic" json:"topic"`
	AverageScore float64   `bson:"average_score" json:"averageScore"`
	QuizzesTaken int       `bson:"quizzes_taken" json:"quizzesTaken"`
	BestScore    float64   `bson:"best_score" json:"bestScore"`
	Improvement  float64   `bson:"improvement" json:"improvement"`
	LastAttempt  time.Time `bson:"last_attempt" json:"lastAttempt"`
}

type StreakData struct {
	CurrentStreak int        `bson:"current_streak" json:"currentStreak"`
	LongestStreak int        `bson:"longest_streak" json:"longestStreak"`
	LastQuizDate  *time.Time `bson:"last_quiz_date,omitempty" json:"lastQuizDate"`
}

type PerformanceMetrics struct {
	AverageScore      float64            `bson:"average_score" json:"averageScore"`
	BestScore         float64            `bson:"best_score" json:"bestScore"`
	WorstScore        float64            `bson:"worst_score" json:"worstScore"`
	TotalQuizzesTaken int                `bson:"total_quizzes_taken" json:"totalQuizzesTaken"`
	RecentScores      []RecentScore      `bson:"recent_scores" json:"recentScores"`
	TopicPerformance  []TopicPerformance `bson:"topic_performance" json:"topicPerformance"`
	StreakData        StreakData         `bson:"streak_data" json:"streakData"`
}

// StudentRecord is the per-student document. Identity fields are owned by the
// school directory; PerformanceMetrics and Achievements are owned here.
type StudentRecord struct {
	ID                 string             `bson:"_id,omitempty" json:"id"`
	UserID             string             `bson:"user_id" json:"userId"`
	Grade              string             `bson:"grade,omitempty" json:"grade,omitempty"`
	Class              string             `bson:"class,omitempty" json:"class,omitempty"`
	PerformanceMetrics PerformanceMetrics `bson:"performance_metrics" json:"performanceMetrics"`
	Achievements       []Achievement      `bson:"achievements" json:"achievements"`
	AppliedResultIDs   []string           `bson:"applied_result_ids" json:"-"`
	Version            int64              `bson:"version" json:"-"`
	CreatedAt          time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updatedAt"`
}

// NewStudentRecord returns a zero-valued record with the worst score seeded
// at the top of the percentage scale.
func NewStudentRecord(userID string, now time.Time) *StudentRecord {
	return &StudentRecord{
		UserID: userID,
		PerformanceMetrics: PerformanceMetrics{
			BestScore:        0,
			WorstScore:       100,
			RecentScores:     []RecentScore{},
			TopicPerformance: []TopicPerformance{},
		},
		Achievements:     []Achievement{},
		AppliedResultIDs: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (s *StudentRecord) HasApplied(resultID string) bool {
	for _, id := range s.AppliedResultIDs {
		if id == resultID {
			return true
		}
	}
	return false
}

// MarkApplied records resultID at the front of AppliedResultIDs, evicting the
// oldest ids beyond MaxAppliedResultIDs.
func (s *StudentRecord) MarkApplied(resultID string) {
	ids := make([]string, 0, len(s.AppliedResultIDs)+1)
	ids = append(ids, resultID)
	ids = append(ids, s.AppliedResultIDs...)
	if len(ids) > MaxAppliedResultIDs {
		ids = ids[:MaxAppliedResultIDs]
	}
	s.AppliedResultIDs = ids
}

func (s *StudentRecord) HasAchievement(title string) bool {
	for _, a := range s.Achievements {
		if a.Title == title {
			return true
		}
	}
	return false
}

// Clone deep-copies the record so a failed write attempt never leaks partial
// updates into the caller's copy.
func (s *StudentRecord) Clone() *StudentRecord {
	c := *s
	m := s.PerformanceMetrics
	m.RecentScores = append([]RecentScore(nil), m.RecentScores...)
	m.TopicPerformance = append([]TopicPerformance(nil), m.TopicPerformance...)
	if m.StreakData.LastQuizDate != nil {
		d := *m.StreakData.LastQuizDate
		m.StreakData.LastQuizDate = &d
	}
	c.PerformanceMetrics = m
	c.Achievements = append([]Achievement(nil), s.Achievements...)
	c.AppliedResultIDs = append([]string(nil), s.AppliedResultIDs...)
	return &c
}
