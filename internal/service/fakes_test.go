package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"performance-service/internal/models"
	"performance-service/internal/repository"
)

type memStudentStore struct {
	mu       sync.Mutex
	byUser   map[string]*models.StudentRecord
	nextID   int
	writes   int
	failNext int   // UpdateIfVersion calls to fail with failErr
	failErr  error // defaults to ErrVersionConflict
	// onUpdate runs before the version check; tests use it to simulate a
	// concurrent writer.
	onUpdate func(s *memStudentStore)
}

func newMemStudentStore() *memStudentStore {
	return &memStudentStore{byUser: map[string]*models.StudentRecord{}}
}

func (m *memStudentStore) FindByUserID(_ context.Context, userID string) (*models.StudentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byUser[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memStudentStore) Create(_ context.Context, student *models.StudentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byUser[student.UserID]; ok {
		return repository.ErrDuplicate
	}
	m.nextID++
	student.ID = "student-" + strconv.Itoa(m.nextID)
	m.byUser[student.UserID] = student.Clone()
	return nil
}

func (m *memStudentStore) UpdateIfVersion(_ context.Context, student *models.StudentRecord, expected int64) error {
	m.mu.Lock()
	hook := m.onUpdate
	m.onUpdate = nil
	m.mu.Unlock()
	if hook != nil {
		hook(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		if m.failErr != nil {
			return m.failErr
		}
		return repository.ErrVersionConflict
	}
	cur, ok := m.byUser[student.UserID]
	if !ok || cur.Version != expected {
		return repository.ErrVersionConflict
	}
	student.Version = expected + 1
	m.byUser[student.UserID] = student.Clone()
	m.writes++
	return nil
}

func (m *memStudentStore) get(userID string) *models.StudentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byUser[userID]; ok {
		return s.Clone()
	}
	return nil
}

type memResultStore struct {
	mu        sync.Mutex
	results   []models.QuizResult
	users     memUsers
	insertErr error
	findErr   error
	finds     int
	// onFind runs once, before the next Find reads the store.
	onFind func()
}

func (m *memResultStore) Insert(_ context.Context, result *models.QuizResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.results = append(m.results, *result)
	return nil
}

func (m *memResultStore) MarkApplied(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for i := range m.results {
		if set[m.results[i].ID] {
			m.results[i].Applied = true
		}
	}
	return nil
}

func (m *memResultStore) CountAttempts(_ context.Context, userID, quizTitle, topic string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.results {
		if r.UserID == userID && r.QuizTitle == quizTitle && r.Topic == topic {
			n++
		}
	}
	return n, nil
}

func (m *memResultStore) match(q repository.ResultQuery) []models.QuizResult {
	out := []models.QuizResult{}
	for _, r := range m.results {
		if q.UserID != "" && r.UserID != q.UserID {
			continue
		}
		if q.Topic != "" && r.Topic != q.Topic {
			continue
		}
		if !q.Since.IsZero() && r.CompletedAt.Before(q.Since) {
			continue
		}
		if q.Unapplied && r.Applied {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (m *memResultStore) Count(_ context.Context, q repository.ResultQuery) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.match(q))), nil
}

func (m *memResultStore) Find(_ context.Context, q repository.ResultQuery) ([]models.QuizResult, error) {
	m.mu.Lock()
	hook := m.onFind
	m.onFind = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	if m.findErr != nil {
		return nil, m.findErr
	}
	out := m.match(q)
	older := func(a, b models.QuizResult) bool {
		if a.CompletedAt.Equal(b.CompletedAt) {
			return a.ID < b.ID
		}
		return a.CompletedAt.Before(b.CompletedAt)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.Ascending {
			return older(out[i], out[j])
		}
		return older(out[j], out[i])
	})
	if q.Skip > 0 {
		if int(q.Skip) >= len(out) {
			return []models.QuizResult{}, nil
		}
		out = out[q.Skip:]
	}
	if q.Limit > 0 && int(q.Limit) < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

// Leaderboard groups like the aggregation pipeline: users missing from the
// directory are dropped, rows are ranked and cut to limit.
func (m *memResultStore) Leaderboard(_ context.Context, topic string, since time.Time, limit int) ([]models.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byUser := map[string]*models.UserStats{}
	var order []string
	for _, r := range m.match(repository.ResultQuery{Topic: topic, Since: since}) {
		u, known := m.users[r.UserID]
		if !known {
			continue
		}
		st, ok := byUser[r.UserID]
		if !ok {
			st = &models.UserStats{UserID: r.UserID, Name: u.Name, CreatedAt: u.CreatedAt}
			byUser[r.UserID] = st
			order = append(order, r.UserID)
		}
		st.AverageScore = (st.AverageScore*float64(st.TotalQuizzes) + r.Score) / float64(st.TotalQuizzes+1)
		st.TotalQuizzes++
		if r.Score > st.BestScore {
			st.BestScore = r.Score
		}
	}
	out := make([]models.UserStats, 0, len(order))
	for _, id := range order {
		out = append(out, *byUser[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AverageScore != out[j].AverageScore {
			return out[i].AverageScore > out[j].AverageScore
		}
		if out[i].TotalQuizzes != out[j].TotalQuizzes {
			return out[i].TotalQuizzes > out[j].TotalQuizzes
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memResultStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

func (m *memResultStore) unappliedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.results {
		if !r.Applied {
			n++
		}
	}
	return n
}

type memUsers map[string]models.User

type memCache struct {
	mu          sync.Mutex
	analytics   map[string]*models.Analytics
	generations map[string]int64
	leaderboard map[string][]models.LeaderboardEntry
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{
		analytics:   map[string]*models.Analytics{},
		generations: map[string]int64{},
		leaderboard: map[string][]models.LeaderboardEntry{},
	}
}

func (c *memCache) GetAnalytics(_ context.Context, userID string, windowDays int) (*models.Analytics, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.analytics[userID+":"+strconv.Itoa(windowDays)]
	return a, ok, nil
}

func (c *memCache) AnalyticsGeneration(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[userID], nil
}

func (c *memCache) SetAnalytics(_ context.Context, userID string, windowDays int, generation int64, a *models.Analytics) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[userID] != generation {
		return repository.ErrStaleGeneration
	}
	c.analytics[userID+":"+strconv.Itoa(windowDays)] = a
	return nil
}

func (c *memCache) InvalidateUser(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.analytics {
		if len(k) > len(userID) && k[:len(userID)+1] == userID+":" {
			delete(c.analytics, k)
		}
	}
	c.generations[userID]++
	c.invalidated = append(c.invalidated, userID)
	return nil
}

func (c *memCache) GetLeaderboard(_ context.Context, topic string, windowDays int) ([]models.LeaderboardEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.leaderboard[topic+":"+strconv.Itoa(windowDays)]
	return e, ok, nil
}

func (c *memCache) SetLeaderboard(_ context.Context, topic string, windowDays int, entries []models.LeaderboardEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaderboard[topic+":"+strconv.Itoa(windowDays)] = entries
	return nil
}

type publishedEvent struct {
	Type    string
	Payload interface{}
}

type memPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *memPublisher) Publish(eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: eventType, Payload: payload})
	return nil
}

func (p *memPublisher) ofType(eventType string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

var errStoreDown = errors.New("store unavailable")
