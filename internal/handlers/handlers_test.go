package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"performance-service/internal/apperr"
	"performance-service/internal/models"
	"performance-service/internal/service"
)

type stubResults struct {
	outcome   *service.SubmitOutcome
	err       error
	lastUser  string
	lastSub   models.Submission
	lastQuery service.HistoryQuery
}

func (s *stubResults) Submit(_ context.Context, userID string, sub models.Submission) (*service.SubmitOutcome, error) {
	s.lastUser, s.lastSub = userID, sub
	return s.outcome, s.err
}

func (s *stubResults) Reconcile(_ context.Context, userID string) (int, error) {
	s.lastUser = userID
	return 2, s.err
}

func (s *stubResults) Performance(_ context.Context, userID string) (*models.StudentRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.StudentRecord{UserID: userID, PerformanceMetrics: models.PerformanceMetrics{TotalQuizzesTaken: 3}}, nil
}

func (s *stubResults) History(_ context.Context, userID string, q service.HistoryQuery) (*service.HistoryPage, error) {
	s.lastUser, s.lastQuery = userID, q
	return &service.HistoryPage{Results: []models.QuizResult{}, CurrentPage: q.Page}, s.err
}

type stubAnalytics struct {
	days  int
	topic string
	err   error
}

func (s *stubAnalytics) Analytics(_ context.Context, _ string, windowDays int) (*models.Analytics, error) {
	s.days = windowDays
	if s.err != nil {
		return nil, s.err
	}
	return &models.Analytics{TotalQuizzes: 4}, nil
}

func (s *stubAnalytics) Leaderboard(_ context.Context, topic string, windowDays int) ([]models.LeaderboardEntry, error) {
	s.days, s.topic = windowDays, topic
	return []models.LeaderboardEntry{{UserID: "u1", Name: "Ana", AverageScore: 91.3}}, s.err
}

func newTestRouter(r *stubResults, a *stubAnalytics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	RegisterRoutes(engine, NewResultHandler(r), NewAnalyticsHandler(a))
	return engine
}

func do(engine *gin.Engine, method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestSubmitResultStatusCodes(t *testing.T) {
	tests := []struct {
		name    string
		outcome *service.SubmitOutcome
		err     error
		status  int
		code    string
	}{
		{"recorded", &service.SubmitOutcome{Status: service.StatusRecorded}, nil, http.StatusCreated, ""},
		{"pending", &service.SubmitOutcome{Status: service.StatusPending}, nil, http.StatusAccepted, ""},
		{"invalid", nil, apperr.Validation("INVALID_SCORE", "score out of range"), http.StatusBadRequest, "INVALID_SCORE"},
		{"store down", nil, apperr.Persistence("RESULT_NOT_SAVED", errors.New("timeout")), http.StatusServiceUnavailable, "RESULT_NOT_SAVED"},
		{"unexpected", nil, errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubResults{outcome: tt.outcome, err: tt.err}
			w := do(newTestRouter(stub, &stubAnalytics{}), http.MethodPost, "/protected/performance/results", "u1",
				`{"quizTitle":"Cells","topic":"Biology","score":88,"totalQuestions":2,"correctAnswers":2}`)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if stub.lastUser != "u1" || stub.lastSub.Topic != "Biology" || stub.lastSub.Score == nil || *stub.lastSub.Score != 88 {
				t.Errorf("service saw user %q submission %+v", stub.lastUser, stub.lastSub)
			}
			if tt.code != "" {
				var body map[string]string
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if body["code"] != tt.code {
					t.Errorf("code = %q, want %q", body["code"], tt.code)
				}
				if tt.code == "INTERNAL_ERROR" && body["error"] == "boom" {
					t.Error("internal error message leaked")
				}
			}
		})
	}
}

func TestSubmitResultBadJSON(t *testing.T) {
	stub := &stubResults{}
	w := do(newTestRouter(stub, &stubAnalytics{}), http.MethodPost, "/protected/performance/results", "u1", `{"score":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if stub.lastUser != "" {
		t.Error("service called with malformed body")
	}
}

func TestProtectedRoutesRequireUser(t *testing.T) {
	engine := newTestRouter(&stubResults{}, &stubAnalytics{})
	for _, path := range []string{"/protected/performance/me", "/protected/performance/analytics", "/protected/performance/results/history"} {
		if w := do(engine, http.MethodGet, path, "", ""); w.Code != http.StatusUnauthorized {
			t.Errorf("%s without user: status %d, want 401", path, w.Code)
		}
	}
}

func TestHistoryQuery(t *testing.T) {
	stub := &stubResults{}
	engine := newTestRouter(stub, &stubAnalytics{})

	w := do(engine, http.MethodGet, "/protected/performance/results/history?page=3&limit=5&topic=Algebra", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	want := service.HistoryQuery{Page: 3, Limit: 5, Topic: "Algebra"}
	if stub.lastQuery != want {
		t.Errorf("query = %+v, want %+v", stub.lastQuery, want)
	}

	if w := do(engine, http.MethodGet, "/protected/performance/results/history?page=two", "u1", ""); w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric page: status %d, want 400", w.Code)
	}
}

func TestGetPerformance(t *testing.T) {
	engine := newTestRouter(&stubResults{}, &stubAnalytics{})
	w := do(engine, http.MethodGet, "/protected/performance/me", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		PerformanceMetrics models.PerformanceMetrics `json:"performanceMetrics"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.PerformanceMetrics.TotalQuizzesTaken != 3 {
		t.Errorf("totalQuizzesTaken = %d, want 3", body.PerformanceMetrics.TotalQuizzesTaken)
	}

	missing := newTestRouter(&stubResults{err: apperr.NotFound("STUDENT_NOT_FOUND", errors.New("no record"))}, &stubAnalytics{})
	if w := do(missing, http.MethodGet, "/protected/performance/me", "u1", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing student: status %d, want 404", w.Code)
	}
}

func TestAnalyticsTimeframe(t *testing.T) {
	stub := &stubAnalytics{}
	engine := newTestRouter(&stubResults{}, stub)

	if w := do(engine, http.MethodGet, "/protected/performance/analytics", "u1", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if stub.days != service.DefaultAnalyticsWindow {
		t.Errorf("default window = %d, want %d", stub.days, service.DefaultAnalyticsWindow)
	}

	do(engine, http.MethodGet, "/protected/performance/analytics?timeframe=7", "u1", "")
	if stub.days != 7 {
		t.Errorf("window = %d, want 7", stub.days)
	}
}

func TestLeaderboardIsPublic(t *testing.T) {
	stub := &stubAnalytics{}
	engine := newTestRouter(&stubResults{}, stub)

	w := do(engine, http.MethodGet, "/public/performance/leaderboard?topic=Algebra", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if stub.topic != "Algebra" || stub.days != service.DefaultLeaderboardWindow {
		t.Errorf("leaderboard called with %q/%d", stub.topic, stub.days)
	}
	var body struct {
		Leaderboard []models.LeaderboardEntry `json:"leaderboard"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Leaderboard) != 1 || body.Leaderboard[0].AverageScore != 91.3 {
		t.Errorf("leaderboard = %+v", body.Leaderboard)
	}
}

func TestHealth(t *testing.T) {
	w := do(newTestRouter(&stubResults{}, &stubAnalytics{}), http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
