package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"performance-service/internal/achievement"
	"performance-service/internal/apperr"
	"performance-service/internal/config"
	"performance-service/internal/logger"
	"performance-service/internal/metrics"
	"performance-service/internal/models"
	"performance-service/internal/observability"
	"performance-service/internal/repository"
	"performance-service/internal/stats"
	"performance-service/internal/topic"
)

const (
	StatusRecorded = "recorded"
	StatusPending  = "pending"

	EventResultRecorded      = "quiz.result.recorded"
	EventAchievementUnlocked = "achievement.unlocked"
	EventPerformancePending  = "performance.pending"
)

type SubmitOutcome struct {
	Result          *models.QuizResult        `json:"result"`
	Performance     models.PerformanceMetrics `json:"performance"`
	NewAchievements []models.Achievement      `json:"newAchievements"`
	Status          string                    `json:"status"`
	Message         string                    `json:"message"`
}

type HistoryQuery struct {
	Page  int
	Limit int
	Topic string
}

type HistoryPage struct {
	Results     []models.QuizResult `json:"results"`
	TotalPages  int                 `json:"totalPages"`
	CurrentPage int                 `json:"currentPage"`
	Total       int64               `json:"total"`
}

type ResultServiceDeps struct {
	Students  StudentStore
	Results   ResultStore
	Evaluator *achievement.Evaluator
	Publisher Publisher
	Cache     Cache
	Clock     stats.Clock
	Log       *logger.Logger
}

// ResultService records quiz attempts and folds them into the student's
// performance metrics and achievements.
type ResultService struct {
	students  StudentStore
	results   ResultStore
	evaluator *achievement.Evaluator
	publisher Publisher
	cache     Cache
	clock     stats.Clock
	log       *logger.Logger
	validate  *validator.Validate
	locks     *keyedMutex

	storeTimeout   time.Duration
	maxRetries     int
	reconcileBatch int64
}

func NewResultService(deps ResultServiceDeps, cfg config.PerformanceConfig) *ResultService {
	s := &ResultService{
		students:       deps.Students,
		results:        deps.Results,
		evaluator:      deps.Evaluator,
		publisher:      deps.Publisher,
		cache:          deps.Cache,
		clock:          deps.Clock,
		log:            deps.Log,
		validate:       validator.New(),
		locks:          newKeyedMutex(),
		storeTimeout:   cfg.StoreTimeout,
		maxRetries:     cfg.MaxApplyRetries,
		reconcileBatch: int64(cfg.ReconcileBatch),
	}
	if s.evaluator == nil {
		s.evaluator = achievement.NewEvaluator(achievement.DefaultCatalog())
	}
	if s.cache == nil {
		s.cache = noopCache{}
	}
	if s.clock == nil {
		s.clock = stats.SystemClock{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = 5 * time.Second
	}
	if s.maxRetries < 0 {
		s.maxRetries = 0
	}
	if s.reconcileBatch <= 0 || s.reconcileBatch > models.MaxAppliedResultIDs {
		s.reconcileBatch = models.MaxAppliedResultIDs
	}
	return s
}

// Submit grades nothing: it stores the already graded attempt, then applies
// it (and any earlier attempt still pending) to the student's record. If the
// attempt is stored but not applied, because the update failed or older
// pending attempts filled the batch, the outcome status is StatusPending and
// a reconciliation event is published.
func (s *ResultService) Submit(ctx context.Context, userID string, sub models.Submission) (*SubmitOutcome, error) {
	ctx, span := observability.Tracer().Start(ctx, "ResultService.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	started := time.Now()
	status := "failed"
	defer func() {
		metrics.Submissions.WithLabelValues(status).Inc()
		metrics.SubmitDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
	}()

	if err := s.validateSubmission(userID, &sub); err != nil {
		status = "rejected"
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	student, err := s.loadOrCreateStudent(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var prior int64
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		prior, err = s.results.CountAttempts(ctx, userID, sub.QuizTitle, sub.Topic)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, apperr.Persistence("RESULT_STORE_UNAVAILABLE", fmt.Errorf("count attempts: %w", err))
	}

	result := s.buildResult(student, userID, sub, prior)
	if err := s.withTimeout(ctx, func(ctx context.Context) error { return s.results.Insert(ctx, result) }); err != nil {
		span.RecordError(err)
		return nil, apperr.Persistence("RESULT_NOT_SAVED", fmt.Errorf("insert quiz result: %w", err))
	}

	pending, err := s.loadPending(ctx, student)
	if err != nil {
		status = StatusPending
		s.log.Warn("could not load pending results, deferring update",
			"user_id", userID, "result_id", result.ID, "error", err)
		return s.pendingOutcome(student, result), nil
	}
	updated, unlocked, err := s.applyWithRetry(ctx, student, pending)
	if err != nil {
		status = StatusPending
		s.log.Warn("quiz recorded but performance update pending",
			"user_id", userID, "result_id", result.ID, "error", err)
		return s.pendingOutcome(student, result), nil
	}
	s.markApplied(ctx, userID, pending)
	s.afterApply(ctx, userID, unlocked)

	if !containsResult(pending, result.ID) {
		// older backlog filled the batch; the rest drains through reconciliation
		status = StatusPending
		s.log.Warn("pending backlog exceeds batch, latest result deferred",
			"user_id", userID, "result_id", result.ID, "batch", s.reconcileBatch)
		out := s.pendingOutcome(updated, result)
		out.NewAchievements = nonNil(unlocked)
		return out, nil
	}

	status = StatusRecorded
	s.publish(EventResultRecorded, map[string]interface{}{
		"userId":        userID,
		"resultId":      result.ID,
		"topic":         result.Topic,
		"score":         result.Score,
		"attemptNumber": result.AttemptNumber,
		"completedAt":   result.CompletedAt,
	})

	return &SubmitOutcome{
		Result:          result,
		Performance:     updated.PerformanceMetrics,
		NewAchievements: nonNil(unlocked),
		Status:          StatusRecorded,
		Message:         "Quiz submitted successfully",
	}, nil
}

// Reconcile applies, oldest first, up to one batch of stored results that have
// not yet been folded into the student's record. It returns how many results
// were applied.
func (s *ResultService) Reconcile(ctx context.Context, userID string) (int, error) {
	ctx, span := observability.Tracer().Start(ctx, "ResultService.Reconcile")
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return 0, apperr.Validation("MISSING_USER_ID", "user id is required")
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	student, err := s.findStudent(ctx, userID)
	if err != nil {
		return 0, err
	}

	pending, err := s.loadPending(ctx, student)
	if err != nil {
		return 0, apperr.Persistence("RESULT_STORE_UNAVAILABLE", fmt.Errorf("load pending results: %w", err))
	}
	if len(pending) == 0 {
		return 0, nil
	}

	_, unlocked, err := s.applyWithRetry(ctx, student, pending)
	if err != nil {
		return 0, err
	}
	s.markApplied(ctx, userID, pending)
	metrics.ReconciledResults.Add(float64(len(pending)))
	s.log.Info("reconciled pending results", "user_id", userID, "applied", len(pending))
	s.afterApply(ctx, userID, unlocked)
	return len(pending), nil
}

func (s *ResultService) Performance(ctx context.Context, userID string) (*models.StudentRecord, error) {
	return s.findStudent(ctx, userID)
}

func (s *ResultService) History(ctx context.Context, userID string, q HistoryQuery) (*HistoryPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	query := repository.ResultQuery{
		UserID: userID,
		Topic:  q.Topic,
		Skip:   int64((q.Page - 1) * q.Limit),
		Limit:  int64(q.Limit),
	}

	var results []models.QuizResult
	var total int64
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		if results, err = s.results.Find(ctx, query); err != nil {
			return err
		}
		total, err = s.results.Count(ctx, repository.ResultQuery{UserID: userID, Topic: q.Topic})
		return err
	})
	if err != nil {
		return nil, apperr.Persistence("RESULT_STORE_UNAVAILABLE", fmt.Errorf("load history: %w", err))
	}
	return &HistoryPage{
		Results:     results,
		TotalPages:  int(math.Ceil(float64(total) / float64(q.Limit))),
		CurrentPage: q.Page,
		Total:       total,
	}, nil
}

func (s *ResultService) validateSubmission(userID string, sub *models.Submission) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.Validation("MISSING_USER_ID", "user id is required")
	}
	if sub.Score != nil && (math.IsNaN(*sub.Score) || math.IsInf(*sub.Score, 0)) {
		return apperr.Validation("INVALID_SCORE", "score must be a finite number")
	}
	if err := s.validate.Struct(sub); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			code := "INVALID_SUBMISSION"
			if verrs[0].StructField() == "Score" {
				code = "INVALID_SCORE"
			}
			return apperr.Validation(code, "invalid submission: %s", strings.Join(msgs, "; "))
		}
		return apperr.Validation("INVALID_SUBMISSION", "invalid submission: %v", err)
	}
	return nil
}

func (s *ResultService) buildResult(student *models.StudentRecord, userID string, sub models.Submission, prior int64) *models.QuizResult {
	difficulty := sub.Difficulty
	if difficulty == "" {
		difficulty = models.DefaultDifficulty
	}
	category := sub.Category
	if category == "" {
		category = models.DefaultCategory
	}
	questions := sub.Questions
	if questions == nil {
		questions = []models.QuestionDetail{}
	}
	score := *sub.Score
	return &models.QuizResult{
		ID:             uuid.NewString(),
		StudentID:      student.ID,
		UserID:         userID,
		QuizTitle:      sub.QuizTitle,
		Topic:          sub.Topic,
		Questions:      questions,
		TotalQuestions: sub.TotalQuestions,
		CorrectAnswers: sub.CorrectAnswers,
		Score:          score,
		RawScore:       sub.RawScore,
		MaxScore:       sub.MaxScore,
		TimeTaken:      sub.TimeTaken,
		AttemptNumber:  int(prior) + 1,
		IsRetake:       prior > 0,
		Difficulty:     difficulty,
		Category:       category,
		Feedback:       GenerateFeedback(questions, score, sub.Topic),
		CompletedAt:    s.clock.Now(),
	}
}

func (s *ResultService) findStudent(ctx context.Context, userID string) (*models.StudentRecord, error) {
	var student *models.StudentRecord
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		student, err = s.students.FindByUserID(ctx, userID)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("STUDENT_NOT_FOUND", fmt.Errorf("no performance record for user %s", userID))
	}
	if err != nil {
		return nil, apperr.Persistence("STUDENT_STORE_UNAVAILABLE", err)
	}
	return student, nil
}

func (s *ResultService) loadOrCreateStudent(ctx context.Context, userID string) (*models.StudentRecord, error) {
	student, err := s.findStudent(ctx, userID)
	if err == nil {
		return student, nil
	}
	if apperr.KindOf(err) != apperr.KindNotFound {
		return nil, err
	}

	student = models.NewStudentRecord(userID, s.clock.Now())
	err = s.withTimeout(ctx, func(ctx context.Context) error { return s.students.Create(ctx, student) })
	if errors.Is(err, repository.ErrDuplicate) {
		// another instance created it first
		return s.findStudent(ctx, userID)
	}
	if err != nil {
		return nil, apperr.Persistence("STUDENT_NOT_CREATED", fmt.Errorf("create student: %w", err))
	}
	s.log.Info("created performance record", "user_id", userID, "student_id", student.ID)
	return student, nil
}

// loadPending returns, oldest first, up to one batch of the user's results
// not yet flagged as applied. Results the record already lists (a crash
// between the record write and the flag write) are flagged and skipped.
func (s *ResultService) loadPending(ctx context.Context, student *models.StudentRecord) ([]models.QuizResult, error) {
	var results []models.QuizResult
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		results, err = s.results.Find(ctx, repository.ResultQuery{
			UserID:    student.UserID,
			Unapplied: true,
			Ascending: true,
			Limit:     s.reconcileBatch,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	pending, leftover := splitApplied(student, results)
	if len(leftover) > 0 {
		s.markApplied(ctx, student.UserID, leftover)
	}
	return pending, nil
}

func splitApplied(student *models.StudentRecord, results []models.QuizResult) (pending, applied []models.QuizResult) {
	pending = make([]models.QuizResult, 0, len(results))
	for _, r := range results {
		if student.HasApplied(r.ID) {
			applied = append(applied, r)
			continue
		}
		pending = append(pending, r)
	}
	return pending, applied
}

// markApplied flags results after their record write. A failure only delays
// the flag: the next load sees the ids in the record and flags them then.
func (s *ResultService) markApplied(ctx context.Context, userID string, results []models.QuizResult) {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	err := s.withTimeout(ctx, func(ctx context.Context) error { return s.results.MarkApplied(ctx, ids) })
	if err != nil {
		s.log.Warn("failed to flag applied results", "user_id", userID, "count", len(ids), "error", err)
	}
}

func containsResult(results []models.QuizResult, id string) bool {
	for _, r := range results {
		if r.ID == id {
			return true
		}
	}
	return false
}

// pendingOutcome reports a stored result whose record update was deferred and
// asks this service's consumer to reconcile the user.
func (s *ResultService) pendingOutcome(student *models.StudentRecord, result *models.QuizResult) *SubmitOutcome {
	s.publish(EventPerformancePending, map[string]interface{}{
		"userId":   result.UserID,
		"resultId": result.ID,
	})
	return &SubmitOutcome{
		Result:          result,
		Performance:     student.PerformanceMetrics,
		NewAchievements: []models.Achievement{},
		Status:          StatusPending,
		Message:         "Quiz recorded but performance update pending",
	}
}

func nonNil(a []models.Achievement) []models.Achievement {
	if a == nil {
		return []models.Achievement{}
	}
	return a
}

// applyWithRetry folds results into a copy of student and writes it with a
// version check. On conflict it re-reads and re-applies, skipping results the
// winner already applied.
func (s *ResultService) applyWithRetry(ctx context.Context, student *models.StudentRecord, results []models.QuizResult) (*models.StudentRecord, []models.Achievement, error) {
	current := student
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			fresh, err := s.findStudent(ctx, student.UserID)
			if err != nil {
				lastErr = err
				continue
			}
			current = fresh
		}

		next := current.Clone()
		var unlocked []models.Achievement
		applied := 0
		for i := range results {
			if next.HasApplied(results[i].ID) {
				continue
			}
			unlocked = append(unlocked, s.applyResult(next, &results[i])...)
			applied++
		}
		if applied == 0 {
			return current, nil, nil
		}
		next.UpdatedAt = s.clock.Now()

		err := s.withTimeout(ctx, func(ctx context.Context) error {
			return s.students.UpdateIfVersion(ctx, next, current.Version)
		})
		if err == nil {
			return next, unlocked, nil
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			metrics.VersionConflicts.Inc()
			s.log.Debug("student version conflict, retrying", "user_id", student.UserID, "attempt", attempt+1)
		} else {
			s.log.Warn("student update failed", "user_id", student.UserID, "attempt", attempt+1, "error", err)
		}
		lastErr = err
	}
	return nil, nil, apperr.Persistence("PERFORMANCE_UPDATE_FAILED",
		fmt.Errorf("update student %s after %d attempts: %w", student.UserID, s.maxRetries+1, lastErr))
}

// applyResult mutates student with one result and returns the achievements it
// unlocked. Evaluation faults are logged and yield no achievements.
func (s *ResultService) applyResult(student *models.StudentRecord, result *models.QuizResult) []models.Achievement {
	m := &student.PerformanceMetrics
	m.TotalQuizzesTaken++
	m.BestScore, m.WorstScore = stats.UpdateExtremes(m.BestScore, m.WorstScore, result.Score)
	m.RecentScores = stats.PushRecentScore(m.RecentScores, models.RecentScore{
		Score:     result.Score,
		Topic:     result.Topic,
		Date:      result.CompletedAt,
		QuizTitle: result.QuizTitle,
	}, models.MaxRecentScores)
	m.AverageScore = stats.RunningAverage(m.RecentScores)
	m.TopicPerformance, _ = topic.RecordAttempt(m.TopicPerformance, result.Topic, result.Score, result.CompletedAt)
	m.StreakData = stats.AdvanceStreak(m.StreakData, result.CompletedAt)
	student.MarkApplied(result.ID)

	unlocked, err := s.evaluator.Evaluate(student, result, result.CompletedAt)
	if err != nil {
		metrics.AchievementErrors.Inc()
		s.log.Error("achievement evaluation failed, skipping", "user_id", student.UserID, "result_id", result.ID, "error", err)
		return nil
	}
	student.Achievements = append(student.Achievements, unlocked...)
	return unlocked
}

func (s *ResultService) afterApply(ctx context.Context, userID string, unlocked []models.Achievement) {
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.log.Warn("failed to invalidate analytics cache", "user_id", userID, "error", err)
	}
	for _, a := range unlocked {
		metrics.AchievementsUnlocked.WithLabelValues(a.Title).Inc()
		s.log.Info("achievement unlocked", "user_id", userID, "title", a.Title)
		s.publish(EventAchievementUnlocked, map[string]interface{}{
			"userId":      userID,
			"achievement": a,
		})
	}
}

func (s *ResultService) publish(eventType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(eventType, payload); err != nil {
		s.log.Warn("failed to publish event", "type", eventType, "error", err)
	}
}

func (s *ResultService) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return fn(ctx)
}
