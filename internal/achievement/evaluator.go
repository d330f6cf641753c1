// Package achievement evaluates unlock rules against a student's updated state.
package achievement

import (
	"errors"
	"fmt"
	"time"

	"performance-service/internal/models"
)

var ErrEvaluation = errors.New("achievement evaluation failed")

type Predicate func(student *models.StudentRecord, latest *models.QuizResult) bool

// Rule pairs an unlock condition with the achievement it grants. Title is the
// uniqueness key, so a rule fires at most once per student.
type Rule struct {
	Achievement models.Achievement
	Predicate   Predicate
}

type Catalog []Rule

type Evaluator struct {
	catalog Catalog
}

func NewEvaluator(catalog Catalog) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// Evaluate returns the achievements newly earned by student after latest.
// A panicking predicate yields ErrEvaluation and no achievements.
func (e *Evaluator) Evaluate(student *models.StudentRecord, latest *models.QuizResult, now time.Time) (unlocked []models.Achievement, err error) {
	defer func() {
		if r := recover(); r != nil {
			unlocked = nil
			err = fmt.Errorf("%w: %v", ErrEvaluation, r)
		}
	}()

	// catalog titles unlocked earlier in this call
	fired := map[string]bool{}
	for _, rule := range e.catalog {
		title := rule.Achievement.Title
		if fired[title] || student.HasAchievement(title) {
			continue
		}
		if rule.Predicate == nil || !rule.Predicate(student, latest) {
			continue
		}
		a := rule.Achievement
		a.EarnedAt = now
		unlocked = append(unlocked, a)
		fired[title] = true
	}
	return unlocked, nil
}
