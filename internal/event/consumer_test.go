package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"performance-service/internal/apperr"
	"performance-service/internal/logger"
	"performance-service/internal/models"
	"performance-service/internal/service"
)

type fakeHandler struct {
	submitted  []models.SubmissionEvent
	reconciled []string
	err        error
}

func (h *fakeHandler) Submit(_ context.Context, userID string, sub models.Submission) (*service.SubmitOutcome, error) {
	if h.err != nil {
		return nil, h.err
	}
	h.submitted = append(h.submitted, models.SubmissionEvent{UserID: userID, Submission: sub})
	return &service.SubmitOutcome{Result: &models.QuizResult{ID: "r1"}, Status: service.StatusRecorded}, nil
}

func (h *fakeHandler) Reconcile(_ context.Context, userID string) (int, error) {
	if h.err != nil {
		return 0, h.err
	}
	h.reconciled = append(h.reconciled, userID)
	return 1, nil
}

func TestProcessSubmissionEnvelope(t *testing.T) {
	h := &fakeHandler{}
	c := newConsumer(h, logger.Nop())

	score := 72.5
	body, err := encode(QuizResultSubmit, models.SubmissionEvent{
		UserID:     "u1",
		Submission: models.Submission{QuizTitle: "Cells", Topic: "Biology", Score: &score},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if err := c.processMessage(context.Background(), QuizResultSubmit, body); err != nil {
		t.Fatalf("processMessage: %v", err)
	}
	if len(h.submitted) != 1 {
		t.Fatalf("submitted = %d, want 1", len(h.submitted))
	}
	got := h.submitted[0]
	if got.UserID != "u1" || got.Submission.Topic != "Biology" || *got.Submission.Score != 72.5 {
		t.Errorf("decoded submission = %+v", got)
	}
}

func TestProcessBareSubmission(t *testing.T) {
	h := &fakeHandler{}
	c := newConsumer(h, logger.Nop())

	body := []byte(`{"userId":"u2","submission":{"quizTitle":"Q","topic":"Math","score":40}}`)
	if err := c.processMessage(context.Background(), QuizResultSubmit, body); err != nil {
		t.Fatalf("processMessage: %v", err)
	}
	if len(h.submitted) != 1 || h.submitted[0].UserID != "u2" {
		t.Errorf("submitted = %+v", h.submitted)
	}
}

func TestProcessPendingEvent(t *testing.T) {
	h := &fakeHandler{}
	c := newConsumer(h, logger.Nop())

	body, _ := json.Marshal(Envelope{Type: PerformancePending, Payload: json.RawMessage(`{"userId":"u3","resultId":"r9"}`)})
	if err := c.processMessage(context.Background(), PerformancePending, body); err != nil {
		t.Fatalf("processMessage: %v", err)
	}
	if len(h.reconciled) != 1 || h.reconciled[0] != "u3" {
		t.Errorf("reconciled = %v", h.reconciled)
	}

	err := c.processMessage(context.Background(), PerformancePending, []byte(`{}`))
	if !errors.Is(err, errMalformed) {
		t.Errorf("empty pending event error = %v, want malformed", err)
	}
}

func TestProcessMalformedAndUnknown(t *testing.T) {
	c := newConsumer(&fakeHandler{}, logger.Nop())

	if err := c.processMessage(context.Background(), QuizResultSubmit, []byte(`not json`)); !errors.Is(err, errMalformed) {
		t.Errorf("error = %v, want malformed", err)
	}
	if err := c.processMessage(context.Background(), "something.else", []byte(`{}`)); err != nil {
		t.Errorf("unknown routing key should be dropped quietly, got %v", err)
	}
}

func TestShouldRequeue(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		redelivered bool
		want        bool
	}{
		{"malformed", errMalformed, false, false},
		{"validation", apperr.Validation("INVALID_SCORE", "score out of range"), false, false},
		{"transient first delivery", apperr.Persistence("RESULT_NOT_SAVED", errors.New("timeout")), false, true},
		{"transient redelivery", apperr.Persistence("RESULT_NOT_SAVED", errors.New("timeout")), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRequeue(tt.err, tt.redelivered); got != tt.want {
				t.Errorf("shouldRequeue = %v, want %v", got, tt.want)
			}
		})
	}
}
