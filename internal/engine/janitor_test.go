package engine

import (
	"context"
	"testing"
	"time"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/store/memory"
)

func TestJanitorReclaimsStaleSessions(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	st := memory.NewWithClock(now)
	e := NewWithClock(st, sampleQuizzes(), nil, now, time.After)

	stale, err := e.Host(ctx, domain.Identity{ID: "host-1", DisplayName: "Teach"}, "quiz-1")
	if err != nil {
		t.Fatalf("host stale: %v", err)
	}

	current = current.Add(30 * time.Minute)
	fresh, err := e.Host(ctx, domain.Identity{ID: "host-2", DisplayName: "Coach"}, "quiz-1")
	if err != nil {
		t.Fatalf("host fresh: %v", err)
	}

	j := NewJanitor(e, 20*time.Minute, time.Minute)
	reclaimed, err := j.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed session, got %d", reclaimed)
	}
	if _, err := st.GetSession(ctx, stale.ID); err != domain.ErrSessionNotFound {
		t.Fatalf("expected stale session deleted, got %v", err)
	}
	if _, err := st.GetSession(ctx, fresh.ID); err != nil {
		t.Fatalf("expected fresh session kept, got %v", err)
	}
}

func TestJanitorHonorsActivityTouch(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	st := memory.NewWithClock(now)
	e := NewWithClock(st, sampleQuizzes(), nil, now, time.After)

	sess, err := e.Host(ctx, domain.Identity{ID: "host-1", DisplayName: "Teach"}, "quiz-1")
	if err != nil {
		t.Fatalf("host: %v", err)
	}

	current = current.Add(15 * time.Minute)
	if _, _, err := e.Join(ctx, sess.Code, domain.Identity{ID: "g1", DisplayName: "Alice", IsGuest: true}, "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	current = current.Add(10 * time.Minute)

	// 25 minutes since creation, but only 10 since the last join touch.
	j := NewJanitor(e, 20*time.Minute, time.Minute)
	reclaimed, err := j.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("expected nothing reclaimed, got %d", reclaimed)
	}
}

func sampleQuizzes() staticQuizzes {
	return staticQuizzes{
		"quiz-1": {
			ID:      "quiz-1",
			Title:   "Capitals",
			OwnerID: "host-1",
			Questions: []domain.Question{
				{
					ID: "q1", QuizID: "quiz-1", Text: "What is 2 + 2?",
					Type: domain.MultipleChoice, TimeLimitSeconds: 30, OrderIndex: 0,
					Answers: []domain.Answer{
						{ID: "a1", QuestionID: "q1", Text: "3", IsCorrect: false},
						{ID: "a2", QuestionID: "q1", Text: "4", IsCorrect: true},
						{ID: "a3", QuestionID: "q1", Text: "5", IsCorrect: false},
					},
				},
				{
					ID: "q2", QuizID: "quiz-1", Text: "Capital of France?",
					Type: domain.ShortAnswer, TimeLimitSeconds: 20, OrderIndex: 1,
					Answers: []domain.Answer{
						{ID: "sa1", QuestionID: "q2", Text: "Paris", IsCorrect: true},
					},
				},
			},
		},
	}
}
