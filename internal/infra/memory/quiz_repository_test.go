package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"livequiz-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuizRepositoryRejectsInvalidContent(t *testing.T) {
	broken := sampleQuiz()
	broken.Questions[0].Answers = nil // multiple choice with no answers
	loader := NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": broken})
	repo := NewQuizRepository(loader, time.Minute)

	_, err := repo.GetQuiz(context.Background(), "quiz-1")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:      "quiz-1",
		Title:   "Arithmetic",
		OwnerID: "host-1",
		Questions: []domain.Question{
			{
				ID: "q1", QuizID: "quiz-1", Text: "What is 2 + 2?",
				Type: domain.MultipleChoice, TimeLimitSeconds: 30, OrderIndex: 0,
				Answers: []domain.Answer{
					{ID: "a1", QuestionID: "q1", Text: "3", IsCorrect: false},
					{ID: "a2", QuestionID: "q1", Text: "4", IsCorrect: true},
				},
			},
		},
	}
}
