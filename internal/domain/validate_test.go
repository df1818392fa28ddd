package domain

import "testing"

func validQuiz() Quiz {
	return Quiz{
		ID:    "quiz-1",
		Title: "Geography",
		Questions: []Question{
			{
				ID: "q1", Text: "Largest ocean?", Type: MultipleChoice,
				TimeLimitSeconds: 20, OrderIndex: 0,
				Answers: []Answer{
					{ID: "a1", Text: "Atlantic"},
					{ID: "a2", Text: "Pacific", IsCorrect: true},
				},
			},
			{
				ID: "q2", Text: "Capital of France?", Type: ShortAnswer,
				TimeLimitSeconds: 30, OrderIndex: 1,
				Answers: []Answer{
					{ID: "sa1", Text: "Paris", IsCorrect: true},
				},
			},
		},
	}
}

func TestValidateQuizAcceptsWellFormedContent(t *testing.T) {
	if err := ValidateQuiz(validQuiz()); err != nil {
		t.Fatalf("expected valid quiz, got %v", err)
	}
}

func TestValidateQuizRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Quiz)
	}{
		{"short title", func(q *Quiz) { q.Title = "ab" }},
		{"no questions", func(q *Quiz) { q.Questions = nil }},
		{"duplicate order index", func(q *Quiz) { q.Questions[1].OrderIndex = 0 }},
		{"missing text", func(q *Quiz) { q.Questions[0].Text = "" }},
		{"zero time limit", func(q *Quiz) { q.Questions[0].TimeLimitSeconds = 0 }},
		{"duplicate answer text", func(q *Quiz) { q.Questions[0].Answers[1].Text = " ATLANTIC " }},
		{"choice without correct answer", func(q *Quiz) { q.Questions[0].Answers[1].IsCorrect = false }},
		{"choice with one answer", func(q *Quiz) { q.Questions[0].Answers = q.Questions[0].Answers[:1] }},
		{"short answer marked incorrect", func(q *Quiz) { q.Questions[1].Answers[0].IsCorrect = false }},
		{"unknown type", func(q *Quiz) { q.Questions[0].Type = "essay" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quiz := validQuiz()
			tc.mutate(&quiz)
			err := ValidateQuiz(quiz)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if _, ok := err.(*ValidationError); !ok {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestValidateTrueFalseShape(t *testing.T) {
	q := Question{
		ID: "q1", Text: "The Pacific is the largest ocean.", Type: TrueFalse,
		TimeLimitSeconds: 15, OrderIndex: 0,
		Answers: []Answer{
			{ID: "a1", Text: "True", IsCorrect: true},
			{ID: "a2", Text: "False"},
		},
	}
	quiz := Quiz{ID: "quiz-1", Title: "Oceans", Questions: []Question{q}}
	if err := ValidateQuiz(quiz); err != nil {
		t.Fatalf("expected valid true/false question, got %v", err)
	}

	quiz.Questions[0].Answers[1].IsCorrect = true
	if err := ValidateQuiz(quiz); err == nil {
		t.Fatal("expected rejection when both answers are correct")
	}
}
