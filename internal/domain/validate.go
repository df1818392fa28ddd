package domain

import "fmt"

// ValidationError reports authored quiz content that must be rejected before
// any write is attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

const minTitleLength = 3

// ValidateQuiz checks a quiz against the authoring rules: a usable title,
// at least one question, and per-type answer shapes. Called at the loader
// boundary so malformed content never reaches a live session.
func ValidateQuiz(q Quiz) error {
	if len(q.Title) < minTitleLength {
		return &ValidationError{Field: "title", Message: fmt.Sprintf("must be at least %d characters", minTitleLength)}
	}
	if len(q.Questions) == 0 {
		return &ValidationError{Field: "questions", Message: "quiz needs at least one question"}
	}
	seenOrder := make(map[int]bool, len(q.Questions))
	for _, question := range q.Questions {
		if seenOrder[question.OrderIndex] {
			return &ValidationError{Field: "questions", Message: fmt.Sprintf("duplicate order index %d", question.OrderIndex)}
		}
		seenOrder[question.OrderIndex] = true
		if err := validateQuestion(question); err != nil {
			return err
		}
	}
	return nil
}

func validateQuestion(q Question) error {
	if q.Text == "" {
		return &ValidationError{Field: "question", Message: "text is required"}
	}
	if q.TimeLimitSeconds <= 0 {
		return &ValidationError{Field: "question", Message: "time limit must be positive"}
	}
	seenText := make(map[string]bool, len(q.Answers))
	correct := 0
	for _, a := range q.Answers {
		norm := NormalizeAnswerText(a.Text)
		if seenText[norm] {
			return &ValidationError{Field: "answers", Message: fmt.Sprintf("duplicate answer text %q", a.Text)}
		}
		seenText[norm] = true
		if a.IsCorrect {
			correct++
		}
	}
	switch q.Type {
	case MultipleChoice:
		if len(q.Answers) < 2 {
			return &ValidationError{Field: "answers", Message: "multiple choice needs at least two answers"}
		}
		if correct == 0 {
			return &ValidationError{Field: "answers", Message: "multiple choice needs a correct answer"}
		}
	case TrueFalse:
		if len(q.Answers) != 2 {
			return &ValidationError{Field: "answers", Message: "true/false needs exactly two answers"}
		}
		if correct != 1 {
			return &ValidationError{Field: "answers", Message: "true/false needs exactly one correct answer"}
		}
	case ShortAnswer:
		if len(q.Answers) == 0 {
			return &ValidationError{Field: "answers", Message: "short answer needs at least one acceptable answer"}
		}
		if correct != len(q.Answers) {
			return &ValidationError{Field: "answers", Message: "short answer entries must all be marked correct"}
		}
	default:
		return &ValidationError{Field: "question", Message: fmt.Sprintf("unknown type %q", q.Type)}
	}
	return nil
}
