// Package match decides correctness for participant submissions. It is a
// pure decision layer: no stores, no side effects, always returns an outcome.
package match

import (
	"strings"

	"livequiz-service/internal/domain"
)

// Outcome classifies how a submission was resolved against the answer key.
type Outcome string

const (
	// OutcomeMatched means the submission resolved to a stored answer,
	// correct or not.
	OutcomeMatched Outcome = "matched"
	// OutcomeUnmatched means a free-text submission matched no acceptable
	// answer; it is recorded as incorrect but kept distinct so hosts can
	// review ambiguous phrasings.
	OutcomeUnmatched Outcome = "unmatched"
	// OutcomeNoAnswer means the participant let the timer expire without
	// selecting anything.
	OutcomeNoAnswer Outcome = "no_answer"
)

// Submission is either a selected answer id (choice questions) or free text
// (short answer). NoAnswer marks an explicit timeout submission.
type Submission struct {
	AnswerID string
	Text     string
	NoAnswer bool
}

// Result is the matcher's decision for one submission.
type Result struct {
	AnswerID       string
	IsCorrect      bool
	Outcome        Outcome
	NormalizedText string
}

// Match resolves a submission against a question's answer key.
// Choice questions are matched by answer id. Short answers are normalized
// (trim, lowercase) and compared exactly first, then by substring containment
// in either direction in stored answer order, a deliberately lenient fallback
// for minor phrasing differences.
func Match(q domain.Question, sub Submission) Result {
	if sub.NoAnswer {
		return Result{Outcome: OutcomeNoAnswer}
	}
	switch q.Type {
	case domain.ShortAnswer:
		return matchShortAnswer(q, sub.Text)
	default:
		return matchChoice(q, sub.AnswerID)
	}
}

func matchChoice(q domain.Question, answerID string) Result {
	for _, a := range q.Answers {
		if a.ID == answerID {
			return Result{AnswerID: a.ID, IsCorrect: a.IsCorrect, Outcome: OutcomeMatched}
		}
	}
	// Unknown id: treat like an unmatched free-text submission rather than
	// failing, so the response tally stays complete.
	return unmatched(q, "")
}

func matchShortAnswer(q domain.Question, text string) Result {
	norm := domain.NormalizeAnswerText(text)

	for _, a := range q.Answers {
		if domain.NormalizeAnswerText(a.Text) == norm {
			return Result{AnswerID: a.ID, IsCorrect: a.IsCorrect, Outcome: OutcomeMatched, NormalizedText: norm}
		}
	}
	if norm != "" {
		for _, a := range q.Answers {
			stored := domain.NormalizeAnswerText(a.Text)
			if stored == "" {
				continue
			}
			if strings.Contains(stored, norm) || strings.Contains(norm, stored) {
				return Result{AnswerID: a.ID, IsCorrect: a.IsCorrect, Outcome: OutcomeMatched, NormalizedText: norm}
			}
		}
	}
	return unmatched(q, norm)
}

// unmatched records against the question's first answer id with
// IsCorrect=false; the Outcome keeps "no match" distinguishable from a
// definite wrong pick.
func unmatched(q domain.Question, norm string) Result {
	res := Result{Outcome: OutcomeUnmatched, NormalizedText: norm}
	if len(q.Answers) > 0 {
		res.AnswerID = q.Answers[0].ID
	}
	return res
}
