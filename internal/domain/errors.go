package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a join code or session id does not
	// resolve to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionEnded marks a stale reference: the session was completed or
	// closed since the caller last saw it.
	ErrSessionEnded = errors.New("session has ended")
	// ErrParticipantNotFound is returned when a participant acts before joining.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question id not belonging to the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAnswerNotFound indicates a submitted answer id is invalid for the question.
	ErrAnswerNotFound = errors.New("answer not found")
	// ErrNotHost is returned when a transition request comes from anyone but
	// the session host.
	ErrNotHost = errors.New("only the host may control the session")
	// ErrNoQuestions guards starting a session whose quiz has no questions.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrNoMoreQuestions guards advancing past the last question.
	ErrNoMoreQuestions = errors.New("no more questions")
	// ErrNotInLobby guards starting a session that already left the lobby.
	ErrNotInLobby = errors.New("session is not in the lobby")
	// ErrCodeTaken is returned by the code index when a join code is already
	// claimed by another active session.
	ErrCodeTaken = errors.New("join code already in use")
)
