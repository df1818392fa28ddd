package domain

import (
	"strings"
	"time"
)

// QuestionType discriminates how a question is answered and matched.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
)

// SessionStatus is the durable lifecycle flag on a session row.
// Phase within an active session (lobby, question open, results) is derived
// from CurrentQuestionID plus the engine's reveal flag, not stored here.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Answer is one acceptable (or distractor) answer of a question.
type Answer struct {
	ID         string `json:"id"`
	QuestionID string `json:"questionId"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
}

// Question belongs to exactly one quiz; OrderIndex is unique per quiz and
// defines the sequence the host advances through.
type Question struct {
	ID               string       `json:"id"`
	QuizID           string       `json:"quizId"`
	Text             string       `json:"text"`
	ImageURL         string       `json:"imageUrl,omitempty"`
	TimeLimitSeconds int          `json:"timeLimitSeconds"`
	Type             QuestionType `json:"type"`
	OrderIndex       int          `json:"orderIndex"`
	Answers          []Answer     `json:"answers"`
}

// Quiz is the authored content a session runs through. Immutable for the
// lifetime of any session referencing it.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	OwnerID     string     `json:"ownerId"`
	CreatedAt   time.Time  `json:"createdAt"`
	Questions   []Question `json:"questions"`
}

// Session is the live run of a quiz. CurrentQuestionID is empty in the
// lobby and always references a question of QuizID once set; the hosting
// engine is its sole writer.
type Session struct {
	ID                string        `json:"id"`
	QuizID            string        `json:"quizId"`
	HostID            string        `json:"hostId"`
	Code              string        `json:"code"`
	Status            SessionStatus `json:"status"`
	CurrentQuestionID string        `json:"currentQuestionId,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	LastActivityAt    time.Time     `json:"lastActivityAt"`
}

// Identity is the opaque identity context threaded in at join time.
// Guests carry self-issued tokens; the core never reads ambient state.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	IsGuest     bool   `json:"isGuest"`
}

// Participant is one join of a session. Rejoining creates a new row.
// Exactly one of UserID/GuestID is set.
type Participant struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionId"`
	Nickname  string     `json:"nickname"`
	Score     int        `json:"score"`
	UserID    string     `json:"userId,omitempty"`
	GuestID   string     `json:"guestId,omitempty"`
	IsActive  bool       `json:"isActive"`
	JoinedAt  time.Time  `json:"joinedAt"`
	LeftAt    *time.Time `json:"leftAt,omitempty"`
}

// Response is a participant's answer to one question. At most one row per
// (SessionID, ParticipantID, QuestionID); resubmission updates in place.
type Response struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId"`
	ParticipantID string    `json:"participantId"`
	QuestionID    string    `json:"questionId"`
	AnswerID      string    `json:"answerId,omitempty"`
	IsCorrect     bool      `json:"isCorrect"`
	Unmatched     bool      `json:"unmatched,omitempty"`
	AnswerText    string    `json:"answerText,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	Nickname      string `json:"nickname"`
	Score         int    `json:"score"`
	IsActive      bool   `json:"isActive"`
}

// Leaderboard captures the ordered scoreboard for a session.
type Leaderboard struct {
	SessionID string             `json:"sessionId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// QuestionByID returns the question with the given id, if any.
func (q Quiz) QuestionByID(id string) (Question, bool) {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return q.Questions[i], true
		}
	}
	return Question{}, false
}

// QuestionAt returns the question at the given position in quiz order.
// Questions are kept sorted by OrderIndex by the loader.
func (q Quiz) QuestionAt(i int) (Question, bool) {
	if i < 0 || i >= len(q.Questions) {
		return Question{}, false
	}
	return q.Questions[i], true
}

// IndexOfQuestion returns the position of a question id in quiz order, or -1.
func (q Quiz) IndexOfQuestion(id string) int {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return i
		}
	}
	return -1
}

// NormalizeAnswerText is the canonical form used for ShortAnswer matching:
// trimmed and lowercased.
func NormalizeAnswerText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
