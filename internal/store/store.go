// Package store defines the session store collaborator contract: typed CRUD
// over the three live-session collections plus a per-collection change feed.
package store

import (
	"context"
	"time"

	"livequiz-service/internal/domain"
)

// Collection names one of the session-scoped record sets.
type Collection string

const (
	Sessions     Collection = "sessions"
	Participants Collection = "session_participants"
	Responses    Collection = "responses"
)

// EventType is the kind of mutation a change-feed event reports.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one change-feed notification. Delivery is at-least-once and
// unordered across collections; consumers reload the affected aggregate
// rather than trusting Before/After as authoritative.
type Event struct {
	Collection Collection
	Type       EventType
	SessionID  string
	Before     any
	After      any
}

// SessionPatch updates selected fields of a session row.
type SessionPatch struct {
	Status            *domain.SessionStatus
	CurrentQuestionID *string
	LastActivityAt    *time.Time
}

// ParticipantPatch updates selected fields of a participant row.
type ParticipantPatch struct {
	Nickname *string
	IsActive *bool
	LeftAt   *time.Time
}

// SessionStore is the durable record of sessions, participants, and
// responses. Implementations must enforce the response uniqueness invariant
// (one row per session/participant/question) and cascade session deletes.
type SessionStore interface {
	CreateSession(ctx context.Context, s domain.Session) (domain.Session, error)
	GetSession(ctx context.Context, id string) (domain.Session, error)
	// GetSessionByCode resolves a join code among active sessions only.
	GetSessionByCode(ctx context.Context, code string) (domain.Session, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
	UpdateSession(ctx context.Context, id string, patch SessionPatch) (domain.Session, error)
	// DeleteSession hard-deletes the session row and cascades to its
	// participants and responses.
	DeleteSession(ctx context.Context, id string) error

	CreateParticipant(ctx context.Context, p domain.Participant) (domain.Participant, error)
	GetParticipant(ctx context.Context, id string) (domain.Participant, error)
	// ListParticipants returns the session's participants ordered by join time.
	ListParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error)
	UpdateParticipant(ctx context.Context, id string, patch ParticipantPatch) (domain.Participant, error)
	// AddScore applies a point delta to a participant's score atomically.
	AddScore(ctx context.Context, id string, delta int) (domain.Participant, error)

	// UpsertResponse inserts or, when a row already exists for the same
	// (session, participant, question), updates it in place. The replaced
	// row, if any, is returned so callers can derive score transitions.
	UpsertResponse(ctx context.Context, r domain.Response) (saved domain.Response, prev *domain.Response, err error)
	// ListResponses returns a session's responses, optionally narrowed to a
	// question (empty questionID means all), ordered by creation time.
	ListResponses(ctx context.Context, sessionID, questionID string) ([]domain.Response, error)

	// Subscribe opens a change feed for one collection scoped to a session.
	// The cancel function tears the subscription down and closes the channel;
	// leaking it past the consumer's lifetime is a defect.
	Subscribe(collection Collection, sessionID string) (<-chan Event, func())
}
