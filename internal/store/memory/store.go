// Package memory implements store.SessionStore in process. It stands in for
// the external persistence collaborator: same contract, same change feed,
// no durability.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/store"
)

type responseKey struct {
	sessionID     string
	participantID string
	questionID    string
}

type subKey struct {
	collection store.Collection
	sessionID  string
}

// Store is an in-memory session store with a per-collection change feed.
type Store struct {
	now func() time.Time

	mu           sync.RWMutex
	sessions     map[string]domain.Session
	codes        map[string]string // active join code -> session id
	participants map[string]domain.Participant
	responses    map[string]domain.Response
	responseIdx  map[responseKey]string
	subscribers  map[subKey]map[chan store.Event]struct{}
}

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock allows deterministic timestamps in tests.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:          now,
		sessions:     make(map[string]domain.Session),
		codes:        make(map[string]string),
		participants: make(map[string]domain.Participant),
		responses:    make(map[string]domain.Response),
		responseIdx:  make(map[responseKey]string),
		subscribers:  make(map[subKey]map[chan store.Event]struct{}),
	}
}

func (s *Store) CreateSession(_ context.Context, sess domain.Session) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if other, taken := s.codes[sess.Code]; taken && other != sess.ID {
		return domain.Session{}, domain.ErrCodeTaken
	}
	s.sessions[sess.ID] = sess
	s.codes[sess.Code] = sess.ID
	s.emitLocked(store.Event{Collection: store.Sessions, Type: store.EventInsert, SessionID: sess.ID, After: sess})
	return sess, nil
}

func (s *Store) GetSession(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Store) GetSessionByCode(_ context.Context, code string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	sess := s.sessions[id]
	if sess.Status != domain.SessionActive {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Store) ListSessions(_ context.Context) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateSession(_ context.Context, id string, patch store.SessionPatch) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	before := sess
	if patch.Status != nil {
		sess.Status = *patch.Status
		// A completed session no longer holds its join code.
		if sess.Status != domain.SessionActive && s.codes[sess.Code] == id {
			delete(s.codes, sess.Code)
		}
	}
	if patch.CurrentQuestionID != nil {
		sess.CurrentQuestionID = *patch.CurrentQuestionID
	}
	if patch.LastActivityAt != nil {
		sess.LastActivityAt = *patch.LastActivityAt
	}
	s.sessions[id] = sess
	s.emitLocked(store.Event{Collection: store.Sessions, Type: store.EventUpdate, SessionID: id, Before: before, After: sess})
	return sess, nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	for pid, p := range s.participants {
		if p.SessionID != id {
			continue
		}
		delete(s.participants, pid)
		s.emitLocked(store.Event{Collection: store.Participants, Type: store.EventDelete, SessionID: id, Before: p})
	}
	for rid, r := range s.responses {
		if r.SessionID != id {
			continue
		}
		delete(s.responses, rid)
		delete(s.responseIdx, responseKey{r.SessionID, r.ParticipantID, r.QuestionID})
		s.emitLocked(store.Event{Collection: store.Responses, Type: store.EventDelete, SessionID: id, Before: r})
	}
	delete(s.sessions, id)
	if s.codes[sess.Code] == id {
		delete(s.codes, sess.Code)
	}
	s.emitLocked(store.Event{Collection: store.Sessions, Type: store.EventDelete, SessionID: id, Before: sess})
	return nil
}

func (s *Store) CreateParticipant(_ context.Context, p domain.Participant) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[p.SessionID]; !ok {
		return domain.Participant{}, domain.ErrSessionNotFound
	}
	s.participants[p.ID] = p
	s.emitLocked(store.Event{Collection: store.Participants, Type: store.EventInsert, SessionID: p.SessionID, After: p})
	return p, nil
}

func (s *Store) GetParticipant(_ context.Context, id string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p, nil
}

func (s *Store) ListParticipants(_ context.Context, sessionID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participant, 0)
	for _, p := range s.participants {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateParticipant(_ context.Context, id string, patch store.ParticipantPatch) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	before := p
	if patch.Nickname != nil {
		p.Nickname = *patch.Nickname
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	if patch.LeftAt != nil {
		left := *patch.LeftAt
		p.LeftAt = &left
	}
	s.participants[id] = p
	s.emitLocked(store.Event{Collection: store.Participants, Type: store.EventUpdate, SessionID: p.SessionID, Before: before, After: p})
	return p, nil
}

func (s *Store) AddScore(_ context.Context, id string, delta int) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	before := p
	p.Score += delta
	s.participants[id] = p
	s.emitLocked(store.Event{Collection: store.Participants, Type: store.EventUpdate, SessionID: p.SessionID, Before: before, After: p})
	return p, nil
}

func (s *Store) UpsertResponse(_ context.Context, r domain.Response) (domain.Response, *domain.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[r.SessionID]; !ok {
		return domain.Response{}, nil, domain.ErrSessionNotFound
	}
	now := s.now()
	key := responseKey{r.SessionID, r.ParticipantID, r.QuestionID}
	if existingID, ok := s.responseIdx[key]; ok {
		prev := s.responses[existingID]
		// Last write wins, identity and creation time survive.
		updated := r
		updated.ID = prev.ID
		updated.CreatedAt = prev.CreatedAt
		updated.UpdatedAt = now
		s.responses[existingID] = updated
		s.emitLocked(store.Event{Collection: store.Responses, Type: store.EventUpdate, SessionID: r.SessionID, Before: prev, After: updated})
		return updated, &prev, nil
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	s.responses[r.ID] = r
	s.responseIdx[key] = r.ID
	s.emitLocked(store.Event{Collection: store.Responses, Type: store.EventInsert, SessionID: r.SessionID, After: r})
	return r, nil, nil
}

func (s *Store) ListResponses(_ context.Context, sessionID, questionID string) ([]domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Response, 0)
	for _, r := range s.responses {
		if r.SessionID != sessionID {
			continue
		}
		if questionID != "" && r.QuestionID != questionID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Subscribe(collection store.Collection, sessionID string) (<-chan store.Event, func()) {
	ch := make(chan store.Event, 16)
	key := subKey{collection, sessionID}

	s.mu.Lock()
	if s.subscribers[key] == nil {
		s.subscribers[key] = make(map[chan store.Event]struct{})
	}
	s.subscribers[key][ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[key][ch]; ok {
			delete(s.subscribers[key], ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// emitLocked fans an event out to the collection's subscribers. Slow
// consumers have their oldest pending event dropped instead of blocking the
// writer; the feed is a cue to reload, not a log.
func (s *Store) emitLocked(ev store.Event) {
	for ch := range s.subscribers[subKey{ev.Collection, ev.SessionID}] {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
