package memory

import (
	"context"
	"testing"
	"time"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/store"
)

func TestSessionCodeResolvesActiveOnly(t *testing.T) {
	ctx := context.Background()
	s := New()

	sess := seedSession(t, s, "s1", "ABC123")

	got, err := s.GetSessionByCode(ctx, "ABC123")
	if err != nil || got.ID != sess.ID {
		t.Fatalf("expected session by code, got %+v err=%v", got, err)
	}

	completed := domain.SessionCompleted
	if _, err := s.UpdateSession(ctx, "s1", store.SessionPatch{Status: &completed}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.GetSessionByCode(ctx, "ABC123"); err != domain.ErrSessionNotFound {
		t.Fatalf("completed session must not resolve by code, got %v", err)
	}
}

func TestCreateSessionRejectsDuplicateActiveCode(t *testing.T) {
	ctx := context.Background()
	s := New()

	seedSession(t, s, "s1", "ABC123")
	_, err := s.CreateSession(ctx, domain.Session{ID: "s2", Code: "ABC123", Status: domain.SessionActive})
	if err != domain.ErrCodeTaken {
		t.Fatalf("expected code conflict, got %v", err)
	}
}

func TestUpsertResponseUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedSession(t, s, "s1", "ABC123")

	first, prev, err := s.UpsertResponse(ctx, domain.Response{
		ID: "r1", SessionID: "s1", ParticipantID: "p1", QuestionID: "q1", AnswerID: "a1", IsCorrect: true,
	})
	if err != nil || prev != nil {
		t.Fatalf("first upsert should insert, prev=%v err=%v", prev, err)
	}

	second, prev, err := s.UpsertResponse(ctx, domain.Response{
		ID: "r2", SessionID: "s1", ParticipantID: "p1", QuestionID: "q1", AnswerID: "a2", IsCorrect: false,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if prev == nil || !prev.IsCorrect || prev.AnswerID != "a1" {
		t.Fatalf("expected replaced row returned, got %+v", prev)
	}
	if second.ID != first.ID {
		t.Fatalf("resubmission must update the existing row, got new id %s", second.ID)
	}

	all, err := s.ListResponses(ctx, "s1", "q1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].AnswerID != "a2" {
		t.Fatalf("expected single last-write-wins row, got %+v", all)
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedSession(t, s, "s1", "ABC123")

	if _, err := s.CreateParticipant(ctx, domain.Participant{ID: "p1", SessionID: "s1", Nickname: "Alice", IsActive: true}); err != nil {
		t.Fatalf("participant: %v", err)
	}
	if _, _, err := s.UpsertResponse(ctx, domain.Response{ID: "r1", SessionID: "s1", ParticipantID: "p1", QuestionID: "q1"}); err != nil {
		t.Fatalf("response: %v", err)
	}

	if err := s.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetParticipant(ctx, "p1"); err != domain.ErrParticipantNotFound {
		t.Fatalf("expected participant gone, got %v", err)
	}
	if rs, _ := s.ListResponses(ctx, "s1", ""); len(rs) != 0 {
		t.Fatalf("expected responses gone, got %+v", rs)
	}
	if _, err := s.GetSessionByCode(ctx, "ABC123"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected code released, got %v", err)
	}
}

func TestSubscribeDeliversAndCancels(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedSession(t, s, "s1", "ABC123")

	ch, cancel := s.Subscribe(store.Participants, "s1")

	if _, err := s.CreateParticipant(ctx, domain.Participant{ID: "p1", SessionID: "s1", Nickname: "Alice", IsActive: true}); err != nil {
		t.Fatalf("participant: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Type != store.EventInsert || ev.Collection != store.Participants {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected participant insert event")
	}

	cancel()
	if _, open := <-ch; open {
		// Drain: channel may hold buffered events, but must be closed.
		for range ch {
		}
	}

	// Further writes must not panic with the subscription gone.
	if _, err := s.CreateParticipant(ctx, domain.Participant{ID: "p2", SessionID: "s1", Nickname: "Bob", IsActive: true}); err != nil {
		t.Fatalf("participant after cancel: %v", err)
	}
}

func TestAddScoreIsAtomicPerRow(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedSession(t, s, "s1", "ABC123")
	if _, err := s.CreateParticipant(ctx, domain.Participant{ID: "p1", SessionID: "s1", Nickname: "Alice", IsActive: true}); err != nil {
		t.Fatalf("participant: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 25; j++ {
				if _, err := s.AddScore(ctx, "p1", 1); err != nil {
					t.Errorf("add score: %v", err)
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	p, err := s.GetParticipant(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Score != 200 {
		t.Fatalf("expected score 200, got %d", p.Score)
	}
}

func seedSession(t *testing.T, s *Store, id, code string) domain.Session {
	t.Helper()
	sess, err := s.CreateSession(context.Background(), domain.Session{
		ID:     id,
		QuizID: "quiz-1",
		HostID: "host-1",
		Code:   code,
		Status: domain.SessionActive,
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return sess
}
