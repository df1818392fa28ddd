// Package engine owns the authoritative lifecycle of live quiz sessions:
// lobby, question rounds, results, completion. It is the single writer of a
// session's current-question state; everything observable flows through the
// session store and its change feed.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/match"
	"livequiz-service/internal/store"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// CodeIndex claims join codes among currently active sessions. Optional: with
// a nil index the store's own insert conflict is the only guard.
type CodeIndex interface {
	Claim(ctx context.Context, code, sessionID string) error
	Release(ctx context.Context, code string) error
}

// Phase is the externally observable state of a session.
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseQuestion  Phase = "question"
	PhaseResults   Phase = "results"
	PhaseCompleted Phase = "completed"
)

// Snapshot is the aggregate a view reloads whenever the change feed cues it.
type Snapshot struct {
	Session       domain.Session   `json:"session"`
	Phase         Phase            `json:"phase"`
	QuestionIndex int              `json:"questionIndex"`
	QuestionCount int              `json:"questionCount"`
	Question      *domain.Question `json:"question,omitempty"`
	AnsweredCount int              `json:"answeredCount"`
	ActiveCount   int              `json:"activeCount"`
}

// SubmitResult is what a participant gets back for one submission.
type SubmitResult struct {
	Response   domain.Response `json:"response"`
	Outcome    match.Outcome   `json:"outcome"`
	IsCorrect  bool            `json:"isCorrect"`
	TotalScore int             `json:"totalScore"`
}

// liveSession is the engine-local side of one session: the reveal flag is a
// local phase flip, never persisted, and the generation counter fences stale
// question timers.
type liveSession struct {
	revealed bool
	gen      int
	stop     chan struct{}
}

// Engine implements the session state machine and scoring ledger.
type Engine struct {
	store   store.SessionStore
	quizzes QuizRepository
	codes   CodeIndex
	now     func() time.Time
	after   func(time.Duration) <-chan time.Time
	newID   func() string
	newCode func() string

	mu   sync.Mutex
	live map[string]*liveSession
}

func New(st store.SessionStore, quizzes QuizRepository, codes CodeIndex) *Engine {
	return NewWithClock(st, quizzes, codes, time.Now, time.After)
}

// NewWithClock allows deterministic time and timers in tests.
func NewWithClock(st store.SessionStore, quizzes QuizRepository, codes CodeIndex, now func() time.Time, after func(time.Duration) <-chan time.Time) *Engine {
	return &Engine{
		store:   st,
		quizzes: quizzes,
		codes:   codes,
		now:     now,
		after:   after,
		newID:   uuid.NewString,
		newCode: newCodeGenerator(defaultCodeLength),
		live:    make(map[string]*liveSession),
	}
}

// Host creates a session for a quiz in the lobby state and claims a join
// code, retrying generation on collision with another active session.
func (e *Engine) Host(ctx context.Context, host domain.Identity, quizID string) (domain.Session, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Session{}, err
	}

	var sess domain.Session
	created := false
	for attempt := 0; attempt < maxCodeAttempts && !created; attempt++ {
		now := e.now()
		candidate := domain.Session{
			ID:             e.newID(),
			QuizID:         quiz.ID,
			HostID:         host.ID,
			Code:           e.newCode(),
			Status:         domain.SessionActive,
			CreatedAt:      now,
			LastActivityAt: now,
		}
		if e.codes != nil {
			if err := e.codes.Claim(ctx, candidate.Code, candidate.ID); err == domain.ErrCodeTaken {
				continue
			} else if err != nil {
				return domain.Session{}, err
			}
		}
		sess, err = e.store.CreateSession(ctx, candidate)
		switch {
		case err == domain.ErrCodeTaken:
			if e.codes != nil {
				_ = e.codes.Release(ctx, candidate.Code)
			}
		case err != nil:
			return domain.Session{}, err
		default:
			created = true
		}
	}
	if !created {
		return domain.Session{}, domain.ErrCodeTaken
	}

	e.mu.Lock()
	e.live[sess.ID] = &liveSession{stop: make(chan struct{})}
	e.mu.Unlock()
	return sess, nil
}

// Join resolves a join code to an active session and creates a participant
// row. One row per join attempt: rejoining never resumes a prior row.
func (e *Engine) Join(ctx context.Context, code string, id domain.Identity, nickname string) (domain.Session, domain.Participant, error) {
	sess, err := e.store.GetSessionByCode(ctx, code)
	if err != nil {
		return domain.Session{}, domain.Participant{}, err
	}
	if nickname == "" {
		nickname = id.DisplayName
	}
	p := domain.Participant{
		ID:        e.newID(),
		SessionID: sess.ID,
		Nickname:  nickname,
		IsActive:  true,
		JoinedAt:  e.now(),
	}
	if id.IsGuest {
		p.GuestID = id.ID
	} else {
		p.UserID = id.ID
	}
	p, err = e.store.CreateParticipant(ctx, p)
	if err != nil {
		return domain.Session{}, domain.Participant{}, err
	}
	e.touch(ctx, sess.ID)
	return sess, p, nil
}

// Start moves a lobby session to its first question. The local phase flips
// only after the current-question write succeeds.
func (e *Engine) Start(ctx context.Context, sessionID, actorID string) (Snapshot, error) {
	sess, err := e.hostSession(ctx, sessionID, actorID)
	if err != nil {
		return Snapshot{}, err
	}
	if sess.CurrentQuestionID != "" {
		return Snapshot{}, domain.ErrNotInLobby
	}
	quiz, err := e.quizzes.GetQuiz(ctx, sess.QuizID)
	if err != nil {
		return Snapshot{}, err
	}
	first, ok := quiz.QuestionAt(0)
	if !ok {
		return Snapshot{}, domain.ErrNoQuestions
	}
	if err := e.writeCurrentQuestion(ctx, sessionID, first.ID); err != nil {
		return Snapshot{}, err
	}
	e.armQuestion(sessionID, first)
	return e.Snapshot(ctx, sessionID)
}

// Reveal flips the current question to results mode. Host action or question
// timer; participants reaching zero locally flip on their own, so this is a
// local state change plus a best-effort cue through the session row.
func (e *Engine) Reveal(ctx context.Context, sessionID, actorID string) (Snapshot, error) {
	sess, err := e.hostSession(ctx, sessionID, actorID)
	if err != nil {
		return Snapshot{}, err
	}
	if sess.CurrentQuestionID == "" {
		return Snapshot{}, domain.ErrNotInLobby
	}
	e.mu.Lock()
	if ls := e.live[sessionID]; ls != nil {
		ls.revealed = true
		ls.gen++
	}
	e.mu.Unlock()
	e.touch(ctx, sessionID)
	return e.Snapshot(ctx, sessionID)
}

// Advance moves from a question's results to the next question.
func (e *Engine) Advance(ctx context.Context, sessionID, actorID string) (Snapshot, error) {
	sess, err := e.hostSession(ctx, sessionID, actorID)
	if err != nil {
		return Snapshot{}, err
	}
	if sess.CurrentQuestionID == "" {
		return Snapshot{}, domain.ErrNotInLobby
	}
	quiz, err := e.quizzes.GetQuiz(ctx, sess.QuizID)
	if err != nil {
		return Snapshot{}, err
	}
	next, ok := quiz.QuestionAt(quiz.IndexOfQuestion(sess.CurrentQuestionID) + 1)
	if !ok {
		return Snapshot{}, domain.ErrNoMoreQuestions
	}
	if err := e.writeCurrentQuestion(ctx, sessionID, next.ID); err != nil {
		return Snapshot{}, err
	}
	e.armQuestion(sessionID, next)
	return e.Snapshot(ctx, sessionID)
}

// Finish marks the session completed. History stays queryable for the final
// leaderboard; the join code is released for reuse.
func (e *Engine) Finish(ctx context.Context, sessionID, actorID string) (Snapshot, error) {
	sess, err := e.hostSession(ctx, sessionID, actorID)
	if err != nil {
		return Snapshot{}, err
	}
	completed := domain.SessionCompleted
	now := e.now()
	if _, err := e.store.UpdateSession(ctx, sessionID, store.SessionPatch{Status: &completed, LastActivityAt: &now}); err != nil {
		return Snapshot{}, err
	}
	e.releaseLive(ctx, sess)
	return e.Snapshot(ctx, sessionID)
}

// Close hard-deletes the session with its participants and responses.
// Distinct from Finish: nothing survives, everyone is disconnected.
func (e *Engine) Close(ctx context.Context, sessionID, actorID string) error {
	sess, err := e.hostSession(ctx, sessionID, actorID)
	if err != nil {
		return err
	}
	if err := e.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	e.releaseLive(ctx, sess)
	return nil
}

// Submit records a participant's answer for a question and applies the score
// transition. Resubmission updates the existing row (last write wins); the
// ledger derives its delta from the replaced row so a participant's score
// always equals their count of correct responses. Late submissions for a
// question that is no longer current are accepted.
func (e *Engine) Submit(ctx context.Context, sessionID, participantID, questionID string, sub match.Submission) (SubmitResult, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	if sess.Status != domain.SessionActive {
		return SubmitResult{}, domain.ErrSessionEnded
	}
	p, err := e.store.GetParticipant(ctx, participantID)
	if err != nil {
		return SubmitResult{}, err
	}
	if p.SessionID != sessionID {
		return SubmitResult{}, domain.ErrParticipantNotFound
	}
	quiz, err := e.quizzes.GetQuiz(ctx, sess.QuizID)
	if err != nil {
		return SubmitResult{}, err
	}
	question, ok := quiz.QuestionByID(questionID)
	if !ok {
		return SubmitResult{}, domain.ErrQuestionNotFound
	}

	result := match.Match(question, sub)
	resp := domain.Response{
		ID:            e.newID(),
		SessionID:     sessionID,
		ParticipantID: participantID,
		QuestionID:    questionID,
		AnswerID:      result.AnswerID,
		IsCorrect:     result.IsCorrect,
		Unmatched:     result.Outcome == match.OutcomeUnmatched,
		AnswerText:    sub.Text,
	}
	saved, prev, err := e.store.UpsertResponse(ctx, resp)
	if err != nil {
		return SubmitResult{}, err
	}

	total := p.Score
	if delta := scoreDelta(prev, saved); delta != 0 {
		updated, err := e.store.AddScore(ctx, participantID, delta)
		if err != nil {
			return SubmitResult{}, err
		}
		total = updated.Score
	}
	e.touch(ctx, sessionID)

	return SubmitResult{Response: saved, Outcome: result.Outcome, IsCorrect: result.IsCorrect, TotalScore: total}, nil
}

// SubmitNoAnswer records the explicit timeout outcome: an incorrect response
// with no answer id, so tallies reflect actual participant behavior.
func (e *Engine) SubmitNoAnswer(ctx context.Context, sessionID, participantID, questionID string) (SubmitResult, error) {
	return e.Submit(ctx, sessionID, participantID, questionID, match.Submission{NoAnswer: true})
}

// Leave soft-removes a participant: excluded from active counts and the
// answered gate, retained in score history.
func (e *Engine) Leave(ctx context.Context, sessionID, participantID string) error {
	p, err := e.store.GetParticipant(ctx, participantID)
	if err != nil {
		return err
	}
	if p.SessionID != sessionID {
		return domain.ErrParticipantNotFound
	}
	inactive := false
	left := e.now()
	_, err = e.store.UpdateParticipant(ctx, participantID, store.ParticipantPatch{IsActive: &inactive, LeftAt: &left})
	return err
}

// Snapshot assembles the aggregate views render from: session row, derived
// phase, sanitized current question, answered/active counts.
func (e *Engine) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Session: sess, Phase: e.phaseOf(sess), QuestionIndex: -1}

	quiz, err := e.quizzes.GetQuiz(ctx, sess.QuizID)
	if err != nil {
		return Snapshot{}, err
	}
	snap.QuestionCount = len(quiz.Questions)

	participants, err := e.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	for _, p := range participants {
		if p.IsActive {
			snap.ActiveCount++
		}
	}

	if sess.CurrentQuestionID == "" {
		return snap, nil
	}
	snap.QuestionIndex = quiz.IndexOfQuestion(sess.CurrentQuestionID)
	question, ok := quiz.QuestionByID(sess.CurrentQuestionID)
	if ok {
		sanitized := sanitizeQuestion(question, snap.Phase)
		snap.Question = &sanitized
	}

	// Advisory only: reaching full coverage never auto-advances.
	responses, err := e.store.ListResponses(ctx, sessionID, sess.CurrentQuestionID)
	if err != nil {
		return Snapshot{}, err
	}
	active := make(map[string]bool, len(participants))
	for _, p := range participants {
		active[p.ID] = p.IsActive
	}
	for _, r := range responses {
		if active[r.ParticipantID] {
			snap.AnsweredCount++
		}
	}
	return snap, nil
}

// Leaderboard returns the scoreboard, score descending, ties broken by
// earlier join then nickname. Soft-left participants keep their place.
func (e *Engine) Leaderboard(ctx context.Context, sessionID string) (domain.Leaderboard, error) {
	participants, err := e.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	entries := make([]domain.LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, domain.LeaderboardEntry{
			ParticipantID: p.ID,
			Nickname:      p.Nickname,
			Score:         p.Score,
			IsActive:      p.IsActive,
		})
	}
	byID := make(map[string]domain.Participant, len(participants))
	for _, p := range participants {
		byID[p.ID] = p
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		pi, pj := byID[entries[i].ParticipantID], byID[entries[j].ParticipantID]
		if !pi.JoinedAt.Equal(pj.JoinedAt) {
			return pi.JoinedAt.Before(pj.JoinedAt)
		}
		return entries[i].Nickname < entries[j].Nickname
	})
	return domain.Leaderboard{SessionID: sessionID, Entries: entries, UpdatedAt: e.now()}, nil
}

// hostSession loads an active session and authorizes the actor as its host.
func (e *Engine) hostSession(ctx context.Context, sessionID, actorID string) (domain.Session, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if sess.Status != domain.SessionActive {
		return domain.Session{}, domain.ErrSessionEnded
	}
	if sess.HostID != actorID {
		return domain.Session{}, domain.ErrNotHost
	}
	return sess, nil
}

func (e *Engine) writeCurrentQuestion(ctx context.Context, sessionID, questionID string) error {
	now := e.now()
	_, err := e.store.UpdateSession(ctx, sessionID, store.SessionPatch{
		CurrentQuestionID: &questionID,
		LastActivityAt:    &now,
	})
	return err
}

// armQuestion resets the local per-question state and starts the host-side
// countdown. The generation counter fences the timer: a tick raced by a
// reveal or advance finds a newer generation and does nothing.
func (e *Engine) armQuestion(sessionID string, q domain.Question) {
	e.mu.Lock()
	ls := e.live[sessionID]
	if ls == nil {
		ls = &liveSession{stop: make(chan struct{})}
		e.live[sessionID] = ls
	}
	ls.revealed = false
	ls.gen++
	gen := ls.gen
	stop := ls.stop
	e.mu.Unlock()

	timeout := e.after(time.Duration(q.TimeLimitSeconds) * time.Second)
	go func() {
		select {
		case <-timeout:
			e.revealFromTimer(sessionID, gen)
		case <-stop:
		}
	}()
}

func (e *Engine) revealFromTimer(sessionID string, gen int) {
	e.mu.Lock()
	ls := e.live[sessionID]
	if ls == nil || ls.gen != gen || ls.revealed {
		e.mu.Unlock()
		return
	}
	ls.revealed = true
	e.mu.Unlock()
	e.touch(context.Background(), sessionID)
}

func (e *Engine) phaseOf(sess domain.Session) Phase {
	if sess.Status == domain.SessionCompleted {
		return PhaseCompleted
	}
	if sess.CurrentQuestionID == "" {
		return PhaseLobby
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if ls := e.live[sess.ID]; ls != nil && ls.revealed {
		return PhaseResults
	}
	return PhaseQuestion
}

// releaseLive stops the session's timer, drops local state, and frees the
// join code.
func (e *Engine) releaseLive(ctx context.Context, sess domain.Session) {
	e.mu.Lock()
	if ls := e.live[sess.ID]; ls != nil {
		close(ls.stop)
		delete(e.live, sess.ID)
	}
	e.mu.Unlock()
	if e.codes != nil {
		_ = e.codes.Release(ctx, sess.Code)
	}
}

// touch refreshes the session's activity timestamp. Best effort: it feeds the
// janitor and cues subscribers, so a failed touch is logged by callers'
// retries rather than surfaced.
func (e *Engine) touch(ctx context.Context, sessionID string) {
	now := e.now()
	_, _ = e.store.UpdateSession(ctx, sessionID, store.SessionPatch{LastActivityAt: &now})
}

// sanitizeQuestion strips grading material from a question while it is still
// open: correctness flags never leave the engine mid-round, and short-answer
// questions hide their acceptable answers entirely. Once the phase reaches
// results the full question goes out unchanged.
func sanitizeQuestion(q domain.Question, phase Phase) domain.Question {
	if phase != PhaseQuestion {
		return q
	}
	out := q
	if q.Type == domain.ShortAnswer {
		out.Answers = nil
		return out
	}
	out.Answers = make([]domain.Answer, len(q.Answers))
	for i, a := range q.Answers {
		a.IsCorrect = false
		out.Answers[i] = a
	}
	return out
}

func scoreDelta(prev *domain.Response, cur domain.Response) int {
	delta := 0
	if cur.IsCorrect {
		delta++
	}
	if prev != nil && prev.IsCorrect {
		delta--
	}
	return delta
}
