package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/engine"
	"livequiz-service/internal/match"
)

type answerPayload struct {
	QuestionID string `json:"questionId"`
	AnswerID   string `json:"answerId,omitempty"`
	Text       string `json:"text,omitempty"`
}

type answerResult struct {
	QuestionID string        `json:"questionId"`
	Outcome    match.Outcome `json:"outcome"`
	IsCorrect  bool          `json:"isCorrect"`
	TotalScore int           `json:"totalScore"`
}

type joinedPayload struct {
	Session     engine.Snapshot    `json:"session"`
	Participant domain.Participant `json:"participant"`
	Identity    domain.Identity    `json:"identity"`
}

// playRound tracks the participant's local countdown for the current
// question. Reaching zero without a submission files the explicit no-answer
// so the tally reflects what actually happened.
type playRound struct {
	mu         sync.Mutex
	questionID string
	answered   bool
	stop       chan struct{}
}

// begin switches to a new question. Returns false when the round is already
// current.
func (r *playRound) begin(questionID string) (chan struct{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.questionID == questionID {
		return nil, false
	}
	if r.stop != nil {
		close(r.stop)
	}
	r.questionID = questionID
	r.answered = false
	r.stop = make(chan struct{})
	return r.stop, true
}

// halt stops the countdown without starting a new round (reveal, completion).
func (r *playRound) halt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
}

// markAnswered records a submission; returns false if one already landed for
// that question.
func (r *playRound) markAnswered(questionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.questionID == questionID && r.answered {
		return false
	}
	if r.questionID == questionID {
		r.answered = true
	}
	return true
}

// timeUp claims the round as expired-unanswered. Exactly one caller wins the
// claim per question, whether the local countdown or the results transition
// gets there first.
func (r *playRound) timeUp(questionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.questionID != questionID || r.answered {
		return false
	}
	r.answered = true
	return true
}

// ServePlay runs the participant-play view: join by code, answer questions
// under a local countdown, follow the host through the fan-out cues.
func (h *Handler) ServePlay(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}
	nickname := r.URL.Query().Get("name")
	id, err := h.identities.Resolve(r.URL.Query().Get("userId"), nickname)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	sess, participant, err := h.engine.Join(ctx, code, id, nickname)
	if err != nil {
		_ = conn.WriteJSON(errMsg(err.Error()))
		return
	}

	cues, cancel := h.hub.Subscribe(sess.ID, h.playPoll)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := startWriter(conn, send)
	cuesDone := make(chan struct{})
	round := &playRound{}
	defer round.halt()

	snap, err := h.engine.Snapshot(ctx, sess.ID)
	if err != nil {
		_ = conn.WriteJSON(errMsg(err.Error()))
		close(closeSignals)
		close(send)
		<-writerDone
		return
	}

	go func() {
		defer close(cuesDone)
		for {
			select {
			case _, ok := <-cues:
				if !ok {
					return
				}
				if !h.pushPlayState(ctx, sess.ID, participant.ID, round, send, closeSignals) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outbound("joined", joinedPayload{Session: snap, Participant: participant, Identity: id})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if h.handlePlayCommand(ctx, sess.ID, participant.ID, round, inbound, send) {
			break
		}
	}

	close(closeSignals)
	<-cuesDone
	close(send)
	<-writerDone
}

func (h *Handler) handlePlayCommand(ctx context.Context, sessionID, participantID string, round *playRound, inbound inboundMessage, send chan<- outboundMessage[any]) bool {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuestionID == "" {
			send <- errMsg("invalid answer payload")
			return false
		}
		// Claim the round before the write so a racing countdown cannot
		// overwrite a real answer with a no-answer.
		round.markAnswered(payload.QuestionID)
		res, err := h.engine.Submit(ctx, sessionID, participantID, payload.QuestionID, match.Submission{
			AnswerID: payload.AnswerID,
			Text:     payload.Text,
		})
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrSessionEnded) {
				send <- outbound("sessionEnded", struct{}{})
				return true
			}
			send <- errMsg(err.Error())
			return false
		}
		send <- outbound("answerResult", answerResult{
			QuestionID: payload.QuestionID,
			Outcome:    res.Outcome,
			IsCorrect:  res.IsCorrect,
			TotalScore: res.TotalScore,
		})
	case "leave":
		if err := h.engine.Leave(ctx, sessionID, participantID); err != nil {
			send <- errMsg(err.Error())
			return false
		}
		send <- outbound("left", struct{}{})
		return true
	default:
		send <- errMsg("unsupported message type")
	}
	return false
}

// pushPlayState reloads the participant aggregates, keeps the local
// countdown in step with the current question, and queues the refreshed
// state. Returns false once the session row is gone.
func (h *Handler) pushPlayState(ctx context.Context, sessionID, participantID string, round *playRound, send chan<- outboundMessage[any], closeSignals <-chan struct{}) bool {
	snap, err := h.engine.Snapshot(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		// The host closed the session; tell the view to leave, not "error".
		trySend(send, closeSignals, outbound("sessionEnded", struct{}{}))
		return false
	}
	if err != nil {
		log.Printf("play snapshot reload: %v", err)
		return true
	}

	switch snap.Phase {
	case engine.PhaseQuestion:
		if snap.Question != nil {
			h.armCountdown(ctx, sessionID, participantID, round, *snap.Question)
		}
	case engine.PhaseResults:
		round.halt()
		// A reveal that lands before the local countdown still owes the
		// tally an explicit no-answer for an unanswered round.
		if snap.Question != nil && round.timeUp(snap.Question.ID) {
			if _, err := h.engine.SubmitNoAnswer(ctx, sessionID, participantID, snap.Question.ID); err != nil {
				log.Printf("no-answer submit: %v", err)
			}
		}
	case engine.PhaseCompleted:
		round.halt()
	}

	lb, err := h.engine.Leaderboard(ctx, sessionID)
	if err != nil {
		log.Printf("play leaderboard reload: %v", err)
		return true
	}
	if !trySend(send, closeSignals, outbound("session", snap)) {
		return false
	}
	return trySend(send, closeSignals, outbound("leaderboard", lb))
}

// armCountdown starts the participant-side timer for a newly current
// question. The countdown is local: reaching zero files the explicit
// no-answer without waiting for any host signal. The resulting response
// event cues the view refresh, so the timer never writes to the socket.
func (h *Handler) armCountdown(ctx context.Context, sessionID, participantID string, round *playRound, q domain.Question) {
	stop, started := round.begin(q.ID)
	if !started {
		return
	}
	go func() {
		select {
		case <-time.After(time.Duration(q.TimeLimitSeconds) * time.Second):
		case <-stop:
			return
		}
		if !round.timeUp(q.ID) {
			return
		}
		if _, err := h.engine.SubmitNoAnswer(ctx, sessionID, participantID, q.ID); err != nil {
			log.Printf("no-answer submit: %v", err)
		}
	}()
}
