package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"livequiz-service/internal/domain"
)

type closePayload struct {
	Confirm bool `json:"confirm"`
}

// ServeHost runs the host-control view: it creates the session, pushes
// reloaded aggregates on every fan-out cue, and maps inbound commands 1:1 to
// state machine transitions.
func (h *Handler) ServeHost(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	name := r.URL.Query().Get("name")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	host, err := h.identities.Resolve(userID, name)
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
	sess, err := h.engine.Host(ctx, host, quizID)
	if err != nil {
		_ = conn.WriteJSON(errMsg(err.Error()))
		return
	}

	cues, cancel := h.hub.Subscribe(sess.ID, h.hostPoll)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := startWriter(conn, send)
	cuesDone := make(chan struct{})

	go func() {
		defer close(cuesDone)
		for {
			select {
			case _, ok := <-cues:
				if !ok {
					return
				}
				if !h.pushHostState(ctx, sess.ID, send, closeSignals) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// Initial state so the host sees the lobby and join code immediately.
	h.pushHostState(ctx, sess.ID, send, closeSignals)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if h.handleHostCommand(ctx, sess.ID, host.ID, inbound, send) {
			break
		}
	}

	close(closeSignals)
	<-cuesDone
	close(send)
	<-writerDone
}

// handleHostCommand executes one host intent. Returns true when the
// connection should shut down (session closed).
func (h *Handler) handleHostCommand(ctx context.Context, sessionID, hostID string, inbound inboundMessage, send chan<- outboundMessage[any]) bool {
	switch inbound.Type {
	case "start":
		h.hostTransition(send, func() error {
			_, err := h.engine.Start(ctx, sessionID, hostID)
			return err
		})
	case "reveal":
		h.hostTransition(send, func() error {
			_, err := h.engine.Reveal(ctx, sessionID, hostID)
			return err
		})
	case "next":
		h.hostTransition(send, func() error {
			_, err := h.engine.Advance(ctx, sessionID, hostID)
			return err
		})
	case "finish":
		h.hostTransition(send, func() error {
			_, err := h.engine.Finish(ctx, sessionID, hostID)
			return err
		})
	case "close":
		var payload closePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || !payload.Confirm {
			// Irreversible: everything is hard-deleted, so the client must
			// confirm explicitly before the write is issued.
			send <- errMsg("closing discards the session; send confirm:true")
			return false
		}
		if err := h.engine.Close(ctx, sessionID, hostID); err != nil {
			send <- errMsg(err.Error())
			return false
		}
		send <- outbound("sessionClosed", struct{}{})
		return true
	default:
		send <- errMsg("unsupported message type")
	}
	return false
}

// hostTransition runs a state machine write and surfaces its error to the
// host; a failed write leaves every view in the prior phase, so there is
// nothing else to roll back.
func (h *Handler) hostTransition(send chan<- outboundMessage[any], fn func() error) {
	if err := fn(); err != nil {
		send <- errMsg(err.Error())
	}
}

// pushHostState reloads the host aggregates and queues them. Returns false
// once the session is gone, after queuing the closed notice.
func (h *Handler) pushHostState(ctx context.Context, sessionID string, send chan<- outboundMessage[any], closeSignals <-chan struct{}) bool {
	snap, err := h.engine.Snapshot(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		trySend(send, closeSignals, outbound("sessionClosed", struct{}{}))
		return false
	}
	if err != nil {
		// Display refresh only: log and let the next cue retry.
		log.Printf("host snapshot reload: %v", err)
		return true
	}
	lb, err := h.engine.Leaderboard(ctx, sessionID)
	if err != nil {
		log.Printf("host leaderboard reload: %v", err)
		return true
	}
	if !trySend(send, closeSignals, outbound("session", snap)) {
		return false
	}
	return trySend(send, closeSignals, outbound("leaderboard", lb))
}

// trySend queues a message unless the connection is tearing down.
func trySend(send chan<- outboundMessage[any], closeSignals <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-closeSignals:
		return false
	}
}
