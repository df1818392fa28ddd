// Package fanout bridges the session store's change feeds to view
// subscriptions. Delivery is at-least-once and unordered across collections;
// every cue means "reload the affected aggregate", never "trust this
// payload". Each subscription additionally carries an independent
// reconciliation ticker as a backstop against missed or merged events.
package fanout

import (
	"sync"
	"time"

	"livequiz-service/internal/store"
)

// Cue prompts a view to refresh. Reconcile cues come from the periodic poll,
// the rest mirror store events.
type Cue struct {
	Collection store.Collection `json:"collection,omitempty"`
	Type       store.EventType  `json:"type,omitempty"`
	Reconcile  bool             `json:"reconcile,omitempty"`
}

// Hub multiplexes the three session-scoped collection feeds into one cue
// stream per subscriber.
type Hub struct {
	store store.SessionStore
}

func New(st store.SessionStore) *Hub {
	return &Hub{store: st}
}

// Subscribe opens a cue stream for one session. pollInterval sets the
// reconciliation cadence (host views poll tighter than participant views).
// The cancel function releases the store subscriptions, stops the ticker,
// and closes the stream; callers must invoke it on view teardown.
func (h *Hub) Subscribe(sessionID string, pollInterval time.Duration) (<-chan Cue, func()) {
	out := make(chan Cue, 16)
	done := make(chan struct{})

	sessions, cancelSessions := h.store.Subscribe(store.Sessions, sessionID)
	participants, cancelParticipants := h.store.Subscribe(store.Participants, sessionID)
	responses, cancelResponses := h.store.Subscribe(store.Responses, sessionID)

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		defer close(out)
		for {
			select {
			case <-done:
				return
			case ev, ok := <-sessions:
				if !ok {
					return
				}
				deliver(out, Cue{Collection: ev.Collection, Type: ev.Type})
			case ev, ok := <-participants:
				if !ok {
					return
				}
				deliver(out, Cue{Collection: ev.Collection, Type: ev.Type})
			case ev, ok := <-responses:
				if !ok {
					return
				}
				deliver(out, Cue{Collection: ev.Collection, Type: ev.Type})
			case <-ticker.C:
				deliver(out, Cue{Reconcile: true})
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			cancelSessions()
			cancelParticipants()
			cancelResponses()
		})
	}
	return out, cancel
}

// deliver pushes a cue without blocking the merge loop; a full subscriber
// loses its oldest pending cue. Cues are idempotent reload triggers, so a
// dropped one is covered by the next cue or reconcile tick.
func deliver(out chan Cue, cue Cue) {
	select {
	case out <- cue:
	default:
		select {
		case <-out:
		default:
		}
		select {
		case out <- cue:
		default:
		}
	}
}
