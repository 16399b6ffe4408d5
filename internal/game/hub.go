package game

import (
	"sync"

	"quizlive/internal/domain"
)

// Event message types pushed to subscribers.
const (
	EventTask      = "task"
	EventHeartbeat = "heartbeat"
)

// Event is one message on a participant's push stream. Heartbeats carry a
// type only, so clients can tell them apart from real game events.
type Event struct {
	Type      string               `json:"type"`
	SessionID string               `json:"sessionId,omitempty"`
	Status    domain.SessionStatus `json:"status,omitempty"`
	Task      *TaskView            `json:"task,omitempty"`
}

// Heartbeat is the keepalive event written by transports on their own
// schedule.
func Heartbeat() Event {
	return Event{Type: EventHeartbeat}
}

type subscriber struct {
	ch            chan Event
	participantID string
	role          domain.Role
}

// Hub fans the authoritative state out to every connected participant,
// projected per subscriber. One logical stream per participant; slow
// consumers lose intermediate states, never the latest one.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers a stream for one participant and immediately delivers
// the current state so late joiners and reconnections catch up.
func (h *Hub) Subscribe(s *domain.GameSession, participantID string, role domain.Role) (<-chan Event, func()) {
	sub := &subscriber{
		ch:            make(chan Event, 8),
		participantID: participantID,
		role:          role,
	}

	h.mu.Lock()
	set, ok := h.subs[s.ID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[s.ID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	sub.ch <- h.eventFor(s, sub)

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[s.ID]; ok {
			if _, ok := set[sub]; ok {
				delete(set, sub)
				close(sub.ch)
			}
			if len(set) == 0 {
				delete(h.subs, s.ID)
			}
		}
		h.mu.Unlock()
	}
	return sub.ch, cancel
}

// Broadcast republishes the session's authoritative state to every
// subscriber after a committed transition.
func (h *Hub) Broadcast(s *domain.GameSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[s.ID] {
		ev := h.eventFor(s, sub)
		select {
		case sub.ch <- ev:
		default:
			// Slow consumer: evict the stale event so the latest state
			// always lands.
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- ev
		}
	}
}

func (h *Hub) eventFor(s *domain.GameSession, sub *subscriber) Event {
	view := ProjectTask(s, sub.role, sub.participantID)
	return Event{
		Type:      EventTask,
		SessionID: s.ID,
		Status:    s.Status,
		Task:      &view,
	}
}
