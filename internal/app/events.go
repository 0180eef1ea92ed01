package app

import (
	"time"

	"github.com/raysh454/darkscan/internal/model"
)

type EventType string

const (
	EventState        EventType = "STATE_CHANGED"
	EventScanComplete EventType = "SCAN_COMPLETE"
	EventNewPatterns  EventType = model.NotificationNewPatterns
	EventMonitoring   EventType = "MONITORING_CHANGED"
	EventClosed       EventType = "SESSION_CLOSED"
)

// Event is published to session subscribers. NEW_PATTERNS_DETECTED events
// carry the newly reported patterns.
type Event struct {
	SessionID  string          `json:"sessionId"`
	Type       EventType       `json:"type"`
	State      State           `json:"state,omitempty"`
	Monitoring bool            `json:"monitoring,omitempty"`
	Count      int             `json:"count,omitempty"`
	Patterns   []model.Pattern `json:"patterns,omitempty"`
	At         time.Time       `json:"at"`
}

const subscriberBuffer = 16

// Subscribe registers a listener for s's events. The returned cancel func
// unregisters and closes the channel.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.subMu.Lock()
	if s.closed {
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// emit delivers ev without blocking; slow subscribers miss events.
func (s *Session) emit(ev Event) {
	ev.SessionID = s.id
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Session) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
