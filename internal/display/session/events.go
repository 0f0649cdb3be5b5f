package session

// EventKind identifies a session notification.
type EventKind int

const (
	// EventNewPage signals that an appended page is available through
	// Results.
	EventNewPage EventKind = iota
	// EventDestroy asks every view of the session to tear itself down.
	EventDestroy
)

func (k EventKind) String() string {
	switch k {
	case EventNewPage:
		return "new_page"
	case EventDestroy:
		return "destroy"
	default:
		return "unknown"
	}
}

// Event is a session notification. Page is set for EventNewPage.
type Event struct {
	Kind EventKind
	Page int
}

const subscriberBuffer = 8

// Subscribe registers for session notifications. The returned function
// unsubscribes and closes the channel; it is safe to call more than once.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Session) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *Session) publish(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("subscriber not keeping up, event dropped", "subscriber", id, "event", ev.Kind.String())
		}
	}
}
