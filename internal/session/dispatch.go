package session

import (
	"go.uber.org/zap"

	"github.com/mimiclab/simlink/internal/common/cnst"
)

// Handler receives every successfully parsed, non-duplicate inbound message.
type Handler func(msg *Message)

type handlerEntry struct {
	id uint64
	fn Handler
}

// seenSet is a bounded record of recently observed message ids, used to
// discard duplicate deliveries caused by reconnect races or server retries.
// When it grows past cap it is trimmed to the retain most recent ids.
// Callers must hold the session mutex.
type seenSet struct {
	cap    int
	retain int
	ids    map[string]struct{}
	order  []string
}

func newSeenSet(capacity, retain int) *seenSet {
	return &seenSet{
		cap:    capacity,
		retain: retain,
		ids:    make(map[string]struct{}, capacity),
	}
}

// observe records an id and reports whether it was new.
func (s *seenSet) observe(id string) bool {
	if _, dup := s.ids[id]; dup {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.cap {
		cut := len(s.order) - s.retain
		for _, old := range s.order[:cut] {
			delete(s.ids, old)
		}
		s.order = append([]string(nil), s.order[cut:]...)
	}
	return true
}

func (s *seenSet) size() int {
	return len(s.order)
}

// dispatch parses one transport frame, deduplicates it, applies the busy-flag
// side effect, and fans the message out to every registered handler.
func (s *Session) dispatch(frame []byte) {
	msg, err := ParseMessage(frame)
	if err != nil {
		s.m.MalformedFrame()
		s.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	s.mu.Lock()
	if msg.MessageID != "" && !s.seen.observe(msg.MessageID) {
		s.mu.Unlock()
		s.m.DuplicateDropped()
		s.logger.Debug("duplicate message discarded",
			zap.String("type", msg.Type),
			zap.String("message_id", msg.MessageID))
		return
	}

	// The busy flag must be settled before fan-out so that handlers and
	// listeners observe consistent ordering relative to this shared state.
	var busyListeners []func(bool)
	var busy bool
	if r := msg.Get(cnst.FieldIsComputing); r.Exists() {
		busy = r.Bool()
		if busy != s.computing {
			s.computing = busy
			busyListeners = make([]func(bool), 0, len(s.computingListeners))
			for _, l := range s.computingListeners {
				busyListeners = append(busyListeners, l)
			}
		}
	}
	handlers := make([]Handler, len(s.handlers))
	for i, e := range s.handlers {
		handlers[i] = e.fn
	}
	s.mu.Unlock()

	s.m.MessageReceived(msg.Type)
	for _, l := range busyListeners {
		l(busy)
	}
	for _, h := range handlers {
		s.invoke(h, msg)
	}
}

// invoke isolates handler panics so one failing consumer cannot starve the
// rest of the fan-out.
func (s *Session) invoke(h Handler, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("message handler panicked",
				zap.String("type", msg.Type),
				zap.Any("panic", r))
		}
	}()
	h(msg)
}
