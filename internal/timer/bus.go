package timer

import (
	"sync"
	"time"

	"github.com/berth-dev/focus/internal/store"
)

// EventKind identifies a notification published by the engine.
type EventKind int

const (
	// EventStateChanged is published once per transition.
	EventStateChanged EventKind = iota
	// EventTick carries the remaining time while running.
	EventTick
	// EventResolved follows the terminal state change once the session
	// record is durable.
	EventResolved
	// EventPersistFailed reports that a terminal record could not be
	// written. The engine keeps the terminal state until a retry succeeds.
	EventPersistFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventTick:
		return "tick"
	case EventResolved:
		return "resolved"
	case EventPersistFailed:
		return "persist_failed"
	}
	return "unknown"
}

// Event is one engine notification.
type Event struct {
	Kind      EventKind
	SessionID string
	From      State // EventStateChanged only
	State     State
	Remaining time.Duration
	Duration  time.Duration

	// Record is the persisted session (EventResolved).
	Record *store.SessionRecord
	// DayCount is the refreshed completed total for the record's day, or -1
	// when it was not refreshed.
	DayCount int
	// Err is the storage error (EventPersistFailed) or a problem noticed
	// after the record was already durable (EventResolved).
	Err error
}

// bus fans events out to subscribers. Each subscriber has its own unbounded
// queue drained by a pump goroutine, so publishing never blocks and no
// event is dropped or reordered.
type bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
	closed bool
}

type subscriber struct {
	mu     sync.Mutex
	queue  []Event
	signal chan struct{}
	out    chan Event
	done   chan struct{}
	once   sync.Once
	// closing makes the pump exit once the queue is empty.
	closing bool
}

func newBus() *bus {
	return &bus{subs: make(map[int]*subscriber)}
}

func (b *bus) subscribe() (<-chan Event, func()) {
	sub := &subscriber{
		signal: make(chan struct{}, 1),
		out:    make(chan Event),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.out)
		return sub.out, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	go sub.pump()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		sub.stop()
	}
	return sub.out, cancel
}

func (b *bus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		sub.push(ev)
	}
}

// close stops every pump after it has delivered what is already queued.
func (b *bus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.drainAndStop()
	}
}

func (s *subscriber) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// drainAndStop lets the pump flush its queue, then exit.
func (s *subscriber) drainAndStop() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return
			}
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
