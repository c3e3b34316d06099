package sessions

import "sync"

// ChangeEvent is emitted once per mutating operation. The three lists are
// always delivered together; any of them may be empty.
type ChangeEvent struct {
	Added   []Session
	Removed []Session
	Changed []Session
}

// IsEmpty reports whether the event carries no sessions at all
func (e ChangeEvent) IsEmpty() bool {
	return len(e.Added) == 0 && len(e.Removed) == 0 && len(e.Changed) == 0
}

// Listener receives change events.
type Listener func(ChangeEvent)

type subscription struct {
	id uint64
	fn Listener
}

// listeners is an ordered subscriber list. Notify runs listeners on the
// caller's goroutine, outside the list lock.
type listeners struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
}

func (l *listeners) subscribe(fn Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	l.subs = append(l.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { l.unsubscribe(id) })
	}
}

func (l *listeners) unsubscribe(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, s := range l.subs {
		if s.id == id {
			l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
			return
		}
	}
}

func (l *listeners) notify(event ChangeEvent) {
	l.mu.Lock()
	subs := make([]subscription, len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()

	for _, s := range subs {
		s.fn(event)
	}
}
