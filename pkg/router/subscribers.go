package router

import "sync"

// Listener observes committed navigation results. A nil match means the
// current state was cleared (no route matched).
//
// Listeners run synchronously inside the commit. They must not wait for
// another navigation to complete; start one from a goroutine instead.
type Listener func(match *RouteMatch)

// bus is the subscriber registry. Listeners are called in subscription order.
type bus struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []subscription
}

type subscription struct {
	id uint64
	fn Listener
}

func newBus() *bus {
	return &bus{}
}

// add registers fn and returns an idempotent removal function.
func (b *bus) add(fn Listener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.listeners {
		if s.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

func (b *bus) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// notify calls every listener with match. A panicking listener does not
// stop the others; the panics are returned for the caller to report once
// it holds no locks.
func (b *bus) notify(match *RouteMatch) []error {
	b.mu.Lock()
	snapshot := make([]subscription, len(b.listeners))
	copy(snapshot, b.listeners)
	b.mu.Unlock()

	var panics []error
	for _, s := range snapshot {
		if err := deliver(s.fn, match); err != nil {
			panics = append(panics, err)
		}
	}
	return panics
}

func deliver(fn Listener, match *RouteMatch) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicError(p)
		}
	}()
	fn(match)
	return nil
}
