package router

import (
	"errors"
	"testing"
)

func TestBusNotifiesInOrder(t *testing.T) {
	b := newBus()
	var got []int
	b.add(func(*RouteMatch) { got = append(got, 1) })
	b.add(func(*RouteMatch) { got = append(got, 2) })
	b.add(func(*RouteMatch) { got = append(got, 3) })

	b.notify(&RouteMatch{Path: "/"})

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("delivery order = %v", got)
	}
}

func TestBusUnsubscribeIsIdempotent(t *testing.T) {
	b := newBus()
	calls := 0
	unsubscribe := b.add(func(*RouteMatch) { calls++ })
	b.add(func(*RouteMatch) {})

	unsubscribe()
	unsubscribe()

	if b.len() != 1 {
		t.Errorf("len() = %d, want 1", b.len())
	}
	b.notify(nil)
	if calls != 0 {
		t.Errorf("removed listener called %d times", calls)
	}
}

func TestBusIsolatesPanics(t *testing.T) {
	b := newBus()

	after := false
	b.add(func(*RouteMatch) { panic("boom") })
	b.add(func(*RouteMatch) { after = true })

	reported := b.notify(nil)

	if !after {
		t.Error("listener after the panicking one was not called")
	}
	if len(reported) != 1 || !errors.Is(reported[0], ErrPanic) {
		t.Errorf("reported = %v", reported)
	}
}

func TestBusUnsubscribeDuringNotify(t *testing.T) {
	b := newBus()
	var unsubscribe func()
	calls := 0
	unsubscribe = b.add(func(*RouteMatch) {
		calls++
		unsubscribe()
	})

	b.notify(nil)
	b.notify(nil)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
