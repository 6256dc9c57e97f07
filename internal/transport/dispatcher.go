package transport

import "sync"

// Handler receives dispatched Events.
type Handler func(Event)

// subscription is a registered handler plus a flag marking it for
// removal on the next Tock.
type subscription struct {
	id      int
	handler Handler
	removed bool
}

// Dispatcher fans one transport's Events out to typed subscribers in
// registration order. Unsubscribing only marks the subscription, and
// dropping it from the list is deferred to the next Tock call, so a
// handler removing itself (or another handler) never invalidates the
// in-progress iteration.
type Dispatcher struct {
	mu      sync.Mutex
	nextID  int
	subs    []*subscription
	pending []Event
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers handler and returns an id usable with
// Unsubscribe.
func (d *Dispatcher) Subscribe(handler Handler) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, &subscription{id: id, handler: handler})
	return id
}

// Unsubscribe marks id for removal. A marked handler is skipped by every
// later Dispatch, and by a dispatch in progress that has not reached it
// yet; the subscription is dropped from the list on the next Tock.
func (d *Dispatcher) Unsubscribe(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.subs {
		if s.id == id {
			s.removed = true
			return
		}
	}
}

// Dispatch is called by a Transport implementation's read pump. It is
// safe to call from any goroutine; handlers run synchronously on the
// caller's goroutine, in registration order.
func (d *Dispatcher) Dispatch(evt Event) {
	d.mu.Lock()
	subs := make([]*subscription, len(d.subs))
	copy(subs, d.subs)
	d.mu.Unlock()

	for _, s := range subs {
		if s.removed {
			continue
		}
		s.handler(evt)
	}
}

// Tock drops any subscriptions marked for removal since the last Tock.
// The owning mainloop calls this once per tick.
func (d *Dispatcher) Tock() {
	d.mu.Lock()
	defer d.mu.Unlock()
	live := d.subs[:0]
	for _, s := range d.subs {
		if !s.removed {
			live = append(live, s)
		}
	}
	d.subs = live
}
