package transport

import "testing"

func TestDispatchDeliversInRegistrationOrder(t *testing.T) {
	d := NewDispatcher()
	var order []int
	d.Subscribe(func(Event) { order = append(order, 1) })
	d.Subscribe(func(Event) { order = append(order, 2) })
	d.Subscribe(func(Event) { order = append(order, 3) })

	d.Dispatch(Event{Kind: MessageReceived})

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestUnsubscribeDuringDispatchTakesEffectNextTock(t *testing.T) {
	d := NewDispatcher()
	var calls int
	var id int
	id = d.Subscribe(func(Event) {
		calls++
		d.Unsubscribe(id)
	})
	d.Subscribe(func(Event) { calls++ })

	d.Dispatch(Event{Kind: Connected})
	if calls != 2 {
		t.Fatalf("expected both handlers to run during the dispatch that requested removal, got %d calls", calls)
	}

	d.Dispatch(Event{Kind: Connected})
	if calls != 3 {
		t.Fatalf("expected the unsubscribed handler to be skipped even before Tock runs, got %d calls", calls)
	}

	d.Tock()
	d.Dispatch(Event{Kind: Connected})
	if calls != 4 {
		t.Fatalf("expected only the surviving handler to fire after Tock, got %d calls", calls)
	}
}

func TestDispatchCarriesEventFields(t *testing.T) {
	d := NewDispatcher()
	var got Event
	d.Subscribe(func(e Event) { got = e })

	d.Dispatch(Event{Kind: MessageReceived, User: "viewer1", Text: "a+b"})

	if got.Kind != MessageReceived || got.User != "viewer1" || got.Text != "a+b" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestSubscribeDuringDispatchDoesNotRunThisRound(t *testing.T) {
	d := NewDispatcher()
	var calls int
	d.Subscribe(func(Event) {
		calls++
		d.Subscribe(func(Event) { calls++ })
	})

	d.Dispatch(Event{Kind: Connected})
	if calls != 1 {
		t.Fatalf("expected the newly-added handler to be excluded from the in-flight dispatch, got %d calls", calls)
	}

	d.Dispatch(Event{Kind: Connected})
	if calls != 3 {
		t.Fatalf("expected both handlers present on the next dispatch, got %d calls", calls)
	}
}
