package mainloop

import (
	"sync"
	"testing"
	"time"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []outboundMsg
}

func (f *fakeSender) SendMessage(channel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, outboundMsg{channel: channel, text: text})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestTickIntervalClampsToMinimum(t *testing.T) {
	l := New(&fakeSender{}, Config{TickInterval: time.Millisecond, MinSleep: 50 * time.Millisecond, MaxSleep: time.Second})
	if l.sleep != 50*time.Millisecond {
		t.Fatalf("expected clamp to MinSleep, got %v", l.sleep)
	}
}

func TestTickIntervalClampsToMaximum(t *testing.T) {
	l := New(&fakeSender{}, Config{TickInterval: time.Hour, MinSleep: time.Millisecond, MaxSleep: 100 * time.Millisecond})
	if l.sleep != 100*time.Millisecond {
		t.Fatalf("expected clamp to MaxSleep, got %v", l.sleep)
	}
}

func TestEnqueueAndDrainDeliversInOrder(t *testing.T) {
	sender := &fakeSender{}
	l := New(sender, Config{TickInterval: 5 * time.Millisecond, MinSleep: time.Millisecond, MaxSleep: time.Second})
	l.Enqueue("chan", "first")
	l.Enqueue("chan", "second")

	go l.Run()
	defer l.Stop()

	deadline := time.Now().Add(time.Second)
	for sender.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.sent) != 2 || sender.sent[0].text != "first" || sender.sent[1].text != "second" {
		t.Fatalf("unexpected delivery order: %+v", sender.sent)
	}
}

func TestCooldownSpacesDeliveries(t *testing.T) {
	sender := &fakeSender{}
	cooldown := 40 * time.Millisecond
	l := New(sender, Config{TickInterval: 5 * time.Millisecond, MinSleep: time.Millisecond, MaxSleep: time.Second, Cooldown: cooldown})
	l.Enqueue("chan", "a")
	l.Enqueue("chan", "b")

	go l.Run()
	defer l.Stop()

	deadline := time.Now().Add(time.Second)
	for sender.count() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	first := time.Now()

	for sender.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	second := time.Now()

	if second.Sub(first) < cooldown-5*time.Millisecond {
		t.Fatalf("expected at least ~%v between sends, got %v", cooldown, second.Sub(first))
	}
}

func TestEnqueueDropsOldestOnOverflow(t *testing.T) {
	sender := &fakeSender{}
	l := New(sender, Config{TickInterval: time.Hour, MinSleep: time.Millisecond, MaxSleep: time.Hour, MaxQueueDepth: 2})
	l.Enqueue("chan", "a")
	l.Enqueue("chan", "b")
	l.Enqueue("chan", "c")

	if l.QueueDepth() != 2 {
		t.Fatalf("expected queue depth clamped to 2, got %d", l.QueueDepth())
	}
	l.mu.Lock()
	first := l.outbound[0].text
	l.mu.Unlock()
	if first != "b" {
		t.Fatalf("expected oldest message dropped, queue head is %q", first)
	}
}

func TestRegisteredRoutineTicks(t *testing.T) {
	l := New(&fakeSender{}, Config{TickInterval: 5 * time.Millisecond, MinSleep: time.Millisecond, MaxSleep: time.Second})
	var calls int
	var mu sync.Mutex
	l.Register(RoutineFunc(func(now time.Time) {
		mu.Lock()
		calls++
		mu.Unlock()
	}))

	go l.Run()
	defer l.Stop()

	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		mu.Lock()
		c := calls
		mu.Unlock()
		if c >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls < 2 {
		t.Fatalf("expected the routine to tick at least twice, got %d", calls)
	}
}

func TestSplitMessageBreaksOnSpaceNearLimit(t *testing.T) {
	pieces := splitMessage("the quick brown fox jumps", 12)
	for _, p := range pieces {
		if len(p) > 12 {
			t.Fatalf("piece %q exceeds limit", p)
		}
	}
	joined := ""
	for i, p := range pieces {
		if i > 0 {
			joined += " "
		}
		joined += p
	}
	if joined != "the quick brown fox jumps" {
		t.Fatalf("split lost content: %q", joined)
	}
}

func TestSplitMessageUnderLimitIsUnchanged(t *testing.T) {
	pieces := splitMessage("short", 500)
	if len(pieces) != 1 || pieces[0] != "short" {
		t.Fatalf("expected a single unmodified piece, got %v", pieces)
	}
}
