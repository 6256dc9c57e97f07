package scheduler

import (
	"testing"
	"time"

	"inputbot/internal/parser"
	"inputbot/internal/vcontroller"
	"inputbot/internal/vocab"
)

func newTestManager(t *testing.T, count int) (*vcontroller.Manager, *vcontroller.MemoryDriver) {
	d := vcontroller.NewMemoryDriver(1, count)
	m := vcontroller.NewManager(d)
	if _, err := m.Init(count); err != nil {
		t.Fatalf("failed to init test manager: %v", err)
	}
	return m, d
}

func seqOf(steps ...parser.InputSubSequence) *parser.InputSequence {
	return &parser.InputSequence{Steps: steps, Result: parser.Valid}
}

func input(name string, kind vocab.Kind, durationMs int) parser.Input {
	return parser.Input{Name: name, Kind: kind, DurationMs: durationMs}
}

func waitForOutcome(t *testing.T, done chan Outcome, timeout time.Duration) Outcome {
	select {
	case o := <-done:
		return o
	case <-time.After(timeout):
		t.Fatal("timed out waiting for job outcome")
		return Completed
	}
}

func TestSubmitCompletesSimpleSequence(t *testing.T) {
	m, d := newTestManager(t, 1)
	s := New(m, 10)

	seq := seqOf(parser.InputSubSequence{Inputs: []parser.Input{input("a", vocab.Button, 5)}})
	j := s.Submit("viewer1", seq, 0, NewCancelToken())

	if o := waitForOutcome(t, j.Done, time.Second); o != Completed {
		t.Fatalf("expected Completed, got %v", o)
	}

	hist := d.History()
	if !containsOrdered(hist, "press:a", "update", "release:a", "update") {
		t.Fatalf("unexpected history: %v", hist)
	}
}

func TestSubmitPlaysChordAsSingleUpdate(t *testing.T) {
	m, d := newTestManager(t, 1)
	s := New(m, 10)

	seq := seqOf(parser.InputSubSequence{Inputs: []parser.Input{
		input("a", vocab.Button, 10),
		input("b", vocab.Button, 10),
	}})
	j := s.Submit("viewer1", seq, 0, NewCancelToken())
	waitForOutcome(t, j.Done, time.Second)

	hist := d.History()
	updateCount := 0
	for _, h := range hist {
		if h == "update" {
			updateCount++
		}
	}
	if updateCount != 2 {
		t.Fatalf("expected exactly 2 updates (press-phase, release-phase), got %d in %v", updateCount, hist)
	}
}

func TestHoldPersistsPastSequenceEnd(t *testing.T) {
	m, d := newTestManager(t, 1)
	s := New(m, 10)

	held := parser.Input{Name: "a", Kind: vocab.Button, DurationMs: 5, Hold: true}
	seq := seqOf(parser.InputSubSequence{Inputs: []parser.Input{held}})
	j := s.Submit("viewer1", seq, 0, NewCancelToken())
	waitForOutcome(t, j.Done, time.Second)

	hist := d.History()
	for _, h := range hist {
		if h == "release:a" {
			t.Fatalf("expected a hold input to not be released at sequence end, got %v", hist)
		}
	}

	s.mu.Lock()
	_, stillHeld := s.held[heldKey{port: 0, name: "a"}]
	s.mu.Unlock()
	if !stillHeld {
		t.Fatal("expected a to remain in the held set after the sequence completed")
	}
}

func TestReleaseInputClearsHold(t *testing.T) {
	m, _ := newTestManager(t, 1)
	s := New(m, 10)
	s.markHeld(0, "a", false)

	release := parser.Input{Name: "a", Kind: vocab.Button, Release: true}
	seq := seqOf(parser.InputSubSequence{Inputs: []parser.Input{release}})
	j := s.Submit("viewer1", seq, 0, NewCancelToken())
	waitForOutcome(t, j.Done, time.Second)

	s.mu.Lock()
	_, stillHeld := s.held[heldKey{port: 0, name: "a"}]
	s.mu.Unlock()
	if stillHeld {
		t.Fatal("expected release-flagged input to clear the hold")
	}
}

func TestCancelBetweenStepsReleasesHeldState(t *testing.T) {
	m, d := newTestManager(t, 1)
	s := New(m, 10)

	token := NewCancelToken()
	held := parser.Input{Name: "a", Kind: vocab.Button, DurationMs: 5, Hold: true}
	seq := seqOf(
		parser.InputSubSequence{Inputs: []parser.Input{held}},
		parser.InputSubSequence{Inputs: []parser.Input{input("b", vocab.Button, 5)}},
	)

	j := s.Submit("viewer1", seq, 0, token)
	// Cancel immediately; whether it lands before or after the first
	// step begins, the job must end Cancelled and release any hold it
	// had already taken.
	token.Cancel()
	o := waitForOutcome(t, j.Done, time.Second)
	if o != Cancelled {
		t.Fatalf("expected Cancelled, got %v", o)
	}

	s.mu.Lock()
	_, stillHeld := s.held[heldKey{port: 0, name: "a"}]
	s.mu.Unlock()
	if stillHeld {
		t.Fatalf("expected cancellation to release any hold taken mid-sequence, got history %v", d.History())
	}
}

func TestDeviceGoneAbortsSequence(t *testing.T) {
	m, d := newTestManager(t, 1)
	d.SimulateDeviceGone(0)
	s := New(m, 10)

	var gonePort int = -1
	s.OnDeviceGone = func(port int) { gonePort = port }

	seq := seqOf(parser.InputSubSequence{Inputs: []parser.Input{input("a", vocab.Button, 5)}})
	j := s.Submit("viewer1", seq, 0, NewCancelToken())
	o := waitForOutcome(t, j.Done, time.Second)

	if o != DeviceGone {
		t.Fatalf("expected DeviceGone, got %v", o)
	}
	if gonePort != 0 {
		t.Fatalf("expected OnDeviceGone callback for port 0, got %d", gonePort)
	}
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	m, _ := newTestManager(t, 1)
	s := New(m, 1)

	var droppedUser string
	s.OnQueueOverflow = func(port int, user string) { droppedUser = user }

	// Block the lane with a long-running job so the next two queue up.
	blockerToken := NewCancelToken()
	blocker := seqOf(parser.InputSubSequence{Inputs: []parser.Input{input("a", vocab.Button, 200)}})
	s.Submit("blocker", blocker, 0, blockerToken)
	// Give the lane's consumer goroutine time to pop and start the
	// blocker before the lane is tested for overflow, or it could be
	// the one still sitting in the queue and dropped instead.
	time.Sleep(20 * time.Millisecond)

	seq := seqOf(parser.InputSubSequence{Inputs: []parser.Input{input("b", vocab.Button, 1)}})
	j1 := s.Submit("first", seq, 0, NewCancelToken())
	j2 := s.Submit("second", seq, 0, NewCancelToken())

	o := waitForOutcome(t, j1.Done, time.Second)
	if o != QueueOverflowDropped {
		t.Fatalf("expected the first queued job to be dropped for overflow, got %v", o)
	}
	if droppedUser != "first" {
		t.Fatalf("expected dropped user 'first', got %q", droppedUser)
	}
	<-j2.Done
}

func TestNonHoldAxisIsRecenteredAfterRelease(t *testing.T) {
	m, d := newTestManager(t, 1)
	s := New(m, 10)

	axis := parser.Input{Name: "lstickx", Kind: vocab.Axis, DurationMs: 5, Percent: 50}
	seq := seqOf(parser.InputSubSequence{Inputs: []parser.Input{axis}})
	j := s.Submit("viewer1", seq, 0, NewCancelToken())
	waitForOutcome(t, j.Done, time.Second)

	hist := d.History()
	axisOps := 0
	for _, h := range hist {
		if h == "axis:lstickx" {
			axisOps++
		}
	}
	if axisOps != 2 {
		t.Fatalf("expected the axis to be set during the press phase and re-centered during release, got %d axis ops in %v", axisOps, hist)
	}
}

func TestHoldAxisIsNotRecentered(t *testing.T) {
	m, d := newTestManager(t, 1)
	s := New(m, 10)

	axis := parser.Input{Name: "lstickx", Kind: vocab.Axis, DurationMs: 5, Percent: 50, Hold: true}
	seq := seqOf(parser.InputSubSequence{Inputs: []parser.Input{axis}})
	j := s.Submit("viewer1", seq, 0, NewCancelToken())
	waitForOutcome(t, j.Done, time.Second)

	hist := d.History()
	axisOps := 0
	for _, h := range hist {
		if h == "axis:lstickx" {
			axisOps++
		}
	}
	if axisOps != 1 {
		t.Fatalf("expected a held axis to not be re-centered, got %d axis ops in %v", axisOps, hist)
	}

	s.mu.Lock()
	_, stillHeld := s.held[heldKey{port: 0, name: "lstickx"}]
	s.mu.Unlock()
	if !stillHeld {
		t.Fatal("expected the held axis to remain in the held set")
	}
}

func TestExplicitAxisReleaseRecenters(t *testing.T) {
	m, d := newTestManager(t, 1)
	s := New(m, 10)
	s.markHeld(0, "lstickx", true)

	release := parser.Input{Name: "lstickx", Kind: vocab.Axis, Release: true}
	seq := seqOf(parser.InputSubSequence{Inputs: []parser.Input{release}})
	j := s.Submit("viewer1", seq, 0, NewCancelToken())
	waitForOutcome(t, j.Done, time.Second)

	hist := d.History()
	if !containsOrdered(hist, "axis:lstickx") {
		t.Fatalf("expected an explicit axis release to re-center via SetAxis, got %v", hist)
	}

	s.mu.Lock()
	_, stillHeld := s.held[heldKey{port: 0, name: "lstickx"}]
	s.mu.Unlock()
	if stillHeld {
		t.Fatal("expected the explicit release to clear the hold")
	}
}

func TestStopAllCancelsActiveJobs(t *testing.T) {
	m, _ := newTestManager(t, 1)
	s := New(m, 10)

	seq := seqOf(
		parser.InputSubSequence{Inputs: []parser.Input{input("a", vocab.Button, 50)}},
		parser.InputSubSequence{Inputs: []parser.Input{input("b", vocab.Button, 50)}},
	)
	j := s.Submit("viewer1", seq, 0, NewCancelToken())

	time.Sleep(5 * time.Millisecond)
	s.StopAll()

	o := waitForOutcome(t, j.Done, time.Second)
	if o != Cancelled {
		t.Fatalf("expected Cancelled, got %v", o)
	}
}

func containsOrdered(hist []string, seq ...string) bool {
	i := 0
	for _, h := range hist {
		if i < len(seq) && h == seq[i] {
			i++
		}
	}
	return i == len(seq)
}
