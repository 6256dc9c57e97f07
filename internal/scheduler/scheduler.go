// Package scheduler plays InputSequences against a vcontroller.Manager
// pool, one FIFO lane per port so same-port work serializes and
// different ports run concurrently.
package scheduler

import (
	"sync"
	"time"

	"inputbot/internal/parser"
	"inputbot/internal/vcontroller"
	"inputbot/internal/vocab"
)

// Outcome is how a job finished.
type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	DeviceGone
	QueueOverflowDropped
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "Completed"
	case Cancelled:
		return "Cancelled"
	case DeviceGone:
		return "DeviceGone"
	case QueueOverflowDropped:
		return "QueueOverflowDropped"
	default:
		return "Unknown"
	}
}

// Job is one submitted sequence awaiting or undergoing execution.
type Job struct {
	User        string
	Seq         *parser.InputSequence
	DefaultPort int
	Cancel      *CancelToken
	Done        chan Outcome
}

// Scheduler is C6: it owns the per-port lanes and the cross-sequence
// hold-state map.
type Scheduler struct {
	manager       *vcontroller.Manager
	maxQueueDepth int

	mu     sync.Mutex
	lanes  map[int]*lane
	held   map[heldKey]bool
	active map[*Job]bool

	stop chan struct{}

	// OnQueueOverflow, if non-nil, is called with the port and the
	// dropped job's user whenever a lane drops its oldest job to make
	// room for a new submission.
	OnQueueOverflow func(port int, droppedUser string)
	// OnDeviceGone, if non-nil, is called when a port's controller
	// reports ErrDeviceGone mid-sequence.
	OnDeviceGone func(port int)
}

type heldKey struct {
	port int
	name string
}

// New creates a Scheduler bound to manager. maxQueueDepth bounds each
// port's lane.
func New(manager *vcontroller.Manager, maxQueueDepth int) *Scheduler {
	return &Scheduler{
		manager:       manager,
		maxQueueDepth: maxQueueDepth,
		lanes:         make(map[int]*lane),
		held:          make(map[heldKey]bool),
		active:        make(map[*Job]bool),
		stop:          make(chan struct{}),
	}
}

// Submit enqueues seq onto the lane of its default port and returns
// immediately; Done receives exactly one Outcome once the job finishes,
// is cancelled, or is dropped for queue overflow. When the lane is
// full, the oldest queued job is dropped to make room: it is never
// started, its Done receives QueueOverflowDropped, and OnQueueOverflow
// is called with its user.
func (s *Scheduler) Submit(user string, seq *parser.InputSequence, defaultPort int, cancel *CancelToken) *Job {
	j := &Job{User: user, Seq: seq, DefaultPort: defaultPort, Cancel: cancel, Done: make(chan Outcome, 1)}

	s.mu.Lock()
	s.active[j] = true
	s.mu.Unlock()

	l := s.laneFor(defaultPort)
	dropped := l.push(j, s.maxQueueDepth)
	if dropped != nil {
		s.mu.Lock()
		delete(s.active, dropped)
		s.mu.Unlock()
		dropped.Done <- QueueOverflowDropped
		if s.OnQueueOverflow != nil {
			s.OnQueueOverflow(defaultPort, dropped.User)
		}
	}
	return j
}

func (s *Scheduler) laneFor(port int) *lane {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lanes[port]
	if !ok {
		l = newLane()
		s.lanes[port] = l
		go s.runLane(port, l)
	}
	return l
}

func (s *Scheduler) runLane(port int, l *lane) {
	for {
		select {
		case <-l.wake:
			for {
				j, ok := l.pop()
				if !ok {
					break
				}
				s.execute(j)
			}
		case <-s.stop:
			return
		}
	}
}

// Shutdown stops accepting new lane wakeups. It does not wait for
// in-flight jobs: a lane already executing a job finishes it before its
// goroutine exits.
func (s *Scheduler) Shutdown() {
	close(s.stop)
}

// StopAll cancels every in-flight and queued job (the /stopall
// operation, reached through the admin API's POST /api/stopall). Each job's own lane loop notices the flipped token (either
// immediately, if still queued, or between subsequences, if running)
// and releases whatever it was holding.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	tokens := make([]*CancelToken, 0, len(s.active))
	for j := range s.active {
		tokens = append(tokens, j.Cancel)
	}
	s.mu.Unlock()

	for _, t := range tokens {
		t.Cancel()
	}
}

func (s *Scheduler) execute(j *Job) {
	defer func() {
		s.mu.Lock()
		delete(s.active, j)
		s.mu.Unlock()
	}()

	if j.Cancel.Cancelled() {
		j.Done <- Cancelled
		return
	}

	heldThisJob := make([]heldKey, 0, 4)

	for _, step := range j.Seq.Steps {
		select {
		case <-j.Cancel.Done():
			s.releaseAll(heldThisJob)
			j.Done <- Cancelled
			return
		default:
		}

		controllersTouched := make(map[int]*vcontroller.Controller)
		resolvedPort := func(in parser.Input) int {
			if in.ExplicitPort {
				return in.Port
			}
			return j.DefaultPort
		}

		for _, in := range step.Inputs {
			if in.Kind == vocab.Wait {
				continue // '.' and '#' only contribute to timing
			}
			port := resolvedPort(in)
			c, err := s.manager.Get(port)
			if err != nil {
				s.releaseAll(heldThisJob)
				j.Done <- DeviceGone
				return
			}
			controllersTouched[port] = c

			var opErr error
			switch {
			case in.Release && in.Kind == vocab.Axis:
				opErr = c.SetAxis(in.Name, 0)
				s.clearHeld(port, in.Name)
			case in.Release:
				opErr = c.Release(in.Name)
				s.clearHeld(port, in.Name)
			case in.Kind == vocab.Axis:
				opErr = c.SetAxis(in.Name, int8(in.Percent))
			default:
				opErr = c.Press(in.Name)
			}
			if opErr == vcontroller.ErrDeviceGone {
				s.releaseAll(heldThisJob)
				if s.OnDeviceGone != nil {
					s.OnDeviceGone(port)
				}
				j.Done <- DeviceGone
				return
			}
		}

		if port, gone := updateAll(controllersTouched); gone {
			s.releaseAll(heldThisJob)
			if s.OnDeviceGone != nil {
				s.OnDeviceGone(port)
			}
			j.Done <- DeviceGone
			return
		}

		time.Sleep(time.Duration(step.MaxDuration()) * time.Millisecond)

		for _, in := range step.Inputs {
			if in.Kind == vocab.Wait || in.Release {
				continue
			}
			if in.Hold {
				port := resolvedPort(in)
				s.markHeld(port, in.Name, in.Kind == vocab.Axis)
				heldThisJob = append(heldThisJob, heldKey{port: port, name: in.Name})
				continue
			}
			port := resolvedPort(in)
			c, ok := controllersTouched[port]
			if !ok {
				continue
			}
			if in.Kind == vocab.Axis {
				c.SetAxis(in.Name, 0)
			} else {
				c.Release(in.Name)
			}
		}
		if port, gone := updateAll(controllersTouched); gone {
			s.releaseAll(heldThisJob)
			if s.OnDeviceGone != nil {
				s.OnDeviceGone(port)
			}
			j.Done <- DeviceGone
			return
		}
	}

	j.Done <- Completed
}

// updateAll flushes every touched controller, reporting the first port
// whose flush found the device gone.
func updateAll(controllers map[int]*vcontroller.Controller) (int, bool) {
	for port, c := range controllers {
		if err := c.Update(); err == vcontroller.ErrDeviceGone {
			return port, true
		}
	}
	return 0, false
}

// PortStatus summarizes one port's lane for admin reporting.
type PortStatus struct {
	Port        int
	QueueDepth  int
	HeldButtons []string
}

// Status snapshots every known port's queue depth and held buttons.
func (s *Scheduler) Status() []PortStatus {
	s.mu.Lock()
	ports := make(map[int]*lane, len(s.lanes))
	for port, l := range s.lanes {
		ports[port] = l
	}
	held := make(map[int][]string)
	for k := range s.held {
		held[k.port] = append(held[k.port], k.name)
	}
	s.mu.Unlock()

	out := make([]PortStatus, 0, len(ports))
	for port, l := range ports {
		out = append(out, PortStatus{Port: port, QueueDepth: l.depth(), HeldButtons: held[port]})
	}
	return out
}

func (s *Scheduler) markHeld(port int, name string, isAxis bool) {
	s.mu.Lock()
	s.held[heldKey{port: port, name: name}] = isAxis
	s.mu.Unlock()
}

// clearHeld removes the hold and reports whether it was an axis, so
// the caller knows whether to re-center it rather than release it.
func (s *Scheduler) clearHeld(port int, name string) bool {
	s.mu.Lock()
	isAxis := s.held[heldKey{port: port, name: name}]
	delete(s.held, heldKey{port: port, name: name})
	s.mu.Unlock()
	return isAxis
}

// releaseAll force-releases every hold a now-cancelled-or-failed job
// had accumulated. A held axis is re-centered via SetAxis rather than
// Release, which is a no-op for axes.
func (s *Scheduler) releaseAll(keys []heldKey) {
	for _, k := range keys {
		isAxis := s.clearHeld(k.port, k.name)
		if c, err := s.manager.Get(k.port); err == nil {
			if isAxis {
				c.SetAxis(k.name, 0)
			} else {
				c.Release(k.name)
			}
			c.Update()
		}
	}
}
