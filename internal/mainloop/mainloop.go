// Package mainloop runs the single cooperative owner thread: it drains
// the outbound chat queue at a cooldown, ticks registered periodic
// routines, and is the only goroutine allowed to call a Sender's
// SendMessage directly.
package mainloop

import (
	"log"
	"sync"
	"time"
)

// Sender is the narrow capability the loop drives outbound traffic
// through; a transport.Transport satisfies it.
type Sender interface {
	SendMessage(channel, text string) error
}

// Routine is a periodic task the loop invokes once per tick.
type Routine interface {
	Tick(now time.Time)
}

// RoutineFunc adapts a function to Routine.
type RoutineFunc func(now time.Time)

func (f RoutineFunc) Tick(now time.Time) { f(now) }

type outboundMsg struct {
	channel string
	text    string
}

// Loop is C7: the single-owner tick loop. Producers on other goroutines
// only ever call Enqueue; the loop itself is the sole consumer of the
// outbound queue and the sole caller into Sender.
type Loop struct {
	sender Sender
	sleep  time.Duration

	cooldown  time.Duration
	charLimit int

	mu       sync.Mutex
	outbound []outboundMsg
	maxQueue int

	routinesMu sync.Mutex
	routines   []Routine

	stop chan struct{}
	done chan struct{}
}

// Config bounds and tunes a Loop. MinSleep/MaxSleep clamp TickInterval;
// Cooldown is the minimum spacing between two successive sends,
// whichever channels they go to; CharLimit is the longest single outbound message the
// transport will accept before it must be split; MaxQueueDepth bounds
// the outbound backlog (oldest dropped on overflow, per the transport
// error-handling policy for a backed-up send path).
type Config struct {
	TickInterval  time.Duration
	MinSleep      time.Duration
	MaxSleep      time.Duration
	Cooldown      time.Duration
	CharLimit     int
	MaxQueueDepth int
}

// New creates a Loop bound to sender. TickInterval is clamped into
// [MinSleep, MaxSleep].
func New(sender Sender, cfg Config) *Loop {
	interval := cfg.TickInterval
	if interval < cfg.MinSleep {
		log.Printf("mainloop: tick interval %v below minimum %v, clamping", interval, cfg.MinSleep)
		interval = cfg.MinSleep
	}
	if cfg.MaxSleep > 0 && interval > cfg.MaxSleep {
		log.Printf("mainloop: tick interval %v above maximum %v, clamping", interval, cfg.MaxSleep)
		interval = cfg.MaxSleep
	}
	limit := cfg.CharLimit
	if limit <= 0 {
		limit = 500
	}
	return &Loop{
		sender:    sender,
		sleep:     interval,
		cooldown:  cfg.Cooldown,
		charLimit: limit,
		maxQueue:  cfg.MaxQueueDepth,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Register adds a periodic routine. Safe to call before or after Run.
func (l *Loop) Register(r Routine) {
	l.routinesMu.Lock()
	defer l.routinesMu.Unlock()
	l.routines = append(l.routines, r)
}

// Enqueue splits text at charLimit and appends the pieces to the
// outbound queue, dropping the oldest queued message if the queue is
// already at capacity. Safe for concurrent callers.
func (l *Loop) Enqueue(channel, text string) {
	for _, piece := range splitMessage(text, l.charLimit) {
		l.mu.Lock()
		if l.maxQueue > 0 && len(l.outbound) >= l.maxQueue {
			dropped := l.outbound[0]
			l.outbound = l.outbound[1:]
			log.Printf("mainloop: outbound queue full, dropping oldest message to %s", dropped.channel)
		}
		l.outbound = append(l.outbound, outboundMsg{channel: channel, text: piece})
		l.mu.Unlock()
	}
}

// Run blocks ticking until Stop is called.
func (l *Loop) Run() {
	defer close(l.done)
	var lastSend time.Time
	ticker := time.NewTicker(l.sleep)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			if time.Since(lastSend) >= l.cooldown {
				if l.drainOne(now) {
					lastSend = now
				}
			}
			l.tickRoutines(now)
		}
	}
}

func (l *Loop) drainOne(now time.Time) bool {
	l.mu.Lock()
	if len(l.outbound) == 0 {
		l.mu.Unlock()
		return false
	}
	msg := l.outbound[0]
	l.outbound = l.outbound[1:]
	l.mu.Unlock()

	if err := l.sender.SendMessage(msg.channel, msg.text); err != nil {
		log.Printf("mainloop: send to %s failed: %v", msg.channel, err)
	}
	return true
}

func (l *Loop) tickRoutines(now time.Time) {
	l.routinesMu.Lock()
	routines := make([]Routine, len(l.routines))
	copy(routines, l.routines)
	l.routinesMu.Unlock()

	for _, r := range routines {
		r.Tick(now)
	}
}

// Stop requests Run return and blocks until it has.
func (l *Loop) Stop() {
	close(l.stop)
	<-l.done
}

// QueueDepth reports the current outbound backlog, for status reporting.
func (l *Loop) QueueDepth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.outbound)
}

// splitMessage breaks text into pieces no longer than limit, preferring
// to break on a space boundary within the last quarter of the limit so
// words aren't chopped mid-word when a natural break is nearby.
func splitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var pieces []string
	for len(text) > limit {
		cut := limit
		if idx := lastSpaceWithin(text[:limit], limit*3/4); idx > 0 {
			cut = idx
		}
		pieces = append(pieces, text[:cut])
		text = text[cut:]
		for len(text) > 0 && text[0] == ' ' {
			text = text[1:]
		}
	}
	if len(text) > 0 {
		pieces = append(pieces, text)
	}
	return pieces
}

func lastSpaceWithin(s string, min int) int {
	for i := len(s) - 1; i >= min; i-- {
		if s[i] == ' ' {
			return i
		}
	}
	return -1
}
