// Package adapter is the Event Adapter (C8): it sits between the chat
// transport and the macro/parser/scheduler pipeline, translating raw
// chat messages into dispatched input sequences or outbound replies.
package adapter

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"inputbot/internal/access"
	"inputbot/internal/macro"
	"inputbot/internal/parser"
	"inputbot/internal/scheduler"
	"inputbot/internal/transport"
	"inputbot/internal/user"
	"inputbot/internal/vcontroller"
	"inputbot/internal/vocab"
)

// Notifier is the narrow outbound-message capability the adapter uses
// to surface user-visible diagnostics and announcements; a
// mainloop.Loop satisfies it.
type Notifier interface {
	Enqueue(channel, text string)
}

// Config tunes the adapter's behavior. AutoWhitelistThreshold and
// AutoWhitelistEnabled mirror the settings document fields of the same
// name; AutoWhitelistAnnounce carries a `{0}`-substituted username
// template.
type Config struct {
	Vocabulary             *vocab.Vocabulary
	DefaultPort            int
	ControllerCount        int
	MaxUserDurationMs      int
	MaxQueueDepth          int
	AutoWhitelistEnabled   bool
	AutoWhitelistThreshold uint64
	AutoWhitelistAnnounce  string // "{0}" substituted with the username
}

// Adapter wires a single chat channel's transport events through the
// macro expander, parser, and scheduler, and applies the auto-whitelist
// rule and meme-map replies.
type Adapter struct {
	cfg Config

	users   user.Store
	macros  *macro.Store
	manager *vcontroller.Manager
	sched   *scheduler.Scheduler
	notify  Notifier
	channel string

	memeMu      sync.RWMutex
	memes       map[string]string
	onMemeDirty func()

	cancelMu sync.Mutex
	cancels  map[string]*scheduler.CancelToken
}

// New creates an Adapter. channel is the chat channel outbound replies
// are sent to.
func New(cfg Config, users user.Store, macros *macro.Store, manager *vcontroller.Manager, sched *scheduler.Scheduler, notify Notifier, channel string) *Adapter {
	return &Adapter{
		cfg:     cfg,
		users:   users,
		macros:  macros,
		manager: manager,
		sched:   sched,
		notify:  notify,
		channel: channel,
		memes:   make(map[string]string),
		cancels: make(map[string]*scheduler.CancelToken),
	}
}

// OnMemeDirty registers fn to be called after every SetMeme mutation,
// so a caller can persist the meme table without this package knowing
// anything about storage.
func (a *Adapter) OnMemeDirty(fn func()) {
	a.memeMu.Lock()
	a.onMemeDirty = fn
	a.memeMu.Unlock()
}

// SetMeme registers (or overwrites) a lowercase-exact-match meme
// response. An empty response removes the entry.
func (a *Adapter) SetMeme(trigger, response string) {
	key := strings.ToLower(strings.TrimSpace(trigger))
	a.memeMu.Lock()
	if response == "" {
		delete(a.memes, key)
	} else {
		a.memes[key] = response
	}
	dirty := a.onMemeDirty
	a.memeMu.Unlock()
	if dirty != nil {
		dirty()
	}
}

// Memes returns a snapshot of every registered meme trigger/response
// pair, for persistence.
func (a *Adapter) Memes() map[string]string {
	a.memeMu.RLock()
	defer a.memeMu.RUnlock()
	out := make(map[string]string, len(a.memes))
	for k, v := range a.memes {
		out[k] = v
	}
	return out
}

// Subscribe registers the adapter's handler on dispatcher.
func (a *Adapter) Subscribe(dispatcher *transport.Dispatcher) int {
	return dispatcher.Subscribe(a.handle)
}

func (a *Adapter) handle(evt transport.Event) {
	switch evt.Kind {
	case transport.MessageReceived:
		a.handleMessage(evt.User, evt.Text)
	case transport.WhisperReceived:
		a.handleMessage(evt.User, evt.Text)
	}
}

// handleMessage is the per-chat-message entry point: user lookup,
// message counting, meme check, then macro expansion and parsing.
func (a *Adapter) handleMessage(username, text string) {
	u := a.users.GetOrCreate(username, a.cfg.DefaultPort)
	if !u.OptedOut {
		u.MessageCount++
	}
	a.users.Put(u)

	if reply, hit := a.lookupMeme(text); hit {
		a.notify.Enqueue(a.channel, reply)
	}

	expanded, expErr := macro.Expand(text, a.macros, macro.DefaultMaxDepth)
	if expErr != nil {
		a.notify.Enqueue(a.channel, fmt.Sprintf("%s: %s", username, expErr.Error()))
		return
	}

	opts := parser.Options{
		Vocabulary:        a.cfg.Vocabulary,
		IssuerLevel:       u.Level,
		DefaultPort:       u.Port,
		ControllerCount:   a.cfg.ControllerCount,
		MaxUserDurationMs: a.cfg.MaxUserDurationMs,
	}
	seq := parser.Parse(expanded, opts)
	a.handleParsed(u, seq)
}

func (a *Adapter) lookupMeme(text string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(text))
	a.memeMu.RLock()
	defer a.memeMu.RUnlock()
	reply, ok := a.memes[key]
	return reply, ok
}

func (a *Adapter) handleParsed(u *user.User, seq *parser.InputSequence) {
	switch seq.Result {
	case parser.NormalMsg:
		return
	case parser.Valid:
		a.handleValidInput(u, seq)
	default:
		a.notify.Enqueue(a.channel, fmt.Sprintf("%s: %s", u.Name, diagnosticFor(seq)))
	}
}

func diagnosticFor(seq *parser.InputSequence) string {
	if seq.FailureDetail != "" {
		return seq.FailureDetail
	}
	return seq.Result.String()
}

// handleValidInput increments the user's valid-input counter, checks
// the assigned port is in range and acquired, dispatches to the
// scheduler, and applies the auto-whitelist rule.
func (a *Adapter) handleValidInput(u *user.User, seq *parser.InputSequence) {
	u.ValidInputCount++
	a.users.Put(u)

	if err := a.checkPort(u.Port); err != nil {
		a.notify.Enqueue(a.channel, fmt.Sprintf("%s: %v", u.Name, err))
		return
	}

	cancel := a.cancelTokenFor(u.Name)
	a.sched.Submit(u.Name, seq, u.Port, cancel)

	a.applyAutoWhitelist(u)
}

// checkPort verifies the user's assigned port is both in range and
// currently acquired (not degraded by a device-gone condition).
func (a *Adapter) checkPort(port int) error {
	c, err := a.manager.Get(port)
	if err != nil {
		return err
	}
	if c.Degraded() {
		return fmt.Errorf("joystick %d is disconnected", port+1)
	}
	return nil
}

// cancelTokenFor returns the per-user cancel token used for the user's
// in-flight sequences, creating one on first use.
func (a *Adapter) cancelTokenFor(username string) *scheduler.CancelToken {
	a.cancelMu.Lock()
	defer a.cancelMu.Unlock()
	t, ok := a.cancels[username]
	if !ok || t.Cancelled() {
		t = scheduler.NewCancelToken()
		a.cancels[username] = t
	}
	return t
}

func (a *Adapter) applyAutoWhitelist(u *user.User) {
	if !a.cfg.AutoWhitelistEnabled {
		return
	}
	if u.Level >= access.Whitelisted || u.AutoWhitelisted {
		return
	}
	if u.ValidInputCount < a.cfg.AutoWhitelistThreshold {
		return
	}

	u.Level = access.Whitelisted
	u.AutoWhitelisted = true
	a.users.Put(u)

	log.Printf("adapter: auto-whitelisted %s after %d valid inputs", u.Name, u.ValidInputCount)
	if a.cfg.AutoWhitelistAnnounce != "" {
		a.notify.Enqueue(a.channel, strings.ReplaceAll(a.cfg.AutoWhitelistAnnounce, "{0}", u.Name))
	}
}

// StopAllFor cancels every sequence a single user currently has
// in-flight or queued, without affecting other users. It reassigns a
// fresh token so future sequences from this user aren't pre-cancelled.
func (a *Adapter) StopAllFor(username string) {
	a.cancelMu.Lock()
	t, ok := a.cancels[username]
	delete(a.cancels, username)
	a.cancelMu.Unlock()
	if ok {
		t.Cancel()
	}
}
