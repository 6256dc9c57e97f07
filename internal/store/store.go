// Package store owns the persisted documents (login, settings,
// bot_data, input_callbacks) this project reads and writes. The core
// is format-agnostic about what's on disk beyond a well-formed JSON
// document per name; fields it doesn't recognize survive untouched
// because every mutation goes through gjson/sjson path operations
// instead of marshaling a fixed struct over the whole document.
package store

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrCriticalSaveFailure wraps a persistence error the caller must
// surface to chat and the console, per the "CRITICAL — Unable to save
// data" policy: in-memory state is preserved and the next mutation
// retries the save.
var ErrCriticalSaveFailure = errors.New("store: unable to save data")

// Backend is the narrow persistence collaborator this package
// consumes: something that can read and write a named document's raw
// bytes. A filesystem, an object store, or an in-memory map for tests
// can all satisfy it.
type Backend interface {
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
}

// ErrNotFound is returned by a Backend's Read when the named document
// does not exist yet; Manager treats this as "start from an empty
// document" rather than a fatal error.
var ErrNotFound = errors.New("store: document not found")

const (
	docLogin          = "login"
	docSettings       = "settings"
	docBotData        = "bot_data"
	docInputCallbacks = "input_callbacks"
)

// Document is a raw JSON blob accessed through gjson paths and mutated
// through sjson paths, so that unrecognized fields round-trip.
type Document struct {
	mu  sync.RWMutex
	raw []byte
}

func newDocument(raw []byte) *Document {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	return &Document{raw: raw}
}

// Get returns the gjson result at path.
func (d *Document) Get(path string) gjson.Result {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return gjson.GetBytes(d.raw, path)
}

// Set writes value at path, leaving every other field untouched.
func (d *Document) Set(path string, value interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	updated, err := sjson.SetBytes(d.raw, path, value)
	if err != nil {
		return fmt.Errorf("store: set %q: %w", path, err)
	}
	d.raw = updated
	return nil
}

// Delete removes path.
func (d *Document) Delete(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	updated, err := sjson.DeleteBytes(d.raw, path)
	if err != nil {
		return fmt.Errorf("store: delete %q: %w", path, err)
	}
	d.raw = updated
	return nil
}

// Raw returns a copy of the document's current bytes, for Manager.save.
func (d *Document) Raw() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]byte(nil), d.raw...)
}

// Manager owns the four persisted documents and serializes every save
// behind one dedicated mutex so two documents saving concurrently can
// never interleave writes to the same backend and truncate each other.
type Manager struct {
	backend Backend

	saveMu sync.Mutex

	login          *Document
	settings       *Document
	botData        *Document
	inputCallbacks *Document

	// OnSaveError, if set, is called whenever a Save fails, so the host
	// can surface the CRITICAL chat/console notice without this package
	// depending on the chat or logging stack directly.
	OnSaveError func(doc string, err error)
}

// NewManager wraps backend with empty documents; call Load to populate
// them from disk (or wherever backend reads from).
func NewManager(backend Backend) *Manager {
	return &Manager{
		backend:        backend,
		login:          newDocument(nil),
		settings:       newDocument(nil),
		botData:        newDocument(nil),
		inputCallbacks: newDocument(nil),
	}
}

// Load reads every document from the backend. A missing document is
// not an error — it starts out as an empty object — but any other read
// failure is returned so the caller can decide whether it's fatal. Load
// does not check that a document is well-formed JSON.
func (m *Manager) Load() error {
	docs := []struct {
		name string
		dst  **Document
	}{
		{docLogin, &m.login},
		{docSettings, &m.settings},
		{docBotData, &m.botData},
		{docInputCallbacks, &m.inputCallbacks},
	}
	for _, d := range docs {
		raw, err := m.backend.Read(d.name)
		if errors.Is(err, ErrNotFound) {
			log.Printf("store: no %s document yet, starting empty", d.name)
			continue
		}
		if err != nil {
			return fmt.Errorf("store: load %s: %w", d.name, err)
		}
		*d.dst = newDocument(raw)
	}
	return nil
}

// Login returns the login document.
func (m *Manager) Login() *Document { return m.login }

// Settings returns the settings document.
func (m *Manager) Settings() *Document { return m.settings }

// BotData returns the bot_data document (users, memes, macros, the
// parser-macro index, last virtual-controller type, joystick count).
func (m *Manager) BotData() *Document { return m.botData }

// InputCallbacks returns the input_callbacks document.
func (m *Manager) InputCallbacks() *Document { return m.inputCallbacks }

// Save writes the named document to the backend. In-memory state is
// never rolled back on failure, matching the persistence error policy:
// the next mutation's save attempt retries.
func (m *Manager) Save(name string) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	var doc *Document
	switch name {
	case docLogin:
		doc = m.login
	case docSettings:
		doc = m.settings
	case docBotData:
		doc = m.botData
	case docInputCallbacks:
		doc = m.inputCallbacks
	default:
		return fmt.Errorf("store: unknown document %q", name)
	}

	err := m.backend.Write(name, doc.Raw())
	if err != nil {
		wrapped := fmt.Errorf("%w: %s: %v", ErrCriticalSaveFailure, name, err)
		log.Printf("CRITICAL — Unable to save data: %v", wrapped)
		if m.OnSaveError != nil {
			m.OnSaveError(name, wrapped)
		}
		return wrapped
	}
	return nil
}

// SaveLogin, SaveSettings, SaveBotData, and SaveInputCallbacks save one
// named document without callers needing to know the internal document
// name strings.
func (m *Manager) SaveLogin() error          { return m.Save(docLogin) }
func (m *Manager) SaveSettings() error       { return m.Save(docSettings) }
func (m *Manager) SaveBotData() error        { return m.Save(docBotData) }
func (m *Manager) SaveInputCallbacks() error { return m.Save(docInputCallbacks) }

// SaveAll saves every document, continuing past individual failures so
// one bad document doesn't block the others, and returns the last
// error encountered (if any).
func (m *Manager) SaveAll() error {
	var lastErr error
	for _, name := range []string{docLogin, docSettings, docBotData, docInputCallbacks} {
		if err := m.Save(name); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
