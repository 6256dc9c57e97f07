package store

import "testing"

func TestLoadMissingDocumentsStartEmpty(t *testing.T) {
	m := NewManager(NewMemoryBackend())
	if err := m.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Settings().Get("MessageCooldown").Exists() {
		t.Fatal("expected an empty settings document")
	}
}

func TestSetPreservesUnknownFields(t *testing.T) {
	backend := NewMemoryBackend()
	backend.Write(docSettings, []byte(`{"MessageCooldown":1000,"SomeFutureField":{"nested":true}}`))

	m := NewManager(backend)
	if err := m.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Settings().Set("MessageCooldown", 2000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Save(docSettings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, _ := backend.Read(docSettings)
	doc := newDocument(raw)
	if doc.Get("MessageCooldown").Int() != 2000 {
		t.Fatalf("expected updated field, got %v", doc.Get("MessageCooldown").Int())
	}
	if !doc.Get("SomeFutureField.nested").Bool() {
		t.Fatal("expected unrecognized nested field to round-trip untouched")
	}
}

func TestSaveFailureInvokesOnSaveErrorAndPreservesState(t *testing.T) {
	m := NewManager(&failingBackend{})
	var gotDoc string
	var gotErr error
	m.OnSaveError = func(doc string, err error) {
		gotDoc = doc
		gotErr = err
	}

	m.Settings().Set("MessageCooldown", 500)
	err := m.Save(docSettings)
	if err == nil {
		t.Fatal("expected an error from a failing backend")
	}
	if gotDoc != docSettings {
		t.Fatalf("expected OnSaveError to report %q, got %q", docSettings, gotDoc)
	}
	if gotErr == nil {
		t.Fatal("expected OnSaveError to receive a non-nil error")
	}
	if m.Settings().Get("MessageCooldown").Int() != 500 {
		t.Fatal("expected in-memory state to survive a failed save")
	}
}

func TestBotMessageCharLimitDefaultsWhenUnset(t *testing.T) {
	m := NewManager(NewMemoryBackend())
	if got := m.Settings().BotMessageCharLimit(); got != 500 {
		t.Fatalf("expected default of 500, got %d", got)
	}
}

func TestFormatTemplateSubstitutesPositionalArgs(t *testing.T) {
	got := FormatTemplate("Welcome {0}! Use {1}help for commands.", "bot", "!")
	want := "Welcome bot! Use !help for commands."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSaveAllContinuesPastIndividualFailures(t *testing.T) {
	m := NewManager(&failingBackend{})
	err := m.SaveAll()
	if err == nil {
		t.Fatal("expected an error from SaveAll against a failing backend")
	}
}

type failingBackend struct{}

func (f *failingBackend) Read(name string) ([]byte, error)       { return nil, ErrNotFound }
func (f *failingBackend) Write(name string, data []byte) error { return errWriteFailed }

var errWriteFailed = &writeError{}

type writeError struct{}

func (w *writeError) Error() string { return "simulated write failure" }
