package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestHandleFrameStatusPopulatesPorts(t *testing.T) {
	m := initialModel(Config{})
	payload, _ := json.Marshal(map[string]any{
		"ports":      []map[string]any{{"Port": 0, "QueueDepth": 2, "HeldButtons": []string{"a"}}},
		"user_count": 3,
	})
	m.handleFrame(wireFrame{Kind: "status", Payload: payload})

	if len(m.ports) != 1 || m.ports[0].QueueDepth != 2 {
		t.Fatalf("expected one port with queue depth 2, got %+v", m.ports)
	}
	found := false
	for _, e := range m.events {
		if strings.Contains(e, "3 users") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an event noting the user count, got %v", m.events)
	}
}

func TestHandleFrameUnknownKindLogsEvent(t *testing.T) {
	m := initialModel(Config{})
	m.handleFrame(wireFrame{Kind: "mystery"})
	if len(m.events) != 1 || !strings.Contains(m.events[0], "mystery") {
		t.Fatalf("expected an event naming the unknown kind, got %v", m.events)
	}
}

func TestPostStopAllSendsAuthHeaderAndPath(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	m := initialModel(Config{HTTPAddr: addr, Token: "tok"})
	cmd := m.postStopAll()
	msg := cmd()

	result, ok := msg.(stopAllResultMsg)
	if !ok {
		t.Fatalf("expected stopAllResultMsg, got %T", msg)
	}
	if result.err != nil {
		t.Fatalf("unexpected error: %v", result.err)
	}
	if gotPath != "/api/stopall" {
		t.Fatalf("expected path /api/stopall, got %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
}

var _ tea.Model = model{}
