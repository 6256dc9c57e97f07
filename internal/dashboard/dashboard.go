// Package dashboard is an optional read-only terminal UI that dials an
// admin API's /ws feed and renders live per-port queue depth, held
// buttons, and recent events.
package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"inputbot/internal/api"
	"inputbot/internal/scheduler"
)

// Config points the dashboard at a running admin API.
type Config struct {
	WSAddr   string // host:port for the /ws dial
	HTTPAddr string // host:port for /api/stopall, always reached over http://
	Token    string // bearer token, if the admin API requires auth
}

type model struct {
	cfg      Config
	net      *network
	viewport viewport.Model
	ready    bool
	ports    []scheduler.PortStatus
	events   []string
	err      error
}

func initialModel(cfg Config) model {
	return model{cfg: cfg, net: newNetwork()}
}

// Run starts the dashboard and blocks until the user quits.
func Run(cfg Config) error {
	p := tea.NewProgram(initialModel(cfg))
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		if err := m.net.connect(m.cfg.WSAddr); err != nil {
			return errMsg(err)
		}
		return connectedMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.net.close()
			return m, tea.Quit
		case "s":
			return m, m.postStopAll()
		}

	case connectedMsg:
		m.events = append(m.events, "connected to admin feed")
		m.refresh()
		return m, m.net.waitForFrame

	case frameMsg:
		m.handleFrame(wireFrame(msg))
		m.refresh()
		return m, m.net.waitForFrame

	case stopAllResultMsg:
		if msg.err != nil {
			m.events = append(m.events, fmt.Sprintf("stopall failed: %v", msg.err))
		} else {
			m.events = append(m.events, "stopall sent")
		}
		m.refresh()

	case errMsg:
		m.err = msg
		m.events = append(m.events, fmt.Sprintf("error: %v", msg))
		m.refresh()

	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-2)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 2
		}
		m.refresh()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) handleFrame(f wireFrame) {
	switch f.Kind {
	case "status":
		var snap api.StatusSnapshot
		if err := json.Unmarshal(f.Payload, &snap); err == nil {
			m.ports = snap.Ports
			m.events = append(m.events, fmt.Sprintf("status: %d users", snap.UserCount))
		}
	case "stopall":
		m.events = append(m.events, "stopall broadcast received")
	default:
		m.events = append(m.events, fmt.Sprintf("event: %s", f.Kind))
	}
	if len(m.events) > 200 {
		m.events = m.events[len(m.events)-200:]
	}
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	var b strings.Builder
	header := lipgloss.NewStyle().Bold(true).Render("Ports")
	b.WriteString(header + "\n")
	for _, p := range m.ports {
		b.WriteString(fmt.Sprintf("  port %d: queue=%d held=%v\n", p.Port+1, p.QueueDepth, p.HeldButtons))
	}
	b.WriteString("\n" + lipgloss.NewStyle().Bold(true).Render("Events") + "\n")
	for _, e := range m.events {
		b.WriteString("  " + e + "\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "\n  connecting...\n"
	}
	footer := "q: quit  s: stopall"
	return fmt.Sprintf("%s\n%s", m.viewport.View(), lipgloss.NewStyle().Faint(true).Render(footer))
}

type stopAllResultMsg struct{ err error }

func (m model) postStopAll() tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequest(http.MethodPost, "http://"+m.cfg.HTTPAddr+"/api/stopall", bytes.NewReader(nil))
		if err != nil {
			return stopAllResultMsg{err: err}
		}
		if m.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+m.cfg.Token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return stopAllResultMsg{err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return stopAllResultMsg{err: fmt.Errorf("stopall returned %s", resp.Status)}
		}
		return stopAllResultMsg{}
	}
}
