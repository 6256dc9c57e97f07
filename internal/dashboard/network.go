package dashboard

import (
	"encoding/json"
	"net/url"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// wireFrame mirrors the admin API's broadcast envelope without this
// package importing internal/api, since only the wire shape (not the
// server) is shared.
type wireFrame struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type frameMsg wireFrame
type errMsg error
type connectedMsg struct{}

// network owns the websocket connection to the admin API's /ws feed.
type network struct {
	conn *websocket.Conn
}

func newNetwork() *network {
	return &network{}
}

func (n *network) connect(addr string) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	n.conn = conn
	return nil
}

func (n *network) close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

// waitForFrame is a tea.Cmd that blocks for the next broadcast frame.
func (n *network) waitForFrame() tea.Msg {
	if n.conn == nil {
		return nil
	}
	_, data, err := n.conn.ReadMessage()
	if err != nil {
		return errMsg(err)
	}
	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return errMsg(err)
	}
	return frameMsg(f)
}
