package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentfleet/agenthub/client"
	"github.com/agentfleet/agenthub/protocol"
)

func TestNew_RequiresName(t *testing.T) {
	_, err := client.New(client.Config{URL: "ws://localhost:3001"})
	if err == nil {
		t.Error("New() without a name returned nil error")
	}
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := client.New(client.Config{Name: "Alex"})
	if err == nil {
		t.Error("New() without a URL returned nil error")
	}
}

func TestClient_CallsBeforeConnect(t *testing.T) {
	c, err := client.New(client.Config{URL: "ws://localhost:3001", Name: "Alex"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := c.SetStatus(protocol.StatusIdle); !errors.Is(err, client.ErrNotConnected) {
		t.Errorf("SetStatus() error = %v, want ErrNotConnected", err)
	}
	if err := c.Reply("Jordan", "hi"); !errors.Is(err, client.ErrNotConnected) {
		t.Errorf("Reply() error = %v, want ErrNotConnected", err)
	}
	if err := c.PostUpdate("hello"); !errors.Is(err, client.ErrNotConnected) {
		t.Errorf("PostUpdate() error = %v, want ErrNotConnected", err)
	}
}

// hubStub accepts one websocket connection, confirms registration, and hands
// the connection to the test body.
func hubStub(t *testing.T, body func(ws *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade error = %v", err)
			return
		}
		var reg protocol.AgentRegister
		if err := ws.ReadJSON(&reg); err != nil {
			t.Errorf("read register frame error = %v", err)
			return
		}
		ack := protocol.AgentRegistered{
			Type:    protocol.TypeAgentRegistered,
			AgentID: "agent-1",
			Team:    "default",
		}
		if err := ws.WriteJSON(ack); err != nil {
			t.Errorf("write registered frame error = %v", err)
			return
		}
		body(ws)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestAsk_ConnectionDropsMidFlight(t *testing.T) {
	url := hubStub(t, func(ws *websocket.Conn) {
		var ask protocol.RelayAsk
		if err := ws.ReadJSON(&ask); err != nil {
			t.Errorf("read ask frame error = %v", err)
		}
		ws.Close()
	})

	c, err := client.New(client.Config{URL: url, Name: "Alex", AskTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	_, err = c.Ask(ctx, "Jordan", "What framework?")
	if !errors.Is(err, client.ErrNotConnected) {
		t.Errorf("Ask() after disconnect error = %v, want ErrNotConnected", err)
	}
}

func TestClient_CloseWithoutConnect(t *testing.T) {
	c, err := client.New(client.Config{URL: "ws://localhost:3001", Name: "Alex"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() before connect error = %v, want nil", err)
	}
}
