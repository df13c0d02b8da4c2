package hub_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/agentfleet/agenthub/hub"
	"github.com/agentfleet/agenthub/protocol"
)

// fakeConn records everything the hub sends it. Tests run single-threaded
// through HandleMessage, so no locking is needed.
type fakeConn struct {
	id   string
	sent []any
}

var connSeq int

func newFakeConn() *fakeConn {
	connSeq++
	return &fakeConn{id: fmt.Sprintf("conn-%d", connSeq)}
}

func (c *fakeConn) ID() string         { return c.id }
func (c *fakeConn) Send(msg any) error { c.sent = append(c.sent, msg); return nil }
func (c *fakeConn) Close() error       { return nil }

// take returns and clears everything sent so far.
func (c *fakeConn) take() []any {
	out := c.sent
	c.sent = nil
	return out
}

// msgsOf filters the connection's sent messages by concrete type without
// clearing them.
func msgsOf[T any](c *fakeConn) []T {
	var out []T
	for _, m := range c.sent {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// lastOf returns the most recent sent message of type T.
func lastOf[T any](t *testing.T, c *fakeConn) T {
	t.Helper()
	all := msgsOf[T](c)
	if len(all) == 0 {
		var zero T
		t.Fatalf("no %T sent to %s", zero, c.id)
	}
	return all[len(all)-1]
}

func newTestServer(t *testing.T) *hub.Server {
	t.Helper()
	cfg := hub.DefaultConfig()
	srv, err := hub.New(&cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

// sendMsg marshals a message struct and feeds it through the server's normal
// frame path.
func sendMsg(t *testing.T, srv *hub.Server, c *fakeConn, msg any) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal %T failed: %v", msg, err)
	}
	srv.HandleMessage(c, data)
}

// register connects an agent and returns its hub-assigned id.
func register(t *testing.T, srv *hub.Server, c *fakeConn, name, role, team string) string {
	t.Helper()
	sendMsg(t, srv, c, protocol.AgentRegister{
		Type: protocol.TypeAgentRegister,
		Name: name,
		Role: role,
		Team: team,
	})
	reg := lastOf[*protocol.AgentRegistered](t, c)
	return reg.AgentID
}

func setStatus(t *testing.T, srv *hub.Server, c *fakeConn, status protocol.AgentStatus) {
	t.Helper()
	sendMsg(t, srv, c, protocol.AgentStatusUpdate{
		Type:   protocol.TypeAgentStatus,
		Status: status,
	})
}
