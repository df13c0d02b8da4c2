package hub_test

import (
	"fmt"
	"testing"

	"github.com/agentfleet/agenthub/hub"
	"github.com/agentfleet/agenthub/protocol"
)

func TestTeamUpdate_BroadcastToTeam(t *testing.T) {
	srv := newTestServer(t)
	alex := newFakeConn()
	jordan := newFakeConn()

	register(t, srv, alex, "Alex", "", "")
	register(t, srv, jordan, "Jordan", "", "")
	jordan.take()

	sendMsg(t, srv, alex, protocol.TeamUpdatePost{
		Type:    protocol.TypeTeamUpdatePost,
		Message: "migrations are done",
	})

	update := lastOf[*protocol.TeamUpdateBroadcast](t, jordan).Update
	if update.From != "Alex" {
		t.Errorf("From = %q, want %q", update.From, "Alex")
	}
	if update.Message != "migrations are done" {
		t.Errorf("Message = %q, want the posted text", update.Message)
	}
	if update.Timestamp.IsZero() {
		t.Error("Timestamp is zero, want server-assigned time")
	}
}

func TestTeamUpdate_LogTrimmedToCap(t *testing.T) {
	cfg := hub.DefaultConfig()
	cfg.UpdateLogCap = 3
	srv, err := hub.New(&cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	alex := newFakeConn()
	register(t, srv, alex, "Alex", "", "")

	for i := 1; i <= 5; i++ {
		sendMsg(t, srv, alex, protocol.TeamUpdatePost{
			Type:    protocol.TypeTeamUpdatePost,
			Message: fmt.Sprintf("update-%d", i),
		})
	}
	alex.take()

	sendMsg(t, srv, alex, protocol.TeamUpdateList{Type: protocol.TypeTeamUpdateList})
	list := lastOf[protocol.TeamUpdateListResponse](t, alex)
	if len(list.Updates) != 3 {
		t.Fatalf("retained %d updates, want 3", len(list.Updates))
	}
	for i, want := range []string{"update-3", "update-4", "update-5"} {
		if list.Updates[i].Message != want {
			t.Errorf("Updates[%d].Message = %q, want %q", i, list.Updates[i].Message, want)
		}
	}
}

func TestTeamUpdate_ListLimit(t *testing.T) {
	srv := newTestServer(t)
	alex := newFakeConn()
	register(t, srv, alex, "Alex", "", "")

	for i := 1; i <= 4; i++ {
		sendMsg(t, srv, alex, protocol.TeamUpdatePost{
			Type:    protocol.TypeTeamUpdatePost,
			Message: fmt.Sprintf("update-%d", i),
		})
	}
	alex.take()

	sendMsg(t, srv, alex, protocol.TeamUpdateList{
		Type:  protocol.TypeTeamUpdateList,
		Limit: 2,
	})
	list := lastOf[protocol.TeamUpdateListResponse](t, alex)
	if len(list.Updates) != 2 {
		t.Fatalf("limited list has %d updates, want 2", len(list.Updates))
	}
	if list.Updates[0].Message != "update-3" || list.Updates[1].Message != "update-4" {
		t.Errorf("limited list = [%q, %q], want the two most recent",
			list.Updates[0].Message, list.Updates[1].Message)
	}
}

func TestTeamUpdate_TeamScoped(t *testing.T) {
	srv := newTestServer(t)
	alex := newFakeConn()
	sam := newFakeConn()

	register(t, srv, alex, "Alex", "", "payments")
	register(t, srv, sam, "Sam", "", "billing")
	sam.take()

	sendMsg(t, srv, alex, protocol.TeamUpdatePost{
		Type:    protocol.TypeTeamUpdatePost,
		Message: "payments internal",
	})

	if got := len(msgsOf[*protocol.TeamUpdateBroadcast](sam)); got != 0 {
		t.Errorf("Sam received %d updates from another team, want 0", got)
	}

	sendMsg(t, srv, sam, protocol.TeamUpdateList{Type: protocol.TypeTeamUpdateList})
	list := lastOf[protocol.TeamUpdateListResponse](t, sam)
	if len(list.Updates) != 0 {
		t.Errorf("Sam's team log has %d updates, want 0", len(list.Updates))
	}
}
