package hub_test

import (
	"strings"
	"testing"

	"github.com/agentfleet/agenthub/hub"
	"github.com/agentfleet/agenthub/protocol"
)

func publishArtifact(t *testing.T, srv *hub.Server, c *fakeConn, filename string, artifactType protocol.ArtifactType, summary string) {
	t.Helper()
	sendMsg(t, srv, c, protocol.ArtifactPublish{
		Type:         protocol.TypeArtifactPublish,
		Filename:     filename,
		ArtifactType: artifactType,
		Summary:      summary,
	})
}

func TestArtifactPublish_CreatedThenUpdated(t *testing.T) {
	srv := newTestServer(t)
	alex := newFakeConn()
	register(t, srv, alex, "Alex", "", "")

	publishArtifact(t, srv, alex, "schema.sql", protocol.ArtifactCode, "initial tables")
	created := lastOf[*protocol.ArtifactChanged](t, alex)
	if created.Action != "created" {
		t.Errorf("first publish Action = %q, want %q", created.Action, "created")
	}
	if created.Artifact.Owner != "Alex" {
		t.Errorf("Owner = %q, want %q", created.Artifact.Owner, "Alex")
	}

	publishArtifact(t, srv, alex, "schema.sql", protocol.ArtifactCode, "added indexes")
	updated := lastOf[*protocol.ArtifactChanged](t, alex)
	if updated.Action != "updated" {
		t.Errorf("second publish Action = %q, want %q", updated.Action, "updated")
	}
	if updated.Artifact.Summary != "added indexes" {
		t.Errorf("Summary = %q, want %q", updated.Artifact.Summary, "added indexes")
	}
	if !updated.Artifact.PublishedAt.Equal(created.Artifact.PublishedAt) {
		t.Error("PublishedAt changed on update, want original timestamp preserved")
	}
}

func TestArtifactPublish_OwnershipConflict(t *testing.T) {
	srv := newTestServer(t)
	alex := newFakeConn()
	jordan := newFakeConn()

	register(t, srv, alex, "Alex", "", "")
	register(t, srv, jordan, "Jordan", "", "")

	publishArtifact(t, srv, alex, "schema.sql", protocol.ArtifactCode, "the truth")
	alex.take()
	jordan.take()

	publishArtifact(t, srv, jordan, "schema.sql", protocol.ArtifactCode, "my version")

	// The publisher alone hears about the rejection.
	rejection := lastOf[*protocol.RelayReplyDelivered](t, jordan)
	if rejection.FromAgent != "hub" {
		t.Errorf("rejection FromAgent = %q, want %q", rejection.FromAgent, "hub")
	}
	if !strings.Contains(rejection.Message, `owned by Alex`) {
		t.Errorf("rejection = %q, want it to name the owner", rejection.Message)
	}
	if got := len(msgsOf[*protocol.ArtifactChanged](alex)); got != 0 {
		t.Errorf("conflict produced %d artifact broadcasts, want 0", got)
	}

	// Metadata is untouched.
	sendMsg(t, srv, alex, protocol.ArtifactList{Type: protocol.TypeArtifactList})
	list := lastOf[protocol.ArtifactListResponse](t, alex)
	if len(list.Artifacts) != 1 {
		t.Fatalf("registry holds %d artifacts, want 1", len(list.Artifacts))
	}
	if list.Artifacts[0].Owner != "Alex" || list.Artifacts[0].Summary != "the truth" {
		t.Errorf("artifact = %+v, want Alex's original metadata", list.Artifacts[0])
	}
}

func TestArtifactPublish_NotifiesConsumingTasks(t *testing.T) {
	srv := newTestServer(t)
	alex := newFakeConn()
	jordan := newFakeConn()

	register(t, srv, alex, "Alex", "", "")
	register(t, srv, jordan, "Jordan", "", "")

	sendMsg(t, srv, alex, protocol.TaskCreate{
		Type:        protocol.TypeTaskCreate,
		Title:       "Build importer",
		Description: "read the spec",
		Assignee:    "Jordan",
		Consumes:    []protocol.TaskConsumes{{Artifact: "feed-spec.md", Owner: "Alex"}},
	})
	jordan.take()

	publishArtifact(t, srv, alex, "feed-spec.md", protocol.ArtifactSpec, "field layout")

	var found bool
	for _, d := range msgsOf[*protocol.RelayReplyDelivered](jordan) {
		if strings.Contains(d.Message, `Artifact "feed-spec.md"`) && strings.Contains(d.Message, "is now available") {
			found = true
		}
	}
	if !found {
		t.Error("consuming assignee was not told its input is available")
	}
}

func TestArtifactPublish_UnblocksArtifactDependency(t *testing.T) {
	srv := newTestServer(t)
	alex := newFakeConn()
	jordan := newFakeConn()

	register(t, srv, alex, "Alex", "", "")
	register(t, srv, jordan, "Jordan", "", "")

	sendMsg(t, srv, alex, protocol.TaskCreate{
		Type:        protocol.TypeTaskCreate,
		Title:       "Build API",
		Description: "gated on the schema",
		Assignee:    "Jordan",
		DependsOn:   []protocol.TaskDependency{{Artifact: "schema.sql"}},
	})
	gated := lastOf[*protocol.TaskCreatedBroadcast](t, alex).Task
	if gated.Status != protocol.TaskQueued {
		t.Fatalf("Status = %q, want %q", gated.Status, protocol.TaskQueued)
	}
	jordan.take()

	publishArtifact(t, srv, alex, "schema.sql", protocol.ArtifactCode, "tables")

	instrs := msgsOf[*protocol.RelayTask](jordan)
	if len(instrs) != 1 {
		t.Fatalf("Jordan received %d instructions after the artifact landed, want 1", len(instrs))
	}
	if instrs[0].RequestID != gated.TaskID {
		t.Errorf("RequestID = %q, want %q", instrs[0].RequestID, gated.TaskID)
	}
}

func TestArtifactList_TypeFilter(t *testing.T) {
	srv := newTestServer(t)
	alex := newFakeConn()
	register(t, srv, alex, "Alex", "", "")

	publishArtifact(t, srv, alex, "schema.sql", protocol.ArtifactCode, "tables")
	publishArtifact(t, srv, alex, "plan.md", protocol.ArtifactPlan, "milestones")
	alex.take()

	sendMsg(t, srv, alex, protocol.ArtifactList{
		Type:         protocol.TypeArtifactList,
		ArtifactType: protocol.ArtifactPlan,
	})
	list := lastOf[protocol.ArtifactListResponse](t, alex)
	if len(list.Artifacts) != 1 {
		t.Fatalf("filtered list has %d artifacts, want 1", len(list.Artifacts))
	}
	if list.Artifacts[0].Filename != "plan.md" {
		t.Errorf("Filename = %q, want %q", list.Artifacts[0].Filename, "plan.md")
	}
}

func TestArtifact_TeamScoped(t *testing.T) {
	srv := newTestServer(t)
	alex := newFakeConn()
	sam := newFakeConn()

	register(t, srv, alex, "Alex", "", "payments")
	register(t, srv, sam, "Sam", "", "billing")

	publishArtifact(t, srv, alex, "shared.md", protocol.ArtifactOther, "payments only")
	sam.take()

	// Same filename in another team is a fresh artifact, not a conflict.
	publishArtifact(t, srv, sam, "shared.md", protocol.ArtifactOther, "billing's own")
	changed := lastOf[*protocol.ArtifactChanged](t, sam)
	if changed.Action != "created" {
		t.Errorf("Action = %q, want %q (no cross-team ownership)", changed.Action, "created")
	}
	if changed.Artifact.Owner != "Sam" {
		t.Errorf("Owner = %q, want %q", changed.Artifact.Owner, "Sam")
	}
}
