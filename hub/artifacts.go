package hub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentfleet/agenthub/observability"
	"github.com/agentfleet/agenthub/protocol"
)

// ArtifactRegistry keeps ownership-locked metadata for shared documents.
// Ownership is first-writer-wins: only the original publisher may update an
// artifact's metadata.
type ArtifactRegistry struct {
	state    *State
	registry *Registry
	queue    *DeliveryQueue
	tasks    *TaskManager
	persist  func(team string)

	ctx      context.Context
	logger   *slog.Logger
	observer observability.Observer
	metrics  *Metrics
}

func NewArtifactRegistry(ctx context.Context, state *State, registry *Registry, queue *DeliveryQueue, tasks *TaskManager, persist func(team string), logger *slog.Logger, observer observability.Observer, metrics *Metrics) *ArtifactRegistry {
	return &ArtifactRegistry{
		state:    state,
		registry: registry,
		queue:    queue,
		tasks:    tasks,
		persist:  persist,
		ctx:      ctx,
		logger:   logger,
		observer: observer,
		metrics:  metrics,
	}
}

func (ar *ArtifactRegistry) emit(eventType observability.EventType, level observability.Level, data map[string]any) {
	ar.observer.OnEvent(ar.ctx, observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "artifacts",
		Data:      data,
	})
}

// Publish upserts artifact metadata. A publish under an existing filename by
// anyone but the owner is rejected without mutation and the conflict is
// surfaced to the publisher only. A successful publish re-runs the dependency
// scan for the filename and tells every active consuming task its input is
// ready.
func (ar *ArtifactRegistry) Publish(owner *AgentEntry, msg *protocol.ArtifactPublish) {
	team := owner.Team
	ts := ar.state.Team(team)
	now := time.Now()

	existing, exists := ts.Artifacts[msg.Filename]
	if exists && existing.Owner != owner.Name {
		owner.Conn.Send(&protocol.RelayReplyDelivered{
			Type:      protocol.TypeRelayReplyDelivered,
			FromAgent: "hub",
			Message: fmt.Sprintf(
				"Error: artifact %q is owned by %s; only the owner may update it.",
				msg.Filename, existing.Owner),
		})
		ar.logger.Debug("artifact ownership conflict",
			slog.String("filename", msg.Filename),
			slog.String("owner", existing.Owner),
			slog.String("publisher", owner.Name),
		)
		ar.emit(EventArtifactConflict, observability.LevelWarning, map[string]any{
			"filename":  msg.Filename,
			"owner":     existing.Owner,
			"publisher": owner.Name,
		})
		return
	}

	action := "created"
	meta := &protocol.ArtifactMeta{
		Filename:    msg.Filename,
		Type:        msg.ArtifactType,
		Summary:     msg.Summary,
		Owner:       owner.Name,
		RelatesTo:   msg.RelatesTo,
		PublishedAt: now,
		UpdatedAt:   now,
	}
	if exists {
		action = "updated"
		meta.PublishedAt = existing.PublishedAt
	}
	ts.Artifacts[msg.Filename] = meta
	ar.metrics.RecordArtifact(1)

	ar.registry.BroadcastTeam(team, &protocol.ArtifactChanged{
		Type:     protocol.TypeArtifactChanged,
		Artifact: *meta,
		Action:   action,
	}, nil)

	ar.logger.Debug("artifact published",
		slog.String("filename", msg.Filename),
		slog.String("owner", owner.Name),
		slog.String("action", action),
	)
	ar.emit(EventArtifactPublish, observability.LevelInfo, map[string]any{
		"filename": msg.Filename,
		"owner":    owner.Name,
		"action":   action,
	})

	ar.tasks.UnblockAfter(team, msg.Filename)
	ar.notifyConsumers(team, meta)
	ar.persist(team)
}

// notifyConsumers pushes an input-ready notice to the assignee of every
// active task that consumes the artifact. Queued tasks are excluded: they
// are handled by the unblock scan instead.
func (ar *ArtifactRegistry) notifyConsumers(team string, meta *protocol.ArtifactMeta) {
	ts := ar.state.Team(team)
	for _, task := range ts.Tasks {
		switch task.Status {
		case protocol.TaskDone, protocol.TaskRejected, protocol.TaskQueued:
			continue
		}
		for _, c := range task.Consumes {
			if c.Artifact != meta.Filename {
				continue
			}
			ar.queue.DeliverOrQueue(task.Assignee, team, &protocol.RelayReplyDelivered{
				Type:      protocol.TypeRelayReplyDelivered,
				FromAgent: meta.Owner,
				Message: fmt.Sprintf(
					"Artifact %q for task %s (%s) is now available: %s",
					meta.Filename, task.TaskID, task.Title, meta.Summary),
			})
			break
		}
	}
}

// List returns the team's artifacts, optionally filtered by type.
func (ar *ArtifactRegistry) List(team string, artifactType protocol.ArtifactType) []protocol.ArtifactMeta {
	ts := ar.state.Team(team)
	artifacts := make([]protocol.ArtifactMeta, 0, len(ts.Artifacts))
	for _, meta := range ts.Artifacts {
		if artifactType != "" && meta.Type != artifactType {
			continue
		}
		artifacts = append(artifacts, *meta)
	}
	return artifacts
}
