package hub

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentfleet/agenthub/observability"
	"github.com/agentfleet/agenthub/protocol"
)

// DeliveryResult reports what DeliverOrQueue did with a payload.
type DeliveryResult int

const (
	// DeliveryNotFound means no agent with that name exists in the team.
	DeliveryNotFound DeliveryResult = iota
	// Delivered means the payload was sent immediately.
	Delivered
	// Queued means the target was not idle and the payload was buffered.
	Queued
)

type queuedMessage struct {
	payload    any
	enqueuedAt time.Time
}

// DeliveryQueue delivers payloads to idle agents immediately and buffers them
// for busy ones, draining in enqueue order when the target reports idle.
// Queues are keyed by identity id; queued messages are not persisted.
//
// Like the registry, the queue relies on the server's dispatch lock for
// serialization.
type DeliveryQueue struct {
	registry *Registry
	pending  map[string][]queuedMessage // by agent identity id
	flushing map[string]bool            // reentrancy guard per agent id

	ctx      context.Context
	logger   *slog.Logger
	observer observability.Observer
	metrics  *Metrics
}

func NewDeliveryQueue(ctx context.Context, registry *Registry, logger *slog.Logger, observer observability.Observer, metrics *Metrics) *DeliveryQueue {
	return &DeliveryQueue{
		registry: registry,
		pending:  make(map[string][]queuedMessage),
		flushing: make(map[string]bool),
		ctx:      ctx,
		logger:   logger,
		observer: observer,
		metrics:  metrics,
	}
}

// DeliverOrQueue resolves the target agent by name and team. An idle target
// receives the payload immediately, along with its shadow subscribers; any
// other status buffers the payload until the target reports idle.
func (q *DeliveryQueue) DeliverOrQueue(targetName, team string, payload any) DeliveryResult {
	target, ok := q.registry.AgentByName(targetName, team)
	if !ok {
		return DeliveryNotFound
	}

	if target.Status != protocol.StatusIdle {
		q.pending[target.ID] = append(q.pending[target.ID], queuedMessage{
			payload:    payload,
			enqueuedAt: time.Now(),
		})
		q.metrics.RecordQueued(1)
		q.logger.Debug("message queued for busy agent",
			slog.String("agent", target.Name),
			slog.String("status", string(target.Status)),
			slog.Int("queue_depth", len(q.pending[target.ID])),
		)
		q.observer.OnEvent(q.ctx, observability.Event{
			Type:      EventQueueEnqueue,
			Level:     observability.LevelVerbose,
			Timestamp: time.Now(),
			Source:    "queue",
			Data: map[string]any{
				"agent":       target.Name,
				"queue_depth": len(q.pending[target.ID]),
			},
		})
		return Queued
	}

	q.send(target, payload)
	return Delivered
}

// Flush sends every queued payload for an agent in enqueue order, then clears
// the queue. It is invoked by the registry whenever an agent reports idle.
// Guarded against reentrancy in case a flushed payload triggers a further
// status change.
func (q *DeliveryQueue) Flush(agentID string) {
	if q.flushing[agentID] {
		return
	}
	queued := q.pending[agentID]
	if len(queued) == 0 {
		return
	}

	target, ok := q.registry.AgentByID(agentID)
	if !ok {
		// Identity gone; its queue dies with it.
		delete(q.pending, agentID)
		return
	}

	q.flushing[agentID] = true
	defer delete(q.flushing, agentID)
	delete(q.pending, agentID)

	for _, m := range queued {
		q.send(target, m.payload)
	}

	q.logger.Debug("flushed queued messages",
		slog.String("agent", target.Name),
		slog.Int("count", len(queued)),
	)
	q.observer.OnEvent(q.ctx, observability.Event{
		Type:      EventQueueFlush,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "queue",
		Data: map[string]any{
			"agent": target.Name,
			"count": len(queued),
		},
	})
}

// Drop discards every buffered payload for an agent id. Called on
// disconnect: the idle hook can no longer fire for a removed identity, so
// without this its queue would outlive it.
func (q *DeliveryQueue) Drop(agentID string) {
	queued, ok := q.pending[agentID]
	if !ok {
		return
	}
	delete(q.pending, agentID)
	delete(q.flushing, agentID)
	q.logger.Debug("dropped queued messages for disconnected agent",
		slog.String("agent_id", agentID),
		slog.Int("count", len(queued)),
	)
}

// PendingFor reports how many payloads are buffered for an agent id.
func (q *DeliveryQueue) PendingFor(agentID string) int {
	return len(q.pending[agentID])
}

func (q *DeliveryQueue) send(target *AgentEntry, payload any) {
	target.Conn.Send(payload)
	for _, shadow := range q.registry.ShadowConnsFor(target.Name, target.Team) {
		shadow.Send(payload)
	}
	q.metrics.RecordRouted(1)
}
