package hub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentfleet/agenthub/observability"
	"github.com/agentfleet/agenthub/protocol"
)

type pendingAsk struct {
	caller    Conn
	fromAgent string
	toAgent   string
	team      string
	createdAt time.Time
}

// Relay routes the three messaging patterns between agents: ask/answer,
// assign, and reply. Asks are tracked so the eventual answer can be
// correlated back to the caller; the hub enforces no timeout on them, that
// policy belongs to the asking client.
type Relay struct {
	registry *Registry
	queue    *DeliveryQueue
	pending  map[string]*pendingAsk // by request id

	ctx      context.Context
	logger   *slog.Logger
	observer observability.Observer
}

func NewRelay(ctx context.Context, registry *Registry, queue *DeliveryQueue, logger *slog.Logger, observer observability.Observer) *Relay {
	return &Relay{
		registry: registry,
		queue:    queue,
		pending:  make(map[string]*pendingAsk),
		ctx:      ctx,
		logger:   logger,
		observer: observer,
	}
}

func (r *Relay) emit(eventType observability.EventType, data map[string]any) {
	r.observer.OnEvent(r.ctx, observability.Event{
		Type:      eventType,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "relay",
		Data:      data,
	})
}

// callerTeam resolves the team an operation is scoped to: the caller
// connection's identity if it has one, otherwise the named sender's team.
func (r *Relay) callerTeam(caller Conn, fromAgent string) string {
	if _, team, ok := r.registry.IdentityOf(caller); ok {
		return team
	}
	if agent, ok := r.registry.AgentByName(fromAgent, ""); ok {
		return agent.Team
	}
	return "default"
}

func (r *Relay) errorResponse(caller Conn, requestID, fromAgent, text string) {
	caller.Send(&protocol.RelayResponse{
		Type:      protocol.TypeRelayResponse,
		RequestID: requestID,
		FromAgent: fromAgent,
		Answer:    text,
	})
}

// Ask registers a pending request and routes the question to the target via
// idle-aware delivery. An unknown target or a request id that is already in
// flight is answered immediately with an error response.
func (r *Relay) Ask(caller Conn, msg *protocol.RelayAsk) {
	team := r.callerTeam(caller, msg.FromAgent)

	target, ok := r.registry.AgentByName(msg.ToAgent, team)
	if !ok {
		r.errorResponse(caller, msg.RequestID, msg.ToAgent,
			fmt.Sprintf("Error: Agent %q is not connected.", msg.ToAgent))
		return
	}

	if _, inFlight := r.pending[msg.RequestID]; inFlight {
		r.errorResponse(caller, msg.RequestID, msg.ToAgent,
			fmt.Sprintf("Error: request id %q is already in flight.", msg.RequestID))
		return
	}

	r.pending[msg.RequestID] = &pendingAsk{
		caller:    caller,
		fromAgent: msg.FromAgent,
		toAgent:   msg.ToAgent,
		team:      team,
		createdAt: time.Now(),
	}

	r.registry.BroadcastTeam(team, &protocol.RelayStart{
		Type:      protocol.TypeRelayStart,
		FromAgent: msg.FromAgent,
		ToAgent:   msg.ToAgent,
		RequestID: msg.RequestID,
	}, nil)

	r.queue.DeliverOrQueue(target.Name, team, &protocol.RelayQuestion{
		Type:      protocol.TypeRelayQuestion,
		RequestID: msg.RequestID,
		FromAgent: msg.FromAgent,
		Question:  msg.Question,
	})

	r.logger.Debug("ask relayed",
		slog.String("from", msg.FromAgent),
		slog.String("to", msg.ToAgent),
		slog.String("request_id", msg.RequestID),
	)
	r.emit(EventRelayAsk, map[string]any{
		"from":       msg.FromAgent,
		"to":         msg.ToAgent,
		"request_id": msg.RequestID,
	})
}

// Answer forwards an answer to the caller that asked. An answer for an
// unknown request id is dropped: stale client state is not an error the
// answering agent can act on.
func (r *Relay) Answer(msg *protocol.RelayAnswer) {
	pending, ok := r.pending[msg.RequestID]
	if !ok {
		r.logger.Debug("no pending request for answer",
			slog.String("request_id", msg.RequestID),
		)
		r.emit(EventRelayOrphan, map[string]any{"request_id": msg.RequestID})
		return
	}
	delete(r.pending, msg.RequestID)

	pending.caller.Send(&protocol.RelayResponse{
		Type:      protocol.TypeRelayResponse,
		RequestID: msg.RequestID,
		FromAgent: pending.toAgent,
		Answer:    msg.Answer,
	})

	r.registry.BroadcastTeam(pending.team, &protocol.RelayDone{
		Type:      protocol.TypeRelayDone,
		FromAgent: pending.fromAgent,
		ToAgent:   pending.toAgent,
		RequestID: msg.RequestID,
	}, nil)

	r.logger.Debug("answer relayed",
		slog.String("from", pending.toAgent),
		slog.String("to", pending.fromAgent),
		slog.String("request_id", msg.RequestID),
	)
	r.emit(EventRelayAnswer, map[string]any{"request_id": msg.RequestID})
}

// Assign routes a fire-and-forget task instruction to the target via
// idle-aware delivery. Unlike Ask there is no pending state: done is
// broadcast immediately after the handoff.
func (r *Relay) Assign(caller Conn, msg *protocol.RelayAssign) {
	team := r.callerTeam(caller, msg.FromAgent)

	target, ok := r.registry.AgentByName(msg.ToAgent, team)
	if !ok {
		r.errorResponse(caller, msg.RequestID, msg.ToAgent,
			fmt.Sprintf("Error: Agent %q is not connected.", msg.ToAgent))
		return
	}

	priority := msg.Priority
	if priority == "" {
		priority = protocol.PriorityMedium
	}

	r.registry.BroadcastTeam(team, &protocol.RelayStart{
		Type:      protocol.TypeRelayStart,
		FromAgent: msg.FromAgent,
		ToAgent:   msg.ToAgent,
		RequestID: msg.RequestID,
	}, nil)

	r.queue.DeliverOrQueue(target.Name, team, &protocol.RelayTask{
		Type:      protocol.TypeRelayTask,
		RequestID: msg.RequestID,
		FromAgent: msg.FromAgent,
		Task:      msg.Task,
		Priority:  priority,
	})

	r.registry.BroadcastTeam(team, &protocol.RelayDone{
		Type:      protocol.TypeRelayDone,
		FromAgent: msg.FromAgent,
		ToAgent:   msg.ToAgent,
		RequestID: msg.RequestID,
	}, nil)

	r.logger.Debug("task assigned",
		slog.String("from", msg.FromAgent),
		slog.String("to", msg.ToAgent),
		slog.String("request_id", msg.RequestID),
		slog.String("priority", string(priority)),
	)
	r.emit(EventRelayAssign, map[string]any{
		"from":       msg.FromAgent,
		"to":         msg.ToAgent,
		"request_id": msg.RequestID,
	})
}

// Reply delivers an unsolicited message to another agent via idle-aware
// delivery. An unknown target is logged and dropped.
func (r *Relay) Reply(caller Conn, fromAgent string, msg *protocol.RelayReply) {
	team := r.callerTeam(caller, fromAgent)

	target, ok := r.registry.AgentByName(msg.ToAgent, team)
	if !ok {
		r.logger.Debug("reply target not connected",
			slog.String("to", msg.ToAgent),
		)
		return
	}

	r.queue.DeliverOrQueue(target.Name, team, &protocol.RelayReplyDelivered{
		Type:      protocol.TypeRelayReplyDelivered,
		FromAgent: fromAgent,
		Message:   msg.Message,
	})

	r.logger.Debug("reply relayed",
		slog.String("from", fromAgent),
		slog.String("to", msg.ToAgent),
	)
	r.emit(EventRelayReply, map[string]any{"from": fromAgent, "to": msg.ToAgent})
}

// DropPending destroys every pending ask originated by a connection. Called
// when the requester disconnects; late answers then fall into the orphan path.
func (r *Relay) DropPending(caller Conn) {
	for requestID, pending := range r.pending {
		if pending.caller.ID() == caller.ID() {
			delete(r.pending, requestID)
		}
	}
}

// PendingCount reports how many asks are currently in flight.
func (r *Relay) PendingCount() int {
	return len(r.pending)
}
