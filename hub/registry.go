package hub

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentfleet/agenthub/observability"
	"github.com/agentfleet/agenthub/protocol"
)

// AgentEntry is a registered agent identity together with its live connection.
type AgentEntry struct {
	protocol.Agent
	Conn Conn
}

type shadowEntry struct {
	Name string
	Team string
	Conn Conn
}

// identity is the tagged role a connection owns. Exactly one of the fields is
// set; a connection owns at most one role for its lifetime.
type identity struct {
	conn   Conn
	agent  *AgentEntry
	shadow *shadowEntry
	viewer bool
}

// Registry tracks every live connection's identity and provides lookup and
// broadcast primitives. It is the single table associating connections with
// roles; no other component duplicates that mapping.
//
// Registry performs no locking of its own: all mutation is serialized by the
// server's dispatch lock.
type Registry struct {
	identities map[string]*identity // keyed by connection id

	// idleHook is the single consumer of idle transitions, wired at server
	// construction. It is how the delivery queue learns an agent can drain.
	idleHook func(agentID string)

	ctx      context.Context
	logger   *slog.Logger
	observer observability.Observer
	metrics  *Metrics
}

func NewRegistry(ctx context.Context, logger *slog.Logger, observer observability.Observer, metrics *Metrics) *Registry {
	return &Registry{
		identities: make(map[string]*identity),
		ctx:        ctx,
		logger:     logger,
		observer:   observer,
		metrics:    metrics,
	}
}

func (r *Registry) emit(eventType observability.EventType, level observability.Level, data map[string]any) {
	r.observer.OnEvent(r.ctx, observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "registry",
		Data:      data,
	})
}

// Register creates an agent identity for a connection, confirms it with the
// current teammate list, and announces the new agent to the rest of the team.
// A connection that already owns a role is left untouched.
func (r *Registry) Register(c Conn, msg *protocol.AgentRegister) *AgentEntry {
	if _, exists := r.identities[c.ID()]; exists {
		r.logger.Warn("connection already owns a role, register ignored",
			slog.String("conn_id", c.ID()),
			slog.String("name", msg.Name),
		)
		return nil
	}

	role := msg.Role
	if role == "" {
		role = "Engineer"
	}
	team := msg.Team
	if team == "" {
		team = "default"
	}
	capabilities := msg.Capabilities
	if capabilities == nil {
		capabilities = []string{}
	}

	entry := &AgentEntry{
		Agent: protocol.Agent{
			ID:           uuid.Must(uuid.NewV7()).String(),
			Name:         msg.Name,
			Role:         role,
			Capabilities: capabilities,
			Status:       protocol.StatusIdle,
			Team:         team,
		},
		Conn: c,
	}
	r.identities[c.ID()] = &identity{conn: c, agent: entry}
	r.metrics.RecordAgent(1)

	c.Send(&protocol.AgentRegistered{
		Type:      protocol.TypeAgentRegistered,
		AgentID:   entry.ID,
		Team:      team,
		Teammates: r.teammatesFor(entry.ID, team),
	})

	r.BroadcastTeam(team, &protocol.AgentStatusBroadcast{
		Type:    protocol.TypeAgentStatusBroadcast,
		AgentID: entry.ID,
		Name:    entry.Name,
		Role:    entry.Role,
		Status:  entry.Status,
	}, c)

	r.logger.Debug("agent registered",
		slog.String("agent_id", entry.ID),
		slog.String("name", entry.Name),
		slog.String("role", entry.Role),
		slog.String("team", team),
	)
	r.emit(EventAgentRegister, observability.LevelInfo, map[string]any{
		"agent_id": entry.ID,
		"name":     entry.Name,
		"team":     team,
	})
	return entry
}

// RegisterViewer adds a read-only broadcast subscriber and replays the current
// status of every known agent to it only.
func (r *Registry) RegisterViewer(c Conn) {
	if _, exists := r.identities[c.ID()]; exists {
		r.logger.Warn("connection already owns a role, viewer connect ignored",
			slog.String("conn_id", c.ID()),
		)
		return
	}
	r.identities[c.ID()] = &identity{conn: c, viewer: true}
	r.metrics.RecordViewer(1)

	for _, id := range r.identities {
		if id.agent == nil {
			continue
		}
		c.Send(&protocol.AgentStatusBroadcast{
			Type:    protocol.TypeAgentStatusBroadcast,
			AgentID: id.agent.ID,
			Name:    id.agent.Name,
			Role:    id.agent.Role,
			Status:  id.agent.Status,
		})
	}

	r.logger.Debug("viewer connected", slog.String("conn_id", c.ID()))
	r.emit(EventViewerConnect, observability.LevelVerbose, map[string]any{
		"conn_id": c.ID(),
	})
}

// SubscribeShadow attaches a shadow subscription for an agent name without
// creating a new identity, and confirms it with the current teammate list.
func (r *Registry) SubscribeShadow(c Conn, msg *protocol.SpawnerSubscribe) {
	if _, exists := r.identities[c.ID()]; exists {
		r.logger.Warn("connection already owns a role, shadow subscribe ignored",
			slog.String("conn_id", c.ID()),
			slog.String("name", msg.Name),
		)
		return
	}

	team := msg.Team
	if team == "" {
		team = "default"
	}
	r.identities[c.ID()] = &identity{conn: c, shadow: &shadowEntry{Name: msg.Name, Team: team, Conn: c}}

	c.Send(&protocol.SpawnerSubscribed{
		Type:      protocol.TypeSpawnerSubscribed,
		Name:      msg.Name,
		Team:      team,
		Teammates: r.AgentsInTeam(team),
	})

	r.logger.Debug("shadow subscribed",
		slog.String("name", msg.Name),
		slog.String("team", team),
	)
	r.emit(EventShadowSubscribe, observability.LevelVerbose, map[string]any{
		"name": msg.Name,
		"team": team,
	})
}

// Unregister removes whatever role the connection held. An agent departure is
// broadcast to its team.
func (r *Registry) Unregister(c Conn) *AgentEntry {
	id, exists := r.identities[c.ID()]
	if !exists {
		return nil
	}
	delete(r.identities, c.ID())

	switch {
	case id.agent != nil:
		r.metrics.RecordAgent(-1)
		r.BroadcastTeam(id.agent.Team, &protocol.AgentDisconnected{
			Type:    protocol.TypeAgentDisconnected,
			AgentID: id.agent.ID,
			Name:    id.agent.Name,
		}, nil)
		r.logger.Debug("agent disconnected",
			slog.String("agent_id", id.agent.ID),
			slog.String("name", id.agent.Name),
		)
		r.emit(EventAgentDisconnect, observability.LevelInfo, map[string]any{
			"agent_id": id.agent.ID,
			"name":     id.agent.Name,
		})
		return id.agent
	case id.shadow != nil:
		r.logger.Debug("shadow disconnected", slog.String("name", id.shadow.Name))
	case id.viewer:
		r.metrics.RecordViewer(-1)
		r.logger.Debug("viewer disconnected", slog.String("conn_id", c.ID()))
	}
	return nil
}

// UpdateStatus mutates an agent's status, broadcasts the change to its team,
// and, on a transition to idle, invokes the queue's flush hook.
func (r *Registry) UpdateStatus(c Conn, status protocol.AgentStatus) {
	id, exists := r.identities[c.ID()]
	if !exists || id.agent == nil {
		return
	}
	agent := id.agent
	agent.Status = status

	r.BroadcastTeam(agent.Team, &protocol.AgentStatusBroadcast{
		Type:    protocol.TypeAgentStatusBroadcast,
		AgentID: agent.ID,
		Name:    agent.Name,
		Role:    agent.Role,
		Status:  agent.Status,
	}, c)

	r.logger.Debug("status update",
		slog.String("name", agent.Name),
		slog.String("status", string(status)),
	)
	r.emit(EventStatusChange, observability.LevelVerbose, map[string]any{
		"agent_id": agent.ID,
		"name":     agent.Name,
		"status":   string(status),
	})

	if status == protocol.StatusIdle && r.idleHook != nil {
		r.idleHook(agent.ID)
	}
}

// AgentByID returns the agent with the given identity id.
func (r *Registry) AgentByID(agentID string) (*AgentEntry, bool) {
	for _, id := range r.identities {
		if id.agent != nil && id.agent.ID == agentID {
			return id.agent, true
		}
	}
	return nil, false
}

// AgentByName returns the agent with the given name, case-insensitively.
// A non-empty team restricts the match to that team.
func (r *Registry) AgentByName(name, team string) (*AgentEntry, bool) {
	for _, id := range r.identities {
		if id.agent == nil || !strings.EqualFold(id.agent.Name, name) {
			continue
		}
		if team != "" && id.agent.Team != team {
			continue
		}
		return id.agent, true
	}
	return nil, false
}

// AgentByConn returns the agent identity owned by a connection, if any.
func (r *Registry) AgentByConn(c Conn) (*AgentEntry, bool) {
	id, exists := r.identities[c.ID()]
	if !exists || id.agent == nil {
		return nil, false
	}
	return id.agent, true
}

// IdentityOf resolves the acting name and team for a connection: the agent
// identity if it has one, else the shadowed name and team.
func (r *Registry) IdentityOf(c Conn) (name, team string, ok bool) {
	id, exists := r.identities[c.ID()]
	if !exists {
		return "", "", false
	}
	switch {
	case id.agent != nil:
		return id.agent.Name, id.agent.Team, true
	case id.shadow != nil:
		return id.shadow.Name, id.shadow.Team, true
	}
	return "", "", false
}

// AgentsInTeam returns all registered agents in a team.
func (r *Registry) AgentsInTeam(team string) []protocol.Agent {
	agents := make([]protocol.Agent, 0)
	for _, id := range r.identities {
		if id.agent != nil && id.agent.Team == team {
			agents = append(agents, id.agent.Agent)
		}
	}
	return agents
}

func (r *Registry) teammatesFor(excludeID, team string) []protocol.Agent {
	teammates := make([]protocol.Agent, 0)
	for _, agent := range r.AgentsInTeam(team) {
		if agent.ID != excludeID {
			teammates = append(teammates, agent)
		}
	}
	return teammates
}

// ShadowConnsFor returns the connections shadowing an agent name within a team.
func (r *Registry) ShadowConnsFor(name, team string) []Conn {
	conns := make([]Conn, 0)
	for _, id := range r.identities {
		if id.shadow != nil && id.shadow.Team == team && strings.EqualFold(id.shadow.Name, name) {
			conns = append(conns, id.shadow.Conn)
		}
	}
	return conns
}

// BroadcastTeam sends a message to every agent, shadow subscriber, and viewer
// observing a team, minus an optional excluded connection. Viewers observe all
// teams.
func (r *Registry) BroadcastTeam(team string, msg any, exclude Conn) {
	for _, id := range r.identities {
		if exclude != nil && id.conn.ID() == exclude.ID() {
			continue
		}
		switch {
		case id.agent != nil && id.agent.Team == team:
			id.conn.Send(msg)
		case id.shadow != nil && id.shadow.Team == team:
			id.conn.Send(msg)
		case id.viewer:
			id.conn.Send(msg)
		}
	}
}

// BroadcastAll sends a message to every agent and viewer regardless of team.
func (r *Registry) BroadcastAll(msg any, exclude Conn) {
	for _, id := range r.identities {
		if exclude != nil && id.conn.ID() == exclude.ID() {
			continue
		}
		if id.agent != nil || id.viewer {
			id.conn.Send(msg)
		}
	}
}
