package hub

import (
	"log/slog"
	"time"

	"github.com/agentfleet/agenthub/protocol"
)

// UpdateLog is the append-only, size-capped team update feed.
type UpdateLog struct {
	state    *State
	registry *Registry
	cap      int
	persist  func(team string)
	logger   *slog.Logger
}

func NewUpdateLog(state *State, registry *Registry, cap int, persist func(team string), logger *slog.Logger) *UpdateLog {
	return &UpdateLog{
		state:    state,
		registry: registry,
		cap:      cap,
		persist:  persist,
		logger:   logger,
	}
}

// Post appends an update to the team's log, trims to the cap, broadcasts it,
// and persists the team record.
func (u *UpdateLog) Post(from, team, message string) {
	ts := u.state.Team(team)
	update := protocol.TeamUpdate{
		From:      from,
		Message:   message,
		Timestamp: time.Now(),
	}
	ts.Updates = append(ts.Updates, update)
	if len(ts.Updates) > u.cap {
		ts.Updates = ts.Updates[len(ts.Updates)-u.cap:]
	}

	u.registry.BroadcastTeam(team, &protocol.TeamUpdateBroadcast{
		Type:   protocol.TypeTeamUpdateBroadcast,
		Update: update,
	}, nil)

	u.logger.Debug("team update posted",
		slog.String("from", from),
		slog.String("team", team),
	)
	u.persist(team)
}

// List returns the most recent updates, oldest first. A limit of zero or less
// returns the whole retained log.
func (u *UpdateLog) List(team string, limit int) []protocol.TeamUpdate {
	updates := u.state.Team(team).Updates
	if limit > 0 && len(updates) > limit {
		updates = updates[len(updates)-limit:]
	}
	out := make([]protocol.TeamUpdate, len(updates))
	copy(out, updates)
	return out
}
