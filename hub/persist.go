package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/agentfleet/agenthub/observability"
	"github.com/agentfleet/agenthub/protocol"
	"github.com/agentfleet/agenthub/store"
)

// teamSnapshot is the durable subset of one team's state: one record per
// team, rewritten in full after every durable mutation. Queued-but-undelivered
// messages are deliberately absent.
type teamSnapshot struct {
	Team        string                             `json:"team"`
	TeamUpdates []protocol.TeamUpdate              `json:"teamUpdates"`
	Tasks       map[string]*protocol.TaskState     `json:"tasks"`
	Artifacts   map[string]*protocol.ArtifactMeta  `json:"artifacts"`
	Contracts   map[string]*protocol.ContractState `json:"contracts"`
}

const snapshotPrefix = "teams/"

// Snapshotter serializes team state through a store.Store. Writes are
// synchronous best-effort: a failed write is logged and the in-memory state
// stays authoritative for the running process.
type Snapshotter struct {
	store    store.Store
	state    *State
	ctx      context.Context
	logger   *slog.Logger
	observer observability.Observer
}

func NewSnapshotter(ctx context.Context, st store.Store, state *State, logger *slog.Logger, observer observability.Observer) *Snapshotter {
	return &Snapshotter{
		store:    st,
		state:    state,
		ctx:      ctx,
		logger:   logger,
		observer: observer,
	}
}

func snapshotKey(team string) string {
	return snapshotPrefix + url.PathEscape(team) + ".json"
}

// SaveTeam rewrites one team's record. A nil store disables persistence.
func (s *Snapshotter) SaveTeam(team string) {
	if s.store == nil {
		return
	}
	ts := s.state.Team(team)

	snap := teamSnapshot{
		Team:        team,
		TeamUpdates: ts.Updates,
		Tasks:       ts.Tasks,
		Artifacts:   ts.Artifacts,
		Contracts:   ts.Contracts,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		s.logger.Warn("snapshot encode failed",
			slog.String("team", team),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.store.Save(s.ctx, store.Entry{Key: snapshotKey(team), Value: data}); err != nil {
		s.logger.Warn("snapshot write failed",
			slog.String("team", team),
			slog.String("error", err.Error()),
		)
		return
	}

	s.observer.OnEvent(s.ctx, observability.Event{
		Type:      EventSnapshotSave,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "persist",
		Data:      map[string]any{"team": team, "bytes": len(data)},
	})
}

// LoadAll restores every team record found in the store. Records that fail to
// decode are skipped with a log line; a missing store directory is not an
// error.
func (s *Snapshotter) LoadAll() {
	if s.store == nil {
		return
	}

	keys, err := s.store.List(s.ctx)
	if err != nil {
		s.logger.Warn("snapshot list failed", slog.String("error", err.Error()))
		return
	}

	loaded := 0
	for _, key := range keys {
		if !strings.HasPrefix(key, snapshotPrefix) {
			continue
		}
		entries, err := s.store.Load(s.ctx, key)
		if err != nil {
			s.logger.Warn("snapshot read failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			continue
		}

		var snap teamSnapshot
		if err := json.Unmarshal(entries[0].Value, &snap); err != nil {
			s.logger.Warn("snapshot decode failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			continue
		}
		if snap.Team == "" {
			continue
		}

		ts := s.state.Team(snap.Team)
		ts.Updates = snap.TeamUpdates
		if snap.Tasks != nil {
			ts.Tasks = snap.Tasks
		}
		if snap.Artifacts != nil {
			ts.Artifacts = snap.Artifacts
		}
		if snap.Contracts != nil {
			ts.Contracts = snap.Contracts
		}
		loaded++
	}

	if loaded > 0 {
		s.logger.Info("restored team state", slog.Int("teams", loaded))
	}
	s.observer.OnEvent(s.ctx, observability.Event{
		Type:      EventSnapshotLoad,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "persist",
		Data:      map[string]any{"teams": loaded},
	})
}
