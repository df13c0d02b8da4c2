// Package hub implements the coordination server for teams of coding agents:
// a connection registry, an idle-aware delivery queue, a question/answer
// relay, and team-scoped task, artifact, and contract state.
//
// The server initializes from configuration via New, creating all subsystems
// internally. Functional options allow test overrides of any subsystem.
//
//	srv, err := hub.New(&cfg)
//	err = srv.ListenAndServe(ctx)
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentfleet/agenthub/observability"
	"github.com/agentfleet/agenthub/protocol"
	"github.com/agentfleet/agenthub/store"
)

// Option configures a Server after config-driven initialization.
type Option func(*Server)

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithObserver overrides the config-selected observer.
func WithObserver(o observability.Observer) Option {
	return func(s *Server) { s.observer = o }
}

// WithStore overrides the config-created snapshot store.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// Server owns all hub state and serializes every mutation behind a single
// mutex. Component types below it hold no locks of their own; the dispatch
// path is the only writer.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	observer observability.Observer
	store    store.Store

	mu        sync.Mutex
	state     *State
	registry  *Registry
	queue     *DeliveryQueue
	relay     *Relay
	updates   *UpdateLog
	tasks     *TaskManager
	artifacts *ArtifactRegistry
	contracts *ContractBook
	snapshots *Snapshotter
	metrics   *Metrics

	ctx      context.Context
	cancel   context.CancelFunc
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New creates a Server from configuration. Subsystems are wired internally:
// the registry's idle hook drains the delivery queue, and every state-mutating
// component persists its team through the snapshotter. Functional options
// applied after initialization can override the logger, observer, or store.
func New(cfg *Config, opts ...Option) (*Server, error) {
	conf := DefaultConfig()
	if cfg != nil {
		conf.Merge(cfg)
	}

	observer, err := observability.GetObserver(conf.Observer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      conf,
		logger:   slog.Default(),
		observer: observer,
		ctx:      ctx,
		cancel:   cancel,
		upgrader: websocket.Upgrader{
			// The hub trusts its local deployment; agents connect from
			// spawner processes on the same host or private network.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if conf.SnapshotDir != "" {
		s.store = store.NewFileStore(conf.SnapshotDir)
	}
	for _, opt := range opts {
		opt(s)
	}

	s.metrics = NewMetrics()
	s.state = NewState()
	s.registry = NewRegistry(ctx, s.logger, s.observer, s.metrics)
	s.queue = NewDeliveryQueue(ctx, s.registry, s.logger, s.observer, s.metrics)
	s.registry.idleHook = s.queue.Flush
	s.snapshots = NewSnapshotter(ctx, s.store, s.state, s.logger, s.observer)
	persist := s.snapshots.SaveTeam
	s.relay = NewRelay(ctx, s.registry, s.queue, s.logger, s.observer)
	s.updates = NewUpdateLog(s.state, s.registry, s.cfg.UpdateLogCap, persist, s.logger)
	s.tasks = NewTaskManager(ctx, s.state, s.registry, s.queue, persist, s.logger, s.observer, s.metrics)
	s.artifacts = NewArtifactRegistry(ctx, s.state, s.registry, s.queue, s.tasks, persist, s.logger, s.observer, s.metrics)
	s.contracts = NewContractBook(ctx, s.state, s.registry, s.queue, persist, s.logger, s.observer)

	s.snapshots.LoadAll()
	return s, nil
}

// Metrics returns a point-in-time snapshot of hub counters.
func (s *Server) Metrics() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// ListenAndServe runs the websocket endpoint until ctx is cancelled, then
// shuts the listener down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)
	s.httpSrv = &http.Server{Addr: s.cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()
	s.logger.Info("hub listening", slog.String("addr", s.cfg.Addr))

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops the listener and cancels all connection contexts.
func (s *Server) Shutdown() error {
	s.cancel()
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newWSConn(s.ctx, ws, s.cfg.SendBuffer, s.logger, s.metrics)
	s.logger.Debug("connection opened", slog.String("conn_id", c.ID()))

	defer func() {
		s.HandleDisconnect(c)
		c.Close()
	}()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		s.HandleMessage(c, data)
	}
}

// HandleMessage processes one inbound frame from a connection. Malformed or
// unrecognized frames are dropped with a log line; they never terminate the
// connection. All state mutation happens under the server mutex, so handlers
// observe a consistent world.
func (s *Server) HandleMessage(c Conn, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		s.logger.Warn("dropping frame",
			slog.String("conn_id", c.ID()),
			slog.String("error", err.Error()),
		)
		s.observer.OnEvent(s.ctx, observability.Event{
			Type:      EventMessageDrop,
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "server",
			Data:      map[string]any{"conn_id": c.ID(), "error": err.Error()},
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatch(c, msg)
}

// HandleDisconnect cleans up after a closed connection: registry removal,
// disconnect broadcast, cancellation of relay requests the connection still
// had in flight, and any payloads queued for the departing identity.
func (s *Server) HandleDisconnect(c Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if agent, ok := s.registry.AgentByConn(c); ok {
		s.queue.Drop(agent.ID)
	}
	s.relay.DropPending(c)
	s.registry.Unregister(c)
}

func (s *Server) dispatch(c Conn, msg any) {
	switch m := msg.(type) {
	case *protocol.AgentRegister:
		s.registry.Register(c, m)
	case *protocol.AgentStatusUpdate:
		s.registry.UpdateStatus(c, m.Status)
	case *protocol.ViewerConnect:
		s.registry.RegisterViewer(c)
	case *protocol.SpawnerSubscribe:
		s.registry.SubscribeShadow(c, m)

	case *protocol.RelayAsk:
		s.relay.Ask(c, m)
	case *protocol.RelayAnswer:
		s.relay.Answer(m)
	case *protocol.RelayAssign:
		s.relay.Assign(c, m)
	case *protocol.RelayReply:
		name, _, ok := s.registry.IdentityOf(c)
		if !ok {
			s.dropUnregistered(c, protocol.TypeRelayReply)
			return
		}
		s.relay.Reply(c, name, m)

	case *protocol.TeamUpdatePost:
		name, team, ok := s.registry.IdentityOf(c)
		if !ok {
			s.dropUnregistered(c, protocol.TypeTeamUpdatePost)
			return
		}
		s.updates.Post(name, team, m.Message)
	case *protocol.TeamUpdateList:
		_, team, ok := s.registry.IdentityOf(c)
		if !ok {
			s.dropUnregistered(c, protocol.TypeTeamUpdateList)
			return
		}
		c.Send(protocol.TeamUpdateListResponse{
			Type:    protocol.TypeTeamUpdateListResponse,
			Updates: s.updates.List(team, m.Limit),
		})

	case *protocol.TaskCreate:
		agent, ok := s.registry.AgentByConn(c)
		if !ok {
			s.dropUnregistered(c, protocol.TypeTaskCreate)
			return
		}
		s.tasks.Create(agent, m)
	case *protocol.TaskAccept:
		_, team, ok := s.registry.IdentityOf(c)
		if !ok {
			s.dropUnregistered(c, protocol.TypeTaskAccept)
			return
		}
		s.tasks.Accept(team, m)
	case *protocol.TaskUpdateStatus:
		_, team, ok := s.registry.IdentityOf(c)
		if !ok {
			s.dropUnregistered(c, protocol.TypeTaskUpdate)
			return
		}
		s.tasks.Update(team, m)
	case *protocol.TaskComplete:
		_, team, ok := s.registry.IdentityOf(c)
		if !ok {
			s.dropUnregistered(c, protocol.TypeTaskComplete)
			return
		}
		s.tasks.Complete(team, m)
	case *protocol.TaskList:
		name, team, ok := s.registry.IdentityOf(c)
		if !ok {
			s.dropUnregistered(c, protocol.TypeTaskList)
			return
		}
		c.Send(protocol.TaskListResponse{
			Type:  protocol.TypeTaskListResponse,
			Tasks: s.tasks.List(team, name, m.Filter),
		})

	case *protocol.ArtifactPublish:
		agent, ok := s.registry.AgentByConn(c)
		if !ok {
			s.dropUnregistered(c, protocol.TypeArtifactPublish)
			return
		}
		s.artifacts.Publish(agent, m)
	case *protocol.ArtifactList:
		_, team, ok := s.registry.IdentityOf(c)
		if !ok {
			s.dropUnregistered(c, protocol.TypeArtifactList)
			return
		}
		c.Send(protocol.ArtifactListResponse{
			Type:      protocol.TypeArtifactListResponse,
			Artifacts: s.artifacts.List(team, m.ArtifactType),
		})

	case *protocol.ContractPublish:
		agent, ok := s.registry.AgentByConn(c)
		if !ok {
			s.dropUnregistered(c, protocol.TypeContractPublish)
			return
		}
		s.contracts.Publish(agent, m)
	case *protocol.ContractSign:
		agent, ok := s.registry.AgentByConn(c)
		if !ok {
			s.dropUnregistered(c, protocol.TypeContractSign)
			return
		}
		s.contracts.Sign(agent, m)
	case *protocol.ContractCheck:
		_, team, ok := s.registry.IdentityOf(c)
		if !ok {
			s.dropUnregistered(c, protocol.TypeContractCheck)
			return
		}
		c.Send(protocol.ContractCheckResponse{
			Type:      protocol.TypeContractCheckResponse,
			Contracts: s.contracts.Check(team, m.SpecPath),
		})

	default:
		// Server-to-client message types arriving inbound are ignored.
		s.logger.Debug("ignoring outbound-only frame",
			slog.String("conn_id", c.ID()),
		)
	}
}

func (s *Server) dropUnregistered(c Conn, msgType string) {
	s.logger.Warn("dropping frame from unregistered connection",
		slog.String("conn_id", c.ID()),
		slog.String("msg_type", msgType),
	)
}
