// Package client is the library an agent-side process embeds to talk to the
// hub: registration, the ask/answer relay, fire-and-forget assignment, and
// the team task, artifact, and contract operations.
//
// A Client owns one websocket connection. Run supervises it: on any
// connection failure it waits a fixed interval and re-registers from scratch,
// carrying nothing across attempts beyond the configured name and team.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentfleet/agenthub/protocol"
)

// Sentinel errors returned by Client calls.
var (
	ErrNotConnected = errors.New("not connected to hub")
	ErrAskTimeout   = errors.New("ask timed out")
)

const (
	defaultReconnectInterval = 3 * time.Second
	defaultAskTimeout        = 120 * time.Second
	defaultEventBuffer       = 64
)

// Config holds client initialization parameters.
type Config struct {
	// URL is the hub websocket endpoint, e.g. "ws://localhost:3001".
	URL string
	// Name identifies this agent to the hub. Required.
	Name string
	// Role defaults to "Engineer" hub-side when empty.
	Role string
	// Team defaults to "default" hub-side when empty.
	Team string
	// Capabilities advertise what this agent can do.
	Capabilities []string
	// ReconnectInterval is the fixed delay between reconnect attempts.
	ReconnectInterval time.Duration
	// AskTimeout bounds how long Ask waits for an answer. The hub holds
	// pending questions indefinitely, so the caller owns the deadline.
	AskTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client is a hub connection for one agent identity.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	ws        *websocket.Conn
	agentID   string
	teammates []protocol.Agent
	pending   map[string]chan *protocol.RelayResponse
	waiters   map[string]chan any
	closed    chan struct{}

	events chan any
}

// New creates a Client. Connect or Run must be called before any hub
// operation.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Name == "" {
		return nil, errors.New("client config requires a name")
	}
	if cfg.URL == "" {
		return nil, errors.New("client config requires a hub URL")
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	if cfg.AskTimeout <= 0 {
		cfg.AskTimeout = defaultAskTimeout
	}

	c := &Client{
		cfg:     cfg,
		logger:  slog.Default(),
		pending: make(map[string]chan *protocol.RelayResponse),
		waiters: make(map[string]chan any),
		events:  make(chan any, defaultEventBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Events delivers hub messages not consumed by an in-flight call: questions
// for this agent, task assignments, status broadcasts, team updates. The
// channel is buffered; when the embedder falls behind, new events are dropped
// with a log line rather than blocking the read loop.
func (c *Client) Events() <-chan any { return c.events }

// AgentID returns the hub-assigned id from the last successful registration.
func (c *Client) AgentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentID
}

// Teammates returns the roster received at registration.
func (c *Client) Teammates() []protocol.Agent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Agent(nil), c.teammates...)
}

// Connect dials the hub, registers, and starts the read loop. It returns
// once the hub confirms registration.
func (c *Client) Connect(ctx context.Context) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial hub: %w", err)
	}

	reg := protocol.AgentRegister{
		Type:         protocol.TypeAgentRegister,
		Name:         c.cfg.Name,
		Role:         c.cfg.Role,
		Team:         c.cfg.Team,
		Capabilities: c.cfg.Capabilities,
	}
	if err := ws.WriteJSON(reg); err != nil {
		ws.Close()
		return fmt.Errorf("failed to register: %w", err)
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()

	registered := c.waitFor(protocol.TypeAgentRegistered)
	go c.readLoop(ws)

	select {
	case <-registered:
		return nil
	case <-ctx.Done():
		ws.Close()
		return ctx.Err()
	}
}

// Run supervises the connection until ctx is cancelled. Each failure tears
// the connection down and retries after the configured interval with a fresh
// registration.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.Connect(ctx); err != nil {
			c.logger.Warn("hub connection failed",
				slog.String("agent", c.cfg.Name),
				slog.String("error", err.Error()),
			)
		} else {
			c.logger.Info("connected to hub",
				slog.String("agent", c.cfg.Name),
				slog.String("team", c.cfg.Team),
			)
			<-c.connClosed()
		}

		select {
		case <-ctx.Done():
			c.Close()
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

// Close tears down the current connection.
func (c *Client) Close() error {
	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()
	if ws == nil {
		return nil
	}
	return ws.Close()
}

// Ask relays a question to a teammate and blocks until the answer arrives,
// the configured timeout elapses, or ctx is cancelled. The hub never times a
// question out; this deadline is the only one.
func (c *Client) Ask(ctx context.Context, toAgent, question string) (string, error) {
	requestID := uuid.Must(uuid.NewV7()).String()
	ch := make(chan *protocol.RelayResponse, 1)

	c.mu.Lock()
	c.pending[requestID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
	}()

	err := c.send(protocol.RelayAsk{
		Type:      protocol.TypeRelayAsk,
		RequestID: requestID,
		FromAgent: c.cfg.Name,
		ToAgent:   toAgent,
		Question:  question,
	})
	if err != nil {
		return "", err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return "", ErrNotConnected
		}
		return resp.Answer, nil
	case <-time.After(c.cfg.AskTimeout):
		return "", fmt.Errorf("%w: no answer from %q after %s", ErrAskTimeout, toAgent, c.cfg.AskTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Answer responds to a previously received question.
func (c *Client) Answer(requestID, answer string) error {
	return c.send(protocol.RelayAnswer{
		Type:      protocol.TypeRelayAnswer,
		RequestID: requestID,
		Answer:    answer,
	})
}

// Assign hands off a task description to a teammate without waiting for an
// outcome.
func (c *Client) Assign(toAgent, task string, priority protocol.Priority) error {
	return c.send(protocol.RelayAssign{
		Type:      protocol.TypeRelayAssign,
		RequestID: uuid.Must(uuid.NewV7()).String(),
		FromAgent: c.cfg.Name,
		ToAgent:   toAgent,
		Task:      task,
		Priority:  priority,
	})
}

// Reply sends a one-way message to a teammate.
func (c *Client) Reply(toAgent, message string) error {
	return c.send(protocol.RelayReply{
		Type:    protocol.TypeRelayReply,
		ToAgent: toAgent,
		Message: message,
	})
}

// SetStatus reports this agent's work state. Reporting "idle" triggers
// delivery of any messages the hub queued while the agent was busy.
func (c *Client) SetStatus(status protocol.AgentStatus) error {
	return c.send(protocol.AgentStatusUpdate{
		Type:   protocol.TypeAgentStatus,
		Status: status,
	})
}

// PostUpdate appends a message to the team's shared update log.
func (c *Client) PostUpdate(message string) error {
	return c.send(protocol.TeamUpdatePost{
		Type:    protocol.TypeTeamUpdatePost,
		Message: message,
	})
}

// ListUpdates fetches recent team updates, newest last.
func (c *Client) ListUpdates(ctx context.Context, limit int) ([]protocol.TeamUpdate, error) {
	msg := protocol.TeamUpdateList{Type: protocol.TypeTeamUpdateList, Limit: limit}
	resp, err := c.roundTrip(ctx, msg, protocol.TypeTeamUpdateListResponse)
	if err != nil {
		return nil, err
	}
	return resp.(*protocol.TeamUpdateListResponse).Updates, nil
}

// CreateTask files a tracked task for a teammate.
func (c *Client) CreateTask(task protocol.TaskCreate) error {
	task.Type = protocol.TypeTaskCreate
	return c.send(task)
}

// AcceptTask records acceptance or rejection of an assigned task.
func (c *Client) AcceptTask(taskID string, accepted bool, note string) error {
	return c.send(protocol.TaskAccept{
		Type:     protocol.TypeTaskAccept,
		TaskID:   taskID,
		Accepted: accepted,
		Note:     note,
	})
}

// UpdateTask moves a task to in_progress or blocked.
func (c *Client) UpdateTask(taskID string, status protocol.TaskStatus, note string) error {
	return c.send(protocol.TaskUpdateStatus{
		Type:   protocol.TypeTaskUpdate,
		TaskID: taskID,
		Status: status,
		Note:   note,
	})
}

// CompleteTask marks a task done with its produced artifact.
func (c *Client) CompleteTask(taskID, artifact, note string) error {
	return c.send(protocol.TaskComplete{
		Type:     protocol.TypeTaskComplete,
		TaskID:   taskID,
		Artifact: artifact,
		Note:     note,
	})
}

// ListTasks fetches the team's tasks. Filter is "all", "mine", or "active".
func (c *Client) ListTasks(ctx context.Context, filter string) ([]protocol.TaskState, error) {
	msg := protocol.TaskList{Type: protocol.TypeTaskList, Filter: filter}
	resp, err := c.roundTrip(ctx, msg, protocol.TypeTaskListResponse)
	if err != nil {
		return nil, err
	}
	return resp.(*protocol.TaskListResponse).Tasks, nil
}

// PublishArtifact registers or updates a file this agent owns.
func (c *Client) PublishArtifact(filename string, artifactType protocol.ArtifactType, summary, relatesTo string) error {
	return c.send(protocol.ArtifactPublish{
		Type:         protocol.TypeArtifactPublish,
		Filename:     filename,
		ArtifactType: artifactType,
		Summary:      summary,
		RelatesTo:    relatesTo,
	})
}

// ListArtifacts fetches the team's artifact registry, optionally filtered by
// type.
func (c *Client) ListArtifacts(ctx context.Context, artifactType protocol.ArtifactType) ([]protocol.ArtifactMeta, error) {
	msg := protocol.ArtifactList{Type: protocol.TypeArtifactList, ArtifactType: artifactType}
	resp, err := c.roundTrip(ctx, msg, protocol.TypeArtifactListResponse)
	if err != nil {
		return nil, err
	}
	return resp.(*protocol.ArtifactListResponse).Artifacts, nil
}

// PublishContract proposes an interface contract for the named signers.
func (c *Client) PublishContract(contract protocol.ContractPublish) error {
	contract.Type = protocol.TypeContractPublish
	return c.send(contract)
}

// SignContract records this agent's approval of a contract.
func (c *Client) SignContract(specPath, comment string) error {
	return c.send(protocol.ContractSign{
		Type:     protocol.TypeContractSign,
		SpecPath: specPath,
		Comment:  comment,
	})
}

// CheckContracts fetches contract state, optionally for one spec path.
func (c *Client) CheckContracts(ctx context.Context, specPath string) ([]protocol.ContractState, error) {
	msg := protocol.ContractCheck{Type: protocol.TypeContractCheck, SpecPath: specPath}
	resp, err := c.roundTrip(ctx, msg, protocol.TypeContractCheckResponse)
	if err != nil {
		return nil, err
	}
	return resp.(*protocol.ContractCheckResponse).Contracts, nil
}

func (c *Client) send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	return c.ws.WriteJSON(msg)
}

// roundTrip sends a request and waits for the next message of the expected
// response type. One outstanding request per response type.
func (c *Client) roundTrip(ctx context.Context, msg any, responseType string) (any, error) {
	ch := c.waitFor(responseType)
	if err := c.send(msg); err != nil {
		return nil, err
	}
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrNotConnected
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) waitFor(responseType string) chan any {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.waiters[responseType]
	if !ok {
		ch = make(chan any, 1)
		c.waiters[responseType] = ch
	}
	return ch
}

// connClosed returns a channel closed when the current read loop exits.
func (c *Client) connClosed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed == nil {
		c.closed = make(chan struct{})
	}
	return c.closed
}

func (c *Client) readLoop(ws *websocket.Conn) {
	c.mu.Lock()
	c.closed = make(chan struct{})
	closed := c.closed
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.ws == ws {
			c.ws = nil
		}
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		for typ, ch := range c.waiters {
			close(ch)
			delete(c.waiters, typ)
		}
		c.mu.Unlock()
		close(closed)
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			c.logger.Debug("ignoring undecodable frame",
				slog.String("error", err.Error()),
			)
			continue
		}
		c.route(msg)
	}
}

func (c *Client) route(msg any) {
	switch m := msg.(type) {
	case *protocol.AgentRegistered:
		c.mu.Lock()
		c.agentID = m.AgentID
		c.teammates = append([]protocol.Agent(nil), m.Teammates...)
		c.mu.Unlock()
		c.resolve(protocol.TypeAgentRegistered, m)

	case *protocol.RelayResponse:
		c.mu.Lock()
		ch, ok := c.pending[m.RequestID]
		if ok {
			delete(c.pending, m.RequestID)
		}
		c.mu.Unlock()
		if ok {
			ch <- m
			return
		}
		c.emit(m)

	case *protocol.TeamUpdateListResponse:
		c.resolve(protocol.TypeTeamUpdateListResponse, m)
	case *protocol.TaskListResponse:
		c.resolve(protocol.TypeTaskListResponse, m)
	case *protocol.ArtifactListResponse:
		c.resolve(protocol.TypeArtifactListResponse, m)
	case *protocol.ContractCheckResponse:
		c.resolve(protocol.TypeContractCheckResponse, m)

	default:
		c.emit(msg)
	}
}

// resolve hands a response to its waiter, or emits it when nobody asked.
func (c *Client) resolve(responseType string, msg any) {
	c.mu.Lock()
	ch, ok := c.waiters[responseType]
	if ok {
		delete(c.waiters, responseType)
	}
	c.mu.Unlock()
	if ok {
		ch <- msg
		return
	}
	c.emit(msg)
}

func (c *Client) emit(msg any) {
	select {
	case c.events <- msg:
	default:
		c.logger.Warn("event buffer full, dropping message",
			slog.String("agent", c.cfg.Name),
		)
	}
}
