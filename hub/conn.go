package hub

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is one live client connection as seen by the hub core. The websocket
// transport implements it; tests substitute in-memory fakes.
type Conn interface {
	// ID uniquely identifies the connection for its lifetime.
	ID() string
	// Send queues one outbound message for delivery. It must not block the
	// hub's dispatch loop.
	Send(msg any) error
	// Close tears the connection down. Idempotent.
	Close() error
}

// wsConn adapts a gorilla websocket connection to Conn. All writes go through
// an outbound sendChannel drained by a single writer goroutine, since the
// underlying websocket permits only one concurrent writer.
type wsConn struct {
	id      string
	ws      *websocket.Conn
	out     *sendChannel[any]
	cancel  context.CancelFunc
	logger  *slog.Logger
	metrics *Metrics
}

func newWSConn(ctx context.Context, ws *websocket.Conn, bufferSize int, logger *slog.Logger, metrics *Metrics) *wsConn {
	connCtx, cancel := context.WithCancel(ctx)
	c := &wsConn{
		id:      uuid.Must(uuid.NewV7()).String(),
		ws:      ws,
		out:     newSendChannel[any](connCtx, bufferSize),
		cancel:  cancel,
		logger:  logger,
		metrics: metrics,
	}
	go c.writeLoop(connCtx)
	return c
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(msg any) error {
	if !c.out.TrySend(msg) {
		c.metrics.RecordDropped(1)
		c.logger.Warn("dropping message for slow connection",
			slog.String("conn_id", c.id),
			slog.Int("queue_len", c.out.QueueLength()),
		)
	}
	return nil
}

func (c *wsConn) Close() error {
	c.cancel()
	return c.ws.Close()
}

func (c *wsConn) writeLoop(ctx context.Context) {
	for {
		msg, err := c.out.Receive(ctx)
		if err != nil {
			return
		}
		if err := c.ws.WriteJSON(msg); err != nil {
			c.logger.Debug("write failed",
				slog.String("conn_id", c.id),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}
