package hub

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestWSConn_SendCountsDropsOnFullBuffer(t *testing.T) {
	metrics := NewMetrics()
	// No writer goroutine, so nothing drains the buffer.
	c := &wsConn{
		id:      "conn-test",
		out:     newSendChannel[any](context.Background(), 1),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: metrics,
	}

	if err := c.Send("fits"); err != nil {
		t.Fatalf("Send() into empty buffer error = %v", err)
	}
	if err := c.Send("overflow"); err != nil {
		t.Fatalf("Send() into full buffer error = %v", err)
	}

	if got := metrics.Snapshot().MessagesDropped; got != 1 {
		t.Errorf("MessagesDropped = %d, want 1", got)
	}
	if got := c.out.QueueLength(); got != 1 {
		t.Errorf("QueueLength() = %d, want 1", got)
	}
}
