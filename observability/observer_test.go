package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/agentfleet/agenthub/observability"
)

// recorder keeps every event it sees for later assertions.
type recorder struct {
	got []observability.Event
}

func (r *recorder) OnEvent(ctx context.Context, event observability.Event) {
	r.got = append(r.got, event)
}

func queueEvent(level observability.Level) observability.Event {
	return observability.Event{
		Type:      "queue.enqueue",
		Level:     level,
		Timestamp: time.Now(),
		Source:    "queue",
		Data:      map[string]any{"agent": "Jordan", "queue_depth": 2},
	}
}

func TestLevel_Mapping(t *testing.T) {
	tests := []struct {
		name     string
		level    observability.Level
		wantText string
		wantSlog slog.Level
	}{
		{name: "verbose", level: observability.LevelVerbose, wantText: "DEBUG", wantSlog: slog.LevelDebug},
		{name: "info", level: observability.LevelInfo, wantText: "INFO", wantSlog: slog.LevelInfo},
		{name: "warning", level: observability.LevelWarning, wantText: "WARN", wantSlog: slog.LevelWarn},
		{name: "error", level: observability.LevelError, wantText: "ERROR", wantSlog: slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.String(); got != tt.wantText {
				t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.wantText)
			}
			if got := tt.level.SlogLevel(); got != tt.wantSlog {
				t.Errorf("Level(%d).SlogLevel() = %v, want %v", tt.level, got, tt.wantSlog)
			}
		})
	}

	// Out-of-range values fall into the neighboring severity bands.
	if got := observability.Level(1).String(); got != "TRACE" {
		t.Errorf("Level(1).String() = %q, want TRACE", got)
	}
	if got := observability.Level(21).String(); got != "FATAL" {
		t.Errorf("Level(21).String() = %q, want FATAL", got)
	}
}

func TestLevel_SeverityNumbers(t *testing.T) {
	want := map[observability.Level]int{
		observability.LevelVerbose: 5,
		observability.LevelInfo:    9,
		observability.LevelWarning: 13,
		observability.LevelError:   17,
	}
	for level, n := range want {
		if int(level) != n {
			t.Errorf("level %s = %d, want severity number %d", level, int(level), n)
		}
	}
}

func TestNoOpObserver_AcceptsAnyEvent(t *testing.T) {
	var obs observability.NoOpObserver
	obs.OnEvent(context.Background(), queueEvent(observability.LevelVerbose))
	obs.OnEvent(context.Background(), observability.Event{})
}

func TestMultiObserver_FansOut(t *testing.T) {
	first := &recorder{}
	second := &recorder{}
	multi := observability.NewMultiObserver(first, second)

	multi.OnEvent(context.Background(), queueEvent(observability.LevelInfo))

	for i, r := range []*recorder{first, second} {
		if len(r.got) != 1 {
			t.Fatalf("observer %d received %d events, want 1", i, len(r.got))
		}
		if r.got[0].Type != "queue.enqueue" {
			t.Errorf("observer %d event type = %q, want queue.enqueue", i, r.got[0].Type)
		}
	}
}

func TestMultiObserver_SkipsNilObservers(t *testing.T) {
	rec := &recorder{}
	multi := observability.NewMultiObserver(nil, rec, nil)

	multi.OnEvent(context.Background(), queueEvent(observability.LevelInfo))

	if len(rec.got) != 1 {
		t.Errorf("recorder received %d events, want 1", len(rec.got))
	}
}

func TestSlogObserver_HonorsHandlerLevel(t *testing.T) {
	tests := []struct {
		name    string
		event   observability.Level
		handler slog.Level
		emitted bool
	}{
		{name: "verbose passes debug handler", event: observability.LevelVerbose, handler: slog.LevelDebug, emitted: true},
		{name: "verbose filtered by info handler", event: observability.LevelVerbose, handler: slog.LevelInfo, emitted: false},
		{name: "info filtered by warn handler", event: observability.LevelInfo, handler: slog.LevelWarn, emitted: false},
		{name: "warning passes warn handler", event: observability.LevelWarning, handler: slog.LevelWarn, emitted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			obs := observability.NewSlogObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: tt.handler})))

			obs.OnEvent(context.Background(), queueEvent(tt.event))

			if got := buf.Len() > 0; got != tt.emitted {
				t.Errorf("emitted = %v, want %v (buf: %q)", got, tt.emitted, buf.String())
			}
		})
	}
}

func TestSlogObserver_AttributesFromEvent(t *testing.T) {
	var buf bytes.Buffer
	obs := observability.NewSlogObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	obs.OnEvent(context.Background(), observability.Event{
		Type:      "relay.ask",
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "relay",
		Data:      map[string]any{"request_id": "r1", "to": "Jordan"},
	})

	out := buf.String()
	for _, want := range []string{"relay.ask", "source=relay", "request_id=r1", "to=Jordan"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}

func TestGetObserver(t *testing.T) {
	for _, key := range []string{"noop", "slog"} {
		obs, err := observability.GetObserver(key)
		if err != nil {
			t.Errorf("GetObserver(%q) error = %v", key, err)
		}
		if obs == nil {
			t.Errorf("GetObserver(%q) = nil", key)
		}
	}

	if _, err := observability.GetObserver("statsd"); err == nil {
		t.Error("GetObserver() for an unregistered key returned nil error")
	}
}

func TestRegisterObserver_Roundtrip(t *testing.T) {
	rec := &recorder{}
	observability.RegisterObserver("recording", rec)

	obs, err := observability.GetObserver("recording")
	if err != nil {
		t.Fatalf("GetObserver() error = %v", err)
	}

	obs.OnEvent(context.Background(), queueEvent(observability.LevelInfo))

	if len(rec.got) != 1 {
		t.Errorf("recorder received %d events, want 1", len(rec.got))
	}
}
