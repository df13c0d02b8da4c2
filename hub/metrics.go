package hub

import "sync/atomic"

type MetricsSnapshot struct {
	ConnectedAgents    int64
	ConnectedViewers   int64
	MessagesRouted     int64
	MessagesQueued     int64
	MessagesDropped    int64
	TasksCreated       int64
	ArtifactsPublished int64
}

// Metrics holds hub-wide counters. All updates are atomic so snapshots can be
// taken without holding the hub lock.
type Metrics struct {
	connectedAgents    atomic.Int64
	connectedViewers   atomic.Int64
	messagesRouted     atomic.Int64
	messagesQueued     atomic.Int64
	messagesDropped    atomic.Int64
	tasksCreated       atomic.Int64
	artifactsPublished atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordAgent(delta int)       { m.connectedAgents.Add(int64(delta)) }
func (m *Metrics) RecordViewer(delta int)      { m.connectedViewers.Add(int64(delta)) }
func (m *Metrics) RecordRouted(delta int)      { m.messagesRouted.Add(int64(delta)) }
func (m *Metrics) RecordQueued(delta int)      { m.messagesQueued.Add(int64(delta)) }
func (m *Metrics) RecordDropped(delta int)     { m.messagesDropped.Add(int64(delta)) }
func (m *Metrics) RecordTaskCreated(delta int) { m.tasksCreated.Add(int64(delta)) }
func (m *Metrics) RecordArtifact(delta int)    { m.artifactsPublished.Add(int64(delta)) }

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ConnectedAgents:    m.connectedAgents.Load(),
		ConnectedViewers:   m.connectedViewers.Load(),
		MessagesRouted:     m.messagesRouted.Load(),
		MessagesQueued:     m.messagesQueued.Load(),
		MessagesDropped:    m.messagesDropped.Load(),
		TasksCreated:       m.tasksCreated.Load(),
		ArtifactsPublished: m.artifactsPublished.Load(),
	}
}
