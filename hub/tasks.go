package hub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentfleet/agenthub/observability"
	"github.com/agentfleet/agenthub/protocol"
)

// TaskManager owns the per-task state machine:
//
//	created → {queued | accepted | rejected}
//	queued  → created (dependencies satisfied, re-dispatched)
//	accepted → in_progress → {blocked | done}
//	in_progress/blocked → done
//
// rejected and done are terminal. Tasks are never deleted.
type TaskManager struct {
	state    *State
	registry *Registry
	queue    *DeliveryQueue
	persist  func(team string)

	ctx      context.Context
	logger   *slog.Logger
	observer observability.Observer
	metrics  *Metrics
}

func NewTaskManager(ctx context.Context, state *State, registry *Registry, queue *DeliveryQueue, persist func(team string), logger *slog.Logger, observer observability.Observer, metrics *Metrics) *TaskManager {
	return &TaskManager{
		state:    state,
		registry: registry,
		queue:    queue,
		persist:  persist,
		ctx:      ctx,
		logger:   logger,
		observer: observer,
		metrics:  metrics,
	}
}

func (tm *TaskManager) emit(eventType observability.EventType, data map[string]any) {
	tm.observer.OnEvent(tm.ctx, observability.Event{
		Type:      eventType,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "tasks",
		Data:      data,
	})
}

// newTaskID returns a short server-generated task identifier.
func newTaskID() string {
	return uuid.Must(uuid.NewV7()).String()[:8]
}

// enrichDescription appends machine-readable hint blocks derived from the
// structured fields. Purely textual guidance for the assignee; the structured
// fields themselves are stored unchanged.
func enrichDescription(description string, msg *protocol.TaskCreate) string {
	var b strings.Builder
	b.WriteString(description)

	if ot := msg.OutputTarget; ot != nil {
		b.WriteString("\n\n[output-target]")
		if ot.Directory != "" {
			fmt.Fprintf(&b, "\ndirectory: %s", ot.Directory)
		}
		if len(ot.Filenames) > 0 {
			fmt.Fprintf(&b, "\nfilenames: %s", strings.Join(ot.Filenames, ", "))
		}
		if ot.IntegratesInto != "" {
			fmt.Fprintf(&b, "\nintegrates-into: %s", ot.IntegratesInto)
		}
	}

	if len(msg.Consumes) > 0 {
		b.WriteString("\n\n[consumes]")
		for _, c := range msg.Consumes {
			fmt.Fprintf(&b, "\n- %s (owner: %s): read this artifact, do not recreate it", c.Artifact, c.Owner)
		}
	}

	if p := msg.Produces; p != nil {
		b.WriteString("\n\n[produces]")
		if p.Artifact != "" {
			fmt.Fprintf(&b, "\nartifact: %s", p.Artifact)
		}
		if len(p.SharedFiles) > 0 {
			fmt.Fprintf(&b, "\nshared-files: %s", strings.Join(p.SharedFiles, ", "))
		}
	}

	return b.String()
}

// dependencyKey names a dependency entry for blockedBy bookkeeping.
func dependencyKey(dep protocol.TaskDependency) string {
	if dep.TaskID != "" {
		return dep.TaskID
	}
	return dep.Artifact
}

// dependencySatisfied reports whether one dependency holds: a task dependency
// requires that task to be done, an artifact dependency requires the filename
// to be published.
func (tm *TaskManager) dependencySatisfied(ts *teamState, dep protocol.TaskDependency) bool {
	if dep.TaskID != "" {
		t, ok := ts.Tasks[dep.TaskID]
		return ok && t.Status == protocol.TaskDone
	}
	if dep.Artifact != "" {
		_, ok := ts.Artifacts[dep.Artifact]
		return ok
	}
	// An empty dependency entry gates nothing.
	return true
}

func (tm *TaskManager) unsatisfiedDeps(ts *teamState, task *protocol.TaskState) []string {
	var blocked []string
	for _, dep := range task.DependsOn {
		if !tm.dependencySatisfied(ts, dep) {
			blocked = append(blocked, dependencyKey(dep))
		}
	}
	return blocked
}

// Create builds a task record, evaluates its dependencies, and either queues
// it or dispatches it to the assignee immediately.
func (tm *TaskManager) Create(creator *AgentEntry, msg *protocol.TaskCreate) *protocol.TaskState {
	team := creator.Team
	ts := tm.state.Team(team)

	priority := msg.Priority
	if priority == "" {
		priority = protocol.PriorityMedium
	}

	now := time.Now()
	task := &protocol.TaskState{
		TaskID:       newTaskID(),
		Title:        msg.Title,
		Description:  enrichDescription(msg.Description, msg),
		Assignee:     msg.Assignee,
		Creator:      creator.Name,
		Priority:     priority,
		Status:       protocol.TaskCreated,
		OutputTarget: msg.OutputTarget,
		Consumes:     msg.Consumes,
		Produces:     msg.Produces,
		DependsOn:    msg.DependsOn,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	ts.Tasks[task.TaskID] = task
	tm.metrics.RecordTaskCreated(1)

	if blocked := tm.unsatisfiedDeps(ts, task); len(blocked) > 0 {
		task.Status = protocol.TaskQueued
		task.BlockedBy = blocked

		// The team learns the assignee is waiting; the assignee gets
		// nothing until the dependencies are satisfied.
		tm.registry.BroadcastTeam(team, &protocol.TaskCreatedBroadcast{
			Type: protocol.TypeTaskCreated,
			Task: *task,
		}, nil)

		tm.logger.Debug("task queued on dependencies",
			slog.String("task_id", task.TaskID),
			slog.String("assignee", task.Assignee),
			slog.Int("blocked_by", len(blocked)),
		)
		tm.emit(EventTaskQueued, map[string]any{
			"task_id":    task.TaskID,
			"blocked_by": blocked,
		})
	} else {
		tm.dispatch(team, task)
	}

	tm.emit(EventTaskCreate, map[string]any{
		"task_id":  task.TaskID,
		"assignee": task.Assignee,
		"creator":  task.Creator,
	})
	tm.persist(team)
	return task
}

// dispatch announces the task to the team and hands the assignee an
// actionable instruction through the idle-aware queue.
func (tm *TaskManager) dispatch(team string, task *protocol.TaskState) {
	tm.registry.BroadcastTeam(team, &protocol.TaskCreatedBroadcast{
		Type: protocol.TypeTaskCreated,
		Task: *task,
	}, nil)

	result := tm.queue.DeliverOrQueue(task.Assignee, team, &protocol.RelayTask{
		Type:      protocol.TypeRelayTask,
		RequestID: task.TaskID,
		FromAgent: task.Creator,
		Task:      fmt.Sprintf("[%s] %s\n\n%s", task.TaskID, task.Title, task.Description),
		Priority:  task.Priority,
	})
	if result == DeliveryNotFound {
		tm.logger.Warn("task assignee not connected",
			slog.String("task_id", task.TaskID),
			slog.String("assignee", task.Assignee),
		)
	}

	tm.logger.Debug("task dispatched",
		slog.String("task_id", task.TaskID),
		slog.String("assignee", task.Assignee),
	)
	tm.emit(EventTaskDispatch, map[string]any{
		"task_id":  task.TaskID,
		"assignee": task.Assignee,
	})
}

// Accept records the assignee's decision and notifies the creator. Unknown
// task ids are dropped.
func (tm *TaskManager) Accept(team string, msg *protocol.TaskAccept) {
	ts := tm.state.Team(team)
	task, ok := ts.Tasks[msg.TaskID]
	if !ok {
		tm.logger.Debug("accept for unknown task", slog.String("task_id", msg.TaskID))
		return
	}

	if msg.Accepted {
		task.Status = protocol.TaskAccepted
	} else {
		task.Status = protocol.TaskRejected
	}
	task.StatusNote = msg.Note
	task.UpdatedAt = time.Now()

	tm.broadcastStatus(team, task)
	verdict := "accepted"
	if !msg.Accepted {
		verdict = "rejected"
	}
	note := ""
	if msg.Note != "" {
		note = ": " + msg.Note
	}
	tm.notify(team, task.Assignee, task.Creator, fmt.Sprintf(
		"%s %s task %s (%s)%s", task.Assignee, verdict, task.TaskID, task.Title, note))

	tm.emit(EventTaskAccept, map[string]any{
		"task_id":  task.TaskID,
		"accepted": msg.Accepted,
	})
	tm.persist(team)
}

// Update moves a task to in_progress or blocked. A blocked transition
// proactively notifies the creator with the note.
func (tm *TaskManager) Update(team string, msg *protocol.TaskUpdateStatus) {
	ts := tm.state.Team(team)
	task, ok := ts.Tasks[msg.TaskID]
	if !ok {
		tm.logger.Debug("update for unknown task", slog.String("task_id", msg.TaskID))
		return
	}
	if msg.Status != protocol.TaskInProgress && msg.Status != protocol.TaskBlocked {
		tm.logger.Debug("invalid task update status",
			slog.String("task_id", msg.TaskID),
			slog.String("status", string(msg.Status)),
		)
		return
	}

	task.Status = msg.Status
	task.StatusNote = msg.Note
	task.UpdatedAt = time.Now()

	tm.broadcastStatus(team, task)
	if msg.Status == protocol.TaskBlocked {
		tm.notify(team, task.Assignee, task.Creator, fmt.Sprintf(
			"%s is blocked on task %s (%s): %s", task.Assignee, task.TaskID, task.Title, msg.Note))
	}

	tm.emit(EventTaskUpdate, map[string]any{
		"task_id": task.TaskID,
		"status":  string(msg.Status),
	})
	tm.persist(team)
}

// Complete marks a task done, records its deliverable, notifies the creator,
// and re-evaluates every queued task whose dependencies may now hold.
func (tm *TaskManager) Complete(team string, msg *protocol.TaskComplete) {
	ts := tm.state.Team(team)
	task, ok := ts.Tasks[msg.TaskID]
	if !ok {
		tm.logger.Debug("complete for unknown task", slog.String("task_id", msg.TaskID))
		return
	}

	task.Status = protocol.TaskDone
	task.Artifact = msg.Artifact
	task.StatusNote = msg.Note
	task.UpdatedAt = time.Now()

	tm.broadcastStatus(team, task)
	tm.notify(team, task.Assignee, task.Creator, fmt.Sprintf(
		"%s completed task %s (%s). Deliverable: %s", task.Assignee, task.TaskID, task.Title, msg.Artifact))

	tm.emit(EventTaskComplete, map[string]any{
		"task_id":  task.TaskID,
		"artifact": msg.Artifact,
	})

	tm.UnblockAfter(team, task.TaskID)
	tm.persist(team)
}

// UnblockAfter scans every queued task in the team, removes the satisfied
// dependency key (a completed task id or a published artifact filename) from
// blockedBy, and dispatches any task whose full dependency list now holds.
func (tm *TaskManager) UnblockAfter(team, satisfiedKey string) {
	ts := tm.state.Team(team)

	for _, task := range ts.Tasks {
		if task.Status != protocol.TaskQueued {
			continue
		}

		remaining := task.BlockedBy[:0:0]
		for _, key := range task.BlockedBy {
			if key != satisfiedKey {
				remaining = append(remaining, key)
			}
		}
		task.BlockedBy = remaining

		if len(tm.unsatisfiedDeps(ts, task)) > 0 {
			continue
		}

		task.Status = protocol.TaskCreated
		task.BlockedBy = nil
		task.UpdatedAt = time.Now()

		tm.logger.Debug("task unblocked",
			slog.String("task_id", task.TaskID),
			slog.String("satisfied", satisfiedKey),
		)
		tm.emit(EventTaskUnblock, map[string]any{
			"task_id":   task.TaskID,
			"satisfied": satisfiedKey,
		})
		tm.dispatch(team, task)
	}
	tm.persist(team)
}

// List filters the team's tasks: "mine" keeps tasks the requester created or
// is assigned, "active" keeps non-terminal ones, anything else returns all.
func (tm *TaskManager) List(team, requester, filter string) []protocol.TaskState {
	ts := tm.state.Team(team)
	tasks := make([]protocol.TaskState, 0, len(ts.Tasks))
	for _, task := range ts.Tasks {
		switch filter {
		case "mine":
			if !strings.EqualFold(task.Creator, requester) && !strings.EqualFold(task.Assignee, requester) {
				continue
			}
		case "active":
			if task.Status == protocol.TaskDone || task.Status == protocol.TaskRejected {
				continue
			}
		}
		tasks = append(tasks, *task)
	}
	return tasks
}

func (tm *TaskManager) broadcastStatus(team string, task *protocol.TaskState) {
	tm.registry.BroadcastTeam(team, &protocol.TaskStatusBroadcast{
		Type: protocol.TypeTaskStatusBroadcast,
		Task: *task,
	}, nil)
}

// notify pushes an informational message to one agent via idle-aware delivery.
func (tm *TaskManager) notify(team, from, to, message string) {
	tm.queue.DeliverOrQueue(to, team, &protocol.RelayReplyDelivered{
		Type:      protocol.TypeRelayReplyDelivered,
		FromAgent: from,
		Message:   message,
	})
}
