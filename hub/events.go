package hub

import "github.com/agentfleet/agenthub/observability"

// Hub event types emitted to the configured observer.
const (
	EventAgentRegister   observability.EventType = "registry.register"
	EventAgentDisconnect observability.EventType = "registry.disconnect"
	EventViewerConnect   observability.EventType = "registry.viewer"
	EventShadowSubscribe observability.EventType = "registry.shadow"
	EventStatusChange    observability.EventType = "registry.status"

	EventQueueEnqueue observability.EventType = "queue.enqueue"
	EventQueueFlush   observability.EventType = "queue.flush"

	EventRelayAsk    observability.EventType = "relay.ask"
	EventRelayAnswer observability.EventType = "relay.answer"
	EventRelayAssign observability.EventType = "relay.assign"
	EventRelayReply  observability.EventType = "relay.reply"
	EventRelayOrphan observability.EventType = "relay.orphan"

	EventTaskCreate   observability.EventType = "task.create"
	EventTaskQueued   observability.EventType = "task.queued"
	EventTaskDispatch observability.EventType = "task.dispatch"
	EventTaskAccept   observability.EventType = "task.accept"
	EventTaskUpdate   observability.EventType = "task.update"
	EventTaskComplete observability.EventType = "task.complete"
	EventTaskUnblock  observability.EventType = "task.unblock"

	EventArtifactPublish  observability.EventType = "artifact.publish"
	EventArtifactConflict observability.EventType = "artifact.conflict"

	EventContractPublish  observability.EventType = "contract.publish"
	EventContractSign     observability.EventType = "contract.sign"
	EventContractApproved observability.EventType = "contract.approved"

	EventSnapshotSave observability.EventType = "persist.save"
	EventSnapshotLoad observability.EventType = "persist.load"

	EventMessageDrop observability.EventType = "transport.drop"
)
