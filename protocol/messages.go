package protocol

// Wire message type tags. Every frame on a hub connection is a JSON object
// whose "type" field carries one of these values.
const (
	TypeAgentRegister        = "agent:register"
	TypeAgentRegistered      = "agent:registered"
	TypeAgentStatus          = "agent:status"
	TypeAgentStatusBroadcast = "agent:status:broadcast"
	TypeAgentDisconnected    = "agent:disconnected"

	TypeRelayAsk            = "relay:ask"
	TypeRelayQuestion       = "relay:question"
	TypeRelayAnswer         = "relay:answer"
	TypeRelayResponse       = "relay:response"
	TypeRelayAssign         = "relay:assign"
	TypeRelayTask           = "relay:task"
	TypeRelayReply          = "relay:reply"
	TypeRelayReplyDelivered = "relay:reply:delivered"
	TypeRelayStart          = "relay:start"
	TypeRelayDone           = "relay:done"

	TypeViewerConnect     = "viewer:connect"
	TypeSpawnerSubscribe  = "spawner:subscribe"
	TypeSpawnerSubscribed = "spawner:subscribed"

	TypeTeamUpdatePost         = "team:update:post"
	TypeTeamUpdateBroadcast    = "team:update:broadcast"
	TypeTeamUpdateList         = "team:update:list"
	TypeTeamUpdateListResponse = "team:update:list:response"

	TypeTaskCreate          = "task:create"
	TypeTaskCreated         = "task:created"
	TypeTaskAccept          = "task:accept"
	TypeTaskUpdate          = "task:update"
	TypeTaskComplete        = "task:complete"
	TypeTaskStatusBroadcast = "task:status:broadcast"
	TypeTaskList            = "task:list"
	TypeTaskListResponse    = "task:list:response"

	TypeArtifactPublish      = "artifact:publish"
	TypeArtifactChanged      = "artifact:changed"
	TypeArtifactList         = "artifact:list"
	TypeArtifactListResponse = "artifact:list:response"

	TypeContractPublish       = "contract:publish"
	TypeContractSign          = "contract:sign"
	TypeContractStatus        = "contract:status"
	TypeContractCheck         = "contract:check"
	TypeContractCheckResponse = "contract:check:response"
)

// --- Agent lifecycle ---

type AgentRegister struct {
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	Role         string   `json:"role,omitempty"`
	Team         string   `json:"team,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

type AgentRegistered struct {
	Type      string  `json:"type"`
	AgentID   string  `json:"agentId"`
	Team      string  `json:"team"`
	Teammates []Agent `json:"teammates"`
}

type AgentStatusUpdate struct {
	Type   string      `json:"type"`
	Status AgentStatus `json:"status"`
}

type AgentStatusBroadcast struct {
	Type    string      `json:"type"`
	AgentID string      `json:"agentId"`
	Name    string      `json:"name"`
	Role    string      `json:"role"`
	Status  AgentStatus `json:"status"`
}

type AgentDisconnected struct {
	Type    string `json:"type"`
	AgentID string `json:"agentId"`
	Name    string `json:"name"`
}

// --- Relay ---

type RelayAsk struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	FromAgent string `json:"fromAgent"`
	ToAgent   string `json:"toAgent"`
	Question  string `json:"question"`
}

type RelayQuestion struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	FromAgent string `json:"fromAgent"`
	Question  string `json:"question"`
}

type RelayAnswer struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	Answer    string `json:"answer"`
}

type RelayResponse struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	FromAgent string `json:"fromAgent"`
	Answer    string `json:"answer"`
}

type RelayAssign struct {
	Type      string   `json:"type"`
	RequestID string   `json:"requestId"`
	FromAgent string   `json:"fromAgent"`
	ToAgent   string   `json:"toAgent"`
	Task      string   `json:"task"`
	Priority  Priority `json:"priority,omitempty"`
}

type RelayTask struct {
	Type      string   `json:"type"`
	RequestID string   `json:"requestId"`
	FromAgent string   `json:"fromAgent"`
	Task      string   `json:"task"`
	Priority  Priority `json:"priority"`
}

type RelayReply struct {
	Type    string `json:"type"`
	ToAgent string `json:"toAgent"`
	Message string `json:"message"`
}

type RelayReplyDelivered struct {
	Type      string `json:"type"`
	FromAgent string `json:"fromAgent"`
	Message   string `json:"message"`
}

// RelayStart and RelayDone are observability events broadcast to the team
// while a relay exchange is in flight.
type RelayStart struct {
	Type      string `json:"type"`
	FromAgent string `json:"fromAgent"`
	ToAgent   string `json:"toAgent"`
	RequestID string `json:"requestId"`
}

type RelayDone struct {
	Type      string `json:"type"`
	FromAgent string `json:"fromAgent"`
	ToAgent   string `json:"toAgent"`
	RequestID string `json:"requestId"`
}

// --- Viewer / spawner ---

type ViewerConnect struct {
	Type string `json:"type"`
}

type SpawnerSubscribe struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Team string `json:"team,omitempty"`
}

type SpawnerSubscribed struct {
	Type      string  `json:"type"`
	Name      string  `json:"name"`
	Team      string  `json:"team"`
	Teammates []Agent `json:"teammates"`
}

// --- Team updates ---

type TeamUpdatePost struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type TeamUpdateBroadcast struct {
	Type   string     `json:"type"`
	Update TeamUpdate `json:"update"`
}

type TeamUpdateList struct {
	Type  string `json:"type"`
	Limit int    `json:"limit,omitempty"`
}

type TeamUpdateListResponse struct {
	Type    string       `json:"type"`
	Updates []TeamUpdate `json:"updates"`
}

// --- Task lifecycle ---

type TaskCreate struct {
	Type         string            `json:"type"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Assignee     string            `json:"assignee"`
	Priority     Priority          `json:"priority,omitempty"`
	OutputTarget *TaskOutputTarget `json:"outputTarget,omitempty"`
	Consumes     []TaskConsumes    `json:"consumes,omitempty"`
	Produces     *TaskProduces     `json:"produces,omitempty"`
	DependsOn    []TaskDependency  `json:"dependsOn,omitempty"`
}

type TaskCreatedBroadcast struct {
	Type string    `json:"type"`
	Task TaskState `json:"task"`
}

type TaskAccept struct {
	Type     string `json:"type"`
	TaskID   string `json:"taskId"`
	Accepted bool   `json:"accepted"`
	Note     string `json:"note,omitempty"`
}

type TaskUpdateStatus struct {
	Type   string     `json:"type"`
	TaskID string     `json:"taskId"`
	Status TaskStatus `json:"status"`
	Note   string     `json:"note,omitempty"`
}

type TaskComplete struct {
	Type     string `json:"type"`
	TaskID   string `json:"taskId"`
	Artifact string `json:"artifact"`
	Note     string `json:"note,omitempty"`
}

type TaskStatusBroadcast struct {
	Type string    `json:"type"`
	Task TaskState `json:"task"`
}

type TaskList struct {
	Type   string `json:"type"`
	Filter string `json:"filter,omitempty"`
}

type TaskListResponse struct {
	Type  string      `json:"type"`
	Tasks []TaskState `json:"tasks"`
}

// --- Artifacts ---

type ArtifactPublish struct {
	Type         string       `json:"type"`
	Filename     string       `json:"filename"`
	ArtifactType ArtifactType `json:"artifactType"`
	Summary      string       `json:"summary"`
	RelatesTo    string       `json:"relatesTo,omitempty"`
}

type ArtifactChanged struct {
	Type     string       `json:"type"`
	Artifact ArtifactMeta `json:"artifact"`
	Action   string       `json:"action"` // "created" or "updated"
}

type ArtifactList struct {
	Type         string       `json:"type"`
	ArtifactType ArtifactType `json:"artifactType,omitempty"`
}

type ArtifactListResponse struct {
	Type      string         `json:"type"`
	Artifacts []ArtifactMeta `json:"artifacts"`
}

// --- Contracts ---

type ContractPublish struct {
	Type             string            `json:"type"`
	SpecPath         string            `json:"specPath"`
	RequiredSigners  []string          `json:"requiredSigners"`
	ContractType     ContractType      `json:"contractType,omitempty"`
	SchemaValidation *SchemaValidation `json:"schemaValidation,omitempty"`
}

type ContractSign struct {
	Type     string `json:"type"`
	SpecPath string `json:"specPath"`
	Comment  string `json:"comment,omitempty"`
}

type ContractStatusBroadcast struct {
	Type     string        `json:"type"`
	Contract ContractState `json:"contract"`
}

type ContractCheck struct {
	Type     string `json:"type"`
	SpecPath string `json:"specPath,omitempty"`
}

type ContractCheckResponse struct {
	Type      string          `json:"type"`
	Contracts []ContractState `json:"contracts"`
}
