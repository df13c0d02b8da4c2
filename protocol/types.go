package protocol

import "time"

// AgentStatus is the availability state an agent reports to the hub.
type AgentStatus string

const (
	StatusIdle    AgentStatus = "idle"
	StatusWorking AgentStatus = "working"
	StatusBusy    AgentStatus = "busy"
)

// Priority ranks relayed and tracked tasks.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// TaskStatus is a task lifecycle state. Done and rejected are terminal.
type TaskStatus string

const (
	TaskCreated    TaskStatus = "created"
	TaskQueued     TaskStatus = "queued"
	TaskAccepted   TaskStatus = "accepted"
	TaskRejected   TaskStatus = "rejected"
	TaskInProgress TaskStatus = "in_progress"
	TaskBlocked    TaskStatus = "blocked"
	TaskDone       TaskStatus = "done"
)

// ArtifactType tags a published artifact's kind.
type ArtifactType string

const (
	ArtifactSpec     ArtifactType = "spec"
	ArtifactPlan     ArtifactType = "plan"
	ArtifactReport   ArtifactType = "report"
	ArtifactDecision ArtifactType = "decision"
	ArtifactCode     ArtifactType = "code"
	ArtifactOther    ArtifactType = "other"
)

// ContractType tags what kind of agreement a contract describes.
type ContractType string

const (
	ContractAPI       ContractType = "api"
	ContractInterface ContractType = "interface"
	ContractSchema    ContractType = "schema"
)

// Agent is the identity record the hub shares with teammates and viewers.
type Agent struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Role         string      `json:"role"`
	Capabilities []string    `json:"capabilities"`
	Status       AgentStatus `json:"status"`
	Team         string      `json:"team,omitempty"`
}

// TaskOutputTarget tells the assignee where completed work should land.
type TaskOutputTarget struct {
	Directory      string   `json:"directory,omitempty"`
	Filenames      []string `json:"filenames,omitempty"`
	IntegratesInto string   `json:"integrates_into,omitempty"`
}

// TaskConsumes names an artifact the assignee should read rather than recreate.
type TaskConsumes struct {
	Artifact string `json:"artifact"`
	Owner    string `json:"owner"`
}

// TaskProduces names the deliverables a task is expected to publish.
type TaskProduces struct {
	Artifact    string   `json:"artifact,omitempty"`
	SharedFiles []string `json:"shared_files,omitempty"`
}

// TaskDependency gates a task on another task completing or an artifact
// being published. Exactly one field is set per entry.
type TaskDependency struct {
	TaskID   string `json:"task_id,omitempty"`
	Artifact string `json:"artifact,omitempty"`
}

// TaskState is the full record of a tracked task.
type TaskState struct {
	TaskID       string            `json:"taskId"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Assignee     string            `json:"assignee"`
	Creator      string            `json:"creator"`
	Priority     Priority          `json:"priority"`
	Status       TaskStatus        `json:"status"`
	Artifact     string            `json:"artifact,omitempty"`
	StatusNote   string            `json:"statusNote,omitempty"`
	OutputTarget *TaskOutputTarget `json:"outputTarget,omitempty"`
	Consumes     []TaskConsumes    `json:"consumes,omitempty"`
	Produces     *TaskProduces     `json:"produces,omitempty"`
	DependsOn    []TaskDependency  `json:"dependsOn,omitempty"`
	BlockedBy    []string          `json:"blockedBy,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// ArtifactMeta is the ownership-locked metadata for a shared document.
type ArtifactMeta struct {
	Filename    string       `json:"filename"`
	Type        ArtifactType `json:"type"`
	Summary     string       `json:"summary"`
	Owner       string       `json:"owner"`
	RelatesTo   string       `json:"relatesTo,omitempty"`
	PublishedAt time.Time    `json:"publishedAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// SchemaValidation carries advisory structure hints for a contract artifact.
type SchemaValidation struct {
	Format       string   `json:"format,omitempty"`
	RequiredKeys []string `json:"required_keys,omitempty"`
}

// ContractSigner records one signature on a contract.
type ContractSigner struct {
	Name     string    `json:"name"`
	Comment  string    `json:"comment,omitempty"`
	SignedAt time.Time `json:"signedAt"`
}

// ContractState is the approval state for a named spec. Approved is derived:
// true iff every required signer appears in Signers.
type ContractState struct {
	SpecPath         string            `json:"specPath"`
	RequiredSigners  []string          `json:"requiredSigners"`
	Signers          []ContractSigner  `json:"signers"`
	Approved         bool              `json:"approved"`
	PublishedBy      string            `json:"publishedBy"`
	PublishedAt      time.Time         `json:"publishedAt"`
	ContractType     ContractType      `json:"contractType,omitempty"`
	SchemaValidation *SchemaValidation `json:"schemaValidation,omitempty"`
}

// TeamUpdate is one entry in a team's append-only update log.
type TeamUpdate struct {
	From      string    `json:"from"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
