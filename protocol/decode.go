// Package protocol defines the wire format spoken between the hub and its
// clients: tagged JSON objects, one per frame, dispatched on the "type" field.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for inbound frame decoding.
var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

type envelope struct {
	Type string `json:"type"`
}

// Decode parses one inbound frame and returns the typed message for its tag.
// The returned value is a pointer to one of the message structs in this
// package. Frames that are not JSON objects or carry no known tag return
// ErrMalformed or ErrUnknownType respectively.
func Decode(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	msg := newMessage(env.Type)
	if msg == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

func newMessage(tag string) any {
	switch tag {
	case TypeAgentRegister:
		return &AgentRegister{}
	case TypeAgentRegistered:
		return &AgentRegistered{}
	case TypeAgentStatus:
		return &AgentStatusUpdate{}
	case TypeAgentStatusBroadcast:
		return &AgentStatusBroadcast{}
	case TypeAgentDisconnected:
		return &AgentDisconnected{}
	case TypeRelayAsk:
		return &RelayAsk{}
	case TypeRelayQuestion:
		return &RelayQuestion{}
	case TypeRelayAnswer:
		return &RelayAnswer{}
	case TypeRelayResponse:
		return &RelayResponse{}
	case TypeRelayAssign:
		return &RelayAssign{}
	case TypeRelayTask:
		return &RelayTask{}
	case TypeRelayReply:
		return &RelayReply{}
	case TypeRelayReplyDelivered:
		return &RelayReplyDelivered{}
	case TypeRelayStart:
		return &RelayStart{}
	case TypeRelayDone:
		return &RelayDone{}
	case TypeViewerConnect:
		return &ViewerConnect{}
	case TypeSpawnerSubscribe:
		return &SpawnerSubscribe{}
	case TypeSpawnerSubscribed:
		return &SpawnerSubscribed{}
	case TypeTeamUpdatePost:
		return &TeamUpdatePost{}
	case TypeTeamUpdateBroadcast:
		return &TeamUpdateBroadcast{}
	case TypeTeamUpdateList:
		return &TeamUpdateList{}
	case TypeTeamUpdateListResponse:
		return &TeamUpdateListResponse{}
	case TypeTaskCreate:
		return &TaskCreate{}
	case TypeTaskCreated:
		return &TaskCreatedBroadcast{}
	case TypeTaskAccept:
		return &TaskAccept{}
	case TypeTaskUpdate:
		return &TaskUpdateStatus{}
	case TypeTaskComplete:
		return &TaskComplete{}
	case TypeTaskStatusBroadcast:
		return &TaskStatusBroadcast{}
	case TypeTaskList:
		return &TaskList{}
	case TypeTaskListResponse:
		return &TaskListResponse{}
	case TypeArtifactPublish:
		return &ArtifactPublish{}
	case TypeArtifactChanged:
		return &ArtifactChanged{}
	case TypeArtifactList:
		return &ArtifactList{}
	case TypeArtifactListResponse:
		return &ArtifactListResponse{}
	case TypeContractPublish:
		return &ContractPublish{}
	case TypeContractSign:
		return &ContractSign{}
	case TypeContractStatus:
		return &ContractStatusBroadcast{}
	case TypeContractCheck:
		return &ContractCheck{}
	case TypeContractCheckResponse:
		return &ContractCheckResponse{}
	}
	return nil
}
