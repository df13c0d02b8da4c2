package hub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agentfleet/agenthub/observability"
	"github.com/agentfleet/agenthub/protocol"
)

// ContractBook tracks multi-signer approval state for named specs. Approval
// is derived, never stored independently: a contract is approved iff every
// required signer has signed.
type ContractBook struct {
	state    *State
	registry *Registry
	queue    *DeliveryQueue
	persist  func(team string)

	ctx      context.Context
	logger   *slog.Logger
	observer observability.Observer
}

func NewContractBook(ctx context.Context, state *State, registry *Registry, queue *DeliveryQueue, persist func(team string), logger *slog.Logger, observer observability.Observer) *ContractBook {
	return &ContractBook{
		state:    state,
		registry: registry,
		queue:    queue,
		persist:  persist,
		ctx:      ctx,
		logger:   logger,
		observer: observer,
	}
}

func (cb *ContractBook) emit(eventType observability.EventType, data map[string]any) {
	cb.observer.OnEvent(cb.ctx, observability.Event{
		Type:      eventType,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "contracts",
		Data:      data,
	})
}

// Publish records a contract with an empty signer list, announces it to the
// team, and notifies each required signer individually.
func (cb *ContractBook) Publish(publisher *AgentEntry, msg *protocol.ContractPublish) {
	team := publisher.Team
	ts := cb.state.Team(team)

	contract := &protocol.ContractState{
		SpecPath:         msg.SpecPath,
		RequiredSigners:  msg.RequiredSigners,
		Signers:          []protocol.ContractSigner{},
		Approved:         false,
		PublishedBy:      publisher.Name,
		PublishedAt:      time.Now(),
		ContractType:     msg.ContractType,
		SchemaValidation: msg.SchemaValidation,
	}
	ts.Contracts[msg.SpecPath] = contract

	cb.broadcastStatus(team, contract)
	for _, signer := range msg.RequiredSigners {
		cb.queue.DeliverOrQueue(signer, team, &protocol.RelayReplyDelivered{
			Type:      protocol.TypeRelayReplyDelivered,
			FromAgent: publisher.Name,
			Message: fmt.Sprintf(
				"Contract %q requires your signature. Review it and sign with contract:sign.",
				msg.SpecPath),
		})
	}

	cb.logger.Debug("contract published",
		slog.String("spec_path", msg.SpecPath),
		slog.String("publisher", publisher.Name),
		slog.Int("required_signers", len(msg.RequiredSigners)),
	)
	cb.emit(EventContractPublish, map[string]any{
		"spec_path": msg.SpecPath,
		"publisher": publisher.Name,
	})
	cb.persist(team)
}

// Sign appends a signature (idempotently per signer), recomputes approval,
// and pushes progress to the publisher so it never has to poll. Unknown spec
// paths are dropped.
func (cb *ContractBook) Sign(signer *AgentEntry, msg *protocol.ContractSign) {
	team := signer.Team
	ts := cb.state.Team(team)

	contract, ok := ts.Contracts[msg.SpecPath]
	if !ok {
		cb.logger.Debug("sign for unknown contract", slog.String("spec_path", msg.SpecPath))
		return
	}

	alreadySigned := false
	for _, s := range contract.Signers {
		if strings.EqualFold(s.Name, signer.Name) {
			alreadySigned = true
			break
		}
	}
	if !alreadySigned {
		contract.Signers = append(contract.Signers, protocol.ContractSigner{
			Name:     signer.Name,
			Comment:  msg.Comment,
			SignedAt: time.Now(),
		})
	}

	contract.Approved = cb.approved(contract)
	cb.broadcastStatus(team, contract)

	if contract.Approved {
		cb.queue.DeliverOrQueue(contract.PublishedBy, team, &protocol.RelayReplyDelivered{
			Type:      protocol.TypeRelayReplyDelivered,
			FromAgent: signer.Name,
			Message: fmt.Sprintf(
				"Contract %q is fully approved: all %d required signers have signed.",
				contract.SpecPath, len(contract.RequiredSigners)),
		})
		cb.emit(EventContractApproved, map[string]any{"spec_path": contract.SpecPath})
	} else {
		remaining := cb.remainingSigners(contract)
		cb.queue.DeliverOrQueue(contract.PublishedBy, team, &protocol.RelayReplyDelivered{
			Type:      protocol.TypeRelayReplyDelivered,
			FromAgent: signer.Name,
			Message: fmt.Sprintf(
				"%s signed contract %q (%d of %d). Still waiting on: %s.",
				signer.Name, contract.SpecPath, len(contract.Signers),
				len(contract.RequiredSigners), strings.Join(remaining, ", ")),
		})
	}

	cb.logger.Debug("contract signed",
		slog.String("spec_path", contract.SpecPath),
		slog.String("signer", signer.Name),
		slog.Bool("approved", contract.Approved),
	)
	cb.emit(EventContractSign, map[string]any{
		"spec_path": contract.SpecPath,
		"signer":    signer.Name,
		"approved":  contract.Approved,
	})
	cb.persist(team)
}

// Check returns the team's contracts, optionally narrowed to one spec path.
func (cb *ContractBook) Check(team, specPath string) []protocol.ContractState {
	ts := cb.state.Team(team)
	if specPath != "" {
		if contract, ok := ts.Contracts[specPath]; ok {
			return []protocol.ContractState{*contract}
		}
		return []protocol.ContractState{}
	}
	contracts := make([]protocol.ContractState, 0, len(ts.Contracts))
	for _, contract := range ts.Contracts {
		contracts = append(contracts, *contract)
	}
	return contracts
}

func (cb *ContractBook) approved(contract *protocol.ContractState) bool {
	for _, required := range contract.RequiredSigners {
		signed := false
		for _, s := range contract.Signers {
			if strings.EqualFold(s.Name, required) {
				signed = true
				break
			}
		}
		if !signed {
			return false
		}
	}
	return true
}

func (cb *ContractBook) remainingSigners(contract *protocol.ContractState) []string {
	var remaining []string
	for _, required := range contract.RequiredSigners {
		signed := false
		for _, s := range contract.Signers {
			if strings.EqualFold(s.Name, required) {
				signed = true
				break
			}
		}
		if !signed {
			remaining = append(remaining, required)
		}
	}
	return remaining
}

func (cb *ContractBook) broadcastStatus(team string, contract *protocol.ContractState) {
	cb.registry.BroadcastTeam(team, &protocol.ContractStatusBroadcast{
		Type:     protocol.TypeContractStatus,
		Contract: *contract,
	}, nil)
}
