package hub

import "github.com/agentfleet/agenthub/protocol"

// teamState is the durable state of one team: the update log plus the three
// coordinated stores. Mutated only while the server's dispatch lock is held.
type teamState struct {
	Updates   []protocol.TeamUpdate
	Tasks     map[string]*protocol.TaskState
	Artifacts map[string]*protocol.ArtifactMeta
	Contracts map[string]*protocol.ContractState
}

func newTeamState() *teamState {
	return &teamState{
		Tasks:     make(map[string]*protocol.TaskState),
		Artifacts: make(map[string]*protocol.ArtifactMeta),
		Contracts: make(map[string]*protocol.ContractState),
	}
}

// State holds durable hub state across all teams.
type State struct {
	teams map[string]*teamState
}

func NewState() *State {
	return &State{teams: make(map[string]*teamState)}
}

// Team returns the state for a team, creating it on first reference.
func (s *State) Team(team string) *teamState {
	ts, ok := s.teams[team]
	if !ok {
		ts = newTeamState()
		s.teams[team] = ts
	}
	return ts
}

// Teams returns the names of all teams with any recorded state.
func (s *State) Teams() []string {
	names := make([]string, 0, len(s.teams))
	for name := range s.teams {
		names = append(names, name)
	}
	return names
}
