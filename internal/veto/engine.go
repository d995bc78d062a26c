package veto

import (
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidAction = errors.New("invalid veto action")
var ErrWrongTurn = fmt.Errorf("%w: not this team's turn", ErrInvalidAction)
var ErrMapUnavailable = fmt.Errorf("%w: map not remaining", ErrInvalidAction)
var ErrVetoCompleted = fmt.Errorf("%w: veto already completed", ErrInvalidAction)

var ErrEmptyFormat = errors.New("empty veto format")
var ErrEmptyPool = errors.New("empty map pool")
var ErrDuplicateMap = errors.New("duplicate map in pool")

const (
	Team0 = 0
	Team1 = 1
)

// Source tells manual actions apart from deadline auto-resolutions.
type Source string

const (
	SourceManual  Source = "manual"
	SourceTimeout Source = "timeout"
)

// State is one veto session. Values returned by Start and Apply are never
// mutated afterwards; Apply works on copies.
type State struct {
	Format     Format   `json:"format"`
	Pool       []string `json:"pool"`
	Step       int      `json:"step"`
	ActingTeam int      `json:"acting_team"`
	Banned     []string `json:"banned"`
	Picked     []string `json:"picked"`
	Remaining  []string `json:"remaining"`
	Complete   bool     `json:"complete"`
}

type Command struct {
	Team   int
	MapID  string
	Source Source
}

type EventType string

const (
	EvtMapBanned     EventType = "MapBanned"
	EvtMapPicked     EventType = "MapPicked"
	EvtTurnAdvanced  EventType = "TurnAdvanced"
	EvtMapsFinalized EventType = "MapsFinalized"
	EvtVetoCompleted EventType = "VetoCompleted"
)

type Event struct {
	Type   EventType `json:"type"`
	Step   int       `json:"step"`
	Team   int       `json:"team"`
	MapIDs []string  `json:"map_ids,omitempty"`
	Source Source    `json:"source,omitempty"`
}

// Start opens a veto over pool using format. Team 0 acts first.
func Start(pool []string, format Format) (State, error) {
	if len(format) == 0 {
		return State{}, ErrEmptyFormat
	}
	if len(pool) == 0 {
		return State{}, ErrEmptyPool
	}
	seen := make(map[string]bool, len(pool))
	for _, id := range pool {
		if seen[id] {
			return State{}, fmt.Errorf("%w: %q", ErrDuplicateMap, id)
		}
		seen[id] = true
	}

	s := State{
		Format:     slices.Clone(format),
		Pool:       slices.Clone(pool),
		Step:       0,
		ActingTeam: Team0,
		Banned:     []string{},
		Picked:     []string{},
		Remaining:  slices.Clone(pool),
	}
	s, _ = settle(s, nil)
	return s, nil
}

// Apply resolves the current step with cmd. Rejected commands return the input
// state untouched.
func Apply(s State, cmd Command) ([]Event, State, error) {
	if s.Complete || s.Step >= len(s.Format) {
		return nil, s, ErrVetoCompleted
	}
	if cmd.Team != s.ActingTeam {
		return nil, s, ErrWrongTurn
	}
	idx := slices.Index(s.Remaining, cmd.MapID)
	if idx < 0 {
		return nil, s, ErrMapUnavailable
	}
	if cmd.Source == "" {
		cmd.Source = SourceManual
	}

	newState := s.clone()
	newState.Remaining = slices.Delete(newState.Remaining, idx, idx+1)

	var events []Event
	switch s.Format[s.Step] {
	case StepBan:
		newState.Banned = append(newState.Banned, cmd.MapID)
		events = append(events, Event{Type: EvtMapBanned, Step: s.Step, Team: cmd.Team, MapIDs: []string{cmd.MapID}, Source: cmd.Source})
	default:
		newState.Picked = append(newState.Picked, cmd.MapID)
		events = append(events, Event{Type: EvtMapPicked, Step: s.Step, Team: cmd.Team, MapIDs: []string{cmd.MapID}, Source: cmd.Source})
	}

	newState.Step++
	if newState.Step < len(newState.Format) && newState.Format[newState.Step] != StepRemaining {
		newState.ActingTeam = otherTeam(cmd.Team)
	}
	events = append(events, Event{Type: EvtTurnAdvanced, Step: newState.Step, Team: newState.ActingTeam})

	newState, events = settle(newState, events)
	return events, newState, nil
}

// settle marks the veto complete once the format is exhausted, at most one map
// is left, or a remaining step is reached. Leftover maps are picked when the
// format resolves through a remaining step.
func settle(s State, events []Event) (State, []Event) {
	atRemaining := s.Step < len(s.Format) && s.Format[s.Step] == StepRemaining
	if s.Step < len(s.Format) && len(s.Remaining) > 1 && !atRemaining {
		return s, events
	}

	if (atRemaining || s.Format.last() == StepRemaining) && len(s.Remaining) > 0 {
		finalized := s.Remaining
		s.Picked = append(s.Picked, finalized...)
		s.Remaining = []string{}
		events = append(events, Event{Type: EvtMapsFinalized, Step: s.Step, Team: s.ActingTeam, MapIDs: slices.Clone(finalized)})
	}
	s.Complete = true
	events = append(events, Event{Type: EvtVetoCompleted, Step: s.Step})
	return s, events
}

// CurrentKind returns the kind of the step awaiting resolution.
func (s State) CurrentKind() (StepKind, bool) {
	if s.Complete || s.Step >= len(s.Format) {
		return "", false
	}
	return s.Format[s.Step], true
}

func (s State) clone() State {
	c := s
	c.Format = slices.Clone(s.Format)
	c.Pool = slices.Clone(s.Pool)
	c.Banned = slices.Clone(s.Banned)
	c.Picked = slices.Clone(s.Picked)
	c.Remaining = slices.Clone(s.Remaining)
	return c
}

func otherTeam(team int) int {
	if team == Team0 {
		return Team1
	}
	return Team0
}
