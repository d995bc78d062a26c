package veto

import "math/rand/v2"

// randIndex is swapped out in tests to make auto-resolution deterministic.
var randIndex = rand.IntN

// TimeoutCommand builds the action taken for the acting team when its step
// deadline lapses: a uniformly random remaining map. It goes through Apply
// like any manual action.
func TimeoutCommand(s State) (Command, bool) {
	if s.Complete || len(s.Remaining) == 0 {
		return Command{}, false
	}
	return Command{
		Team:   s.ActingTeam,
		MapID:  s.Remaining[randIndex(len(s.Remaining))],
		Source: SourceTimeout,
	}, true
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
