package matchmaking

import "slices"

// partitionTeams splits lobby slots into consecutive groups of teamSize in
// slot order. A non-positive teamSize splits the lobby into two halves.
func partitionTeams(slots []PlayerSlot, teamSize int) [][]PlayerSlot {
	if len(slots) == 0 {
		return [][]PlayerSlot{}
	}
	if teamSize <= 0 {
		teamSize = max((len(slots)+1)/2, 1)
	}
	teams := make([][]PlayerSlot, 0, (len(slots)+teamSize-1)/teamSize)
	for chunk := range slices.Chunk(slots, teamSize) {
		teams = append(teams, slices.Clone(chunk))
	}
	return teams
}
