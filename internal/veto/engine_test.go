package veto

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustStart(t *testing.T, pool []string, descriptor string) State {
	t.Helper()
	s, err := Start(pool, ParseFormat(descriptor))
	require.NoError(t, err)
	return s
}

func requirePartition(t *testing.T, s State) {
	t.Helper()
	seen := map[string]int{}
	for _, group := range [][]string{s.Banned, s.Picked, s.Remaining} {
		for _, id := range group {
			seen[id]++
		}
	}
	require.Len(t, seen, len(s.Pool), "union must equal pool: %+v", s)
	for _, id := range s.Pool {
		require.Equal(t, 1, seen[id], "map %s must appear exactly once: %+v", id, s)
	}
	require.LessOrEqual(t, s.Step, len(s.Format))
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		name       string
		descriptor string
		want       Format
	}{
		{name: "standard", descriptor: "ban-ban-pick-remaining", want: Format{StepBan, StepBan, StepPick, StepRemaining}},
		{name: "case and spaces", descriptor: " Ban - PICK ", want: Format{StepBan, StepPick}},
		{name: "unknown token", descriptor: "ban-decider", want: Format{StepBan, StepRemaining}},
		{name: "empty", descriptor: "", want: Format{}},
		{name: "blank", descriptor: "   ", want: Format{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseFormat(tc.descriptor))
		})
	}
}

func TestStart_Rejects(t *testing.T) {
	cases := []struct {
		name    string
		pool    []string
		format  Format
		wantErr error
	}{
		{name: "empty format", pool: []string{"A"}, format: ParseFormat(""), wantErr: ErrEmptyFormat},
		{name: "empty pool", pool: nil, format: ParseFormat("ban"), wantErr: ErrEmptyPool},
		{name: "duplicate map", pool: []string{"A", "A"}, format: ParseFormat("ban"), wantErr: ErrDuplicateMap},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Start(tc.pool, tc.format)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestApply_BanBanThenLastMapIsFinalized(t *testing.T) {
	s := mustStart(t, []string{"A", "B", "C"}, "ban-ban-pick-remaining")

	_, s, err := Apply(s, Command{Team: Team0, MapID: "A"})
	require.NoError(t, err)
	assert.Equal(t, Team1, s.ActingTeam)

	events, s, err := Apply(s, Command{Team: Team1, MapID: "B"})
	require.NoError(t, err)

	assert.True(t, s.Complete)
	assert.Equal(t, []string{"A", "B"}, s.Banned)
	assert.Equal(t, []string{"C"}, s.Picked)
	assert.Empty(t, s.Remaining)
	assert.Equal(t, 2, s.Step)
	assert.True(t, ContainsEvent(events, EvtMapsFinalized))
	assert.True(t, ContainsEvent(events, EvtVetoCompleted))
	requirePartition(t, s)
}

func TestApply_WrongTeamLeavesStateUnchanged(t *testing.T) {
	s := mustStart(t, []string{"A", "B", "C", "D"}, "ban-ban-pick-pick")
	before := s.clone()

	events, got, err := Apply(s, Command{Team: Team1, MapID: "A"})
	require.ErrorIs(t, err, ErrWrongTurn)
	require.ErrorIs(t, err, ErrInvalidAction)
	assert.Nil(t, events)
	assert.Equal(t, before, got)
	assert.Equal(t, before, s)
}

func TestApply_Rejections(t *testing.T) {
	s := mustStart(t, []string{"A", "B", "C"}, "ban-pick-remaining")
	_, afterBan, err := Apply(s, Command{Team: Team0, MapID: "A"})
	require.NoError(t, err)

	cases := []struct {
		name    string
		state   State
		cmd     Command
		wantErr error
	}{
		{name: "map not in pool", state: s, cmd: Command{Team: Team0, MapID: "Z"}, wantErr: ErrMapUnavailable},
		{name: "map already banned", state: afterBan, cmd: Command{Team: Team1, MapID: "A"}, wantErr: ErrMapUnavailable},
		{name: "wrong team after ban", state: afterBan, cmd: Command{Team: Team0, MapID: "B"}, wantErr: ErrWrongTurn},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, got, err := Apply(tc.state, tc.cmd)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.state, got)
		})
	}
}

func TestApply_CompletedVetoRejectsActions(t *testing.T) {
	s := mustStart(t, []string{"A", "B"}, "ban-remaining")
	_, s, err := Apply(s, Command{Team: Team0, MapID: "A"})
	require.NoError(t, err)
	require.True(t, s.Complete)

	_, got, err := Apply(s, Command{Team: s.ActingTeam, MapID: "B"})
	require.ErrorIs(t, err, ErrVetoCompleted)
	assert.Equal(t, s, got)
}

func TestApply_TeamHoldsTurnBeforeRemainingStep(t *testing.T) {
	s := mustStart(t, []string{"A", "B", "C", "D"}, "ban-remaining")
	_, s, err := Apply(s, Command{Team: Team0, MapID: "A"})
	require.NoError(t, err)

	assert.Equal(t, Team0, s.ActingTeam)
	assert.True(t, s.Complete)
	assert.Equal(t, []string{"B", "C", "D"}, s.Picked)
	requirePartition(t, s)
}

func TestApply_FormatWithoutRemainingKeepsLeftovers(t *testing.T) {
	s := mustStart(t, []string{"A", "B", "C", "D"}, "ban-pick")
	_, s, err := Apply(s, Command{Team: Team0, MapID: "A"})
	require.NoError(t, err)
	_, s, err = Apply(s, Command{Team: Team1, MapID: "B"})
	require.NoError(t, err)

	assert.True(t, s.Complete)
	assert.Equal(t, 2, s.Step)
	assert.Equal(t, []string{"C", "D"}, s.Remaining)
	requirePartition(t, s)
}

func TestStart_SingleMapPoolCompletesImmediately(t *testing.T) {
	s := mustStart(t, []string{"A"}, "ban-ban-remaining")
	assert.True(t, s.Complete)
	assert.Equal(t, []string{"A"}, s.Picked)
	assert.Zero(t, s.Step)
}

func TestVeto_ManualActionsPartitionPool(t *testing.T) {
	descriptors := []string{
		"ban-ban-pick-remaining",
		DefaultFormat,
		"ban-ban-ban-ban-ban-ban-remaining",
		"pick-ban-pick-ban-remaining",
		"ban-pick-ban-pick-ban-pick-remaining",
	}
	pool := []string{"ancient", "anubis", "dust2", "inferno", "mirage", "nuke", "vertigo"}
	rng := rand.New(rand.NewPCG(1, 2))

	for _, d := range descriptors {
		t.Run(d, func(t *testing.T) {
			s := mustStart(t, pool, d)
			for steps := 0; !s.Complete; steps++ {
				require.Less(t, steps, len(s.Format), "veto must terminate")
				prevStep := s.Step
				mapID := s.Remaining[rng.IntN(len(s.Remaining))]

				var err error
				_, s, err = Apply(s, Command{Team: s.ActingTeam, MapID: mapID})
				require.NoError(t, err)
				require.Equal(t, prevStep+1, s.Step)
				requirePartition(t, s)
			}
			assert.Empty(t, s.Remaining)
		})
	}
}

func TestVeto_TimeoutOnlyTerminates(t *testing.T) {
	orig := randIndex
	t.Cleanup(func() { randIndex = orig })
	rng := rand.New(rand.NewPCG(7, 7))
	randIndex = rng.IntN

	pool := []string{"A", "B", "C", "D", "E", "F", "G"}
	s := mustStart(t, pool, DefaultFormat)

	for !s.Complete {
		cmd, ok := TimeoutCommand(s)
		require.True(t, ok)
		require.Equal(t, SourceTimeout, cmd.Source)
		require.Equal(t, s.ActingTeam, cmd.Team)

		events, next, err := Apply(s, cmd)
		require.NoError(t, err)
		require.Equal(t, SourceTimeout, events[0].Source)
		s = next
		requirePartition(t, s)
	}

	assert.Empty(t, s.Remaining)
	assert.Len(t, s.Banned, 4)
	assert.Len(t, s.Picked, 3)
	_, ok := TimeoutCommand(s)
	assert.False(t, ok)
}

func TestTimeoutCommand_UsesRandIndex(t *testing.T) {
	orig := randIndex
	t.Cleanup(func() { randIndex = orig })
	randIndex = func(n int) int { return n - 1 }

	s := mustStart(t, []string{"A", "B", "C"}, "ban-ban-remaining")
	cmd, ok := TimeoutCommand(s)
	require.True(t, ok)
	assert.Equal(t, Command{Team: Team0, MapID: "C", Source: SourceTimeout}, cmd)
}

func TestApply_DoesNotAliasInput(t *testing.T) {
	s := mustStart(t, []string{"A", "B", "C", "D"}, "ban-ban-pick-remaining")
	remaining := slices.Clone(s.Remaining)

	_, next, err := Apply(s, Command{Team: Team0, MapID: "B"})
	require.NoError(t, err)
	assert.Equal(t, remaining, s.Remaining)
	assert.Equal(t, []string{"A", "C", "D"}, next.Remaining)
	assert.True(t, errors.Is(ErrWrongTurn, ErrInvalidAction))
}
