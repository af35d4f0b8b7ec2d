package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fourPlayers() []Player {
	return []Player{
		{ID: "h", Name: "HOST", IsHost: true},
		{ID: "a", Name: "ALICE"},
		{ID: "b", Name: "BOB"},
		{ID: "c", Name: "CAROL"},
	}
}

func newTestState(players []Player) *State {
	s := NewState()
	s.SetIdentity("ROOM42", "h", "h")
	for _, p := range players {
		s.AddPlayer(p)
	}
	return s
}

func TestState_AddPlayerIdempotent(t *testing.T) {
	s := newTestState(fourPlayers())
	s.AddPlayer(Player{ID: "a", Name: "ALICE-AGAIN"})

	snap := s.Snapshot()
	require.Len(t, snap.Players, 4)
	assert.Equal(t, "ALICE", snap.Players[1].Name)
}

func TestState_AssignRoles(t *testing.T) {
	s := newTestState(fourPlayers())
	s.AssignRoles("b", Word{Word: "PIZZA", Category: "FOOD"})

	snap := s.Snapshot()
	assert.Equal(t, "b", snap.ImpostorPlayerID)
	for _, p := range snap.Players {
		assert.Equal(t, p.ID == "b", p.IsImpostor)
	}

	// reassignment moves the flag cleanly
	s.AssignRoles("c", Word{Word: "PIZZA", Category: "FOOD"})
	for _, p := range s.Snapshot().Players {
		assert.Equal(t, p.ID == "c", p.IsImpostor)
	}
}

func TestState_CastVoteIdempotentPerVoter(t *testing.T) {
	s := newTestState(fourPlayers())
	s.StartVotingRound()

	s.CastVote("a", "b")
	s.CastVote("a", "b") // double cast, same target

	results := s.TallyVotesFull()
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].VoteCount)
	require.Len(t, results[0].Voters, 1)
	assert.Equal(t, "a", results[0].Voters[0].VoterID)

	p, ok := s.Player("a")
	require.True(t, ok)
	assert.True(t, p.HasVoted)
	assert.Equal(t, "b", p.VotedFor)
}

func TestState_TallyVotes_LegacyPrimitive(t *testing.T) {
	cases := []struct {
		name   string
		votes  map[string]string
		want   string
		wantOK bool
	}{
		{"clear winner", map[string]string{"a": "b", "c": "b", "h": "a"}, "b", true},
		{"tie", map[string]string{"a": "b", "b": "a"}, "", false},
		{"no votes", map[string]string{}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestState(fourPlayers())
			s.StartVotingRound()
			for voter, target := range tc.votes {
				s.CastVote(voter, target)
			}
			got, ok := s.TallyVotes()
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestState_TallyVotesFull_SortedDesc(t *testing.T) {
	s := newTestState(fourPlayers())
	s.StartVotingRound()

	// {a:2, b:2, c:1}
	s.CastVote("h", "a")
	s.CastVote("b", "a")
	s.CastVote("a", "b")
	s.CastVote("c", "b")
	s.CastVote("x", "c") // unknown voter still counts a ballot; controller filters

	results := s.TallyVotesFull()
	require.Len(t, results, 3)
	assert.Equal(t, 2, results[0].VoteCount)
	assert.Equal(t, 2, results[1].VoteCount)
	assert.Equal(t, 1, results[2].VoteCount)
	assert.Equal(t, "c", results[2].PlayerID)
	// top two share the count: a tie for the maximum
	assert.Equal(t, results[0].VoteCount, results[1].VoteCount)
}

func TestState_ChatDeduplication(t *testing.T) {
	s := newTestState(fourPlayers())
	msg := ChatMessage{ID: "m1", SenderID: "a", SenderName: "ALICE", Text: "hi"}
	s.AddChatMessage(msg)
	s.AddChatMessage(msg) // double delivery via host fan-out
	assert.Len(t, s.Snapshot().ChatMessages, 1)
}

func TestState_ResetForNewGame(t *testing.T) {
	s := newTestState(fourPlayers())
	offset := s.Snapshot().TurnRotationOffset

	s.AssignRoles("b", Word{Word: "PIZZA", Category: "FOOD"})
	s.StartVotingRound()
	s.CastVote("a", "b")
	s.AddChatMessage(ChatMessage{ID: "m1", SenderID: "a", Text: "hi"})
	s.EliminatePlayer("c")
	s.SetWinner(WinnerHackers)

	s.ResetForNewGame()
	snap := s.Snapshot()

	assert.Equal(t, PhaseLobby, snap.Phase)
	assert.Equal(t, "ROOM42", snap.RoomCode)
	assert.Empty(t, snap.Votes)
	assert.Empty(t, snap.Winner)
	assert.Empty(t, snap.ImpostorPlayerID)
	assert.Nil(t, snap.SecretWord)
	assert.Empty(t, snap.ChatMessages)
	assert.Equal(t, offset+1, snap.TurnRotationOffset)
	assert.Equal(t, 0, snap.CurrentRound)

	// eliminated player dropped, everyone else kept with flags cleared
	require.Len(t, snap.Players, 3)
	for _, p := range snap.Players {
		assert.NotEqual(t, "c", p.ID)
		assert.False(t, p.IsImpostor)
		assert.False(t, p.HasVoted)
	}
}

func TestState_AdvanceRoundVotingCadence(t *testing.T) {
	s := newTestState(fourPlayers())
	s.SetSettings(false, 2)

	round, due := s.AdvanceRound()
	assert.Equal(t, 1, round)
	assert.False(t, due)

	round, due = s.AdvanceRound()
	assert.Equal(t, 2, round)
	assert.True(t, due)

	_, due = s.AdvanceRound()
	assert.False(t, due)
}

func TestState_EligiblePlayers(t *testing.T) {
	s := newTestState(fourPlayers())
	s.EliminatePlayer("b")

	snap := s.Snapshot()
	elig := snap.EligiblePlayers()
	require.Len(t, elig, 2) // host excluded, b eliminated
	assert.Equal(t, "a", elig[0].ID)
	assert.Equal(t, "c", elig[1].ID)

	s.SetSettings(true, 1)
	elig = s.Snapshot().EligiblePlayers()
	require.Len(t, elig, 3) // host now plays
	assert.Equal(t, "h", elig[0].ID)
}

func TestState_TurnCountdownCancelled(t *testing.T) {
	s := newTestState(fourPlayers())

	expired := make(chan struct{}, 1)
	s.onTurnExpired = func() { expired <- struct{}{} }

	s.StartTurn("a")
	require.Equal(t, "a", s.Snapshot().ActivePlayerID)
	require.Equal(t, TurnSeconds, s.Snapshot().TurnTimeRemaining)

	s.EndTurn()
	s.EndTurn() // idempotent

	select {
	case <-expired:
		t.Fatal("countdown fired after EndTurn")
	case <-time.After(1200 * time.Millisecond):
	}
}

func TestState_StartTurnRestartsCountdown(t *testing.T) {
	s := newTestState(fourPlayers())
	s.StartTurn("a")
	s.StartTurn("b") // cancels the previous countdown, no leak

	snap := s.Snapshot()
	assert.Equal(t, "b", snap.ActivePlayerID)
	assert.Equal(t, TurnSeconds, snap.TurnTimeRemaining)

	s.Cleanup()
}

func TestState_ObserverSingleSubscriber(t *testing.T) {
	s := newTestState(fourPlayers())

	firstCalls, secondCalls := 0, 0
	s.OnChange(func(Snapshot) { firstCalls++ })
	s.OnChange(func(Snapshot) { secondCalls++ }) // last registration wins

	s.SetPhase(PhaseLobby)
	assert.Zero(t, firstCalls)
	assert.Equal(t, 1, secondCalls)
}
