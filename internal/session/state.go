// Package session holds the authoritative in-memory model of one game and
// the controller that drives it over a room relay. Each connected client
// runs its own replica; only the host's controller computes phase-advancing
// decisions, everyone else applies the facts the host broadcasts.
package session

import (
	"sort"
	"sync"
)

// Phase is a stop in the game's lifecycle.
type Phase string

const (
	PhaseJoin          Phase = "join"
	PhaseLobby         Phase = "lobby"
	PhaseRoleReveal    Phase = "role-reveal"
	PhaseGameplay      Phase = "gameplay"
	PhaseClueDisplay   Phase = "clue-display"
	PhaseVoting        Phase = "voting"
	PhaseVotingResults Phase = "voting-results"
	PhaseGameOver      Phase = "game-over"
)

// Winner names the side that took the game.
type Winner string

const (
	WinnerHackers  Winner = "hackers"
	WinnerImpostor Winner = "impostor"
)

const (
	TurnSeconds   = 60
	VotingSeconds = 45
)

type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsHost       bool   `json:"isHost"`
	IsImpostor   bool   `json:"isImpostor,omitempty"`
	HasVoted     bool   `json:"hasVoted,omitempty"`
	VotedFor     string `json:"votedFor,omitempty"`
	IsEliminated bool   `json:"isEliminated,omitempty"`
}

// ChatMessage is immutable once created. ID deduplicates double deliveries
// from the relay; ordering is by arrival, the timestamp is informational.
type ChatMessage struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

type Voter struct {
	VoterID   string `json:"voterId"`
	VoterName string `json:"voterName"`
}

// VotingResult is one candidate's tally for the round.
type VotingResult struct {
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	VoteCount  int     `json:"voteCount"`
	Voters     []Voter `json:"voters"`
}

// Snapshot is a copy of the full aggregate handed to the observer. Slices
// and maps are copies; mutating a snapshot affects nothing.
type Snapshot struct {
	Phase               Phase
	RoomCode            string
	Players             []Player
	LocalPlayerID       string
	HostPlayerID        string
	ActivePlayerID      string
	SecretWord          *Word
	TurnTimeRemaining   int
	VotingTimeRemaining int
	PlayOnHost          bool
	Votes               map[string]string
	Winner              Winner
	ImpostorPlayerID    string
	ChatMessages        []ChatMessage
	CurrentClue         *ChatMessage
	TurnRotationOffset  int
	VotingFrequency     int
	CurrentRound        int
	VotingResults       []VotingResult
	AdminMode           bool
}

// State is the mutable aggregate. All methods are safe for concurrent use.
// None of them return errors: ids that match nothing mutate nothing — the
// controller is the trust boundary, not this type.
type State struct {
	mu sync.Mutex

	phase               Phase
	roomCode            string
	players             []Player
	localPlayerID       string
	hostPlayerID        string
	activePlayerID      string
	secretWord          *Word
	turnTimeRemaining   int
	votingTimeRemaining int
	playOnHost          bool
	votes               map[string]string
	winner              Winner
	impostorPlayerID    string
	chatMessages        []ChatMessage
	currentClue         *ChatMessage
	turnRotationOffset  int
	votingFrequency     int
	currentRound        int
	votingResults       []VotingResult
	adminMode           bool

	// The observer fires on every mutation, while the lock is held: it must
	// render and return, never call back into the session.
	observer func(Snapshot)

	turnTimer countdown
	voteTimer countdown
	turnGen   int64
	voteGen   int64

	// Controller hooks, invoked outside the lock when a countdown expires.
	onTurnExpired   func()
	onVotingExpired func()
}

func NewState() *State {
	return &State{
		phase:             PhaseJoin,
		turnTimeRemaining: TurnSeconds,
		votingFrequency:   1,
		votes:             make(map[string]string),
	}
}

// OnChange registers the single observer. Last registration wins.
func (s *State) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

func (s *State) notifyLocked() {
	if s.observer != nil {
		s.observer(s.snapshotLocked())
	}
}

func (s *State) snapshotLocked() Snapshot {
	votes := make(map[string]string, len(s.votes))
	for k, v := range s.votes {
		votes[k] = v
	}
	var word *Word
	if s.secretWord != nil {
		w := *s.secretWord
		word = &w
	}
	var clue *ChatMessage
	if s.currentClue != nil {
		c := *s.currentClue
		clue = &c
	}
	return Snapshot{
		Phase:               s.phase,
		RoomCode:            s.roomCode,
		Players:             append([]Player(nil), s.players...),
		LocalPlayerID:       s.localPlayerID,
		HostPlayerID:        s.hostPlayerID,
		ActivePlayerID:      s.activePlayerID,
		SecretWord:          word,
		TurnTimeRemaining:   s.turnTimeRemaining,
		VotingTimeRemaining: s.votingTimeRemaining,
		PlayOnHost:          s.playOnHost,
		Votes:               votes,
		Winner:              s.winner,
		ImpostorPlayerID:    s.impostorPlayerID,
		ChatMessages:        append([]ChatMessage(nil), s.chatMessages...),
		CurrentClue:         clue,
		TurnRotationOffset:  s.turnRotationOffset,
		VotingFrequency:     s.votingFrequency,
		CurrentRound:        s.currentRound,
		VotingResults:       append([]VotingResult(nil), s.votingResults...),
		AdminMode:           s.adminMode,
	}
}

// Snapshot returns a copy of the current aggregate.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
	s.notifyLocked()
}

// SetIdentity records the room and local/host player ids after create/join.
func (s *State) SetIdentity(roomCode, localPlayerID, hostPlayerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomCode = roomCode
	s.localPlayerID = localPlayerID
	s.hostPlayerID = hostPlayerID
	s.notifyLocked()
}

func (s *State) SetSettings(playOnHost bool, votingFrequency int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playOnHost = playOnHost
	if votingFrequency >= 1 && votingFrequency <= 3 {
		s.votingFrequency = votingFrequency
	}
	s.notifyLocked()
}

func (s *State) SetAdminMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminMode = on
	s.notifyLocked()
}

func (s *State) SetRotationOffset(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnRotationOffset = n
	s.notifyLocked()
}

// ReplacePlayers swaps the full roster, used when applying a sync snapshot.
func (s *State) ReplacePlayers(players []Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players = append([]Player(nil), players...)
	for _, p := range s.players {
		if p.IsHost {
			s.hostPlayerID = p.ID
		}
	}
	s.notifyLocked()
}

// AddPlayer is a no-op when the id is already present, so duplicate join
// notifications are harmless.
func (s *State) AddPlayer(p Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.players {
		if existing.ID == p.ID {
			return
		}
	}
	s.players = append(s.players, p)
	s.notifyLocked()
}

// RemovePlayer filters the player out. Turn and vote state referring to the
// departed player is the controller's problem.
func (s *State) RemovePlayer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.players[:0]
	for _, p := range s.players {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.players = kept
	s.notifyLocked()
}

// AssignRoles sets the impostor and the secret word. Exactly the matching
// player ends up with IsImpostor; reassignment overwrites cleanly.
func (s *State) AssignRoles(impostorID string, word Word) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.impostorPlayerID = impostorID
	w := word
	s.secretWord = &w
	for i := range s.players {
		s.players[i].IsImpostor = s.players[i].ID == impostorID
	}
	s.notifyLocked()
}

// StartTurn makes playerID active and (re)starts the 60s countdown. A
// previous countdown is always cancelled first; there are no leaked timers.
func (s *State) StartTurn(playerID string) {
	s.mu.Lock()
	s.activePlayerID = playerID
	s.turnTimeRemaining = TurnSeconds
	s.turnGen++
	gen := s.turnGen
	s.notifyLocked()
	s.mu.Unlock()

	s.turnTimer.Start(TurnSeconds,
		func(remaining int) {
			s.mu.Lock()
			if gen != s.turnGen {
				s.mu.Unlock()
				return
			}
			s.turnTimeRemaining = remaining
			s.notifyLocked()
			s.mu.Unlock()
		},
		func() {
			s.mu.Lock()
			if gen != s.turnGen {
				s.mu.Unlock()
				return
			}
			s.turnTimeRemaining = 0
			s.turnGen++ // countdown is spent
			hook := s.onTurnExpired
			s.notifyLocked()
			s.mu.Unlock()

			s.turnTimer.Stop()
			if hook != nil {
				hook()
			}
		},
	)
}

// EndTurn cancels the active turn countdown. Idempotent.
func (s *State) EndTurn() {
	s.mu.Lock()
	s.turnGen++
	s.mu.Unlock()
	s.turnTimer.Stop()
}

// StartVotingRound clears prior ballots and starts the 45s voting countdown.
func (s *State) StartVotingRound() {
	s.mu.Lock()
	s.phase = PhaseVoting
	s.votes = make(map[string]string)
	s.votingResults = nil
	for i := range s.players {
		s.players[i].HasVoted = false
		s.players[i].VotedFor = ""
	}
	s.votingTimeRemaining = VotingSeconds
	s.voteGen++
	gen := s.voteGen
	s.notifyLocked()
	s.mu.Unlock()

	s.voteTimer.Start(VotingSeconds,
		func(remaining int) {
			s.mu.Lock()
			if gen != s.voteGen {
				s.mu.Unlock()
				return
			}
			s.votingTimeRemaining = remaining
			s.notifyLocked()
			s.mu.Unlock()
		},
		func() {
			s.mu.Lock()
			if gen != s.voteGen {
				s.mu.Unlock()
				return
			}
			s.votingTimeRemaining = 0
			s.voteGen++
			hook := s.onVotingExpired
			s.notifyLocked()
			s.mu.Unlock()

			s.voteTimer.Stop()
			if hook != nil {
				hook()
			}
		},
	)
}

// EndVoting cancels the voting countdown. Idempotent.
func (s *State) EndVoting() {
	s.mu.Lock()
	s.voteGen++
	s.mu.Unlock()
	s.voteTimer.Stop()
}

// CastVote records the ballot and marks the voter. Re-voting overwrites the
// previous target. Eligibility is not checked here.
func (s *State) CastVote(voterID, targetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[voterID] = targetID
	for i := range s.players {
		if s.players[i].ID == voterID {
			s.players[i].HasVoted = true
			s.players[i].VotedFor = targetID
		}
	}
	s.notifyLocked()
}

// TallyVotes returns the single candidate with strictly more votes than
// every other, or ok=false on a tie for the maximum. This is the legacy
// single-vote-round primitive; the round-based flow uses TallyVotesFull.
func (s *State) TallyVotes() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for _, target := range s.votes {
		counts[target]++
	}

	max, leader, tie := 0, "", false
	for id, n := range counts {
		switch {
		case n > max:
			max, leader, tie = n, id, false
		case n == max:
			tie = true
		}
	}
	if tie || leader == "" {
		return "", false
	}
	return leader, true
}

// TallyVotesFull builds the per-candidate result set, sorted descending by
// vote count (candidate id breaks ties so the order is stable).
func (s *State) TallyVotesFull() []VotingResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTarget := make(map[string][]Voter)
	for voterID, targetID := range s.votes {
		byTarget[targetID] = append(byTarget[targetID], Voter{
			VoterID:   voterID,
			VoterName: s.playerNameLocked(voterID),
		})
	}

	results := make([]VotingResult, 0, len(byTarget))
	for targetID, voters := range byTarget {
		sort.Slice(voters, func(i, j int) bool { return voters[i].VoterID < voters[j].VoterID })
		results = append(results, VotingResult{
			PlayerID:   targetID,
			PlayerName: s.playerNameLocked(targetID),
			VoteCount:  len(voters),
			Voters:     voters,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].VoteCount != results[j].VoteCount {
			return results[i].VoteCount > results[j].VoteCount
		}
		return results[i].PlayerID < results[j].PlayerID
	})
	return results
}

func (s *State) playerNameLocked(id string) string {
	for _, p := range s.players {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

// SetVotingResults stores the round's tally for display.
func (s *State) SetVotingResults(results []VotingResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votingResults = append([]VotingResult(nil), results...)
	s.notifyLocked()
}

// EliminatePlayer flags the player out of rotation and voting.
func (s *State) EliminatePlayer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.players {
		if s.players[i].ID == id {
			s.players[i].IsEliminated = true
		}
	}
	if s.activePlayerID == id {
		s.activePlayerID = ""
	}
	s.notifyLocked()
}

func (s *State) SetWinner(w Winner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.winner = w
	s.notifyLocked()
}

// AddChatMessage appends unless the id was already seen (the relay can
// double-deliver via the host fan-out).
func (s *State) AddChatMessage(msg ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.chatMessages {
		if m.ID == msg.ID {
			return
		}
	}
	s.chatMessages = append(s.chatMessages, msg)
	s.notifyLocked()
}

// SetCurrentClue retains at most one clue at a time.
func (s *State) SetCurrentClue(clue ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := clue
	s.currentClue = &c
	s.notifyLocked()
}

// AdvanceRound bumps the round counter and reports whether obligatory
// voting is due at this wrap point.
func (s *State) AdvanceRound() (round int, votingDue bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRound++
	s.notifyLocked()
	return s.currentRound, s.currentRound%s.votingFrequency == 0
}

func (s *State) SetRound(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRound = n
	s.notifyLocked()
}

// ResetForNewGame returns to the lobby keeping room identity and surviving
// players. Eliminated players are dropped; the rotation offset increments so
// a different player opens the next game.
func (s *State) ResetForNewGame() {
	s.mu.Lock()
	s.turnGen++
	s.voteGen++
	s.mu.Unlock()
	s.turnTimer.Stop()
	s.voteTimer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.players[:0]
	for _, p := range s.players {
		if p.IsEliminated {
			continue
		}
		p.IsImpostor = false
		p.HasVoted = false
		p.VotedFor = ""
		kept = append(kept, p)
	}
	s.players = kept

	s.phase = PhaseLobby
	s.activePlayerID = ""
	s.secretWord = nil
	s.turnTimeRemaining = TurnSeconds
	s.votingTimeRemaining = 0
	s.votes = make(map[string]string)
	s.winner = ""
	s.impostorPlayerID = ""
	s.chatMessages = nil
	s.currentClue = nil
	s.currentRound = 0
	s.votingResults = nil
	s.turnRotationOffset++

	s.notifyLocked()
}

// Cleanup cancels every live timer. Called exactly once when the session
// ends, from all exit paths.
func (s *State) Cleanup() {
	s.mu.Lock()
	s.turnGen++
	s.voteGen++
	s.mu.Unlock()
	s.turnTimer.Stop()
	s.voteTimer.Stop()
}

// --- read helpers ---

func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *State) LocalPlayerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localPlayerID
}

func (s *State) IsLocalHost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localPlayerID != "" && s.localPlayerID == s.hostPlayerID
}

func (s *State) Player(id string) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// EligiblePlayers returns the players counted in turn rotation and voting:
// non-eliminated, and excluding the host unless playOnHost.
func (snap Snapshot) EligiblePlayers() []Player {
	out := make([]Player, 0, len(snap.Players))
	for _, p := range snap.Players {
		if p.IsEliminated {
			continue
		}
		if p.IsHost && !snap.PlayOnHost {
			continue
		}
		out = append(out, p)
	}
	return out
}
