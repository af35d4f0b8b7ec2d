package session

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/validate"
	"github.com/google/uuid"
)

// Transport is the room-scoped relay the controller speaks through. The
// relay delivers broadcasts to every other room member, in per-sender order;
// there is no ordering guarantee across senders.
type Transport interface {
	Broadcast(env Envelope) error
	SendTo(targetID string, env Envelope) error
	Close() error
}

// MatchReporter receives the outcome of a finished game. Only the host
// reports, and only when admin mode did not suppress scoring.
type MatchReporter interface {
	Report(ctx context.Context, r MatchReport) error
}

type MatchReport struct {
	RoomCode        string             `json:"roomCode"`
	Winner          Winner             `json:"winner"`
	SecretWord      string             `json:"secretWord"`
	Language        string             `json:"language"`
	DurationSeconds int                `json:"durationSeconds"`
	Participants    []MatchParticipant `json:"participants"`
}

type MatchParticipant struct {
	PlayerID    string `json:"playerId"`
	UserID      string `json:"userId,omitempty"`
	Name        string `json:"name"`
	WasImpostor bool   `json:"wasImpostor"`
	Won         bool   `json:"won"`
	Eliminated  bool   `json:"eliminated"`
}

// Fixed phase delays.
const (
	roleRevealDelay  = 5 * time.Second
	clueDisplayDelay = 3 * time.Second
	resultsGrace     = 2 * time.Second
	resumeDelay      = 3 * time.Second
)

// ErrSecretWordLeak is the one validation failure surfaced to the sender;
// everything else is dropped silently.
var ErrSecretWordLeak = errors.New("message contains the secret word")

var errNotHost = errors.New("host-only action")

// Options configures a Controller. Zero values are usable: slog default
// logger, local word lists, no match reporting, English.
type Options struct {
	Log      *slog.Logger
	Words    WordSource
	Reporter MatchReporter
	Language string
	// Effect receives cosmetic broadcast events (noise bombs) that mutate
	// no session state.
	Effect func(MessageType)
	// ResolveUserID maps a room-scoped player id to an account id, when
	// one is known. Unresolved players are reported as guests.
	ResolveUserID func(playerID string) string
}

// Controller consumes relay messages and local user actions and drives the
// session state machine. Host-only responsibilities (turn advancement, vote
// tallying, elimination, win determination) run here only when the local
// player is the host; everyone else applies the facts the host broadcasts.
type Controller struct {
	state    *State
	tr       Transport
	log      *slog.Logger
	words    WordSource
	reporter MatchReporter
	limiter  *validate.Limiter
	lang     string
	effect   func(MessageType)
	resolve  func(playerID string) string

	delays delayer

	mu        sync.Mutex
	wordGen   int64
	gameStart time.Time

	closeOnce sync.Once
}

func NewController(state *State, tr Transport, opts Options) *Controller {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Words == nil {
		opts.Words = NewLocalWords()
	}
	if opts.Language == "" {
		opts.Language = "en"
	}

	c := &Controller{
		state:    state,
		tr:       tr,
		log:      opts.Log,
		words:    opts.Words,
		reporter: opts.Reporter,
		limiter:  validate.NewLimiter(),
		lang:     opts.Language,
		effect:   opts.Effect,
		resolve:  opts.ResolveUserID,
	}

	state.onTurnExpired = c.turnTimedOut
	state.onVotingExpired = c.votingTimedOut
	return c
}

func (c *Controller) broadcast(t MessageType, payload any) {
	env := NewEnvelope(t, c.state.LocalPlayerID(), payload)
	if err := c.tr.Broadcast(env); err != nil {
		c.log.Error("broadcast failed", "type", t, "err", err)
	}
}

func (c *Controller) sendTo(targetID string, t MessageType, payload any) {
	env := NewEnvelope(t, c.state.LocalPlayerID(), payload)
	if err := c.tr.SendTo(targetID, env); err != nil {
		c.log.Error("send failed", "type", t, "to", targetID, "err", err)
	}
}

// --- local user actions ---

// StartGame runs host-side game setup: impostor pick, secret word request,
// role broadcast, then gameplay after the reveal delay. Settings
// (playOnHost, votingFrequency, adminMode) are read from session state.
func (c *Controller) StartGame(ctx context.Context) error {
	if !c.state.IsLocalHost() {
		c.log.Warn("start game rejected: not host")
		return errNotHost
	}

	snap := c.state.Snapshot()
	if snap.Phase != PhaseLobby {
		return errors.New("game can only start from the lobby")
	}

	// A lone admin can never field an eligible set without playing on host.
	if snap.AdminMode && !snap.PlayOnHost && len(snap.Players) <= 2 {
		c.state.SetSettings(true, snap.VotingFrequency)
		snap = c.state.Snapshot()
	}

	eligible := snap.EligiblePlayers()
	minPlayers := 3
	if snap.AdminMode {
		minPlayers = 1
	}
	if len(eligible) < minPlayers {
		return errors.New("not enough players")
	}

	c.mu.Lock()
	c.wordGen++
	gen := c.wordGen
	c.mu.Unlock()

	go func() {
		word, err := c.words.Generate(ctx, c.lang)
		if err != nil {
			// WithFallback never errors; a bare source might.
			local, _ := NewLocalWords().Generate(ctx, c.lang)
			word = local
		}

		c.mu.Lock()
		stale := gen != c.wordGen
		c.mu.Unlock()
		if stale || c.state.Phase() != PhaseLobby {
			c.log.Debug("discarding stale secret word response")
			return
		}
		c.launchGame(word)
	}()
	return nil
}

func (c *Controller) launchGame(word Word) {
	snap := c.state.Snapshot()
	eligible := snap.EligiblePlayers()
	if len(eligible) == 0 {
		return
	}

	impostorID := eligible[randIntn(len(eligible))].ID

	c.mu.Lock()
	c.gameStart = time.Now()
	c.mu.Unlock()

	c.state.AssignRoles(impostorID, word)
	c.state.SetPhase(PhaseRoleReveal)

	c.broadcast(MsgStartGame, StartGamePayload{
		PlayOnHost:      snap.PlayOnHost,
		VotingFrequency: snap.VotingFrequency,
	})
	c.broadcast(MsgRoleAssignment, RoleAssignmentPayload{
		ImpostorID: impostorID,
		SecretWord: word.Word,
		Category:   word.Category,
	})

	c.delays.After(roleRevealDelay, func() {
		if c.state.Phase() == PhaseRoleReveal {
			c.beginGameplay()
		}
	})
}

func (c *Controller) beginGameplay() {
	snap := c.state.Snapshot()
	eligible := snap.EligiblePlayers()
	if len(eligible) == 0 {
		return
	}
	first := eligible[snap.TurnRotationOffset%len(eligible)]

	c.state.SetPhase(PhaseGameplay)
	c.state.StartTurn(first.ID)
	c.broadcast(MsgTurnStart, TurnStartPayload{PlayerID: first.ID, Round: snap.CurrentRound})
}

// EndTurn is the ordinary end-turn button. Only the active player (or the
// host) may end the current turn.
func (c *Controller) EndTurn() {
	snap := c.state.Snapshot()
	if snap.Phase != PhaseGameplay {
		return
	}
	if snap.LocalPlayerID != snap.ActivePlayerID && !c.state.IsLocalHost() {
		c.log.Warn("end turn rejected: not active player")
		return
	}

	c.state.EndTurn()
	c.broadcast(MsgTurnEnd, nil)

	// Peers never compute rotation; the host does, whether the trigger was
	// local or relayed.
	if c.state.IsLocalHost() {
		c.nextTurn(snap.ActivePlayerID)
	}
}

// SubmitClue publishes the active player's hint and moves everyone to the
// clue display. The implicit end-turn fires host-side after the display
// delay.
func (c *Controller) SubmitClue(text string) error {
	snap := c.state.Snapshot()
	if snap.Phase != PhaseGameplay || snap.LocalPlayerID != snap.ActivePlayerID {
		return errors.New("not your turn")
	}

	text = validate.SanitizeClue(text)
	if text == "" {
		return errors.New("empty clue")
	}

	local, _ := c.state.Player(snap.LocalPlayerID)
	if !local.IsImpostor && snap.SecretWord != nil &&
		validate.ContainsSecretWord(text, snap.SecretWord.Word) {
		return ErrSecretWordLeak
	}

	clue := ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   local.ID,
		SenderName: local.Name,
		Text:       text,
		Timestamp:  time.Now().UnixMilli(),
	}

	c.applyClue(clue)
	c.broadcast(MsgClueDisplay, ClueDisplayPayload{Clue: clue})
	return nil
}

func (c *Controller) applyClue(clue ChatMessage) {
	c.state.SetCurrentClue(clue)
	c.state.SetPhase(PhaseClueDisplay)

	if c.state.IsLocalHost() {
		active := c.state.Snapshot().ActivePlayerID
		c.delays.After(clueDisplayDelay, func() {
			c.state.EndTurn()
			c.broadcast(MsgTurnEnd, nil)
			c.nextTurn(active)
		})
	}
}

// SendChat validates, rate-limits and broadcasts a chat message. A message
// leaking the secret word is the only rejection the sender learns about.
func (c *Controller) SendChat(text string) error {
	snap := c.state.Snapshot()
	localID := snap.LocalPlayerID
	if !validate.ValidatePlayerID(localID) {
		return errors.New("no local player")
	}
	if !c.limiter.AllowMessage(localID) {
		c.log.Debug("chat rate limited", "player", localID)
		return nil
	}

	text = validate.SanitizeText(text)
	if text == "" {
		return nil
	}

	local, _ := c.state.Player(localID)
	if !local.IsImpostor && snap.SecretWord != nil &&
		validate.ContainsSecretWord(text, snap.SecretWord.Word) {
		return ErrSecretWordLeak
	}

	msg := ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   local.ID,
		SenderName: local.Name,
		Text:       text,
		Timestamp:  time.Now().UnixMilli(),
	}
	c.state.AddChatMessage(msg)
	c.broadcast(MsgChatMessage, ChatMessagePayload{Message: msg})
	return nil
}

// CastVote records the local ballot and relays it. One ballot per voter;
// re-voting for a different target is rejected.
func (c *Controller) CastVote(targetID string) {
	snap := c.state.Snapshot()
	if snap.Phase != PhaseVoting {
		return
	}
	localID := snap.LocalPlayerID
	if !c.limiter.AllowVote(localID) {
		return
	}
	if !c.voteAllowed(localID, targetID) {
		return
	}

	c.state.CastVote(localID, targetID)
	c.broadcast(MsgVoteCast, VoteCastPayload{VoterID: localID, TargetID: targetID})

	if c.state.IsLocalHost() {
		c.checkAllVoted()
	}
}

func (c *Controller) voteAllowed(voterID, targetID string) bool {
	if !validate.ValidatePlayerID(voterID) || !validate.ValidatePlayerID(targetID) {
		return false
	}
	voter, ok := c.state.Player(voterID)
	if !ok || voter.IsEliminated {
		c.log.Warn("vote rejected: ineligible voter", "voter", voterID)
		return false
	}
	if voter.HasVoted && voter.VotedFor != targetID {
		c.log.Warn("vote rejected: already voted", "voter", voterID)
		return false
	}
	target, ok := c.state.Player(targetID)
	if !ok || target.IsEliminated {
		c.log.Warn("vote rejected: invalid target", "voter", voterID, "target", targetID)
		return false
	}
	return true
}

// NoiseBomb is the impostor's cosmetic disruption: broadcast only, no state.
func (c *Controller) NoiseBomb() {
	local, ok := c.state.Player(c.state.LocalPlayerID())
	if !ok || !local.IsImpostor {
		return
	}
	if p := c.state.Phase(); p != PhaseGameplay && p != PhaseClueDisplay {
		return
	}
	if c.effect != nil {
		c.effect(MsgNoiseBomb)
	}
	c.broadcast(MsgNoiseBomb, nil)
}

// KickPlayer removes a player from the room. Host only.
func (c *Controller) KickPlayer(targetID string) {
	if !c.state.IsLocalHost() {
		c.log.Warn("kick rejected: not host")
		return
	}
	if _, ok := c.state.Player(targetID); !ok {
		return
	}
	c.broadcast(MsgPlayerKicked, PlayerKickedPayload{PlayerID: targetID})
	c.state.RemovePlayer(targetID)
}

// EndGameAdmin tears the whole room down. Host with admin mode only.
func (c *Controller) EndGameAdmin() {
	snap := c.state.Snapshot()
	if !c.state.IsLocalHost() || !snap.AdminMode {
		c.log.Warn("admin end rejected")
		return
	}
	c.broadcast(MsgGameEndedAdmin, nil)
	c.Leave()
}

// PlayAgain returns to the lobby and, on the host, restarts immediately.
// Peers reset when the host's start-game arrives.
func (c *Controller) PlayAgain(ctx context.Context) {
	if c.state.Phase() != PhaseGameOver {
		return
	}
	c.delays.CancelAll()
	c.state.ResetForNewGame()
	if c.state.IsLocalHost() {
		if err := c.StartGame(ctx); err != nil {
			c.log.Warn("restart failed", "err", err)
		}
	}
}

// Leave disconnects the transport and cancels every timer. The session is
// discarded; the presentation layer returns to the join screen.
func (c *Controller) Leave() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.wordGen++ // orphan any in-flight word generation
		c.mu.Unlock()
		c.delays.CancelAll()
		c.state.Cleanup()
		if err := c.tr.Close(); err != nil {
			c.log.Debug("transport close", "err", err)
		}
	})
	c.state.SetPhase(PhaseJoin)
}

// --- relayed messages ---

// HandleEnvelope routes one relay envelope. Malformed and unauthorized
// envelopes are dropped with a log; nothing here panics the session.
func (c *Controller) HandleEnvelope(env Envelope) {
	msg, err := Decode(env)
	if err != nil {
		c.log.Warn("dropping bad envelope", "err", err)
		return
	}
	if msg.SenderID == c.state.LocalPlayerID() {
		return // relay echo
	}

	switch msg.Type {
	case MsgPlayerJoin:
		c.handlePlayerJoin(msg)
	case MsgPlayerLeave:
		c.handlePlayerLeave(msg)
	case MsgSyncState:
		c.hostOnly(msg, func() { c.handleSyncState(*msg.SyncState) })
	case MsgStartGame:
		c.hostOnly(msg, func() { c.handleStartGame(*msg.StartGame) })
	case MsgRoleAssignment:
		c.hostOnly(msg, func() { c.handleRoleAssignment(*msg.RoleAssignment) })
	case MsgTurnStart:
		c.hostOnly(msg, func() { c.handleTurnStart(*msg.TurnStart) })
	case MsgTurnEnd:
		c.handleTurnEnd(msg.SenderID)
	case MsgClueDisplay:
		c.handleClueDisplay(msg.SenderID, msg.ClueDisplay.Clue)
	case MsgVoteCast:
		c.handleVoteCast(msg.SenderID, *msg.VoteCast)
	case MsgVotingStart:
		c.hostOnly(msg, func() { c.handleVotingStart(*msg.VotingStart) })
	case MsgVotingResults:
		c.hostOnly(msg, func() { c.handleVotingResults(*msg.VotingResults) })
	case MsgPlayerEliminated:
		c.hostOnly(msg, func() { c.state.EliminatePlayer(msg.PlayerEliminated.PlayerID) })
	case MsgGameOver:
		c.hostOnly(msg, func() { c.handleGameOver(*msg.GameOver) })
	case MsgNoiseBomb:
		if c.effect != nil {
			c.effect(MsgNoiseBomb)
		}
	case MsgChatMessage:
		c.handleChatMessage(msg.SenderID, msg.ChatMessage.Message)
	case MsgPlayerKicked:
		c.hostOnly(msg, func() { c.handlePlayerKicked(*msg.PlayerKicked) })
	case MsgGameEndedAdmin:
		c.hostOnly(msg, func() { c.Leave() })
	}
}

// hostOnly applies fn only when the sender is the authoritative host.
func (c *Controller) hostOnly(msg Message, fn func()) {
	snap := c.state.Snapshot()
	if msg.SenderID != snap.HostPlayerID {
		c.log.Warn("rejecting host-only message from peer",
			"type", msg.Type, "sender", msg.SenderID)
		return
	}
	fn()
}

func (c *Controller) handlePlayerJoin(msg Message) {
	p := msg.PlayerJoin
	if !validate.ValidatePlayerID(p.PlayerID) {
		return
	}
	c.state.AddPlayer(Player{
		ID:     p.PlayerID,
		Name:   validate.SanitizePlayerName(p.PlayerName),
		IsHost: p.IsHost,
	})

	// The host answers every join with a targeted snapshot so late joiners
	// see the roster, chat history and settings.
	if c.state.IsLocalHost() {
		snap := c.state.Snapshot()
		c.sendTo(p.PlayerID, MsgSyncState, SyncStatePayload{
			Players:         snap.Players,
			ChatMessages:    snap.ChatMessages,
			PlayOnHost:      snap.PlayOnHost,
			VotingFrequency: snap.VotingFrequency,
			RotationOffset:  snap.TurnRotationOffset,
		})
	}
}

func (c *Controller) handlePlayerLeave(msg Message) {
	departed := msg.PlayerLeave.PlayerID
	snap := c.state.Snapshot()

	c.state.RemovePlayer(departed)

	// No re-election: losing the host is fatal for the session.
	if departed == snap.HostPlayerID && departed != snap.LocalPlayerID {
		c.log.Error("host left, aborting session")
		c.Leave()
		return
	}

	if !c.state.IsLocalHost() {
		return
	}
	switch snap.Phase {
	case PhaseGameplay, PhaseClueDisplay:
		if departed == snap.ActivePlayerID {
			c.state.EndTurn()
			c.broadcast(MsgTurnEnd, nil)
			c.nextTurn(departed)
		}
	case PhaseVoting:
		// the departed player may have been the last holdout
		c.checkAllVoted()
	}
}

func (c *Controller) handleSyncState(p SyncStatePayload) {
	players := make([]Player, 0, len(p.Players))
	seenLocal := false
	for _, pl := range p.Players {
		pl.Name = validate.SanitizePlayerName(pl.Name)
		if pl.ID == c.state.LocalPlayerID() {
			seenLocal = true
		}
		players = append(players, pl)
	}
	if !seenLocal {
		if local, ok := c.state.Player(c.state.LocalPlayerID()); ok {
			players = append(players, local)
		}
	}

	c.state.ReplacePlayers(players)
	c.state.SetSettings(p.PlayOnHost, p.VotingFrequency)
	c.state.SetRotationOffset(p.RotationOffset)
	for _, m := range p.ChatMessages {
		c.state.AddChatMessage(m)
	}
}

func (c *Controller) handleStartGame(p StartGamePayload) {
	if c.state.Phase() == PhaseGameOver {
		c.state.ResetForNewGame()
	}
	c.state.SetSettings(p.PlayOnHost, p.VotingFrequency)
	c.state.SetPhase(PhaseRoleReveal)
}

func (c *Controller) handleRoleAssignment(p RoleAssignmentPayload) {
	c.state.AssignRoles(p.ImpostorID, Word{Word: p.SecretWord, Category: p.Category})
	c.delays.After(roleRevealDelay, func() {
		if c.state.Phase() == PhaseRoleReveal {
			c.state.SetPhase(PhaseGameplay)
		}
	})
}

func (c *Controller) handleTurnStart(p TurnStartPayload) {
	c.state.SetRound(p.Round)
	c.state.SetPhase(PhaseGameplay)
	c.state.StartTurn(p.PlayerID)
}

func (c *Controller) handleTurnEnd(senderID string) {
	snap := c.state.Snapshot()
	if snap.Phase != PhaseGameplay && snap.Phase != PhaseClueDisplay {
		return
	}
	if senderID != snap.ActivePlayerID && senderID != snap.HostPlayerID {
		c.log.Warn("turn-end rejected: sender not active player", "sender", senderID)
		return
	}

	c.state.EndTurn()
	if c.state.IsLocalHost() {
		c.nextTurn(snap.ActivePlayerID)
	}
}

func (c *Controller) handleClueDisplay(senderID string, clue ChatMessage) {
	snap := c.state.Snapshot()
	if snap.Phase != PhaseGameplay || senderID != snap.ActivePlayerID || clue.SenderID != senderID {
		c.log.Warn("clue rejected", "sender", senderID)
		return
	}

	clue.Text = validate.SanitizeClue(clue.Text)
	sender, _ := c.state.Player(senderID)
	if !sender.IsImpostor && snap.SecretWord != nil &&
		validate.ContainsSecretWord(clue.Text, snap.SecretWord.Word) {
		c.log.Warn("clue dropped: secret word leak", "sender", senderID)
		return
	}

	c.applyClue(clue)
}

func (c *Controller) handleVoteCast(senderID string, p VoteCastPayload) {
	if c.state.Phase() != PhaseVoting {
		return
	}
	if senderID != p.VoterID {
		c.log.Warn("vote rejected: sender/voter mismatch", "sender", senderID)
		return
	}
	if !c.voteAllowed(p.VoterID, p.TargetID) {
		return
	}

	c.state.CastVote(p.VoterID, p.TargetID)
	if c.state.IsLocalHost() {
		c.checkAllVoted()
	}
}

func (c *Controller) handleVotingStart(p VotingStartPayload) {
	c.state.EndTurn()
	c.state.SetRound(p.Round)
	c.state.StartVotingRound()
}

func (c *Controller) handleVotingResults(p VotingResultsPayload) {
	c.state.EndVoting()
	c.state.SetVotingResults(p.Results)
	c.state.SetPhase(PhaseVotingResults)
}

func (c *Controller) handleGameOver(p GameOverPayload) {
	c.state.EndTurn()
	c.state.EndVoting()
	c.delays.CancelAll()
	c.state.SetWinner(p.Winner)
	c.state.SetPhase(PhaseGameOver)
}

func (c *Controller) handleChatMessage(senderID string, msg ChatMessage) {
	if msg.SenderID != senderID || !validate.ValidatePlayerID(senderID) {
		return
	}
	if !c.limiter.AllowMessage(senderID) {
		c.log.Debug("chat rate limited", "player", senderID)
		return
	}

	msg.Text = validate.SanitizeText(msg.Text)
	if msg.Text == "" {
		return
	}

	snap := c.state.Snapshot()
	sender, _ := c.state.Player(senderID)
	if !sender.IsImpostor && snap.SecretWord != nil &&
		validate.ContainsSecretWord(msg.Text, snap.SecretWord.Word) {
		c.log.Warn("chat dropped: secret word leak", "sender", senderID)
		return
	}

	c.state.AddChatMessage(msg)
}

func (c *Controller) handlePlayerKicked(p PlayerKickedPayload) {
	if p.PlayerID == c.state.LocalPlayerID() {
		c.Leave()
		return
	}
	c.state.RemovePlayer(p.PlayerID)
}

// --- host decisions ---

// nextTurn advances the rotation. expectedActive guards against the
// double-drive of timeout plus relayed end-turn: once the pointer moved,
// a stale drive matches nothing and no-ops.
func (c *Controller) nextTurn(expectedActive string) {
	snap := c.state.Snapshot()
	if snap.Phase != PhaseGameplay && snap.Phase != PhaseClueDisplay {
		return
	}

	eligible := snap.EligiblePlayers()
	if len(eligible) == 0 {
		return
	}

	idx := -1
	for i, p := range eligible {
		if p.ID == snap.ActivePlayerID {
			idx = i
		}
	}
	if idx >= 0 && expectedActive != "" && snap.ActivePlayerID != expectedActive {
		return // already advanced
	}

	next := 0
	if idx >= 0 {
		next = (idx + 1) % len(eligible)
	}

	if idx >= 0 && next == 0 {
		// rotation wrapped: one full round completed
		if _, votingDue := c.state.AdvanceRound(); votingDue {
			c.startVoting()
			return
		}
	}

	c.startTurnFor(eligible[next].ID)
}

func (c *Controller) startTurnFor(playerID string) {
	round := c.state.Snapshot().CurrentRound
	c.state.SetPhase(PhaseGameplay)
	c.state.StartTurn(playerID)
	c.broadcast(MsgTurnStart, TurnStartPayload{PlayerID: playerID, Round: round})
}

func (c *Controller) startVoting() {
	c.state.EndTurn()
	round := c.state.Snapshot().CurrentRound
	c.state.StartVotingRound()
	c.broadcast(MsgVotingStart, VotingStartPayload{Round: round})
}

// turnTimedOut fires when the 60s countdown hits zero. The countdown and
// the end-turn button converge on the same path; rotation is computed once,
// by the host.
func (c *Controller) turnTimedOut() {
	if !c.state.IsLocalHost() {
		return
	}
	snap := c.state.Snapshot()
	c.broadcast(MsgTurnEnd, nil)
	c.nextTurn(snap.ActivePlayerID)
}

// votingTimedOut force-tallies whatever ballots arrived in 45 seconds.
// Non-voters abstain.
func (c *Controller) votingTimedOut() {
	if !c.state.IsLocalHost() {
		return
	}
	c.tallyAndShowResults()
}

func (c *Controller) checkAllVoted() {
	snap := c.state.Snapshot()
	if snap.Phase != PhaseVoting {
		return
	}
	for _, p := range snap.EligiblePlayers() {
		if !p.HasVoted {
			return
		}
	}
	c.delays.After(resultsGrace, c.tallyAndShowResults)
}

func (c *Controller) tallyAndShowResults() {
	if c.state.Phase() != PhaseVoting {
		return // already tallied via the other trigger
	}
	c.state.EndVoting()

	results := c.state.TallyVotesFull()
	c.state.SetVotingResults(results)
	c.state.SetPhase(PhaseVotingResults)
	c.broadcast(MsgVotingResults, VotingResultsPayload{Results: results})

	c.delays.After(resumeDelay, func() { c.resolveResults(results) })
}

func (c *Controller) resolveResults(results []VotingResult) {
	// No votes at all, or a tie for the top count: nobody is eliminated.
	if len(results) == 0 ||
		(len(results) > 1 && results[0].VoteCount == results[1].VoteCount) {
		c.resumeGameplay()
		return
	}

	eliminated := results[0].PlayerID
	c.broadcast(MsgPlayerEliminated, PlayerEliminatedPayload{PlayerID: eliminated})
	c.state.EliminatePlayer(eliminated)

	snap := c.state.Snapshot()
	if eliminated == snap.ImpostorPlayerID {
		c.finishGame(WinnerHackers)
		return
	}

	// count over eligible players: a non-playing host never keeps the
	// impostor's game alive
	remaining := 0
	for _, p := range snap.EligiblePlayers() {
		if p.ID == snap.ImpostorPlayerID {
			continue
		}
		remaining++
	}
	if remaining <= 1 {
		c.finishGame(WinnerImpostor)
		return
	}

	c.resumeGameplay()
}

func (c *Controller) resumeGameplay() {
	eligible := c.state.Snapshot().EligiblePlayers()
	if len(eligible) == 0 {
		return
	}
	c.startTurnFor(eligible[0].ID)
}

func (c *Controller) finishGame(w Winner) {
	c.state.EndTurn()
	c.state.EndVoting()
	c.delays.CancelAll()
	c.state.SetWinner(w)
	c.state.SetPhase(PhaseGameOver)
	c.broadcast(MsgGameOver, GameOverPayload{Winner: w})
	c.reportMatch(w)
}

// impostor pick; uniform among eligible players
func randIntn(n int) int {
	return rand.Intn(n)
}

func (c *Controller) reportMatch(w Winner) {
	snap := c.state.Snapshot()
	if c.reporter == nil || snap.AdminMode {
		return
	}

	c.mu.Lock()
	duration := int(time.Since(c.gameStart).Seconds())
	c.mu.Unlock()

	var secret string
	if snap.SecretWord != nil {
		secret = snap.SecretWord.Word
	}
	report := MatchReport{
		RoomCode:        snap.RoomCode,
		Winner:          w,
		SecretWord:      secret,
		Language:        c.lang,
		DurationSeconds: duration,
	}
	for _, p := range snap.Players {
		won := (w == WinnerImpostor) == p.IsImpostor
		var userID string
		if c.resolve != nil {
			userID = c.resolve(p.ID)
		}
		report.Participants = append(report.Participants, MatchParticipant{
			PlayerID:    p.ID,
			UserID:      userID,
			Name:        p.Name,
			WasImpostor: p.IsImpostor,
			Won:         won,
			Eliminated:  p.IsEliminated,
		})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.reporter.Report(ctx, report); err != nil {
			c.log.Error("match report failed", "err", err)
		}
	}()
}
