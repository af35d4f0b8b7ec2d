package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType enumerates every envelope the controller routes.
type MessageType string

const (
	MsgPlayerJoin       MessageType = "player-join"
	MsgPlayerLeave      MessageType = "player-leave"
	MsgSyncState        MessageType = "sync-state"
	MsgStartGame        MessageType = "start-game"
	MsgRoleAssignment   MessageType = "role-assignment"
	MsgTurnStart        MessageType = "turn-start"
	MsgTurnEnd          MessageType = "turn-end"
	MsgClueDisplay      MessageType = "clue-display"
	MsgVoteCast         MessageType = "vote-cast"
	MsgVotingStart      MessageType = "voting-start"
	MsgVotingResults    MessageType = "voting-results"
	MsgPlayerEliminated MessageType = "player-eliminated"
	MsgGameOver         MessageType = "game-over"
	MsgNoiseBomb        MessageType = "noise-bomb"
	MsgChatMessage      MessageType = "chat-message"
	MsgPlayerKicked     MessageType = "player-kicked"
	MsgGameEndedAdmin   MessageType = "game-ended-admin"
)

// Envelope is the relay wire format: {"type":"...","data":{...},"senderId":"...","timestamp":...}.
// Timestamp is unix milliseconds at send time.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	SenderID  string          `json:"senderId"`
	Timestamp int64           `json:"timestamp"`
}

// Typed payloads, one struct per message type. Messages with no payload
// (turn-end, noise-bomb) carry an empty object.

type PlayerJoinPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	IsHost     bool   `json:"isHost"`
}

type PlayerLeavePayload struct {
	PlayerID string `json:"playerId"`
}

type SyncStatePayload struct {
	Players         []Player      `json:"players"`
	ChatMessages    []ChatMessage `json:"chatMessages"`
	PlayOnHost      bool          `json:"playOnHost"`
	VotingFrequency int           `json:"votingFrequency"`
	RotationOffset  int           `json:"turnRotationOffset"`
}

type StartGamePayload struct {
	PlayOnHost      bool `json:"playOnHost"`
	VotingFrequency int  `json:"votingFrequency"`
}

type RoleAssignmentPayload struct {
	ImpostorID string `json:"impostorId"`
	SecretWord string `json:"secretWord"`
	Category   string `json:"category"`
}

type TurnStartPayload struct {
	PlayerID string `json:"playerId"`
	Round    int    `json:"round"`
}

type ClueDisplayPayload struct {
	Clue ChatMessage `json:"clue"`
}

type VoteCastPayload struct {
	VoterID  string `json:"voterId"`
	TargetID string `json:"targetId"`
}

type VotingStartPayload struct {
	Round int `json:"round"`
}

type VotingResultsPayload struct {
	Results []VotingResult `json:"results"`
}

type PlayerEliminatedPayload struct {
	PlayerID string `json:"playerId"`
}

type GameOverPayload struct {
	Winner Winner `json:"winner"`
}

type ChatMessagePayload struct {
	Message ChatMessage `json:"message"`
}

type PlayerKickedPayload struct {
	PlayerID string `json:"playerId"`
}

// Message is the decoded form of an envelope: exactly one payload field is
// populated, matching Type.
type Message struct {
	Type      MessageType
	SenderID  string
	Timestamp int64

	PlayerJoin       *PlayerJoinPayload
	PlayerLeave      *PlayerLeavePayload
	SyncState        *SyncStatePayload
	StartGame        *StartGamePayload
	RoleAssignment   *RoleAssignmentPayload
	TurnStart        *TurnStartPayload
	ClueDisplay      *ClueDisplayPayload
	VoteCast         *VoteCastPayload
	VotingStart      *VotingStartPayload
	VotingResults    *VotingResultsPayload
	PlayerEliminated *PlayerEliminatedPayload
	GameOver         *GameOverPayload
	ChatMessage      *ChatMessagePayload
	PlayerKicked     *PlayerKickedPayload
}

// Decode parses the envelope payload into its typed form. Unknown types and
// malformed payloads are errors; the controller drops such envelopes.
func Decode(env Envelope) (Message, error) {
	msg := Message{
		Type:      env.Type,
		SenderID:  env.SenderID,
		Timestamp: env.Timestamp,
	}

	var dst any
	switch env.Type {
	case MsgPlayerJoin:
		msg.PlayerJoin = &PlayerJoinPayload{}
		dst = msg.PlayerJoin
	case MsgPlayerLeave:
		msg.PlayerLeave = &PlayerLeavePayload{}
		dst = msg.PlayerLeave
	case MsgSyncState:
		msg.SyncState = &SyncStatePayload{}
		dst = msg.SyncState
	case MsgStartGame:
		msg.StartGame = &StartGamePayload{}
		dst = msg.StartGame
	case MsgRoleAssignment:
		msg.RoleAssignment = &RoleAssignmentPayload{}
		dst = msg.RoleAssignment
	case MsgTurnStart:
		msg.TurnStart = &TurnStartPayload{}
		dst = msg.TurnStart
	case MsgClueDisplay:
		msg.ClueDisplay = &ClueDisplayPayload{}
		dst = msg.ClueDisplay
	case MsgVoteCast:
		msg.VoteCast = &VoteCastPayload{}
		dst = msg.VoteCast
	case MsgVotingStart:
		msg.VotingStart = &VotingStartPayload{}
		dst = msg.VotingStart
	case MsgVotingResults:
		msg.VotingResults = &VotingResultsPayload{}
		dst = msg.VotingResults
	case MsgPlayerEliminated:
		msg.PlayerEliminated = &PlayerEliminatedPayload{}
		dst = msg.PlayerEliminated
	case MsgGameOver:
		msg.GameOver = &GameOverPayload{}
		dst = msg.GameOver
	case MsgChatMessage:
		msg.ChatMessage = &ChatMessagePayload{}
		dst = msg.ChatMessage
	case MsgPlayerKicked:
		msg.PlayerKicked = &PlayerKickedPayload{}
		dst = msg.PlayerKicked
	case MsgTurnEnd, MsgNoiseBomb, MsgGameEndedAdmin:
		return msg, nil
	default:
		return Message{}, fmt.Errorf("unknown message type %q", env.Type)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			return Message{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	return msg, nil
}

// NewEnvelope marshals a typed payload into a wire envelope. A nil payload
// produces an empty data object.
func NewEnvelope(t MessageType, senderID string, payload any) Envelope {
	data := json.RawMessage(`{}`)
	if payload != nil {
		b, _ := json.Marshal(payload)
		data = b
	}
	return Envelope{
		Type:      t,
		Data:      data,
		SenderID:  senderID,
		Timestamp: time.Now().UnixMilli(),
	}
}
