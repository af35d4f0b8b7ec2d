// Package relay is the room-scoped fan-out channel the game runs over.
// Every message a member sends is delivered to all other members of the
// room, in per-sender order; the relay itself never interprets game
// payloads beyond the routing hint.
package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/session"
)

// frame is the wire format between a client and the relay: the game
// envelope plus an optional routing hint for targeted delivery (the host's
// sync snapshot to a single late joiner).
type frame struct {
	To string `json:"to,omitempty"`
	session.Envelope
}

type member struct {
	id   string
	name string
	conn *clientConn
}

// Room is one isolated relay channel. The member map is touched only under
// the room's own lock, from its connect/message/disconnect handlers.
type Room struct {
	mu sync.Mutex

	code      string
	hostID    string
	createdAt time.Time

	// ids minted by the create/join HTTP handshake; a socket may only
	// attach with one of these
	minted  map[string]bool
	members map[string]*member

	onPersist func(RoomSnapshot)
}

func NewRoom(code, hostID string) *Room {
	r := &Room{
		code:      code,
		hostID:    hostID,
		createdAt: time.Now(),
		minted:    map[string]bool{hostID: true},
		members:   make(map[string]*member),
	}
	return r
}

func (r *Room) Code() string { return r.code }

func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// Mint registers a player id issued by the join handshake.
func (r *Room) Mint(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minted[playerID] = true
	r.persistLocked()
}

// Attach connects an already-minted player. Returns false for unknown ids
// and for ids that are already connected.
func (r *Room) Attach(playerID, name string, cc *clientConn) bool {
	r.mu.Lock()

	if !r.minted[playerID] {
		r.mu.Unlock()
		return false
	}
	if _, connected := r.members[playerID]; connected {
		r.mu.Unlock()
		return false
	}
	r.members[playerID] = &member{id: playerID, name: name, conn: cc}
	r.persistLocked()
	r.mu.Unlock()

	r.broadcastFrom(playerID, session.NewEnvelope(session.MsgPlayerJoin, playerID, session.PlayerJoinPayload{
		PlayerID:   playerID,
		PlayerName: name,
		IsHost:     playerID == r.HostID(),
	}))
	return true
}

// Detach disconnects a member and notifies the rest of the room. Returns
// the number of members still connected.
func (r *Room) Detach(playerID string) int {
	r.mu.Lock()
	m, ok := r.members[playerID]
	if ok {
		delete(r.members, playerID)
	}
	left := len(r.members)
	r.persistLocked()
	r.mu.Unlock()

	if ok {
		m.conn.Close()
		r.broadcastFrom(playerID, session.NewEnvelope(session.MsgPlayerLeave, playerID, session.PlayerLeavePayload{
			PlayerID: playerID,
		}))
	}
	return left
}

// Route delivers one inbound frame: targeted when the hint is set,
// otherwise fanned out to everyone except the sender. The sender id is
// always stamped server-side; clients cannot speak as each other.
func (r *Room) Route(senderID string, f frame) {
	f.SenderID = senderID
	if f.Timestamp == 0 {
		f.Timestamp = time.Now().UnixMilli()
	}

	if f.To != "" {
		r.sendTo(f.To, f.Envelope)
		return
	}
	r.broadcastFrom(senderID, f.Envelope)
}

func (r *Room) broadcastFrom(senderID string, env session.Envelope) {
	b, _ := json.Marshal(env)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.members {
		if id == senderID {
			continue
		}
		m.conn.Send(b)
	}
}

func (r *Room) sendTo(targetID string, env session.Envelope) {
	b, _ := json.Marshal(env)

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[targetID]; ok {
		m.conn.Send(b)
	}
}

// RoomSnapshot is the serializable slice of a room that survives a relay
// restart: identity and minted ids. Live sockets obviously do not.
type RoomSnapshot struct {
	Code      string   `json:"code"`
	HostID    string   `json:"hostId"`
	Minted    []string `json:"minted"`
	CreatedAt int64    `json:"createdAt"`
}

func (r *Room) snapshotLocked() RoomSnapshot {
	minted := make([]string, 0, len(r.minted))
	for id := range r.minted {
		minted = append(minted, id)
	}
	return RoomSnapshot{
		Code:      r.code,
		HostID:    r.hostID,
		Minted:    minted,
		CreatedAt: r.createdAt.UnixMilli(),
	}
}

func (r *Room) persistLocked() {
	if r.onPersist != nil {
		r.onPersist(r.snapshotLocked())
	}
}

func restoreRoom(snap RoomSnapshot) *Room {
	r := NewRoom(snap.Code, snap.HostID)
	for _, id := range snap.Minted {
		r.minted[id] = true
	}
	if snap.CreatedAt > 0 {
		r.createdAt = time.UnixMilli(snap.CreatedAt)
	}
	return r
}
