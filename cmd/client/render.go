package main

import (
	"fmt"
	"sync"

	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/session"
)

// renderer prints state transitions as they happen. It is driven from the
// session observer, which runs under the session lock: print and return,
// never call back into the session.
type renderer struct {
	localID string

	mu        sync.Mutex
	lastPhase session.Phase
	lastChat  int
	lastTurn  string
	lastCount int
}

func newRenderer(localID string) *renderer {
	return &renderer{localID: localID}
}

func (r *renderer) render(snap session.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(snap.Players) != r.lastCount {
		r.lastCount = len(snap.Players)
		fmt.Printf("players (%d):", r.lastCount)
		for _, p := range snap.Players {
			fmt.Printf(" %s", p.Name)
		}
		fmt.Println()
	}

	for i := r.lastChat; i < len(snap.ChatMessages); i++ {
		m := snap.ChatMessages[i]
		fmt.Printf("[%s] %s\n", m.SenderName, m.Text)
	}
	r.lastChat = len(snap.ChatMessages)

	if snap.ActivePlayerID != r.lastTurn && snap.Phase == session.PhaseGameplay {
		r.lastTurn = snap.ActivePlayerID
		if p, ok := playerByID(snap, snap.ActivePlayerID); ok {
			if p.ID == r.localID {
				fmt.Println(">>> your turn: give a clue with /clue <text>")
			} else {
				fmt.Printf(">>> %s's turn\n", p.Name)
			}
		}
	}

	if snap.Phase == r.lastPhase {
		return
	}
	r.lastPhase = snap.Phase

	switch snap.Phase {
	case session.PhaseRoleReveal:
		local, _ := playerByID(snap, r.localID)
		if local.IsImpostor {
			fmt.Println("=== you are the IMPOSTOR. Blend in. ===")
		} else if snap.SecretWord != nil {
			fmt.Printf("=== secret word: %s (%s) ===\n", snap.SecretWord.Word, snap.SecretWord.Category)
		}
	case session.PhaseClueDisplay:
		if snap.CurrentClue != nil {
			fmt.Printf("=== clue from %s: %s ===\n", snap.CurrentClue.SenderName, snap.CurrentClue.Text)
		}
	case session.PhaseVoting:
		fmt.Println("=== voting: /vote <name> ===")
	case session.PhaseVotingResults:
		for _, res := range snap.VotingResults {
			fmt.Printf("  %s: %d votes\n", res.PlayerName, res.VoteCount)
		}
	case session.PhaseGameOver:
		fmt.Printf("=== game over: %s win ===\n", snap.Winner)
		if p, ok := playerByID(snap, snap.ImpostorPlayerID); ok {
			fmt.Printf("    the impostor was %s\n", p.Name)
		}
		fmt.Println("    /again to play another round")
	}
}

func playerByID(snap session.Snapshot, id string) (session.Player, bool) {
	for _, p := range snap.Players {
		if p.ID == id {
			return p, true
		}
	}
	return session.Player{}, false
}
