package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/relay"
	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/session"
	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/validate"
)

func runSession(ctx context.Context, cfg *Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := newLogger(cfg.verbose)

	var userID string
	if cfg.email != "" {
		id, err := login(ctx, cfg.server, cfg.email, cfg.password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		userID = id
		log.Info("logged in", "user", userID)
	}

	client := relay.NewClient(cfg.server)

	var roomCode, playerID, hostID string
	if cfg.room == "" {
		created, err := client.CreateRoom(ctx)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		roomCode, playerID, hostID = created.RoomCode, created.PlayerID, created.PlayerID
		fmt.Printf("room created: %s\n", roomCode)
	} else {
		joined, err := client.JoinRoom(ctx, cfg.room)
		if err != nil {
			return fmt.Errorf("join room: %w", err)
		}
		roomCode, playerID, hostID = strings.ToUpper(cfg.room), joined.PlayerID, joined.HostID
		fmt.Printf("joined room: %s\n", roomCode)
	}
	isHost := playerID == hostID

	state := session.NewState()
	state.SetIdentity(roomCode, playerID, hostID)
	self := localPlayer(playerID, cfg.name, isHost)
	name := self.Name
	state.AddPlayer(self)
	if isHost {
		state.SetSettings(cfg.playOnHost, cfg.votingFrequency)
		state.SetAdminMode(cfg.admin)
	}

	var words session.WordSource
	if cfg.wordService != "" {
		words = session.WithFallback(&session.HTTPWords{BaseURL: cfg.wordService})
	}

	ctrl := session.NewController(state, client, session.Options{
		Log:      log,
		Words:    words,
		Reporter: newHTTPReporter(cfg.server),
		Language: cfg.language,
		Effect: func(t session.MessageType) {
			if t == session.MsgNoiseBomb {
				fmt.Println("*** NOISE BOMB ***")
			}
		},
		ResolveUserID: func(id string) string {
			if id == playerID {
				return userID
			}
			return ""
		},
	})

	r := newRenderer(playerID)
	state.OnChange(r.render)

	client.OnEnvelope = ctrl.HandleEnvelope
	client.OnDisconnect = func(err error) {
		if err != nil {
			log.Debug("relay connection closed", "err", err)
		}
		cancel()
	}

	if err := client.Dial(ctx, roomCode, playerID, name); err != nil {
		return err
	}
	defer ctrl.Leave()

	go readCommands(ctx, cancel, ctrl, state)

	<-ctx.Done()
	fmt.Println("disconnected")
	return nil
}

func readCommands(ctx context.Context, cancel context.CancelFunc, ctrl *session.Controller, state *session.State) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if err := ctrl.SendChat(line); err != nil {
				fmt.Printf("chat rejected: %v\n", err)
			}
			continue
		}

		cmd, arg, _ := strings.Cut(line[1:], " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "start":
			if err := ctrl.StartGame(ctx); err != nil {
				fmt.Printf("cannot start: %v\n", err)
			}
		case "clue":
			if err := ctrl.SubmitClue(arg); err != nil {
				fmt.Printf("clue rejected: %v\n", err)
			}
		case "vote":
			target, ok := findPlayer(state.Snapshot(), arg)
			if !ok {
				fmt.Printf("no such player: %s\n", arg)
				continue
			}
			ctrl.CastVote(target)
		case "end":
			ctrl.EndTurn()
		case "bomb":
			ctrl.NoiseBomb()
		case "kick":
			target, ok := findPlayer(state.Snapshot(), arg)
			if !ok {
				fmt.Printf("no such player: %s\n", arg)
				continue
			}
			ctrl.KickPlayer(target)
		case "again":
			ctrl.PlayAgain(ctx)
		case "endgame":
			ctrl.EndGameAdmin()
		case "players":
			printPlayers(state.Snapshot())
		case "quit":
			cancel()
			return
		default:
			fmt.Println("commands: /start /clue <text> /vote <name> /end /bomb /kick <name> /again /endgame /players /quit")
		}
	}
	cancel()
}

// localPlayer builds the roster entry for this client. The name goes through
// the same sanitizer peers apply on receipt, so the local roster never
// disagrees with the replicated one.
func localPlayer(id, rawName string, isHost bool) session.Player {
	return session.Player{ID: id, Name: validate.SanitizePlayerName(rawName), IsHost: isHost}
}

// findPlayer resolves a name or id prefix to a player id.
func findPlayer(snap session.Snapshot, arg string) (string, bool) {
	if arg == "" {
		return "", false
	}
	upper := strings.ToUpper(arg)
	for _, p := range snap.Players {
		if p.Name == upper || strings.HasPrefix(p.ID, arg) {
			return p.ID, true
		}
	}
	return "", false
}

func printPlayers(snap session.Snapshot) {
	for _, p := range snap.Players {
		tags := ""
		if p.IsHost {
			tags += " [host]"
		}
		if p.IsEliminated {
			tags += " [eliminated]"
		}
		if p.ID == snap.ActivePlayerID {
			tags += " [active]"
		}
		fmt.Printf("  %s%s\n", p.Name, tags)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
