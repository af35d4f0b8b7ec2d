package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	qrcode "github.com/skip2/go-qrcode"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type clientConn struct {
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

func (c *clientConn) Send(b []byte) {
	select {
	case c.send <- b:
	default:
		// slow reader: drop rather than stall the whole room
	}
}

func (c *clientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
		_ = c.ws.Close()
	})
}

// Config holds the relay's runtime knobs.
type Config struct {
	// PublicURL is the externally visible base URL, used for join QR codes.
	PublicURL string
}

// Server owns the room table and the room lifecycle HTTP surface.
type Server struct {
	cfg Config
	log *slog.Logger

	mu    sync.Mutex
	rooms map[string]*Room

	persist RoomPersistence
}

func NewServer(cfg Config, persist RoomPersistence, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		log:     log,
		rooms:   make(map[string]*Room),
		persist: persist,
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/rooms/create", s.handleCreateRoom)
	mux.HandleFunc("/api/rooms/join", s.handleJoinRoom)
	mux.HandleFunc("/api/rooms/", s.handleRoomQR)
	mux.HandleFunc("/ws/", s.handleWS)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	code := newRoomCode()
	hostID := uuid.NewString()
	room := NewRoom(code, hostID)
	s.hookPersist(room)

	s.mu.Lock()
	s.rooms[code] = room
	s.mu.Unlock()

	s.log.Info("room created", "code", code)
	writeJSON(w, http.StatusOK, map[string]string{
		"roomCode": code,
		"playerId": hostID,
	})
}

type joinRoomRequest struct {
	RoomCode string `json:"roomCode"`
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.RoomCode))

	room, ok, err := s.getOrLoad(r.Context(), code)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	playerID := uuid.NewString()
	room.Mint(playerID)

	writeJSON(w, http.StatusOK, map[string]string{
		"playerId": playerID,
		"hostId":   room.HostID(),
	})
}

// handleRoomQR serves GET /api/rooms/{code}/qr as a PNG encoding the join
// URL, so a phone can scan its way into the room.
func (s *Server) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "qr" || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	code := strings.ToUpper(parts[0])

	if _, ok, err := s.getOrLoad(r.Context(), code); err != nil || !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	base := strings.TrimSuffix(s.cfg.PublicURL, "/")
	png, err := qrcode.Encode(base+"/join?code="+code, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "qr encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// handleWS attaches one player socket: /ws/{roomCode}?playerId=...&name=...
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimPrefix(r.URL.Path, "/ws/")
	if code == "" || strings.Contains(code, "/") {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}
	code = strings.ToUpper(code)

	playerID := r.URL.Query().Get("playerId")
	name := r.URL.Query().Get("name")
	if playerID == "" || name == "" {
		http.Error(w, "missing playerId or name", http.StatusBadRequest)
		return
	}

	room, ok, err := s.getOrLoad(r.Context(), code)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	cc := &clientConn{
		ws:   ws,
		send: make(chan []byte, 64),
	}

	if !room.Attach(playerID, name, cc) {
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","data":{"code":"join_rejected"}}`))
		cc.Close()
		return
	}
	s.log.Info("player attached", "room", code, "player", playerID)

	// writer loop
	go func() {
		ticker := time.NewTicker(25 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case msg, ok := <-cc.send:
				if !ok {
					return
				}
				_ = ws.WriteMessage(websocket.TextMessage, msg)
			case <-ticker.C:
				_ = ws.WriteMessage(websocket.PingMessage, []byte{})
			}
		}
	}()

	// reader loop
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.log.Debug("dropping unparseable frame", "room", code, "player", playerID)
			continue
		}
		room.Route(playerID, f)
	}

	// disconnect
	if left := room.Detach(playerID); left == 0 {
		s.dropRoom(code)
	}
	cc.Close()
	s.log.Info("player detached", "room", code, "player", playerID)
}

func (s *Server) hookPersist(room *Room) {
	if s.persist == nil {
		return
	}
	code := room.Code()
	room.onPersist = func(snap RoomSnapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.persist.Save(ctx, code, snap); err != nil {
			s.log.Error("room snapshot save failed", "room", code, "err", err)
		}
	}
}

// getOrLoad checks the in-memory table first and falls back to persisted
// snapshots, so a room survives a relay restart while its players rejoin.
func (s *Server) getOrLoad(ctx context.Context, code string) (*Room, bool, error) {
	s.mu.Lock()
	room, ok := s.rooms[code]
	s.mu.Unlock()
	if ok {
		return room, true, nil
	}

	if s.persist == nil {
		return nil, false, nil
	}
	snap, found, err := s.persist.Load(ctx, code)
	if err != nil || !found {
		return nil, false, err
	}

	room = restoreRoom(snap)
	s.hookPersist(room)

	s.mu.Lock()
	// a concurrent load may have won; keep the first
	if existing, ok := s.rooms[code]; ok {
		room = existing
	} else {
		s.rooms[code] = room
	}
	s.mu.Unlock()

	return room, true, nil
}

func (s *Server) dropRoom(code string) {
	s.mu.Lock()
	delete(s.rooms, code)
	s.mu.Unlock()

	if s.persist != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.persist.Delete(ctx, code); err != nil {
			s.log.Error("room snapshot delete failed", "room", code, "err", err)
		}
	}
	s.log.Info("room closed", "code", code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
