package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/session"
)

// Client is the player side of the relay: room lifecycle over HTTP plus a
// websocket that satisfies session.Transport once dialed.
type Client struct {
	baseURL string
	http    *http.Client

	mu        sync.Mutex
	ws        *websocket.Conn
	closeOnce sync.Once

	// OnEnvelope receives every envelope relayed to this player. Set it
	// before Dial.
	OnEnvelope func(env session.Envelope)
	// OnDisconnect fires once when the read loop ends.
	OnDisconnect func(err error)
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type CreatedRoom struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

func (c *Client) CreateRoom(ctx context.Context) (CreatedRoom, error) {
	var out CreatedRoom
	err := c.postJSON(ctx, "/api/rooms/create", nil, &out)
	return out, err
}

type JoinedRoom struct {
	PlayerID string `json:"playerId"`
	HostID   string `json:"hostId"`
}

func (c *Client) JoinRoom(ctx context.Context, roomCode string) (JoinedRoom, error) {
	var out JoinedRoom
	err := c.postJSON(ctx, "/api/rooms/join", map[string]string{"roomCode": roomCode}, &out)
	return out, err
}

// Dial opens the websocket for an already created or joined room and starts
// the read loop. Envelopes arrive on OnEnvelope.
func (c *Client) Dial(ctx context.Context, roomCode, playerID, name string) error {
	wsBase := strings.Replace(c.baseURL, "http", "ws", 1)
	u := fmt.Sprintf("%s/ws/%s?playerId=%s&name=%s",
		wsBase, url.PathEscape(strings.ToUpper(roomCode)),
		url.QueryEscape(playerID), url.QueryEscape(name))

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()

	go c.readLoop(ws)
	return nil
}

func (c *Client) readLoop(ws *websocket.Conn) {
	var loopErr error
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			loopErr = err
			break
		}
		var env session.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if c.OnEnvelope != nil {
			c.OnEnvelope(env)
		}
	}
	if c.OnDisconnect != nil {
		c.OnDisconnect(loopErr)
	}
}

// Broadcast implements session.Transport.
func (c *Client) Broadcast(env session.Envelope) error {
	return c.writeFrame(frame{Envelope: env})
}

// SendTo implements session.Transport.
func (c *Client) SendTo(targetID string, env session.Envelope) error {
	return c.writeFrame(frame{To: targetID, Envelope: env})
}

// Close implements session.Transport.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		ws := c.ws
		c.mu.Unlock()
		if ws != nil {
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = ws.Close()
		}
	})
	return nil
}

func (c *Client) writeFrame(f frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return fmt.Errorf("not connected")
	}
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("relay: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
