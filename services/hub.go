package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"numberrush/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

var ErrAlreadyConnected = errors.New("player already connected")

// Hub tracks one websocket client per player and dispatches their messages
// to the matchmaker.
type Hub struct {
	clients     map[string]*Client
	unregister  chan *Client
	done        chan struct{}
	mutex       sync.RWMutex
	matchmaker  *Matchmaker
	leaderboard *LeaderboardService
}

type Client struct {
	hub        *Hub
	id         string
	socket     *websocket.Conn
	send       chan []byte
	playerID   string
	playerName string

	mutex  sync.Mutex
	closed bool
}

func NewHub(matchmaker *Matchmaker, leaderboard *LeaderboardService) *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		matchmaker:  matchmaker,
		leaderboard: leaderboard,
	}
}

// Run processes disconnects until ctx is cancelled, then closes every
// remaining connection.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case client := <-h.unregister:
			h.remove(client)

		case <-ctx.Done():
			h.mutex.Lock()
			clients := make([]*Client, 0, len(h.clients))
			for _, client := range h.clients {
				clients = append(clients, client)
			}
			h.clients = make(map[string]*Client)
			h.mutex.Unlock()

			for _, client := range clients {
				client.close()
			}
			log.Printf("Hub stopped, closed %d clients", len(clients))
			return nil
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	if current, ok := h.clients[client.playerID]; ok && current == client {
		delete(h.clients, client.playerID)
	}
	total := len(h.clients)
	h.mutex.Unlock()

	client.close()
	log.Printf("Client unregistered: %s (player %s) - Total clients: %d", client.id, client.playerID, total)

	if h.matchmaker == nil {
		return
	}
	if err := h.matchmaker.Leave(client.playerID); err != nil && !errors.Is(err, ErrNotInMatch) {
		log.Printf("Error removing disconnected player %s from match: %v", client.playerID, err)
	}
}

// RegisterClient attaches a websocket to playerID. A player may hold only
// one connection.
func (h *Hub) RegisterClient(conn *websocket.Conn, playerID, playerName string) (*Client, error) {
	client := &Client{
		hub:        h,
		id:         uuid.NewString(),
		socket:     conn,
		send:       make(chan []byte, sendBufferSize),
		playerID:   playerID,
		playerName: playerName,
	}

	h.mutex.Lock()
	if _, exists := h.clients[playerID]; exists {
		h.mutex.Unlock()
		return nil, ErrAlreadyConnected
	}
	h.clients[playerID] = client
	total := len(h.clients)
	h.mutex.Unlock()

	log.Printf("Client registered: %s (player %s) - Total clients: %d", client.id, playerID, total)

	go client.writePump()
	go client.readPump()

	return client, nil
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) IsPlayerConnected(playerID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	_, ok := h.clients[playerID]
	return ok
}

func (h *Hub) ConnectedCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// SendTo delivers msg to playerID if connected.
func (h *Hub) SendTo(playerID string, msg protocol.Message) bool {
	h.mutex.RLock()
	client, ok := h.clients[playerID]
	h.mutex.RUnlock()
	if !ok {
		return false
	}
	return client.Send(msg)
}

// Send queues msg for the socket without blocking. A client that cannot keep
// up is disconnected.
func (c *Client) Send(msg protocol.Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling %s message: %v", msg.Type, err)
		return false
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		log.Printf("Client %s (player %s) send buffer full, closing connection", c.id, c.playerID)
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *Client) close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		in, err := protocol.Decode(message)
		if err != nil {
			log.Printf("Error decoding message from player %s: %v", c.playerID, err)
			c.Send(protocol.Error(err.Error()))
			continue
		}
		c.handleMessage(in)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.socket.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(in protocol.Inbound) {
	c.hub.dispatch(c, c.playerID, c.playerName, in)
}

// dispatch routes one inbound message from player to the matchmaker and
// replies on out when the match did not.
func (h *Hub) dispatch(out Outbox, playerID, playerName string, in protocol.Inbound) {
	switch in.Type {
	case protocol.TypePing:
		out.Send(protocol.New(protocol.TypePong, nil))

	case protocol.TypeJoinRequest:
		if _, err := h.matchmaker.FindOrJoin(Participant{ID: playerID, Name: playerName, Outbox: out}); err != nil {
			out.Send(protocol.Error(err.Error()))
		}

	case protocol.TypeReady:
		if err := h.matchmaker.Ready(playerID); err != nil {
			out.Send(protocol.Error(err.Error()))
		}

	case protocol.TypeLeave:
		if err := h.matchmaker.Leave(playerID); err != nil {
			out.Send(protocol.Error(err.Error()))
		}

	case protocol.TypeClaimAttempt:
		var req protocol.ClaimAttempt
		if err := in.Bind(&req); err != nil {
			out.Send(protocol.Error(err.Error()))
			return
		}
		if _, err := h.matchmaker.Claim(playerID, req.Number); undelivered(err) {
			out.Send(protocol.New(protocol.TypeClaimRejected, protocol.ClaimRejected{
				Number: req.Number,
				Reason: undeliveredReason(err),
			}))
		}

	case protocol.TypePowerUpActivate:
		var req protocol.PowerUpActivate
		if err := in.Bind(&req); err != nil {
			out.Send(protocol.Error(err.Error()))
			return
		}
		if _, err := h.matchmaker.ActivatePowerUp(playerID, req.Type); undelivered(err) {
			out.Send(protocol.New(protocol.TypePowerUpDenied, protocol.PowerUpDenied{
				Type:   req.Type,
				Reason: undeliveredReason(err),
			}))
		}

	case protocol.TypeLeaderboardRequest:
		req := protocol.LeaderboardRequest{Limit: DefaultLeaderboardSize}
		if err := in.Bind(&req); err != nil {
			out.Send(protocol.Error(err.Error()))
			return
		}
		if h.leaderboard == nil {
			out.Send(protocol.Error("leaderboard unavailable"))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		entries, err := h.leaderboard.Top(ctx, req.Limit)
		if err != nil {
			log.Printf("Error loading leaderboard for player %s: %v", playerID, err)
			out.Send(protocol.Error("leaderboard unavailable"))
			return
		}
		out.Send(protocol.New(protocol.TypeLeaderboard, protocol.Leaderboard{Entries: entries}))

	default:
		log.Printf("Unknown message type: %s from player %s", in.Type, playerID)
		out.Send(protocol.Error("unknown message type: " + in.Type))
	}
}
