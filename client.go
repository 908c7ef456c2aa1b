package main

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueLen   = 256
	// Input arrives once per animation frame, chat on top of that
	maxMessagesPerSec = 120
)

// frame is one queued outgoing websocket message
type frame struct {
	binary bool
	data   []byte
}

// Client is one authenticated websocket connection and its player
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan frame
	done      chan struct{}
	closeOnce sync.Once

	playerID  string
	ip        string
	accountID int64
	username  string

	// read side rate window, touched only by ReadPump
	windowEnd time.Time
	inWindow  int
}

// NewClient creates a Client for an authenticated account with a fresh player id
func NewClient(hub *Hub, conn *websocket.Conn, ip string, accountID int64, username string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan frame, sendQueueLen),
		done:      make(chan struct{}),
		playerID:  GenerateID(),
		ip:        ip,
		accountID: accountID,
		username:  username,
	}
}

// close stops the write side. Safe to call more than once.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Closed reports whether close has been called
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// ReadPump decodes incoming messages into rink commands until the
// connection fails
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Release(c.ip)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws %s (%s): %v", c.username, c.ip, err)
			}
			return
		}
		if !c.allowMessage(time.Now()) {
			log.Printf("ws %s (%s): over %d msg/s, disconnecting", c.username, c.ip, maxMessagesPerSec)
			return
		}

		if kind == websocket.BinaryMessage {
			c.handleBinary(msg)
		} else {
			c.handleText(msg)
		}
	}
}

func (c *Client) allowMessage(now time.Time) bool {
	if now.After(c.windowEnd) {
		c.inWindow = 0
		c.windowEnd = now.Add(time.Second)
	}
	c.inWindow++
	return c.inWindow <= maxMessagesPerSec
}

// WritePump drains the send queue and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			kind := websocket.TextMessage
			if f.binary {
				kind = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(kind, f.data); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue never blocks: a slow client loses frames, a closed one ignores them
func (c *Client) enqueue(f frame) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- f:
	default:
	}
}

// SendJSON queues msg as a text frame
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("ws %s: marshal %T: %v", c.username, msg, err)
		return
	}
	c.enqueue(frame{data: data})
}

// SendBinary queues data as a binary frame. data is shared between
// clients and must not be modified afterwards.
func (c *Client) SendBinary(data []byte) {
	c.enqueue(frame{binary: true, data: data})
}

// handleText routes a JSON envelope
func (c *Client) handleText(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("ws %s: bad envelope: %v", c.username, err)
		return
	}

	switch env.T {
	case MsgMove:
		var in MoveInput
		if err := json.Unmarshal(env.D, &in); err != nil {
			log.Printf("ws %s: bad move: %v", c.username, err)
			return
		}
		c.hub.rink.Enqueue(MoveCmd{PlayerID: c.playerID, Input: in})
	case MsgChat:
		var msg ChatMsg
		if err := json.Unmarshal(env.D, &msg); err != nil {
			return
		}
		c.hub.rink.Enqueue(ChatCmd{PlayerID: c.playerID, Message: msg.Message})
	default:
		log.Printf("ws %s: unknown message type %q", c.username, env.T)
	}
}

// handleBinary decodes a compact move frame
func (c *Client) handleBinary(msg []byte) {
	in, err := DecodeBinaryMove(msg)
	if err != nil {
		log.Printf("ws %s: %v", c.username, err)
		return
	}
	c.hub.rink.Enqueue(MoveCmd{PlayerID: c.playerID, Input: in})
}

// sendHistory sends the latest persisted chat lines
func (c *Client) sendHistory(entries []ChatEntry) {
	history := make([]ChatMsg, 0, len(entries))
	for _, e := range entries {
		history = append(history, ChatMsg{
			Username: e.Username,
			Team:     e.Team,
			Message:  e.Message,
			Time:     e.CreatedAt.UnixMilli(),
		})
	}
	c.SendJSON(Envelope{T: MsgHistory, Data: history})
}
