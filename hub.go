package main

import (
	"log"
	"sync"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Hub tracks websocket clients and the accounts they belong to, and
// forwards their lifecycle to the rink
type Hub struct {
	rink *Rink
	db   *DB
	auth *Auth
	chat *ChatLog

	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]bool

	// Connection limits, checked by HTTP handlers before the upgrade
	connMu  sync.Mutex
	ipConns map[string]int
	conns   int

	// Connected accounts. A nil client marks a reservation whose upgrade
	// is still in progress.
	accountsMu sync.RWMutex
	accounts   map[int64]*Client
}

// NewHub creates a Hub
func NewHub(db *DB, rink *Rink, chat *ChatLog) *Hub {
	return &Hub{
		rink:       rink,
		db:         db,
		auth:       NewAuth(db),
		chat:       chat,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]bool),
		ipConns:    make(map[string]int),
		accounts:   make(map[int64]*Client),
	}
}

// Admit takes a connection slot for ip. Returns false when ip or the
// server is at its limit.
func (h *Hub) Admit(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.conns >= maxTotalConns || h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	h.ipConns[ip]++
	h.conns++
	return true
}

// Release gives back a slot taken by Admit
func (h *Hub) Release(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.ipConns[ip]--; h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.conns--
}

// Run processes register/unregister events
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			// unregister may win the race for a connection that died at once
			select {
			case <-c.done:
				continue
			default:
			}
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("ws %s connected as player %s, %d clients", c.username, c.playerID, n)

		case c := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, c)
			n := len(h.clients)
			h.mu.Unlock()
			c.close()
			h.ReleaseAccount(c.accountID)
			h.rink.Enqueue(LeaveCmd{PlayerID: c.playerID})
			log.Printf("ws %s disconnected, %d clients", c.username, n)
		}
	}
}

// ReserveAccount claims an account for one connection. Returns false if
// the account is already connected or connecting.
func (h *Hub) ReserveAccount(accountID int64) bool {
	h.accountsMu.Lock()
	defer h.accountsMu.Unlock()
	if _, ok := h.accounts[accountID]; ok {
		return false
	}
	h.accounts[accountID] = nil
	return true
}

// attach binds a reserved account to its client
func (h *Hub) attach(c *Client) {
	h.accountsMu.Lock()
	defer h.accountsMu.Unlock()
	h.accounts[c.accountID] = c
}

// ReleaseAccount frees an account for a new connection
func (h *Hub) ReleaseAccount(accountID int64) {
	h.accountsMu.Lock()
	defer h.accountsMu.Unlock()
	delete(h.accounts, accountID)
}

// IsOnline reports whether an account is connected or connecting
func (h *Hub) IsOnline(accountID int64) bool {
	h.accountsMu.RLock()
	defer h.accountsMu.RUnlock()
	_, ok := h.accounts[accountID]
	return ok
}

func (h *Hub) clientFor(accountID int64) *Client {
	h.accountsMu.RLock()
	defer h.accountsMu.RUnlock()
	return h.accounts[accountID]
}

// ApplyPurchase hands a freshly bought modifier to the account's player,
// if the account is in the rink. Otherwise it is applied on next join.
func (h *Hub) ApplyPurchase(accountID int64, itemID string) {
	c := h.clientFor(accountID)
	if c == nil {
		return
	}
	if !h.rink.Enqueue(ModifierCmd{PlayerID: c.playerID, ModifierID: itemID}) {
		log.Printf("purchase %s for %d: rink stopped", itemID, accountID)
	}
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
