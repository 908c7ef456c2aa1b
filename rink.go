package main

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	inboxSize  = 1024
	maxChatLen = 200
)

// Broadcaster interface for sending messages to clients
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
	// Closed reports whether the connection is already gone
	Closed() bool
}

// JoinCmd adds a connected player. Reply, if set, receives the result.
type JoinCmd struct {
	PlayerID  string
	Name      string
	AccountID int64
	Modifiers []string
	Client    Broadcaster
	Reply     chan<- error
}

// LeaveCmd removes a player. Unknown ids are ignored.
type LeaveCmd struct {
	PlayerID string
}

// MoveCmd replaces the held input of a player
type MoveCmd struct {
	PlayerID string
	Input    MoveInput
}

// ModifierCmd applies a purchased modifier to a connected player
type ModifierCmd struct {
	PlayerID   string
	ModifierID string
}

// ChatCmd is a chat line from a player
type ChatCmd struct {
	PlayerID string
	Message  string
}

// Rink runs the match on a single goroutine. Everything else talks to it
// through Inbox.
type Rink struct {
	Inbox chan any

	tuning  Tuning
	match   *Match
	clients map[string]Broadcaster
	chat    ChatSink
	tick    uint64
	now     func() time.Time

	quit     chan struct{}
	stopOnce sync.Once
}

// NewRink creates a rink. chat may be nil.
func NewRink(t Tuning, chat ChatSink) *Rink {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	return &Rink{
		Inbox:   make(chan any, inboxSize),
		tuning:  t,
		match:   NewMatch(t, rng, time.Now()),
		clients: make(map[string]Broadcaster),
		chat:    chat,
		now:     time.Now,
		quit:    make(chan struct{}),
	}
}

// Enqueue hands a command to the rink goroutine. It returns false once the
// rink is stopped.
func (r *Rink) Enqueue(cmd any) bool {
	select {
	case <-r.quit:
		return false
	default:
	}
	select {
	case r.Inbox <- cmd:
		return true
	case <-r.quit:
		return false
	}
}

// Run ticks the rink until Stop is called
func (r *Rink) Run() {
	ticker := time.NewTicker(r.tuning.TickDuration())
	defer ticker.Stop()
	log.Printf("rink running at %d Hz", r.tuning.TickRate)

	for {
		select {
		case <-ticker.C:
			r.step(r.now())
		case <-r.quit:
			return
		}
	}
}

// Stop terminates the loop. Safe to call more than once.
func (r *Rink) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

// step drains the commands queued so far, advances the match and
// broadcasts one snapshot
func (r *Rink) step(now time.Time) {
	for n := len(r.Inbox); n > 0; n-- {
		r.handleCommand(<-r.Inbox)
	}

	out := r.match.Tick(now)
	if out.Goal != nil && r.match.State.Phase == PhaseInGame {
		log.Printf("goal in %s net: red %d - blue %d", out.Goal.Team, r.match.State.RedScore, r.match.State.BlueScore)
	}
	r.tick++
	r.broadcastState()
}

func (r *Rink) handleCommand(cmd any) {
	var err error
	switch c := cmd.(type) {
	case JoinCmd:
		err = r.handleJoin(c)
		if c.Reply != nil {
			c.Reply <- err
		}
	case LeaveCmd:
		r.handleLeave(c.PlayerID)
	case MoveCmd:
		err = r.handleMove(c)
	case ModifierCmd:
		var applied bool
		applied, err = r.match.ApplyModifier(c.PlayerID, c.ModifierID)
		if applied {
			log.Printf("player %s: applied modifier %s", c.PlayerID, c.ModifierID)
		}
	case ChatCmd:
		err = r.handleChat(c)
	default:
		log.Printf("rink: unknown command %T", cmd)
	}
	if err != nil {
		log.Printf("rink: %T rejected: %v", cmd, err)
	}
}

func (r *Rink) handleJoin(c JoinCmd) error {
	if c.Client != nil && c.Client.Closed() {
		return fmt.Errorf("join %s: %w", c.PlayerID, ErrClientGone)
	}
	p, err := r.match.AddPlayer(c.PlayerID, c.Name, c.AccountID, c.Modifiers)
	if err != nil {
		if c.Client != nil {
			c.Client.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		}
		return err
	}
	if c.Client != nil {
		r.clients[p.ID] = c.Client
		c.Client.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{ID: p.ID, Username: p.Name}})
	}
	log.Printf("player %s (%s) joined, %d in rink, %s", p.ID, p.Name, r.match.PlayerCount(), r.match.State.Phase)
	return nil
}

func (r *Rink) handleLeave(id string) {
	delete(r.clients, id)
	err := r.match.RemovePlayer(id)
	if errors.Is(err, ErrUnknownPlayer) {
		return
	}
	log.Printf("player %s left, %d in rink, %s", id, r.match.PlayerCount(), r.match.State.Phase)
}

func (r *Rink) handleMove(c MoveCmd) error {
	dir, err := NormalizeInput(c.Input, r.tuning.TiltThreshold)
	if err != nil {
		return err
	}
	return r.match.HandleMovement(c.PlayerID, dir)
}

func (r *Rink) handleChat(c ChatCmd) error {
	p, ok := r.match.Player(c.PlayerID)
	if !ok {
		return ErrUnknownPlayer
	}
	text := strings.TrimSpace(c.Message)
	if text == "" {
		return nil
	}
	if len(text) > maxChatLen {
		text = strings.ToValidUTF8(text[:maxChatLen], "")
	}
	now := r.now()
	msg := ChatMsg{Username: p.Name, Team: p.Team.String(), Message: text, Time: now.UnixMilli()}
	r.broadcastMsg(Envelope{T: MsgChat, Data: msg})
	if r.chat != nil {
		r.chat.Append(ChatEntry{AccountID: p.AccountID, Username: p.Name, Team: msg.Team, Message: text, CreatedAt: now})
	}
	return nil
}

// broadcastState encodes the snapshot once and pushes it to every client
func (r *Rink) broadcastState() {
	if len(r.clients) == 0 {
		return
	}
	data, err := msgpack.Marshal(BuildSnapshot(r.match, r.tick))
	if err != nil {
		log.Printf("snapshot marshal error: %v", err)
		return
	}
	for _, c := range r.clients {
		c.SendBinary(data)
	}
}

// broadcastMsg sends a message to every client
func (r *Rink) broadcastMsg(msg Envelope) {
	for _, c := range r.clients {
		c.SendJSON(msg)
	}
}
