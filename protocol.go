package main

import "encoding/json"

// Client -> Server message types
const (
	MsgMove = "move"
	MsgChat = "chat"
)

// Server -> Client message types
const (
	MsgState   = "state"
	MsgWelcome = "welcome"
	MsgHistory = "history"
	MsgError   = "error"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages. json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// MatchStateMsg is the scoreboard part of a snapshot
type MatchStateMsg struct {
	Phase     string  `json:"state" msgpack:"state"`
	RedScore  int     `json:"redScore" msgpack:"redScore"`
	BlueScore int     `json:"blueScore" msgpack:"blueScore"`
	DeltaTime float64 `json:"deltaTime" msgpack:"deltaTime"`
}

// RectState is a rectangle by its top-left corner
type RectState struct {
	X      float64 `json:"x" msgpack:"x"`
	Y      float64 `json:"y" msgpack:"y"`
	Width  float64 `json:"width" msgpack:"width"`
	Height float64 `json:"height" msgpack:"height"`
	Angle  float64 `json:"angle" msgpack:"angle"`
}

// PlayerState is broadcast per player each tick
type PlayerState struct {
	ID       string  `json:"id" msgpack:"id"`
	Username string  `json:"username" msgpack:"username"`
	X        float64 `json:"x" msgpack:"x"`
	Y        float64 `json:"y" msgpack:"y"`
	Width    float64 `json:"width" msgpack:"width"`
	Height   float64 `json:"height" msgpack:"height"`
	Angle    float64 `json:"angle" msgpack:"angle"`
	Team     string  `json:"team,omitempty" msgpack:"team,omitempty"`
}

// BallState is center based
type BallState struct {
	X      float64 `json:"x" msgpack:"x"`
	Y      float64 `json:"y" msgpack:"y"`
	Radius float64 `json:"radius" msgpack:"radius"`
	Team   string  `json:"team,omitempty" msgpack:"team,omitempty"`
}

// GoalState is a goal sensor and the team defending it
type GoalState struct {
	RectState `msgpack:",inline"`
	Team      string `json:"team" msgpack:"team"`
}

// Snapshot is the full state broadcast once per tick
type Snapshot struct {
	State   MatchStateMsg `json:"state" msgpack:"state"`
	Players []PlayerState `json:"players" msgpack:"players"`
	Ball    *BallState    `json:"ball,omitempty" msgpack:"ball,omitempty"`
	Walls   []RectState   `json:"walls" msgpack:"walls"`
	Goals   []GoalState   `json:"goals" msgpack:"goals"`
	Net     RectState     `json:"net" msgpack:"net"`
	Tick    uint64        `json:"tick" msgpack:"tick"`
}

// WelcomeMsg is sent to a player when they connect
type WelcomeMsg struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ChatMsg is sent by a client and broadcast to everyone
type ChatMsg struct {
	Username string `json:"username,omitempty"`
	Team     string `json:"team,omitempty"`
	Message  string `json:"message"`
	Time     int64  `json:"time,omitempty"` // unix millis
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}
