package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"ponghub/physics"
)

var ErrInvalidInput = errors.New("invalid input")

// InputMode is one of the mutually exclusive ways a client steers
type InputMode int

const (
	InputKeys   InputMode = 0 // w, a, s, d
	InputArrows InputMode = 1 // left, up, right, down
	InputTilt   InputMode = 2 // gamma, beta in degrees
)

// MoveInput is the payload of a move message. Exactly one group of
// fields may be set.
type MoveInput struct {
	W *bool `json:"w,omitempty"`
	A *bool `json:"a,omitempty"`
	S *bool `json:"s,omitempty"`
	D *bool `json:"d,omitempty"`

	Left  *bool `json:"left,omitempty"`
	Up    *bool `json:"up,omitempty"`
	Right *bool `json:"right,omitempty"`
	Down  *bool `json:"down,omitempty"`

	Gamma *float64 `json:"gamma,omitempty"`
	Beta  *float64 `json:"beta,omitempty"`
}

// Mode reports which group of fields is set
func (in MoveInput) Mode() (InputMode, error) {
	keys := in.W != nil || in.A != nil || in.S != nil || in.D != nil
	arrows := in.Left != nil || in.Up != nil || in.Right != nil || in.Down != nil
	tilt := in.Gamma != nil || in.Beta != nil

	n := 0
	for _, set := range []bool{keys, arrows, tilt} {
		if set {
			n++
		}
	}
	switch {
	case n == 0:
		return 0, fmt.Errorf("empty move: %w", ErrInvalidInput)
	case n > 1:
		return 0, fmt.Errorf("mixed move: %w", ErrInvalidInput)
	case arrows:
		return InputArrows, nil
	case tilt:
		return InputTilt, nil
	}
	return InputKeys, nil
}

// NormalizeInput turns a move payload into a unit acceleration direction
// (or zero). Screen y points down, so W/up is negative y.
func NormalizeInput(in MoveInput, tiltThreshold float64) (physics.Vec2, error) {
	mode, err := in.Mode()
	if err != nil {
		return physics.Vec2{}, err
	}
	var dir physics.Vec2
	switch mode {
	case InputKeys:
		dir = physics.V(axis(in.A, in.D), axis(in.W, in.S))
	case InputArrows:
		dir = physics.V(axis(in.Left, in.Right), axis(in.Up, in.Down))
	case InputTilt:
		x, err := tiltAxis(in.Gamma, tiltThreshold)
		if err != nil {
			return physics.Vec2{}, err
		}
		y, err := tiltAxis(in.Beta, tiltThreshold)
		if err != nil {
			return physics.Vec2{}, err
		}
		dir = physics.V(x, y)
	}
	return dir.Normalize(), nil
}

// axis is -1 for neg, +1 for pos and 0 when both or neither are pressed
func axis(neg, pos *bool) float64 {
	v := 0.0
	if neg != nil && *neg {
		v--
	}
	if pos != nil && *pos {
		v++
	}
	return v
}

func tiltAxis(angle *float64, threshold float64) (float64, error) {
	if angle == nil {
		return 0, nil
	}
	a := *angle
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0, fmt.Errorf("tilt %v: %w", a, ErrInvalidInput)
	}
	if math.Abs(a) < threshold {
		return 0, nil
	}
	if a < 0 {
		return -1, nil
	}
	return 1, nil
}

// Binary move frames: [MsgBinMove, mode, payload...]
const (
	MsgBinMove byte = 0x01
)

// DecodeBinaryMove parses a compact move frame.
// Keys and arrows carry one flags byte, tilt carries two big-endian int16
// angles in tenths of a degree.
func DecodeBinaryMove(data []byte) (MoveInput, error) {
	if len(data) < 2 || data[0] != MsgBinMove {
		return MoveInput{}, fmt.Errorf("bad move frame: %w", ErrInvalidInput)
	}
	var in MoveInput
	switch InputMode(data[1]) {
	case InputKeys, InputArrows:
		if len(data) < 3 {
			return MoveInput{}, fmt.Errorf("short move frame: %w", ErrInvalidInput)
		}
		f := data[2]
		b0, b1, b2, b3 := f&1 != 0, f&2 != 0, f&4 != 0, f&8 != 0
		if InputMode(data[1]) == InputKeys {
			in.W, in.A, in.S, in.D = &b0, &b1, &b2, &b3
		} else {
			in.Left, in.Up, in.Right, in.Down = &b0, &b1, &b2, &b3
		}
	case InputTilt:
		if len(data) < 6 {
			return MoveInput{}, fmt.Errorf("short tilt frame: %w", ErrInvalidInput)
		}
		g := float64(int16(binary.BigEndian.Uint16(data[2:4]))) / 10
		b := float64(int16(binary.BigEndian.Uint16(data[4:6]))) / 10
		in.Gamma, in.Beta = &g, &b
	default:
		return MoveInput{}, fmt.Errorf("move mode %d: %w", data[1], ErrInvalidInput)
	}
	return in, nil
}
