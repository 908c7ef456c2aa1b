package main

import (
	"ponghub/physics"
)

// Collision categories
const (
	CategoryPlayer uint32 = 1 << iota
	CategoryWall
	CategoryBall
	CategoryGoal
	CategoryNet

	categoryAll = CategoryPlayer | CategoryWall | CategoryBall | CategoryGoal | CategoryNet
)

// DefaultMask lists the categories each category may collide with
var DefaultMask = map[uint32]uint32{
	CategoryPlayer: CategoryPlayer | CategoryWall | CategoryBall | CategoryNet,
	CategoryWall:   categoryAll,
	CategoryBall:   CategoryPlayer | CategoryWall | CategoryGoal,
	CategoryGoal:   CategoryBall,
	CategoryNet:    CategoryPlayer,
}

func filterFor(category uint32) physics.Filter {
	return physics.Filter{Category: category, Mask: DefaultMask[category]}
}

// wallInset is how far each wall reaches into the rink
const wallInset = 5

// Wall bounds the rink
type Wall struct {
	Body *physics.Body
}

// Goal is a sensor in front of a team's wall. The ball entering it
// scores for the other team.
type Goal struct {
	Body *physics.Body
	Team Team
}

// Net splits the rink into halves. Only players collide with it.
type Net struct {
	Body *physics.Body
}

// buildWalls returns the four boundary walls of a w x h rink
func buildWalls(t Tuning) []*Wall {
	w, h, th := t.Width, t.Height, t.WallThickness
	off := th/2 - wallInset
	rects := []struct {
		pos  physics.Vec2
		size physics.Vec2
	}{
		{physics.V(w/2, -off), physics.V(w, th)},
		{physics.V(w/2, h+off), physics.V(w, th)},
		{physics.V(-off, h/2), physics.V(th, h)},
		{physics.V(w+off, h/2), physics.V(th, h)},
	}
	walls := make([]*Wall, 0, len(rects))
	for _, r := range rects {
		wall := &Wall{}
		wall.Body = physics.NewStaticBody(r.pos, physics.Rect(r.size.X, r.size.Y), filterFor(CategoryWall))
		wall.Body.Owner = wall
		walls = append(walls, wall)
	}
	return walls
}

// buildGoals returns the RED goal (left) and the BLUE goal (right)
func buildGoals(t Tuning) [2]*Goal {
	x := wallInset + t.GoalDepth/2
	red := &Goal{Team: TeamRed}
	red.Body = physics.NewStaticBody(physics.V(x, t.Height/2), physics.Rect(t.GoalDepth, t.GoalHeight), filterFor(CategoryGoal))
	blue := &Goal{Team: TeamBlue}
	blue.Body = physics.NewStaticBody(physics.V(t.Width-x, t.Height/2), physics.Rect(t.GoalDepth, t.GoalHeight), filterFor(CategoryGoal))
	for _, g := range []*Goal{red, blue} {
		g.Body.Sensor = true
		g.Body.Owner = g
	}
	return [2]*Goal{red, blue}
}

func buildNet(t Tuning) *Net {
	n := &Net{}
	n.Body = physics.NewStaticBody(physics.V(t.Width/2, t.Height/2), physics.Rect(t.NetWidth, t.Height), filterFor(CategoryNet))
	n.Body.Owner = n
	return n
}

// CollisionOutcome is what one step's events mean for the match
type CollisionOutcome struct {
	// Goal the ball entered, nil if none
	Goal *Goal
	// Touches are the players whose contact with the ball ended, in order
	Touches []*Player
}

// ClassifyCollisions turns physics events into match outcomes.
// Only the first goal of a step counts.
func ClassifyCollisions(events []physics.Event) CollisionOutcome {
	var out CollisionOutcome
	for _, ev := range events {
		switch ev.Kind {
		case physics.CollisionStart:
			if out.Goal != nil {
				continue
			}
			if _, g, ok := ownerPair[*Ball, *Goal](ev); ok {
				out.Goal = g
			}
		case physics.CollisionEnd:
			if _, p, ok := ownerPair[*Ball, *Player](ev); ok {
				out.Touches = append(out.Touches, p)
			}
		}
	}
	return out
}

// ownerPair returns the owners of the event's bodies as X and Y in either order
func ownerPair[X, Y any](ev physics.Event) (X, Y, bool) {
	if x, ok := ev.A.Owner.(X); ok {
		if y, ok := ev.B.Owner.(Y); ok {
			return x, y, true
		}
	}
	if x, ok := ev.B.Owner.(X); ok {
		if y, ok := ev.A.Owner.(Y); ok {
			return x, y, true
		}
	}
	var x X
	var y Y
	return x, y, false
}

// narrowBallMask stops p from colliding with the ball
func narrowBallMask(p *Player) {
	p.Body.Filter.Mask = DefaultMask[CategoryPlayer] &^ CategoryBall
}

func restoreMask(p *Player) {
	p.Body.Filter = filterFor(CategoryPlayer)
}

// CanTouchBall reports whether p's mask currently includes the ball
func CanTouchBall(p *Player) bool {
	return p.Body.Filter.Mask&CategoryBall != 0
}
