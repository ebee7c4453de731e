package lx16a

import (
	"context"
	"fmt"
	"time"
)

// Group manages coordinated operations across multiple servos on one bus.
//
// LX-16A servos have no sync read or write, so every member is addressed in
// turn. Simultaneous motion comes from PrepareMoves followed by a broadcast
// Start.
type Group struct {
	bus    *Bus
	servos []*Servo
}

// NewGroup creates a new group from the given servos.
func NewGroup(bus *Bus, servos ...*Servo) *Group {
	return &Group{
		bus:    bus,
		servos: servos,
	}
}

// NewGroupByIDs creates servos with the given IDs and groups them.
func NewGroupByIDs(bus *Bus, ids ...int) *Group {
	servos := make([]*Servo, len(ids))
	for i, id := range ids {
		servos[i] = NewServo(bus, id)
	}
	return NewGroup(bus, servos...)
}

// Servos returns the servos in this group.
func (g *Group) Servos() []*Servo {
	return g.servos
}

// IDs returns the current servo IDs in this group, in member order.
func (g *Group) IDs() []int {
	ids := make([]int, len(g.servos))
	for i, s := range g.servos {
		ids[i] = s.ID()
	}
	return ids
}

// ServoByID returns the servo with the given ID, or nil if not found.
func (g *Group) ServoByID(id int) *Servo {
	for _, s := range g.servos {
		if s.ID() == id {
			return s
		}
	}
	return nil
}

// PositionMap is a map of servo ID to position value.
type PositionMap map[int]int

// Positions reads the position of each member.
// It stops at the first failure and returns the positions read so far.
func (g *Group) Positions(ctx context.Context) (PositionMap, error) {
	positions := make(PositionMap, len(g.servos))
	for _, s := range g.servos {
		pos, err := s.Position(ctx)
		if err != nil {
			return positions, err
		}
		positions[s.ID()] = pos
	}
	return positions, nil
}

// PrepareMoves stores a move on each listed member. Nothing moves until Start.
// Every move is validated before any frame is sent.
func (g *Group) PrepareMoves(ctx context.Context, moves map[int]Move) error {
	if len(moves) == 0 {
		return nil
	}

	for id, m := range moves {
		if g.ServoByID(id) == nil {
			return fmt.Errorf("servo ID %d not in group", id)
		}
		if _, err := MoveTimeParams(m.Position, m.Duration); err != nil {
			return &ServoError{ID: id, Op: "prepare move", Err: err}
		}
	}

	// Group order keeps the wire sequence deterministic.
	for _, s := range g.servos {
		m, ok := moves[s.ID()]
		if !ok {
			continue
		}
		if err := s.PrepareMove(ctx, m.Position, m.Duration); err != nil {
			return err
		}
	}

	return nil
}

// Start broadcasts MOVE_START so every servo with a prepared move begins at once.
func (g *Group) Start(ctx context.Context) error {
	return g.bus.Broadcast().StartMove(ctx)
}

// Stop broadcasts MOVE_STOP.
func (g *Group) Stop(ctx context.Context) error {
	return g.bus.Broadcast().StopMove(ctx)
}

// MoveAll prepares the moves and starts them together.
func (g *Group) MoveAll(ctx context.Context, moves map[int]Move) error {
	if err := g.PrepareMoves(ctx, moves); err != nil {
		return err
	}
	return g.Start(ctx)
}

// SetLoadedAll enables or disables torque on every member.
func (g *Group) SetLoadedAll(ctx context.Context, loaded bool) error {
	for _, s := range g.servos {
		if err := s.SetLoaded(ctx, loaded); err != nil {
			return err
		}
	}
	return nil
}

// WaitForPositions polls member positions until each listed servo is within
// tolerance of its target or the timeout expires. A member that does not
// answer a poll is retried on the next tick; any other failure is returned at
// once. On expiry the error wraps ErrTimeout and the last positions read are
// returned.
func (g *Group) WaitForPositions(ctx context.Context, targets PositionMap, tolerance int, timeout time.Duration) (PositionMap, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	expired := time.After(timeout)

	var last PositionMap
	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-expired:
			err := fmt.Errorf("%w: positions not reached after %v", ErrTimeout, timeout)
			if lastErr != nil {
				err = fmt.Errorf("%w (last poll: %v)", err, lastErr)
			}
			return last, err
		case <-ticker.C:
			pos, err := g.Positions(ctx)
			if err != nil {
				if !IsTimeout(err) {
					return pos, err
				}
				lastErr = err
				continue
			}
			last, lastErr = pos, nil
			if reached(pos, targets, tolerance) {
				return pos, nil
			}
		}
	}
}

func reached(pos, targets PositionMap, tolerance int) bool {
	for id, want := range targets {
		got, ok := pos[id]
		if !ok {
			return false
		}
		if d := got - want; d > tolerance || d < -tolerance {
			return false
		}
	}
	return true
}
