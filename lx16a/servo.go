package lx16a

import (
	"context"
	"time"
)

// Servo provides a high-level interface for controlling a single servo.
// It holds no protocol state beyond its ID, so copies are cheap. A handle may
// be shared between goroutines as long as none of them calls SetID.
type Servo struct {
	bus     *Bus
	id      int
	timeout time.Duration
}

// NewServo creates a new Servo instance.
func NewServo(bus *Bus, id int) *Servo {
	return &Servo{
		bus: bus,
		id:  id,
	}
}

// ID returns the servo's ID.
func (s *Servo) ID() int {
	return s.id
}

// IsBroadcast reports whether the handle addresses every servo on the bus.
func (s *Servo) IsBroadcast() bool {
	return s.id == BroadcastID
}

// WithTimeout returns a copy of the handle whose exchanges use timeout
// instead of the bus default.
func (s *Servo) WithTimeout(timeout time.Duration) *Servo {
	c := *s
	c.timeout = timeout
	return &c
}

// Motion

// MoveTo commands the servo to reach position within d, starting at once.
func (s *Servo) MoveTo(ctx context.Context, position int, d time.Duration) error {
	params, err := MoveTimeParams(position, d)
	if err != nil {
		return s.fail("move", err)
	}
	return s.write(ctx, "move", CmdMoveTimeWrite, params)
}

// PrepareMove stores a move that the servo executes on StartMove.
func (s *Servo) PrepareMove(ctx context.Context, position int, d time.Duration) error {
	params, err := MoveTimeParams(position, d)
	if err != nil {
		return s.fail("prepare move", err)
	}
	return s.write(ctx, "prepare move", CmdMoveTimeWaitWrite, params)
}

// StartMove executes a move stored by PrepareMove.
func (s *Servo) StartMove(ctx context.Context) error {
	return s.write(ctx, "start move", CmdMoveStart, nil)
}

// StopMove halts the servo where it is.
func (s *Servo) StopMove(ctx context.Context) error {
	return s.write(ctx, "stop move", CmdMoveStop, nil)
}

// MoveTarget reads the position and time of the last MoveTo.
func (s *Servo) MoveTarget(ctx context.Context) (Move, error) {
	return query(ctx, s, "read move target", ReadMoveTime)
}

// PreparedMove reads the move stored by PrepareMove.
func (s *Servo) PreparedMove(ctx context.Context) (Move, error) {
	return query(ctx, s, "read prepared move", ReadMoveTimeWait)
}

// Position reads the current position. Values slightly outside 0-1000 are
// possible near the mechanical stops.
func (s *Servo) Position(ctx context.Context) (int, error) {
	return query(ctx, s, "read position", ReadPosition)
}

// Operating mode

// SetServoMode switches to position control.
func (s *Servo) SetServoMode(ctx context.Context) error {
	params, _ := MotorModeParams(ModeServo, 0)
	return s.write(ctx, "set servo mode", CmdMotorModeWrite, params)
}

// SetMotorMode switches to continuous rotation at speed (-1000 to 1000).
// Positive values rotate counter-clockwise.
func (s *Servo) SetMotorMode(ctx context.Context, speed int) error {
	params, err := MotorModeParams(ModeMotor, speed)
	if err != nil {
		return s.fail("set motor mode", err)
	}
	return s.write(ctx, "set motor mode", CmdMotorModeWrite, params)
}

// MotorMode reads the operating mode and, in motor mode, the speed.
func (s *Servo) MotorMode(ctx context.Context) (MotorState, error) {
	return query(ctx, s, "read motor mode", ReadMotorMode)
}

// LED

// SetLED turns the status LED on or off.
func (s *Servo) SetLED(ctx context.Context, on bool) error {
	return s.write(ctx, "set LED", CmdLEDCtrlWrite, LEDParams(on))
}

// LEDOn reads whether the status LED is on.
func (s *Servo) LEDOn(ctx context.Context) (bool, error) {
	return query(ctx, s, "read LED", ReadLED)
}

// SetLEDErrors selects which faults make the LED flash.
func (s *Servo) SetLEDErrors(ctx context.Context, mask LEDError) error {
	params, err := LEDErrorParams(mask)
	if err != nil {
		return s.fail("set LED errors", err)
	}
	return s.write(ctx, "set LED errors", CmdLEDErrorWrite, params)
}

// LEDErrors reads the LED fault mask.
func (s *Servo) LEDErrors(ctx context.Context) (LEDError, error) {
	return query(ctx, s, "read LED errors", ReadLEDError)
}

// Torque

// SetLoaded enables (true) or disables (false) motor torque.
func (s *Servo) SetLoaded(ctx context.Context, loaded bool) error {
	return s.write(ctx, "set load", CmdLoadWrite, LoadParams(loaded))
}

// Loaded reads whether motor torque is enabled.
func (s *Servo) Loaded(ctx context.Context) (bool, error) {
	return query(ctx, s, "read load", ReadLoad)
}

// Status

// Temperature reads the internal temperature in degrees Celsius.
func (s *Servo) Temperature(ctx context.Context) (int, error) {
	return query(ctx, s, "read temperature", ReadTemp)
}

// Voltage reads the supply voltage in millivolts.
func (s *Servo) Voltage(ctx context.Context) (int, error) {
	return query(ctx, s, "read voltage", ReadVin)
}

// Configuration (stored in the servo's flash)

// ReadID asks the servo for its ID. Sent to the broadcast handle it
// discovers the ID of a lone servo on the bus.
func (s *Servo) ReadID(ctx context.Context) (int, error) {
	return query(ctx, s, "read ID", ReadID)
}

// SetID changes the servo's ID.
// The servo object is updated with the new ID on success. The update is not
// synchronized, so callers must not use the handle from other goroutines
// while SetID runs.
func (s *Servo) SetID(ctx context.Context, newID int) error {
	params, err := IDParams(newID)
	if err != nil {
		return s.fail("set ID", err)
	}
	if err := s.write(ctx, "set ID", CmdIDWrite, params); err != nil {
		return err
	}

	s.id = newID
	return nil
}

// AdjustAngleOffset applies an offset (-125 to 125, 0.24 degrees per unit)
// without saving it.
func (s *Servo) AdjustAngleOffset(ctx context.Context, offset int) error {
	params, err := AngleOffsetParams(offset)
	if err != nil {
		return s.fail("adjust angle offset", err)
	}
	return s.write(ctx, "adjust angle offset", CmdAngleOffsetAdjust, params)
}

// SaveAngleOffset persists the current angle offset.
func (s *Servo) SaveAngleOffset(ctx context.Context) error {
	return s.write(ctx, "save angle offset", CmdAngleOffsetWrite, nil)
}

// AngleOffset reads the angle offset.
func (s *Servo) AngleOffset(ctx context.Context) (int, error) {
	return query(ctx, s, "read angle offset", ReadAngleOffset)
}

// SetAngleLimits restricts the position range.
func (s *Servo) SetAngleLimits(ctx context.Context, min, max int) error {
	params, err := AngleLimitParams(min, max)
	if err != nil {
		return s.fail("set angle limits", err)
	}
	return s.write(ctx, "set angle limits", CmdAngleLimitWrite, params)
}

// AngleLimits reads the position range limits.
func (s *Servo) AngleLimits(ctx context.Context) (Limits, error) {
	return query(ctx, s, "read angle limits", ReadAngleLimit)
}

// SetVinLimits sets the supply voltage alarm range in millivolts.
func (s *Servo) SetVinLimits(ctx context.Context, min, max int) error {
	params, err := VinLimitParams(min, max)
	if err != nil {
		return s.fail("set voltage limits", err)
	}
	return s.write(ctx, "set voltage limits", CmdVinLimitWrite, params)
}

// VinLimits reads the supply voltage alarm range in millivolts.
func (s *Servo) VinLimits(ctx context.Context) (Limits, error) {
	return query(ctx, s, "read voltage limits", ReadVinLimit)
}

// SetMaxTemperature sets the over-temperature alarm threshold in degrees Celsius.
func (s *Servo) SetMaxTemperature(ctx context.Context, celsius int) error {
	params, err := TempLimitParams(celsius)
	if err != nil {
		return s.fail("set temperature limit", err)
	}
	return s.write(ctx, "set temperature limit", CmdTempMaxLimitWrite, params)
}

// MaxTemperature reads the over-temperature alarm threshold.
func (s *Servo) MaxTemperature(ctx context.Context) (int, error) {
	return query(ctx, s, "read temperature limit", ReadTempMaxLimit)
}

// Exchange helpers

func (s *Servo) fail(op string, err error) error {
	return &ServoError{ID: s.id, Op: op, Err: err}
}

func (s *Servo) frame(cmd Command, params []byte) (Frame, error) {
	if err := validateID(s.id); err != nil {
		return Frame{}, err
	}
	return cmd.Frame(byte(s.id), params)
}

func (s *Servo) write(ctx context.Context, op string, cmd Command, params []byte) error {
	req, err := s.frame(cmd, params)
	if err != nil {
		return s.fail(op, err)
	}
	if _, err := s.bus.Exchange(ctx, req, false, s.timeout); err != nil {
		return s.fail(op, err)
	}
	return nil
}

func query[T any](ctx context.Context, s *Servo, op string, cmd ReadCommand[T]) (T, error) {
	var zero T

	req, err := s.frame(cmd.Command, nil)
	if err != nil {
		return zero, s.fail(op, err)
	}

	reply, err := s.bus.Exchange(ctx, req, true, s.timeout)
	if err != nil {
		return zero, s.fail(op, err)
	}

	v, err := cmd.Decode(reply.Params)
	if err != nil {
		return zero, s.fail(op, err)
	}
	return v, nil
}
