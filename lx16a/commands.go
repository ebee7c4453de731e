package lx16a

import (
	"fmt"
	"time"
)

// Command describes one entry of the LX-16A command set.
type Command struct {
	Opcode byte
	Name   string
	Params int // request parameter count
	Reply  int // reply parameter count; zero for write commands
}

// IsRead reports whether the servo answers this command with a reply frame.
func (c Command) IsRead() bool {
	return c.Reply > 0
}

func (c Command) String() string {
	return c.Name
}

// Frame builds a request frame for the given servo, checking the parameter count.
func (c Command) Frame(id byte, params []byte) (Frame, error) {
	if len(params) != c.Params {
		return Frame{}, fmt.Errorf("%s takes %d parameter bytes, got %d", c.Name, c.Params, len(params))
	}
	return Frame{ID: id, Command: c.Opcode, Params: params}, nil
}

// Command set per the LX-16A bus servo protocol.
var (
	CmdMoveTimeWrite     = Command{Opcode: 1, Name: "MOVE_TIME_WRITE", Params: 4}
	CmdMoveTimeRead      = Command{Opcode: 2, Name: "MOVE_TIME_READ", Reply: 4}
	CmdMoveTimeWaitWrite = Command{Opcode: 7, Name: "MOVE_TIME_WAIT_WRITE", Params: 4}
	CmdMoveTimeWaitRead  = Command{Opcode: 8, Name: "MOVE_TIME_WAIT_READ", Reply: 4}
	CmdMoveStart         = Command{Opcode: 11, Name: "MOVE_START"}
	CmdMoveStop          = Command{Opcode: 12, Name: "MOVE_STOP"}
	CmdIDWrite           = Command{Opcode: 13, Name: "ID_WRITE", Params: 1}
	CmdIDRead            = Command{Opcode: 14, Name: "ID_READ", Reply: 1}
	CmdAngleOffsetAdjust = Command{Opcode: 17, Name: "ANGLE_OFFSET_ADJUST", Params: 1}
	CmdAngleOffsetWrite  = Command{Opcode: 18, Name: "ANGLE_OFFSET_WRITE"}
	CmdAngleOffsetRead   = Command{Opcode: 19, Name: "ANGLE_OFFSET_READ", Reply: 1}
	CmdAngleLimitWrite   = Command{Opcode: 20, Name: "ANGLE_LIMIT_WRITE", Params: 4}
	CmdAngleLimitRead    = Command{Opcode: 21, Name: "ANGLE_LIMIT_READ", Reply: 4}
	CmdVinLimitWrite     = Command{Opcode: 22, Name: "VIN_LIMIT_WRITE", Params: 4}
	CmdVinLimitRead      = Command{Opcode: 23, Name: "VIN_LIMIT_READ", Reply: 4}
	CmdTempMaxLimitWrite = Command{Opcode: 24, Name: "TEMP_MAX_LIMIT_WRITE", Params: 1}
	CmdTempMaxLimitRead  = Command{Opcode: 25, Name: "TEMP_MAX_LIMIT_READ", Reply: 1}
	CmdTempRead          = Command{Opcode: 26, Name: "TEMP_READ", Reply: 1}
	CmdVinRead           = Command{Opcode: 27, Name: "VIN_READ", Reply: 2}
	CmdPosRead           = Command{Opcode: 28, Name: "POS_READ", Reply: 2}
	CmdMotorModeWrite    = Command{Opcode: 29, Name: "OR_MOTOR_MODE_WRITE", Params: 4}
	CmdMotorModeRead     = Command{Opcode: 30, Name: "OR_MOTOR_MODE_READ", Reply: 4}
	CmdLoadWrite         = Command{Opcode: 31, Name: "LOAD_OR_UNLOAD_WRITE", Params: 1}
	CmdLoadRead          = Command{Opcode: 32, Name: "LOAD_OR_UNLOAD_READ", Reply: 1}
	CmdLEDCtrlWrite      = Command{Opcode: 33, Name: "LED_CTRL_WRITE", Params: 1}
	CmdLEDCtrlRead       = Command{Opcode: 34, Name: "LED_CTRL_READ", Reply: 1}
	CmdLEDErrorWrite     = Command{Opcode: 35, Name: "LED_ERROR_WRITE", Params: 1}
	CmdLEDErrorRead      = Command{Opcode: 36, Name: "LED_ERROR_READ", Reply: 1}
)

var catalog = map[byte]Command{}

func init() {
	for _, c := range []Command{
		CmdMoveTimeWrite, CmdMoveTimeRead, CmdMoveTimeWaitWrite, CmdMoveTimeWaitRead,
		CmdMoveStart, CmdMoveStop, CmdIDWrite, CmdIDRead,
		CmdAngleOffsetAdjust, CmdAngleOffsetWrite, CmdAngleOffsetRead,
		CmdAngleLimitWrite, CmdAngleLimitRead, CmdVinLimitWrite, CmdVinLimitRead,
		CmdTempMaxLimitWrite, CmdTempMaxLimitRead, CmdTempRead, CmdVinRead, CmdPosRead,
		CmdMotorModeWrite, CmdMotorModeRead, CmdLoadWrite, CmdLoadRead,
		CmdLEDCtrlWrite, CmdLEDCtrlRead, CmdLEDErrorWrite, CmdLEDErrorRead,
	} {
		catalog[c.Opcode] = c
	}
}

// LookupCommand returns the catalog entry for an opcode.
func LookupCommand(opcode byte) (Command, bool) {
	c, ok := catalog[opcode]
	return c, ok
}

// Commands returns every catalog entry ordered by opcode.
func Commands() []Command {
	cmds := make([]Command, 0, len(catalog))
	for op := 0; op < 256; op++ {
		if c, ok := catalog[byte(op)]; ok {
			cmds = append(cmds, c)
		}
	}
	return cmds
}

// Protocol value ranges.
const (
	MinPosition = 0
	MaxPosition = 1000

	MaxMoveTime = 30 * time.Second

	MinMotorSpeed = -1000
	MaxMotorSpeed = 1000

	MinAngleOffset = -125
	MaxAngleOffset = 125

	MinVin = 4500 // millivolts
	MaxVin = 12000

	MinTempLimit = 50 // degrees Celsius
	MaxTempLimit = 100
)

// Mode selects position control or continuous rotation.
type Mode byte

const (
	ModeServo Mode = 0
	ModeMotor Mode = 1
)

func (m Mode) String() string {
	switch m {
	case ModeServo:
		return "servo"
	case ModeMotor:
		return "motor"
	default:
		return fmt.Sprintf("mode(%d)", byte(m))
	}
}

// LEDError selects which fault conditions make the LED flash.
type LEDError byte

const (
	LEDErrOverTemperature LEDError = 1 << 0
	LEDErrOverVoltage     LEDError = 1 << 1
	LEDErrLockedRotor     LEDError = 1 << 2

	LEDErrAll = LEDErrOverTemperature | LEDErrOverVoltage | LEDErrLockedRotor
)

func (e LEDError) String() string {
	if e == 0 {
		return "none"
	}

	var msgs []string
	if e&LEDErrOverTemperature != 0 {
		msgs = append(msgs, "over-temperature")
	}
	if e&LEDErrOverVoltage != 0 {
		msgs = append(msgs, "over-voltage")
	}
	if e&LEDErrLockedRotor != 0 {
		msgs = append(msgs, "locked-rotor")
	}
	return fmt.Sprintf("%v", msgs)
}

// Move is a target position together with the time to reach it.
type Move struct {
	Position int
	Duration time.Duration
}

// Parameter builders. Each validates its inputs before producing wire bytes.

func checkRange(field string, value, min, max int) error {
	if value < min || value > max {
		return &InputError{Field: field, Value: value, Min: min, Max: max}
	}
	return nil
}

func checkPosition(position int) error {
	return checkRange("position", position, MinPosition, MaxPosition)
}

func moveTimeMillis(d time.Duration) (int, error) {
	ms := int(d.Milliseconds())
	if d < 0 || d > MaxMoveTime {
		return 0, &InputError{Field: "move time (ms)", Value: ms, Min: 0, Max: int(MaxMoveTime.Milliseconds())}
	}
	return ms, nil
}

// MoveTimeParams encodes the parameters of MOVE_TIME_WRITE and MOVE_TIME_WAIT_WRITE.
func MoveTimeParams(position int, d time.Duration) ([]byte, error) {
	if err := checkPosition(position); err != nil {
		return nil, err
	}
	ms, err := moveTimeMillis(d)
	if err != nil {
		return nil, err
	}
	return append(EncodeWord(uint16(position)), EncodeWord(uint16(ms))...), nil
}

// MotorModeParams encodes OR_MOTOR_MODE_WRITE. Speed is ignored in servo mode.
func MotorModeParams(mode Mode, speed int) ([]byte, error) {
	switch mode {
	case ModeServo:
		return []byte{byte(ModeServo), 0, 0, 0}, nil
	case ModeMotor:
		if err := checkRange("motor speed", speed, MinMotorSpeed, MaxMotorSpeed); err != nil {
			return nil, err
		}
		return append([]byte{byte(ModeMotor), 0}, EncodeWord(uint16(int16(speed)))...), nil
	default:
		return nil, &InputError{Field: "mode", Value: int(mode), Min: int(ModeServo), Max: int(ModeMotor)}
	}
}

// IDParams encodes ID_WRITE.
func IDParams(id int) ([]byte, error) {
	if err := checkRange("servo ID", id, 0, MaxServoID); err != nil {
		return nil, err
	}
	return []byte{byte(id)}, nil
}

// AngleOffsetParams encodes ANGLE_OFFSET_ADJUST. One unit is 0.24 degrees.
func AngleOffsetParams(offset int) ([]byte, error) {
	if err := checkRange("angle offset", offset, MinAngleOffset, MaxAngleOffset); err != nil {
		return nil, err
	}
	return []byte{byte(int8(offset))}, nil
}

// AngleLimitParams encodes ANGLE_LIMIT_WRITE.
func AngleLimitParams(min, max int) ([]byte, error) {
	if err := checkPosition(min); err != nil {
		return nil, err
	}
	if err := checkPosition(max); err != nil {
		return nil, err
	}
	if min >= max {
		return nil, &InputError{Field: "minimum angle limit", Value: min, Min: MinPosition, Max: max - 1}
	}
	return append(EncodeWord(uint16(min)), EncodeWord(uint16(max))...), nil
}

// VinLimitParams encodes VIN_LIMIT_WRITE with limits in millivolts.
func VinLimitParams(min, max int) ([]byte, error) {
	if err := checkRange("minimum input voltage (mV)", min, MinVin, MaxVin); err != nil {
		return nil, err
	}
	if err := checkRange("maximum input voltage (mV)", max, MinVin, MaxVin); err != nil {
		return nil, err
	}
	if min >= max {
		return nil, &InputError{Field: "minimum input voltage (mV)", Value: min, Min: MinVin, Max: max - 1}
	}
	return append(EncodeWord(uint16(min)), EncodeWord(uint16(max))...), nil
}

// TempLimitParams encodes TEMP_MAX_LIMIT_WRITE in degrees Celsius.
func TempLimitParams(celsius int) ([]byte, error) {
	if err := checkRange("temperature limit", celsius, MinTempLimit, MaxTempLimit); err != nil {
		return nil, err
	}
	return []byte{byte(celsius)}, nil
}

// LoadParams encodes LOAD_OR_UNLOAD_WRITE.
func LoadParams(loaded bool) []byte {
	if loaded {
		return []byte{1}
	}
	return []byte{0}
}

// LEDParams encodes LED_CTRL_WRITE. The servo uses 0 for on and 1 for off.
func LEDParams(on bool) []byte {
	if on {
		return []byte{0}
	}
	return []byte{1}
}

// LEDErrorParams encodes LED_ERROR_WRITE.
func LEDErrorParams(mask LEDError) ([]byte, error) {
	if err := checkRange("LED error mask", int(mask), 0, int(LEDErrAll)); err != nil {
		return nil, err
	}
	return []byte{byte(mask)}, nil
}

// ReadCommand pairs a read command with the rule that turns its reply
// parameters into a typed value.
type ReadCommand[T any] struct {
	Command
	decode func(params []byte) T
}

// Decode checks the reply arity and converts the parameters.
func (r ReadCommand[T]) Decode(params []byte) (T, error) {
	if len(params) != r.Reply {
		var zero T
		return zero, fmt.Errorf("%w: %s expects %d bytes, got %d", ErrBadReply, r.Name, r.Reply, len(params))
	}
	return r.decode(params), nil
}

// Limits is a min/max pair as reported by the servo.
type Limits struct {
	Min int
	Max int
}

// MotorState is the decoded reply of OR_MOTOR_MODE_READ.
type MotorState struct {
	Mode  Mode
	Speed int
}

// Typed read commands.
var (
	ReadMoveTime     = ReadCommand[Move]{CmdMoveTimeRead, decodeMove}
	ReadMoveTimeWait = ReadCommand[Move]{CmdMoveTimeWaitRead, decodeMove}
	ReadID           = ReadCommand[int]{CmdIDRead, decodeByte}
	ReadAngleOffset  = ReadCommand[int]{CmdAngleOffsetRead, decodeSignedByte}
	ReadAngleLimit   = ReadCommand[Limits]{CmdAngleLimitRead, decodeLimits}
	ReadVinLimit     = ReadCommand[Limits]{CmdVinLimitRead, decodeLimits}
	ReadTempMaxLimit = ReadCommand[int]{CmdTempMaxLimitRead, decodeByte}
	ReadTemp         = ReadCommand[int]{CmdTempRead, decodeByte}
	ReadVin          = ReadCommand[int]{CmdVinRead, decodeWord}
	ReadPosition     = ReadCommand[int]{CmdPosRead, DecodeSignedWord}
	ReadMotorMode    = ReadCommand[MotorState]{CmdMotorModeRead, decodeMotorState}
	ReadLoad         = ReadCommand[bool]{CmdLoadRead, decodeFlag}
	ReadLED          = ReadCommand[bool]{CmdLEDCtrlRead, decodeLED}
	ReadLEDError     = ReadCommand[LEDError]{CmdLEDErrorRead, decodeLEDError}
)

func decodeByte(p []byte) int       { return int(p[0]) }
func decodeSignedByte(p []byte) int { return int(int8(p[0])) }
func decodeWord(p []byte) int       { return int(DecodeWord(p)) }
func decodeFlag(p []byte) bool      { return p[0] != 0 }
func decodeLED(p []byte) bool       { return p[0] == 0 }

func decodeLEDError(p []byte) LEDError {
	return LEDError(p[0])
}

func decodeMove(p []byte) Move {
	return Move{
		Position: DecodeSignedWord(p[0:2]),
		Duration: time.Duration(DecodeWord(p[2:4])) * time.Millisecond,
	}
}

func decodeLimits(p []byte) Limits {
	return Limits{Min: int(DecodeWord(p[0:2])), Max: int(DecodeWord(p[2:4]))}
}

func decodeMotorState(p []byte) MotorState {
	return MotorState{Mode: Mode(p[0]), Speed: DecodeSignedWord(p[2:4])}
}
