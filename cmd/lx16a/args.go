package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hipsterbrown/lx16a-servo/lx16a"
)

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "enable":
		return true, nil
	case "off", "false", "0", "disable":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func parseInt(name, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: not an integer", name, s)
	}
	return v, nil
}

// parsePair reads "min,max".
func parsePair(name, s string) (int, int, error) {
	lo, hi, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid %s %q: expected min,max", name, s)
	}
	min, err := parseInt(name, strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, err
	}
	max, err := parseInt(name, strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, err
	}
	return min, max, nil
}

// parseLEDMask accepts a number, "none", "all" or a comma list of
// temperature, voltage and stall.
func parseLEDMask(s string) (lx16a.LEDError, error) {
	if v, err := strconv.Atoi(s); err == nil {
		if v < 0 || v > int(lx16a.LEDErrAll) {
			return 0, fmt.Errorf("LED error mask %d out of range (0-%d)", v, lx16a.LEDErrAll)
		}
		return lx16a.LEDError(v), nil
	}

	var mask lx16a.LEDError
	for _, part := range strings.Split(strings.ToLower(s), ",") {
		switch strings.TrimSpace(part) {
		case "none", "":
		case "all":
			mask |= lx16a.LEDErrAll
		case "temperature", "temp", "over-temperature":
			mask |= lx16a.LEDErrOverTemperature
		case "voltage", "over-voltage":
			mask |= lx16a.LEDErrOverVoltage
		case "stall", "locked-rotor":
			mask |= lx16a.LEDErrLockedRotor
		default:
			return 0, fmt.Errorf("unknown LED error %q (use temperature, voltage, stall, all or none)", part)
		}
	}
	return mask, nil
}
