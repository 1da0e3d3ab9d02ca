package verif

import (
	"fmt"
	"strconv"
)

// Level is a parsed FCST_LEV value such as P500 (pressure, hPa) or Z2
// (height above ground, m).
type Level struct {
	Coord byte
	Value float64
	Raw   string
}

// ParseLevel splits the one-character coordinate prefix from the numeric part.
// Ranged levels such as "P850-500" are rejected.
func ParseLevel(s string) (Level, error) {
	if len(s) < 2 {
		return Level{}, fmt.Errorf("invalid level %q", s)
	}
	v, err := strconv.ParseFloat(s[1:], 64)
	if err != nil {
		return Level{}, fmt.Errorf("invalid level %q", s)
	}
	return Level{Coord: s[0], Value: v, Raw: s}, nil
}

// InBand reports whether the level uses coord and lies in [lo, hi].
func (l Level) InBand(coord byte, lo, hi float64) bool {
	return l.Coord == coord && l.Value >= lo && l.Value <= hi
}
