package verif

import "strings"

// LineType selects the partial-sum schema a row follows.
type LineType int

const (
	// Scalar is the MET SL1L2 line type.
	Scalar LineType = iota + 1
	// Vector is the MET VL1L2 line type.
	Vector
)

// ParseLineType accepts the MET names (sl1l2, vl1l2) and the aliases
// scalar / vector, case-insensitively.
func ParseLineType(s string) (LineType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sl1l2", "scalar":
		return Scalar, nil
	case "vl1l2", "vector":
		return Vector, nil
	default:
		return 0, &UnknownLineTypeError{Name: s}
	}
}

func (lt LineType) String() string {
	switch lt {
	case Scalar:
		return "sl1l2"
	case Vector:
		return "vl1l2"
	default:
		return "unknown"
	}
}

// MetName is the LINE_TYPE column value for the line type.
func (lt LineType) MetName() string { return strings.ToUpper(lt.String()) }

// SumColumns lists the partial-sum columns the line type reads.
func (lt LineType) SumColumns() []string {
	switch lt {
	case Scalar:
		return []string{"FBAR", "OBAR", "FOBAR", "FFBAR", "OOBAR"}
	case Vector:
		return []string{"UVFOBAR", "UVFFBAR", "UVOOBAR", "F_SPEED_BAR", "O_SPEED_BAR"}
	default:
		return nil
	}
}
