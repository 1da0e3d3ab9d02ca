package verif

import "fmt"

// MissingColumnError reports a column that a caller referenced but the table
// does not carry. It signals a schema mismatch, not a data problem.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not present in verification table", e.Column)
}

// UnknownLineTypeError reports an unsupported line type name.
type UnknownLineTypeError struct {
	Name string
}

func (e *UnknownLineTypeError) Error() string {
	return fmt.Sprintf("unknown line type %q (use sl1l2 or vl1l2)", e.Name)
}
