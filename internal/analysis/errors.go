package analysis

import (
	"errors"
	"fmt"
)

// ErrInsufficientSample is returned when a confidence interval is requested
// for fewer than two values.
var ErrInsufficientSample = errors.New("confidence interval needs at least 2 values")

// EmptyInputError reports an aggregation over a table with no rows.
type EmptyInputError struct {
	// Input names the offending input ("forecast", "control", "matched pairs").
	Input string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("cannot aggregate empty %s table", e.Input)
}

// UnknownCIMethodError reports an unsupported confidence interval method.
type UnknownCIMethodError struct {
	Name string
}

func (e *UnknownCIMethodError) Error() string {
	return fmt.Sprintf("unknown confidence interval method %q (use t_dist or bootstrap)", e.Name)
}

// UnknownStatError reports a statistic name the line type does not derive.
type UnknownStatError struct {
	Name     string
	LineType string
}

func (e *UnknownStatError) Error() string {
	return fmt.Sprintf("statistic %q is not derived for line type %s", e.Name, e.LineType)
}

// IsEmptyInput reports whether err wraps an *EmptyInputError.
func IsEmptyInput(err error) bool {
	var e *EmptyInputError
	return errors.As(err, &e)
}
