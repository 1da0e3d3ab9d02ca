package analysis

import (
	"math"
	"strings"

	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

// Stat names a derived statistic. Values match the MET/METcalcpy column names.
type Stat string

const (
	MSE       Stat = "MSE"
	RMSE      Stat = "RMSE"
	BiasRatio Stat = "BIAS_RATIO"
	BiasDiff  Stat = "BIAS_DIFF"
	FStdev    Stat = "FSTDEV"
	OStdev    Stat = "OSTDEV"

	VectMSE      Stat = "VECT_MSE"
	VectRMSE     Stat = "VECT_RMSE"
	MagBiasRatio Stat = "MAG_BIAS_RATIO"
	MagBiasDiff  Stat = "MAG_BIAS_DIFF"

	// Total is the sample count. It is summed, never averaged.
	Total Stat = "TOTAL"
)

// StatsFor lists the statistics derived for a line type, in output order.
func StatsFor(lt verif.LineType) []Stat {
	switch lt {
	case verif.Scalar:
		return []Stat{MSE, RMSE, BiasRatio, BiasDiff, FStdev, OStdev}
	case verif.Vector:
		return []Stat{VectMSE, VectRMSE, MagBiasRatio, MagBiasDiff}
	default:
		return nil
	}
}

// ParseStat resolves a statistic name for the given line type. TOTAL is
// accepted for every line type.
func ParseStat(name string, lt verif.LineType) (Stat, error) {
	s := Stat(strings.ToUpper(strings.TrimSpace(name)))
	if s == Total {
		return s, nil
	}
	for _, known := range StatsFor(lt) {
		if s == known {
			return s, nil
		}
	}
	return "", &UnknownStatError{Name: name, LineType: lt.String()}
}

// ParseStats resolves a list of names; an empty list selects every statistic
// of the line type.
func ParseStats(names []string, lt verif.LineType) ([]Stat, error) {
	if len(names) == 0 {
		return StatsFor(lt), nil
	}
	out := make([]Stat, 0, len(names))
	for _, n := range names {
		s, err := ParseStat(n, lt)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Values maps statistics to their value for one row or summary.
type Values map[Stat]float64

// Get returns the value of s, or NaN when it is absent.
func (v Values) Get(s Stat) float64 {
	if x, ok := v[s]; ok {
		return x
	}
	return math.NaN()
}
