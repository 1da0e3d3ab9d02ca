package analysis

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CIMethod selects the confidence interval estimator.
type CIMethod int

const (
	// TDist is a Student's t interval for the mean, optionally adjusted for
	// lag-1 autocorrelation.
	TDist CIMethod = iota + 1
	// Bootstrap is a percentile bootstrap interval for the mean.
	Bootstrap
)

// ParseCIMethod accepts "t_dist" (or "t") and "bootstrap".
func ParseCIMethod(s string) (CIMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t_dist", "t", "tdist":
		return TDist, nil
	case "bootstrap":
		return Bootstrap, nil
	default:
		return 0, &UnknownCIMethodError{Name: s}
	}
}

func (m CIMethod) String() string {
	switch m {
	case TDist:
		return "t_dist"
	case Bootstrap:
		return "bootstrap"
	default:
		return "unknown"
	}
}

// DefaultResamples matches the SciPy bootstrap default.
const DefaultResamples = 9999

// CIOptions configures ConfidenceInterval. Build a fresh value per call.
type CIOptions struct {
	Level  float64
	Method CIMethod
	// LagCorrelation inflates the t-method standard error by the lag-1
	// autocorrelation of the (chronologically ordered) sample.
	LagCorrelation bool
	// MATSStdErr switches to the MATS standard error formulation.
	MATSStdErr bool
	Resamples  int
	Seed       uint64
}

// DefaultCIOptions returns a 95% t interval without autocorrelation.
func DefaultCIOptions() CIOptions {
	return CIOptions{Level: 0.95, Method: TDist, Resamples: DefaultResamples}
}

// Interval is a confidence interval with Low <= High.
type Interval struct {
	Low  float64
	High float64
}

// Contains reports whether x lies in the closed interval.
func (iv Interval) Contains(x float64) bool { return x >= iv.Low && x <= iv.High }

func ordered(a, b float64) Interval {
	if b < a {
		a, b = b, a
	}
	return Interval{Low: a, High: b}
}

// ConfidenceInterval estimates a confidence interval for the mean of sample.
func ConfidenceInterval(sample []float64, opt CIOptions) (Interval, error) {
	if opt.Level <= 0 || opt.Level >= 1 {
		return Interval{}, fmt.Errorf("confidence level %v outside (0, 1)", opt.Level)
	}
	switch opt.Method {
	case TDist:
		return TMeanInterval(sample, opt.Level, opt.LagCorrelation, opt.MATSStdErr)
	case Bootstrap:
		return BootstrapMeanInterval(sample, opt.Level, opt.Resamples, opt.Seed)
	default:
		return Interval{}, &UnknownCIMethodError{Name: opt.Method.String()}
	}
}

// TMeanInterval returns the t-distribution interval for the mean of sample.
// With lagCorr the standard error follows Wilks (2011) eq. 5.12; with mats it
// follows the MATS formulation std/sqrt((n-1)(1-rho)).
// The default form std/sqrt(n(1-rho)/(1+rho)) inflates the variance by
// (1+rho)/(1-rho), so positive autocorrelation widens the interval.
func TMeanInterval(sample []float64, level float64, lagCorr, mats bool) (Interval, error) {
	n := len(sample)
	if n < 2 {
		return Interval{}, ErrInsufficientSample
	}
	mean, std := stat.MeanStdDev(sample, nil)
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}.Quantile(0.5 * (1 - level))

	rho := 0.0
	if lagCorr {
		rho = Lag1Autocorrelation(sample)
	}
	var se float64
	if mats {
		se = std / math.Sqrt(float64(n-1)*(1-rho))
	} else {
		se = std / math.Sqrt(float64(n)*(1-rho)/(1+rho))
	}
	return ordered(mean+t*se, mean-t*se), nil
}

// Lag1Autocorrelation is the Pearson correlation between consecutive values,
// floored at zero. Undefined correlations (constant or two-point samples)
// count as zero.
func Lag1Autocorrelation(sample []float64) float64 {
	if len(sample) < 3 {
		return 0
	}
	r := stat.Correlation(sample[1:], sample[:len(sample)-1], nil)
	if math.IsNaN(r) || r < 0 {
		return 0
	}
	return r
}

// BootstrapMeanInterval resamples with replacement and returns the percentile
// interval of the resampled means. resamples <= 0 selects DefaultResamples.
func BootstrapMeanInterval(sample []float64, level float64, resamples int, seed uint64) (Interval, error) {
	n := len(sample)
	if n < 2 {
		return Interval{}, ErrInsufficientSample
	}
	if resamples <= 0 {
		resamples = DefaultResamples
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	means := make([]float64, resamples)
	for i := range means {
		var sum float64
		for j := 0; j < n; j++ {
			sum += sample[rng.IntN(n)]
		}
		means[i] = sum / float64(n)
	}
	sort.Float64s(means)
	alpha := 0.5 * (1 - level)
	lo := stat.Quantile(alpha, stat.LinInterp, means, nil)
	hi := stat.Quantile(1-alpha, stat.LinInterp, means, nil)
	return ordered(lo, hi), nil
}
