package adpcm

import (
	"fmt"
	"strings"
)

// Metric is the per-sample cost minimised by the lookahead search.
type Metric int

const (
	// MetricSquared sums squared reconstruction errors (MSE criterion).
	MetricSquared Metric = iota
	// MetricAbsolute sums absolute reconstruction errors.
	MetricAbsolute
)

func (m Metric) String() string {
	switch m {
	case MetricSquared:
		return "squared"
	case MetricAbsolute:
		return "absolute"
	default:
		return fmt.Sprintf("Metric(%d)", int(m))
	}
}

// ParseMetric accepts the names produced by Metric.String.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "squared", "sq", "mse":
		return MetricSquared, nil
	case "absolute", "abs":
		return MetricAbsolute, nil
	}
	return 0, fmt.Errorf("%w: unknown error metric %q", ErrInvalidParam, s)
}

func (m Metric) valid() bool {
	return m == MetricSquared || m == MetricAbsolute
}

func (m Metric) cost(recon int16, target int16) uint64 {
	d := int64(recon) - int64(target)
	if d < 0 {
		d = -d
	}
	if m == MetricAbsolute {
		return uint64(d)
	}
	return uint64(d * d)
}

// GreedyCode returns the code a conventional single-step IMA quantizer picks
// for target.
func GreedyCode(s State, target int16) byte {
	delta := int32(target) - s.Sample
	var code byte
	if delta < 0 {
		code = 8
		delta = -delta
	}
	mag := (delta << 2) / StepTable[s.Index]
	if mag > 7 {
		mag = 7
	}
	return code | byte(mag)
}

// ChooseCode picks the code for window[0] that minimises the total cost over
// window[0:depth+1], where depth is lookahead capped by the samples left in
// window. It returns the code and the cost of window[0] alone. A lookahead of
// zero is the greedy quantizer.
func ChooseCode(s State, window []int16, lookahead int, m Metric) (code byte, immediate uint64) {
	if len(window) == 0 {
		return 0, 0
	}
	depth := min(lookahead, len(window)-1)
	if depth < 0 {
		depth = 0
	}
	code, immediate, _ = minimumError(s, window, depth, m)
	return code, immediate
}

// minimumError is the branch-and-bound step. Each branch gets its own copy of
// the state, so nothing has to be undone between candidates.
func minimumError(s State, window []int16, depth int, m Metric) (best byte, immediate, total uint64) {
	target := window[0]

	greedy := GreedyCode(s, target)
	next, recon := Transition(s, greedy)
	best = greedy
	immediate = m.cost(recon, target)
	total = immediate
	if depth == 0 {
		return best, immediate, total
	}

	_, _, rest := minimumError(next, window[1:], depth-1, m)
	total += rest

	for code := byte(0); code <= 0xF; code++ {
		if code == greedy {
			continue
		}
		trial, recon := Transition(s, code)
		e := m.cost(recon, target)
		// the tail cost is never negative, so this branch cannot win
		if e >= total {
			continue
		}
		_, _, rest := minimumError(trial, window[1:], depth-1, m)
		if e+rest < total {
			best, immediate, total = code, e, e+rest
		}
	}
	return best, immediate, total
}
