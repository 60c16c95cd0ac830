package adpcm

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
)

// bruteForce mirrors the search without pruning: every code at every level
// above the leaf, the greedy code at the leaf.
func bruteForce(s State, window []int16, depth int, m Metric) uint64 {
	if depth == 0 {
		_, recon := Transition(s, GreedyCode(s, window[0]))
		return m.cost(recon, window[0])
	}
	best := uint64(math.MaxUint64)
	for code := byte(0); code <= 0xF; code++ {
		next, recon := Transition(s, code)
		total := m.cost(recon, window[0]) + bruteForce(next, window[1:], depth-1, m)
		if total < best {
			best = total
		}
	}
	return best
}

func randomWindow(rng *rand.Rand, n int) []int16 {
	w := make([]int16, n)
	x := rng.Intn(2000) - 1000
	for i := range w {
		x += rng.Intn(1600) - 800
		x = max(-32768, min(32767, x))
		w[i] = int16(x)
	}
	return w
}

func TestMinimumErrorMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, m := range []Metric{MetricSquared, MetricAbsolute} {
		for depth := 0; depth <= 2; depth++ {
			for trial := 0; trial < 40; trial++ {
				st := State{Sample: int32(rng.Intn(4000) - 2000), Index: int8(rng.Intn(60))}
				window := randomWindow(rng, depth+1)

				code, immediate, total := minimumError(st, window, depth, m)
				if want := bruteForce(st, window, depth, m); total != want {
					t.Fatalf("%v depth %d state %+v window %v: total = %d, want %d", m, depth, st, window, total, want)
				}
				_, recon := Transition(st, code)
				if got := m.cost(recon, window[0]); got != immediate {
					t.Fatalf("immediate = %d, but code %#x costs %d", immediate, code, got)
				}
			}
		}
	}
}

func TestChooseCodeDepthZeroIsGreedy(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for trial := 0; trial < 500; trial++ {
		st := State{Sample: int32(rng.Intn(65536) - 32768), Index: int8(rng.Intn(MaxIndex + 1))}
		window := randomWindow(rng, 5)
		code, _ := ChooseCode(st, window, 0, MetricSquared)
		if want := GreedyCode(st, window[0]); code != want {
			t.Fatalf("ChooseCode(%+v, lookahead 0) = %#x, want greedy %#x", st, code, want)
		}
		// a single-sample window leaves nothing to look ahead at
		code, _ = ChooseCode(st, window[:1], 8, MetricSquared)
		if want := GreedyCode(st, window[0]); code != want {
			t.Fatalf("ChooseCode(%+v, 1 sample) = %#x, want greedy %#x", st, code, want)
		}
	}
}

func TestChooseCodeNeverWorseOverHorizon(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 100; trial++ {
		st := State{Sample: int32(rng.Intn(2000) - 1000), Index: int8(rng.Intn(40))}
		window := randomWindow(rng, 3)
		_, _, greedyTotal := greedyPath(st, window)
		_, _, searched := minimumError(st, window, 2, MetricSquared)
		if searched > greedyTotal {
			t.Fatalf("search total %d exceeds greedy total %d for %v", searched, greedyTotal, window)
		}
	}
}

func greedyPath(st State, window []int16) (State, []byte, uint64) {
	var codes []byte
	var total uint64
	for _, target := range window {
		code := GreedyCode(st, target)
		var recon int16
		st, recon = Transition(st, code)
		total += MetricSquared.cost(recon, target)
		codes = append(codes, code)
	}
	return st, codes, total
}

func TestGreedyCode(t *testing.T) {
	tests := []struct {
		name   string
		state  State
		target int16
		want   byte
	}{
		{"zero_delta", State{Sample: 100, Index: 10}, 100, 0x0},
		{"small_positive", State{Sample: 0, Index: 0}, 3, 0x1},
		{"small_negative", State{Sample: 0, Index: 0}, -3, 0x9},
		{"saturated_positive", State{Sample: 0, Index: 0}, 30000, 0x7},
		{"saturated_negative", State{Sample: 0, Index: 0}, -30000, 0xF},
		{"one_step", State{Sample: 0, Index: 88}, 32767, 0x4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GreedyCode(tt.state, tt.target); got != tt.want {
				t.Errorf("GreedyCode(%+v, %d) = %#x, want %#x", tt.state, tt.target, got, tt.want)
			}
		})
	}
}

func TestParseMetric(t *testing.T) {
	for _, m := range []Metric{MetricSquared, MetricAbsolute} {
		got, err := ParseMetric(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMetric(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseMetric("cubic"); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("ParseMetric(cubic) error = %v, want ErrInvalidParam", err)
	}
}

func BenchmarkChooseCode(b *testing.B) {
	rng := rand.New(rand.NewSource(4))
	window := randomWindow(rng, 16)
	st := State{Sample: int32(window[0]), Index: 30}
	for _, lookahead := range []int{0, 1, 2, 3, 4} {
		b.Run(fmt.Sprintf("lookahead_%d", lookahead), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				ChooseCode(st, window, lookahead, MetricSquared)
			}
		})
	}
}
