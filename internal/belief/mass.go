package belief

import (
	"fmt"
	"math"
	"math/bits"
	"sort"
	"strings"
)

// DefaultEpsilon is the tolerance used for mass-sum validation and the
// total-conflict guard when the caller does not supply one.
const DefaultEpsilon = 1e-6

// Mass is an immutable basic probability assignment (m-function): a mapping
// from focal sets of one frame to masses in [0,1] that sum to 1. Fusion
// never mutates a Mass; it always produces a new one.
type Mass struct {
	frame  Frame
	masses map[uint64]float64
}

// NewMass validates and builds a mass assignment from wire-form labels
// ("a,b" element lists, "*" for Θ) using DefaultEpsilon.
func NewMass(frame Frame, assignments map[string]float64) (Mass, error) {
	return NewMassWithEpsilon(frame, assignments, DefaultEpsilon)
}

// NewMassWithEpsilon is NewMass with a caller-supplied sum tolerance.
// Violations are never repaired silently: a mass outside [0,1] fails with
// ErrInvalidMass, a label outside the frame or a massive empty set fails
// with ErrInvalidFocalSet, and a sum off by more than epsilon fails with
// ErrUnnormalizedMass. A sum within epsilon but not exactly 1 is rescaled
// exactly, which only absorbs floating-point representation error.
func NewMassWithEpsilon(frame Frame, assignments map[string]float64, epsilon float64) (Mass, error) {
	if frame.IsZero() {
		return Mass{}, fmt.Errorf("%w: mass assignment requires a frame", ErrInvalidFrame)
	}
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}

	masses := make(map[uint64]float64, len(assignments))
	sum := 0.0
	for label, v := range assignments {
		fs, err := frame.ParseLabel(label)
		if err != nil {
			return Mass{}, err
		}
		if v < 0 || v > 1 {
			return Mass{}, fmt.Errorf("%w: m(%q)=%g", ErrInvalidMass, label, v)
		}
		if fs.IsEmpty() {
			if v != 0 {
				return Mass{}, fmt.Errorf("%w: empty set carries mass %g", ErrInvalidFocalSet, v)
			}
			continue
		}
		// Duplicate labels for the same set ("a,b" and "b,a") accumulate.
		masses[fs.bits] += v
		sum += v
	}

	if math.Abs(sum-1) > epsilon {
		return Mass{}, fmt.Errorf("%w: sum is %g (tolerance %g)", ErrUnnormalizedMass, sum, epsilon)
	}

	return newMassFromBits(frame, masses, sum), nil
}

// Vacuous returns the total-ignorance assignment m(Θ)=1, the identity
// element of every conjunctive combination rule.
func Vacuous(frame Frame) Mass {
	return Mass{frame: frame, masses: map[uint64]float64{frame.fullBits(): 1}}
}

// newMassFromBits rescales the already-validated masses so they sum to
// exactly 1 and drops zero entries and the empty set.
func newMassFromBits(frame Frame, masses map[uint64]float64, sum float64) Mass {
	out := make(map[uint64]float64, len(masses))
	for b, v := range masses {
		if b == 0 || v == 0 {
			continue
		}
		out[b] = v / sum
	}
	return Mass{frame: frame, masses: out}
}

// Frame returns the frame of discernment the assignment is over.
func (m Mass) Frame() Frame { return m.frame }

// Len returns the number of focal sets.
func (m Mass) Len() int { return len(m.masses) }

// Of returns the mass of a focal set, 0 when the set is not focal or is
// drawn from a different frame.
func (m Mass) Of(s FocalSet) float64 {
	if !s.frame.Equal(m.frame) {
		return 0
	}
	return m.masses[s.bits]
}

// FocalSets returns the focal sets in a deterministic order.
func (m Mass) FocalSets() []FocalSet {
	keys := m.sortedBits()
	out := make([]FocalSet, len(keys))
	for i, b := range keys {
		out[i] = FocalSet{frame: m.frame, bits: b}
	}
	return out
}

// Belief returns Bel(A) = Σ m(B) for nonempty B ⊆ A: the lower bound on
// confidence in the hypothesis set.
func (m Mass) Belief(h FocalSet) float64 {
	if !h.frame.Equal(m.frame) {
		return 0
	}
	bel := 0.0
	for b, v := range m.masses {
		if b&^h.bits == 0 {
			bel += v
		}
	}
	return bel
}

// Plausibility returns Pl(A) = Σ m(B) for B ∩ A ≠ ∅: the upper bound on
// confidence in the hypothesis set.
func (m Mass) Plausibility(h FocalSet) float64 {
	if !h.frame.Equal(m.frame) {
		return 0
	}
	pl := 0.0
	for b, v := range m.masses {
		if b&h.bits != 0 {
			pl += v
		}
	}
	return pl
}

// Interval returns the uncertainty interval [Bel(A), Pl(A)].
func (m Mass) Interval(h FocalSet) (bel, pl float64) {
	return m.Belief(h), m.Plausibility(h)
}

// Pignistic returns the pignistic probability transform
// BetP(x) = Σ_{A ∋ x} m(A)/|A|, a point probability per hypothesis used
// for decisions and for the belief-vector representation.
func (m Mass) Pignistic() map[string]float64 {
	out := make(map[string]float64, m.frame.Size())
	for _, e := range m.frame.elems {
		out[e] = 0
	}
	for b, v := range m.masses {
		share := v / float64(bits.OnesCount64(b))
		for i, e := range m.frame.elems {
			if b&(1<<uint(i)) != 0 {
				out[e] += share
			}
		}
	}
	return out
}

// Vector returns the pignistic probabilities in frame element order, the
// form stored in the evidence vector column.
func (m Mass) Vector() []float32 {
	p := m.Pignistic()
	out := make([]float32, len(m.frame.elems))
	for i, e := range m.frame.elems {
		out[i] = float32(p[e])
	}
	return out
}

// Assignments returns the wire form (label → mass). Feeding it back to
// NewMass re-validates every invariant and round-trips the value.
func (m Mass) Assignments() map[string]float64 {
	out := make(map[string]float64, len(m.masses))
	for b, v := range m.masses {
		out[FocalSet{frame: m.frame, bits: b}.Label()] = v
	}
	return out
}

func (m Mass) String() string {
	parts := make([]string, 0, len(m.masses))
	for _, b := range m.sortedBits() {
		parts = append(parts, fmt.Sprintf("%s:%.4f", FocalSet{frame: m.frame, bits: b}.Label(), m.masses[b]))
	}
	return "m{" + strings.Join(parts, " ") + "}"
}

func (m Mass) sortedBits() []uint64 {
	keys := make([]uint64, 0, len(m.masses))
	for b := range m.masses {
		keys = append(keys, b)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Discount applies Shafer discounting: every focal mass is scaled by the
// source reliability α ∈ [0,1] and the withheld 1−α is moved to Θ. α=1
// returns the assignment unchanged; α=0 returns total ignorance.
func Discount(m Mass, reliability float64) (Mass, error) {
	if reliability < 0 || reliability > 1 {
		return Mass{}, fmt.Errorf("%w: reliability %g", ErrInvalidMass, reliability)
	}
	if reliability == 1 {
		return m, nil
	}
	full := m.frame.fullBits()
	out := make(map[uint64]float64, len(m.masses)+1)
	for b, v := range m.masses {
		out[b] = v * reliability
	}
	out[full] += 1 - reliability
	return newMassFromBits(m.frame, out, 1), nil
}
