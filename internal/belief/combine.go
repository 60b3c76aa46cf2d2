package belief

import (
	"fmt"
	"math"
)

// Rule selects a combination rule. The averaging rule is a baseline, not a
// proper Dempster-Shafer rule: it ignores conflict entirely.
type Rule string

const (
	RuleDempster    Rule = "dempster"
	RuleYager       Rule = "yager"
	RuleDuboisPrade Rule = "dubois_prade"
	RuleAverage     Rule = "average"
)

// Rules returns every supported rule.
func Rules() []Rule {
	return []Rule{RuleDempster, RuleYager, RuleDuboisPrade, RuleAverage}
}

// ValidRule reports whether s names a supported rule.
func ValidRule(s string) bool {
	switch Rule(s) {
	case RuleDempster, RuleYager, RuleDuboisPrade, RuleAverage:
		return true
	}
	return false
}

// Engine defaults.
const (
	// DefaultHardDrift is the post-combination drift beyond which the
	// engine refuses to rescale: drift that large indicates a defect
	// upstream, not accumulated rounding.
	DefaultHardDrift = 1e-3

	// DefaultWarnConflict is the conflict level above which a result is
	// flagged as a high-conflict advisory.
	DefaultWarnConflict = 0.9
)

// FusionResult is the outcome of one combination: a fresh valid mass, the
// conflict K observed, and whether K crossed the advisory threshold. A
// high-conflict result is still mathematically valid and usable.
type FusionResult struct {
	Mass         Mass
	Conflict     float64
	Rule         Rule
	HighConflict bool
}

// Engine combines mass assignments. The zero value uses the package
// defaults; fields set to nonzero values override them per engine.
type Engine struct {
	// Epsilon is the floating-point tolerance for sum checks and the
	// Dempster total-conflict guard.
	Epsilon float64

	// HardDrift is the drift beyond which a combined result is rejected
	// with ErrNormalizationDrift instead of rescaled.
	HardDrift float64

	// WarnConflict is the K threshold for the HighConflict advisory.
	WarnConflict float64
}

func (e Engine) epsilon() float64 {
	if e.Epsilon > 0 {
		return e.Epsilon
	}
	return DefaultEpsilon
}

func (e Engine) hardDrift() float64 {
	if e.HardDrift > 0 {
		return e.HardDrift
	}
	return DefaultHardDrift
}

func (e Engine) warnConflict() float64 {
	if e.WarnConflict > 0 {
		return e.WarnConflict
	}
	return DefaultWarnConflict
}

// Conflict returns K = Σ m1(B)·m2(C) over disjoint pairs (B,C): the total
// mass the two sources place on contradictory focal sets. Always in [0,1].
func Conflict(m1, m2 Mass) (float64, error) {
	if !m1.frame.Equal(m2.frame) {
		return 0, fmt.Errorf("%w: %v vs %v", ErrFrameMismatch, m1.frame.Elements(), m2.frame.Elements())
	}
	return conflict(m1, m2), nil
}

func conflict(m1, m2 Mass) float64 {
	k := 0.0
	for b, mb := range m1.masses {
		for c, mc := range m2.masses {
			if b&c == 0 {
				k += mb * mc
			}
		}
	}
	return k
}

// Combine fuses two mass assignments with the default engine.
func Combine(m1, m2 Mass, rule Rule) (*FusionResult, error) {
	return Engine{}.Combine(m1, m2, rule)
}

// CombineAll folds a sequence of mass assignments with the default engine.
func CombineAll(masses []Mass, rule Rule) (*FusionResult, error) {
	return Engine{}.CombineAll(masses, rule)
}

// Combine fuses two mass assignments sharing one frame. Dempster divides
// the conjunctive accumulation by 1−K and fails with ErrTotalConflict when
// K ≥ 1−ε; Yager moves K onto Θ; Dubois-Prade moves each conflicting
// product onto the union of the conflicting sets; Average takes the
// arithmetic mean and reports K for information only.
func (e Engine) Combine(m1, m2 Mass, rule Rule) (*FusionResult, error) {
	if !m1.frame.Equal(m2.frame) {
		return nil, fmt.Errorf("%w: %v vs %v", ErrFrameMismatch, m1.frame.Elements(), m2.frame.Elements())
	}

	k := conflict(m1, m2)
	var acc map[uint64]float64

	switch rule {
	case RuleDempster:
		if k >= 1-e.epsilon() {
			return nil, fmt.Errorf("%w: K=%.6f, Dempster's rule is undefined", ErrTotalConflict, k)
		}
		acc = conjunctive(m1, m2)
		norm := 1 - k
		for b := range acc {
			acc[b] /= norm
		}

	case RuleYager:
		acc = conjunctive(m1, m2)
		if k > 0 {
			acc[m1.frame.fullBits()] += k
		}

	case RuleDuboisPrade:
		acc = make(map[uint64]float64, len(m1.masses)*len(m2.masses))
		for b, mb := range m1.masses {
			for c, mc := range m2.masses {
				if inter := b & c; inter != 0 {
					acc[inter] += mb * mc
				} else {
					acc[b|c] += mb * mc
				}
			}
		}

	case RuleAverage:
		acc = make(map[uint64]float64, len(m1.masses)+len(m2.masses))
		for b, v := range m1.masses {
			acc[b] += v / 2
		}
		for b, v := range m2.masses {
			acc[b] += v / 2
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRule, rule)
	}

	mass, err := e.finalize(m1.frame, acc)
	if err != nil {
		return nil, err
	}

	return &FusionResult{
		Mass:         mass,
		Conflict:     k,
		Rule:         rule,
		HighConflict: k >= e.warnConflict(),
	}, nil
}

// CombineAll reduces a sequence left to right. An empty sequence fails with
// ErrEmptyEvidenceSet and a single element is returned unchanged (identity
// law). The reported Conflict is the worst pairwise K seen during the fold
// and HighConflict is sticky across steps.
func (e Engine) CombineAll(masses []Mass, rule Rule) (*FusionResult, error) {
	if !ValidRule(string(rule)) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRule, rule)
	}

	switch len(masses) {
	case 0:
		return nil, fmt.Errorf("%w", ErrEmptyEvidenceSet)
	case 1:
		return &FusionResult{Mass: masses[0], Conflict: 0, Rule: rule}, nil
	}

	res, err := e.Combine(masses[0], masses[1], rule)
	if err != nil {
		return nil, err
	}
	maxK := res.Conflict
	high := res.HighConflict

	for _, m := range masses[2:] {
		res, err = e.Combine(res.Mass, m, rule)
		if err != nil {
			return nil, err
		}
		if res.Conflict > maxK {
			maxK = res.Conflict
		}
		high = high || res.HighConflict
	}

	return &FusionResult{Mass: res.Mass, Conflict: maxK, Rule: rule, HighConflict: high}, nil
}

// conjunctive accumulates m1(B)·m2(C) onto B∩C for every pair with a
// nonempty intersection.
func conjunctive(m1, m2 Mass) map[uint64]float64 {
	acc := make(map[uint64]float64, len(m1.masses)*len(m2.masses))
	for b, mb := range m1.masses {
		for c, mc := range m2.masses {
			if inter := b & c; inter != 0 {
				acc[inter] += mb * mc
			}
		}
	}
	return acc
}

// finalize turns an accumulation into a valid Mass. Drift within epsilon is
// representation error and is rescaled exactly; drift up to the hard
// threshold is rescaled defensively; anything beyond fails, since a drift
// that large means the accumulation itself is wrong.
func (e Engine) finalize(frame Frame, acc map[uint64]float64) (Mass, error) {
	sum := 0.0
	for b, v := range acc {
		if b == 0 {
			continue
		}
		sum += v
	}
	if sum <= 0 || math.Abs(sum-1) > e.hardDrift() {
		return Mass{}, fmt.Errorf("%w: sum is %g (hard threshold %g)", ErrNormalizationDrift, sum, e.hardDrift())
	}
	return newMassFromBits(frame, acc, sum), nil
}
