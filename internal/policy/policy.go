// Package policy holds the conflict-policy configuration: the thresholds
// and knobs the fusion service applies around the belief kernel. Policies
// load from a YAML file and hot-reload on change; absent or invalid files
// fall back to the built-in defaults or the last good snapshot.
package policy

import (
	"fmt"
	"os"

	"github.com/credencehq/credence/internal/belief"
	"gopkg.in/yaml.v3"
)

// Defaults applied for fields the file leaves unset.
const (
	DefaultWarnConflict     = belief.DefaultWarnConflict
	DefaultEpsilon          = belief.DefaultEpsilon
	DefaultHardDrift        = belief.DefaultHardDrift
	DefaultDecayLambda      = 0.002
	DefaultReliabilityFloor = 0.1
)

// Policy is one immutable snapshot of the conflict policy.
type Policy struct {
	// DefaultRule is used when neither the claim nor the request names one.
	DefaultRule string `yaml:"default_rule"`

	// WarnConflict is the K threshold for the high-conflict advisory.
	WarnConflict float64 `yaml:"warn_conflict"`

	// Epsilon and HardDrift are handed to the kernel engine.
	Epsilon   float64 `yaml:"epsilon"`
	HardDrift float64 `yaml:"hard_drift"`

	// DecayLambda is the hourly exponential decay applied to source
	// reliability by evidence age; ReliabilityFloor bounds it from below.
	DecayLambda      float64 `yaml:"decay_lambda"`
	ReliabilityFloor float64 `yaml:"reliability_floor"`

	// RuleOverrides replaces WarnConflict per rule.
	RuleOverrides map[string]float64 `yaml:"rule_overrides,omitempty"`
}

// Default returns the built-in policy.
func Default() Policy {
	return Policy{
		DefaultRule:      string(belief.RuleDempster),
		WarnConflict:     DefaultWarnConflict,
		Epsilon:          DefaultEpsilon,
		HardDrift:        DefaultHardDrift,
		DecayLambda:      DefaultDecayLambda,
		ReliabilityFloor: DefaultReliabilityFloor,
	}
}

// WarnConflictFor returns the advisory threshold for a rule, honoring
// per-rule overrides.
func (p Policy) WarnConflictFor(rule belief.Rule) float64 {
	if v, ok := p.RuleOverrides[string(rule)]; ok {
		return v
	}
	return p.WarnConflict
}

// Engine builds a kernel engine carrying the policy's numeric knobs and
// the advisory threshold for the given rule.
func (p Policy) Engine(rule belief.Rule) belief.Engine {
	return belief.Engine{
		Epsilon:      p.Epsilon,
		HardDrift:    p.HardDrift,
		WarnConflict: p.WarnConflictFor(rule),
	}
}

// Load reads and validates a policy file. Unset fields take defaults.
func Load(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}

	p := Policy{}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}

	p.applyDefaults()
	if err := p.validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func (p *Policy) applyDefaults() {
	d := Default()
	if p.DefaultRule == "" {
		p.DefaultRule = d.DefaultRule
	}
	if p.WarnConflict == 0 {
		p.WarnConflict = d.WarnConflict
	}
	if p.Epsilon == 0 {
		p.Epsilon = d.Epsilon
	}
	if p.HardDrift == 0 {
		p.HardDrift = d.HardDrift
	}
	if p.DecayLambda == 0 {
		p.DecayLambda = d.DecayLambda
	}
	if p.ReliabilityFloor == 0 {
		p.ReliabilityFloor = d.ReliabilityFloor
	}
}

func (p Policy) validate() error {
	if !belief.ValidRule(p.DefaultRule) {
		return fmt.Errorf("invalid policy: unknown default_rule %q", p.DefaultRule)
	}
	if p.WarnConflict <= 0 || p.WarnConflict > 1 {
		return fmt.Errorf("invalid policy: warn_conflict %g out of (0,1]", p.WarnConflict)
	}
	if p.Epsilon <= 0 || p.Epsilon >= p.HardDrift {
		return fmt.Errorf("invalid policy: epsilon %g must be positive and below hard_drift %g", p.Epsilon, p.HardDrift)
	}
	if p.DecayLambda < 0 {
		return fmt.Errorf("invalid policy: decay_lambda %g is negative", p.DecayLambda)
	}
	if p.ReliabilityFloor < 0 || p.ReliabilityFloor > 1 {
		return fmt.Errorf("invalid policy: reliability_floor %g out of [0,1]", p.ReliabilityFloor)
	}
	for rule, v := range p.RuleOverrides {
		if !belief.ValidRule(rule) {
			return fmt.Errorf("invalid policy: override for unknown rule %q", rule)
		}
		if v <= 0 || v > 1 {
			return fmt.Errorf("invalid policy: override for %q is %g, out of (0,1]", rule, v)
		}
	}
	return nil
}
