package belief

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// mustMass builds a validated assignment or fails the test.
func mustMass(t *testing.T, frame Frame, assignments map[string]float64) Mass {
	t.Helper()
	m, err := NewMass(frame, assignments)
	if err != nil {
		t.Fatalf("NewMass(%v): %v", assignments, err)
	}
	return m
}

func massSum(m Mass) float64 {
	sum := 0.0
	for _, v := range m.Assignments() {
		sum += v
	}
	return sum
}

func TestNewMass_Valid(t *testing.T) {
	f := MustFrame("true", "false")
	m := mustMass(t, f, map[string]float64{"true": 0.7, "false": 0.1, "*": 0.2})

	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3", m.Len())
	}
	if math.Abs(massSum(m)-1) > DefaultEpsilon {
		t.Errorf("masses sum to %g, want 1", massSum(m))
	}

	tr, _ := f.Subset("true")
	if got := m.Of(tr); got != 0.7 {
		t.Errorf("Of(true) = %g, want 0.7", got)
	}
	absent, _ := f.Subset("false", "true")
	if got := m.Of(absent); got != 0.2 {
		t.Errorf("Of(Θ) = %g, want 0.2", got)
	}
}

func TestNewMass_OfAbsentSetIsZero(t *testing.T) {
	f := MustFrame("a", "b", "c")
	m := mustMass(t, f, map[string]float64{"a": 0.5, "*": 0.5})

	bc, _ := f.Subset("b", "c")
	if got := m.Of(bc); got != 0 {
		t.Errorf("Of(absent) = %g, want 0", got)
	}
}

func TestNewMass_Invalid(t *testing.T) {
	f := MustFrame("a", "b")

	tests := []struct {
		name        string
		assignments map[string]float64
		wantErr     error
	}{
		{"sum above one", map[string]float64{"a": 0.6, "b": 0.5}, ErrUnnormalizedMass},
		{"sum below one", map[string]float64{"a": 0.5, "b": 0.3}, ErrUnnormalizedMass},
		{"empty assignment", map[string]float64{}, ErrUnnormalizedMass},
		{"mass above one", map[string]float64{"a": 1.5}, ErrInvalidMass},
		{"negative mass", map[string]float64{"a": -0.2, "b": 1.2}, ErrInvalidMass},
		{"unknown element", map[string]float64{"z": 1.0}, ErrInvalidFocalSet},
		{"empty set with mass", map[string]float64{"": 0.4, "a": 0.6}, ErrInvalidFocalSet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMass(f, tt.assignments)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewMass_EmptySetWithZeroMassDropped(t *testing.T) {
	f := MustFrame("a", "b")
	m := mustMass(t, f, map[string]float64{"": 0, "a": 1.0})

	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestNewMass_RenormalizesWithinEpsilon(t *testing.T) {
	f := MustFrame("a", "b")
	// 0.1+0.2 style representation error: sum is 1 ± a few ulps.
	m := mustMass(t, f, map[string]float64{"a": 0.1 + 0.2, "b": 0.7 - 1e-9, "*": 1e-9})

	if got := massSum(m); math.Abs(got-1) > 1e-12 {
		t.Errorf("sum after exact renormalization = %g, want 1", got)
	}
}

func TestNewMassWithEpsilon_CallerTolerance(t *testing.T) {
	f := MustFrame("a", "b")

	// Off by 1e-4: rejected at the default tolerance, accepted at 1e-3.
	assignments := map[string]float64{"a": 0.5, "b": 0.4999}
	if _, err := NewMass(f, assignments); !errors.Is(err, ErrUnnormalizedMass) {
		t.Fatalf("expected ErrUnnormalizedMass at default epsilon")
	}

	m, err := NewMassWithEpsilon(f, assignments, 1e-3)
	if err != nil {
		t.Fatalf("unexpected error at loose epsilon: %v", err)
	}
	if math.Abs(massSum(m)-1) > 1e-12 {
		t.Errorf("sum = %g, want 1 after renormalization", massSum(m))
	}
}

func TestNewMass_DuplicateLabelsAccumulate(t *testing.T) {
	f := MustFrame("a", "b")
	m := mustMass(t, f, map[string]float64{"a,b": 0.4, "b,a": 0.2, "a": 0.4})

	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
	if got := m.Of(f.Full()); math.Abs(got-0.6) > 1e-12 {
		t.Errorf("Of(Θ) = %g, want 0.6", got)
	}
}

func TestVacuous(t *testing.T) {
	f := MustFrame("x", "y", "z")
	m := Vacuous(f)

	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
	if got := m.Of(f.Full()); got != 1 {
		t.Errorf("Of(Θ) = %g, want 1", got)
	}
}

func TestMass_BeliefPlausibility(t *testing.T) {
	f := MustFrame("a", "b", "c")
	m := mustMass(t, f, map[string]float64{
		"a":   0.4,
		"a,b": 0.3,
		"*":   0.3,
	})

	a, _ := f.Subset("a")
	ab, _ := f.Subset("a", "b")
	c, _ := f.Subset("c")

	tests := []struct {
		name    string
		set     FocalSet
		wantBel float64
		wantPl  float64
	}{
		{"singleton a", a, 0.4, 1.0},
		{"pair a,b", ab, 0.7, 1.0},
		{"singleton c", c, 0.0, 0.3},
		{"full frame", f.Full(), 1.0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotBel, gotPl := m.Interval(tt.set)
			if math.Abs(gotBel-tt.wantBel) > 1e-12 {
				t.Errorf("Belief = %g, want %g", gotBel, tt.wantBel)
			}
			if math.Abs(gotPl-tt.wantPl) > 1e-12 {
				t.Errorf("Plausibility = %g, want %g", gotPl, tt.wantPl)
			}
		})
	}
}

// Bel(A) ≤ Pl(A) must hold for every hypothesis set.
func TestMass_BeliefNeverExceedsPlausibility(t *testing.T) {
	f := MustFrame("a", "b", "c")
	masses := []Mass{
		mustMass(t, f, map[string]float64{"a": 0.4, "a,b": 0.3, "*": 0.3}),
		mustMass(t, f, map[string]float64{"a": 0.2, "b": 0.2, "c": 0.2, "b,c": 0.4}),
		Vacuous(f),
	}

	elems := f.Elements()
	for _, m := range masses {
		// Enumerate every nonempty subset of the frame.
		for bits := 1; bits < 1<<len(elems); bits++ {
			var subset []string
			for i, e := range elems {
				if bits&(1<<i) != 0 {
					subset = append(subset, e)
				}
			}
			h, err := f.Subset(subset...)
			if err != nil {
				t.Fatalf("subset %v: %v", subset, err)
			}
			bel, pl := m.Interval(h)
			if bel > pl+1e-12 {
				t.Errorf("%v: Bel(%v)=%g > Pl=%g", m, subset, bel, pl)
			}
		}
	}
}

func TestMass_Pignistic(t *testing.T) {
	f := MustFrame("a", "b")
	m := mustMass(t, f, map[string]float64{"a": 0.6, "*": 0.4})

	want := map[string]float64{"a": 0.8, "b": 0.2}
	if diff := cmp.Diff(want, m.Pignistic(), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("pignistic mismatch (-want +got):\n%s", diff)
	}

	vec := m.Vector()
	if len(vec) != 2 || math.Abs(float64(vec[0])-0.8) > 1e-6 || math.Abs(float64(vec[1])-0.2) > 1e-6 {
		t.Errorf("Vector() = %v, want [0.8 0.2]", vec)
	}
}

func TestMass_AssignmentsRoundTrip(t *testing.T) {
	f := MustFrame("a", "b", "c")
	m := mustMass(t, f, map[string]float64{"a": 0.25, "b,c": 0.35, "*": 0.4})

	wire := m.Assignments()
	back, err := NewMass(f, wire)
	if err != nil {
		t.Fatalf("round trip failed validation: %v", err)
	}
	if diff := cmp.Diff(wire, back.Assignments(), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscount(t *testing.T) {
	f := MustFrame("a", "b")
	m := mustMass(t, f, map[string]float64{"a": 0.8, "*": 0.2})

	d, err := Discount(m, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, _ := f.Subset("a")
	if got := d.Of(a); math.Abs(got-0.4) > 1e-12 {
		t.Errorf("Of(a) = %g, want 0.4", got)
	}
	if got := d.Of(f.Full()); math.Abs(got-0.6) > 1e-12 {
		t.Errorf("Of(Θ) = %g, want 0.6", got)
	}

	// α=0 withholds everything: total ignorance.
	zero, err := Discount(m, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := zero.Of(f.Full()); math.Abs(got-1) > 1e-12 {
		t.Errorf("Of(Θ) = %g, want 1 at zero reliability", got)
	}

	// α=1 is the identity.
	same, err := Discount(m, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(m.Assignments(), same.Assignments(), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("full reliability should not change the mass:\n%s", diff)
	}

	if _, err := Discount(m, 1.2); !errors.Is(err, ErrInvalidMass) {
		t.Errorf("error = %v, want ErrInvalidMass", err)
	}
	if _, err := Discount(m, -0.1); !errors.Is(err, ErrInvalidMass) {
		t.Errorf("error = %v, want ErrInvalidMass", err)
	}
}
