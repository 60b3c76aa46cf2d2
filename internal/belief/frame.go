package belief

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"
)

// MaxFrameSize bounds the number of hypotheses in a frame. Focal sets are
// stored as uint64 bitsets over the sorted element order, which caps a
// frame at 64 elements.
const MaxFrameSize = 64

// FullLabel is the wire label for the full frame Θ (total ignorance).
const FullLabel = "*"

// Frame is an immutable frame of discernment: the exhaustive set of
// mutually exclusive hypotheses under consideration. Frames compare by
// element value, never by identity, so logically identical frames built
// independently are compatible.
type Frame struct {
	elems []string
}

// NewFrame builds a frame from the given hypothesis names. Elements are
// trimmed, deduplicated and sorted; argument order is irrelevant.
func NewFrame(elems ...string) (Frame, error) {
	if len(elems) == 0 {
		return Frame{}, fmt.Errorf("%w: frame must have at least one element", ErrInvalidFrame)
	}

	seen := make(map[string]struct{}, len(elems))
	kept := make([]string, 0, len(elems))
	for _, e := range elems {
		e = strings.TrimSpace(e)
		if e == "" {
			return Frame{}, fmt.Errorf("%w: blank element", ErrInvalidFrame)
		}
		// "," separates elements in focal-set labels and "*" labels Θ.
		if strings.ContainsAny(e, ",*") {
			return Frame{}, fmt.Errorf("%w: element %q contains a reserved character", ErrInvalidFrame, e)
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		kept = append(kept, e)
	}

	if len(kept) > MaxFrameSize {
		return Frame{}, fmt.Errorf("%w: %d elements exceeds the maximum of %d", ErrInvalidFrame, len(kept), MaxFrameSize)
	}

	sort.Strings(kept)
	return Frame{elems: kept}, nil
}

// MustFrame is NewFrame that panics on error. For tests and fixtures.
func MustFrame(elems ...string) Frame {
	f, err := NewFrame(elems...)
	if err != nil {
		panic(err)
	}
	return f
}

// Size returns the number of hypotheses in the frame.
func (f Frame) Size() int { return len(f.elems) }

// IsZero reports whether the frame is the uninitialized zero value.
func (f Frame) IsZero() bool { return len(f.elems) == 0 }

// Elements returns the hypotheses in sorted order.
func (f Frame) Elements() []string {
	out := make([]string, len(f.elems))
	copy(out, f.elems)
	return out
}

// Contains reports whether elem is a hypothesis of the frame.
func (f Frame) Contains(elem string) bool {
	_, ok := f.index(elem)
	return ok
}

// Equal reports whether two frames contain exactly the same hypotheses.
func (f Frame) Equal(other Frame) bool {
	if len(f.elems) != len(other.elems) {
		return false
	}
	for i, e := range f.elems {
		if other.elems[i] != e {
			return false
		}
	}
	return true
}

// Full returns Θ as a focal set.
func (f Frame) Full() FocalSet {
	return FocalSet{frame: f, bits: f.fullBits()}
}

// Empty returns the empty subset of the frame.
func (f Frame) Empty() FocalSet {
	return FocalSet{frame: f}
}

// Subset builds the focal set containing the named elements. It fails with
// ErrInvalidFocalSet when any element is outside the frame.
func (f Frame) Subset(elems ...string) (FocalSet, error) {
	var b uint64
	for _, e := range elems {
		i, ok := f.index(strings.TrimSpace(e))
		if !ok {
			return FocalSet{}, fmt.Errorf("%w: element %q is not in the frame", ErrInvalidFocalSet, e)
		}
		b |= 1 << uint(i)
	}
	return FocalSet{frame: f, bits: b}, nil
}

// ParseLabel resolves a wire label to a focal set: "*" is Θ, "" is the
// empty set, anything else is a comma-separated element list.
func (f Frame) ParseLabel(label string) (FocalSet, error) {
	label = strings.TrimSpace(label)
	switch label {
	case FullLabel:
		return f.Full(), nil
	case "":
		return f.Empty(), nil
	}
	return f.Subset(strings.Split(label, ",")...)
}

func (f Frame) index(elem string) (int, bool) {
	i := sort.SearchStrings(f.elems, elem)
	if i < len(f.elems) && f.elems[i] == elem {
		return i, true
	}
	return 0, false
}

func (f Frame) fullBits() uint64 {
	if len(f.elems) == MaxFrameSize {
		return ^uint64(0)
	}
	return (1 << uint(len(f.elems))) - 1
}

// FocalSet is an immutable subset of a frame, represented as a bitset over
// the frame's sorted element order. Set algebra is single-word bit ops.
type FocalSet struct {
	frame Frame
	bits  uint64
}

// Frame returns the frame the set is drawn from.
func (s FocalSet) Frame() Frame { return s.frame }

// Elements returns the members of the set in the frame's sorted order.
func (s FocalSet) Elements() []string {
	out := make([]string, 0, s.Cardinality())
	for i, e := range s.frame.elems {
		if s.bits&(1<<uint(i)) != 0 {
			out = append(out, e)
		}
	}
	return out
}

// Label returns the canonical wire label: "*" for Θ, "" for the empty set,
// otherwise the comma-joined sorted elements.
func (s FocalSet) Label() string {
	if s.IsFull() {
		return FullLabel
	}
	return strings.Join(s.Elements(), ",")
}

// Cardinality returns the number of elements in the set.
func (s FocalSet) Cardinality() int { return bits.OnesCount64(s.bits) }

// IsEmpty reports whether the set has no elements.
func (s FocalSet) IsEmpty() bool { return s.bits == 0 }

// IsFull reports whether the set is the whole frame Θ.
func (s FocalSet) IsFull() bool { return !s.frame.IsZero() && s.bits == s.frame.fullBits() }

// Intersect returns the intersection of two sets over the same frame.
func (s FocalSet) Intersect(o FocalSet) FocalSet {
	return FocalSet{frame: s.frame, bits: s.bits & o.bits}
}

// Union returns the union of two sets over the same frame.
func (s FocalSet) Union(o FocalSet) FocalSet {
	return FocalSet{frame: s.frame, bits: s.bits | o.bits}
}

// Disjoint reports whether the sets share no element.
func (s FocalSet) Disjoint(o FocalSet) bool { return s.bits&o.bits == 0 }

// ContainsAll reports whether o is a subset of s.
func (s FocalSet) ContainsAll(o FocalSet) bool { return o.bits&^s.bits == 0 }

// Equal reports whether two sets have the same frame and the same members.
func (s FocalSet) Equal(o FocalSet) bool {
	return s.bits == o.bits && s.frame.Equal(o.frame)
}
