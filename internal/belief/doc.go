// Package belief implements Dempster-Shafer evidence combination: validated
// mass assignments over a frame of discernment, belief/plausibility queries,
// and the Dempster, Yager, Dubois-Prade and averaging fusion rules with an
// explicit conflict measure.
//
// The package is pure computation. Every value is immutable once built and
// every combination allocates a fresh result, so independent fusions may run
// concurrently without coordination.
package belief
