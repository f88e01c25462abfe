// Package halton implements a multi-dimensional Halton low-discrepancy
// sequence: one prime base per dimension, a randomized starting digit
// offset, and a per-dimension digit-scramble permutation drawn once at
// construction. It is used to seed weight matrices with better space
// coverage than independent uniform sampling (spec.md §4.7).
package halton

import "math/rand/v2"

// width is the number of radical-inverse digit slots tracked per
// dimension; 64 digits in base 2 already covers more samples than any
// realistic weight matrix needs, and every higher base needs fewer.
const width = 64

// leap is how far NextSampleLeap advances: the 129th prime, chosen
// because it is never used as a dimension's base (see primes below, all
// of which are far smaller for any sane dimension count), so repeated
// leaping decorrelates independent consumers of the same sequence.
const leap = 727

// Sequence produces quasi-random floats in [0,1) across one or more
// dimensions. It is not safe for concurrent use — spec.md §5 restricts
// it to single-threaded initialization.
type Sequence struct {
	dims int

	base        []uint64
	permutation [][]uint64 // permutation[d][0..base[d]) digit scramble
	digit       [][]int    // current digit counters, width entries per dim
	value       []float64  // current radical-inverse value per dimension
}

// New builds a Sequence with dims independent dimensions, each seeded
// with its own randomized starting offset and digit permutation.
func New(dims int) *Sequence {
	if dims < 1 {
		dims = 1
	}
	s := &Sequence{dims: dims}
	s.base = primes(dims)
	s.permutation = make([][]uint64, dims)
	s.digit = make([][]int, dims)
	s.value = make([]float64, dims)

	for d := 0; d < dims; d++ {
		base := s.base[d]

		perm := make([]uint64, base)
		for i := range perm {
			perm[i] = uint64(i)
		}
		for i := len(perm) - 1; i > 0; i-- {
			j := rand.N(i + 1)
			perm[i], perm[j] = perm[j], perm[i]
		}
		s.permutation[d] = perm

		// Randomize the starting digit expansion directly rather than
		// drawing a single integer offset in [0, base^width) — that
		// range overflows uint64 for base=2 at width=64.
		s.digit[d] = make([]int, width)
		for w := 0; w < width; w++ {
			s.digit[d][w] = rand.N(int(base))
		}
		s.recompute(d)
	}
	return s
}

// primes returns the first n prime numbers starting at 2.
func primes(n int) []uint64 {
	out := make([]uint64, 0, n)
	candidate := uint64(2)
	for len(out) < n {
		isPrime := true
		for _, p := range out {
			if p*p > candidate {
				break
			}
			if candidate%p == 0 {
				isPrime = false
				break
			}
		}
		if isPrime {
			out = append(out, candidate)
		}
		candidate++
	}
	return out
}

// recompute rebuilds s.value[d] from the current digit expansion, most
// significant digit first, applying the digit-scramble permutation.
func (s *Sequence) recompute(d int) {
	var v float64
	for w := width - 1; w >= 0; w-- {
		scrambled := s.permutation[d][s.digit[d][w]]
		v = (v + float64(scrambled)) / float64(s.base[d])
	}
	s.value[d] = v
}

// GetDouble returns the current value of dimension d.
func (s *Sequence) GetDouble(d int) float64 { return s.value[d] }

// NextSample advances every dimension by one sample.
func (s *Sequence) NextSample() {
	for d := 0; d < s.dims; d++ {
		base := s.base[d]
		for w := 0; w < width; w++ {
			s.digit[d][w]++
			if s.digit[d][w] < int(base) {
				break
			}
			s.digit[d][w] = 0
		}
		s.recompute(d)
	}
}

// NextSampleLeap advances every dimension by leap (727) samples, used
// to decorrelate two consumers drawing from the same Sequence.
func (s *Sequence) NextSampleLeap() {
	for i := 0; i < leap; i++ {
		s.NextSample()
	}
}
