// Package grad implements the per-thread gradient scratch buffer that
// mirrors a weight storage's shape: one accumulator per weight element,
// plus a dirty-row flag per input row so a sparse layer's update and
// clear only ever touch rows a backward pass actually wrote.
package grad

// Gradients mirrors a weights.Storage's (InputSize, OutputSize, V)
// shape without depending on the weights package — it is pure
// accumulation state; each worker thread backpropagating against a
// Storage owns its own Gradients buffer for it.
type Gradients struct {
	InputSize  int
	OutputSize int
	IsSparse   bool

	variants []variantGrad
}

type variantGrad struct {
	values []float32 // (InputSize+1) * OutputSize
	dirty  []bool    // InputSize+1 entries, one per row (bias row is InputSize)
}

// New allocates a zeroed Gradients buffer. numVariants must be >= 1.
func New(inputSize, outputSize, numVariants int, isSparse bool) *Gradients {
	if numVariants < 1 {
		numVariants = 1
	}
	rows := inputSize + 1
	g := &Gradients{
		InputSize:  inputSize,
		OutputSize: outputSize,
		IsSparse:   isSparse,
		variants:   make([]variantGrad, numVariants),
	}
	for v := range g.variants {
		g.variants[v] = variantGrad{
			values: make([]float32, rows*outputSize),
			dirty:  make([]bool, rows),
		}
	}
	return g
}

// NumVariants returns the number of parallel gradient matrices.
func (g *Gradients) NumVariants() int { return len(g.variants) }

// Values returns the flat accumulator slice for the given variant, for
// consumers (package weights' Update) that need the raw row-major
// buffer. The returned slice aliases internal state; callers must not
// retain it across a Clear.
func (g *Gradients) Values(variant int) []float32 { return g.variants[variant].values }

// Dirty reports whether row has been written since the last Clear.
func (g *Gradients) Dirty(variant, row int) bool { return g.variants[variant].dirty[row] }

// MarkDirty flags row as written in the given variant.
func (g *Gradients) MarkDirty(variant, row int) { g.variants[variant].dirty[row] = true }

// Row returns the slice of OutputSize elements backing row j of variant.
func (g *Gradients) Row(variant, row int) []float32 {
	off := row * g.OutputSize
	return g.variants[variant].values[off : off+g.OutputSize]
}

// AddToRow adds delta element-wise into row j of variant and marks it
// dirty. len(delta) must equal OutputSize.
func (g *Gradients) AddToRow(variant, row int, delta []float32) {
	dst := g.Row(variant, row)
	for i, d := range delta {
		dst[i] += d
	}
	g.variants[variant].dirty[row] = true
}

// Clear zeroes the buffer. If IsSparse, only rows marked dirty are
// re-zeroed (every other row is already known-zero); otherwise the
// entire buffer is zeroed. Either way every dirty flag is cleared and
// every element of Values is exactly zero afterward (spec.md §4.2,
// §8).
func (g *Gradients) Clear() {
	rows := g.InputSize + 1
	for v := range g.variants {
		vv := &g.variants[v]
		if g.IsSparse {
			for row := 0; row < rows; row++ {
				if !vv.dirty[row] {
					continue
				}
				off := row * g.OutputSize
				rowSlice := vv.values[off : off+g.OutputSize]
				for i := range rowSlice {
					rowSlice[i] = 0
				}
				vv.dirty[row] = false
			}
		} else {
			for i := range vv.values {
				vv.values[i] = 0
			}
			for row := range vv.dirty {
				vv.dirty[row] = false
			}
		}
	}
}

// Accumulate adds src's row into self's row in place, then zeroes src's
// row. If IsSparse and src has not marked row dirty, this is a no-op —
// there is nothing to add. This half of the reduction is safe to run
// lock-free across many (self, src) pairs operating on disjoint rows,
// because it never touches a dirty flag (spec.md §4.2, §9).
func (g *Gradients) Accumulate(src *Gradients, variant, row int) {
	sv := &src.variants[variant]
	if g.IsSparse && !sv.dirty[row] {
		return
	}
	off := row * g.OutputSize
	dst := g.variants[variant].values[off : off+g.OutputSize]
	srow := sv.values[off : off+g.OutputSize]
	for i := range dst {
		dst[i] += srow[i]
		srow[i] = 0
	}
}

// AccumulateUpdateDirty performs the single-threaded half of the
// reduction: if src had row marked dirty, self's row is marked dirty
// and src's flag is cleared. This must run with exclusive access to
// both buffers — it is the only unsafe-to-parallelize step of the
// two-phase reduction (spec.md §4.2, §5 phase 3, §9).
func (g *Gradients) AccumulateUpdateDirty(src *Gradients, variant, row int) {
	sv := &src.variants[variant]
	if !sv.dirty[row] {
		return
	}
	g.variants[variant].dirty[row] = true
	sv.dirty[row] = false
}
