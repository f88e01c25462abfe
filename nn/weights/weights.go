// Package weights implements the shared weight storage that backs a
// trainable node: the weight matrix, its ADADELTA/ADAM moment matrices,
// a freeze mask, and the Halton-seeded initializer.
package weights

import (
	"fmt"
	"math"

	"github.com/Witek902/Caissa-sub002/nn/grad"
	"github.com/Witek902/Caissa-sub002/nn/halton"
)

// Optimizer selects which update rule Storage.Update applies.
type Optimizer uint8

const (
	Adadelta Optimizer = iota
	Adam
)

// UpdateOptions carries the per-batch scalars a weight update needs.
// GradientScale multiplies every raw gradient before the optimizer math
// runs; callers normally leave it at 1.0 (the trainer folds the loss
// derivative's scale into the gradient itself).
type UpdateOptions struct {
	Iteration     uint64
	LearningRate  float32
	WeightDecay   float32
	GradientScale float32
	ClampWeights  bool
}

const (
	adadeltaRho = 0.95
	adadeltaEps = 1e-8
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEps     = 1e-8
)

// variant holds one full weight matrix plus its two optimizer moments.
type variant struct {
	weights []float32
	m1      []float32
	m2      []float32
}

// Storage owns a (inputSize+1) x outputSize weight matrix — row I is the
// bias row — replicated across V variants, plus a mask shared by all
// variants. Row j, column i lives at weights[j*outputSize+i].
type Storage struct {
	InputSize  int
	OutputSize int
	IsSparse   bool

	WeightsRange float32
	BiasRange    float32

	Mask     []float32
	variants []variant
}

// New allocates a Storage for the given shapes. numVariants must be >= 1.
// isSparse marks a storage that backs a sparse input node, which controls
// how its paired Gradients buffer clears itself (see package grad).
func New(inputSize, outputSize, numVariants int, isSparse bool) *Storage {
	if numVariants < 1 {
		numVariants = 1
	}
	rows := inputSize + 1
	size := rows * outputSize

	s := &Storage{
		InputSize:    inputSize,
		OutputSize:   outputSize,
		IsSparse:     isSparse,
		WeightsRange: 10.0,
		BiasRange:    10.0,
		Mask:         make([]float32, size),
		variants:     make([]variant, numVariants),
	}
	for k := range s.Mask {
		s.Mask[k] = 1.0
	}
	for v := range s.variants {
		s.variants[v] = variant{
			weights: make([]float32, size),
			m1:      make([]float32, size),
			m2:      make([]float32, size),
		}
	}
	return s
}

// NumVariants returns the number of parallel weight matrices this storage
// holds.
func (s *Storage) NumVariants() int { return len(s.variants) }

// Variant returns the zero-based variant index, clamping out-of-range
// requests down to the last variant rather than failing — matching the
// source's "GetVariant(i) = min(i, V-1)" fallback (spec.md §9).
func (s *Storage) Variant(i int) int {
	if i < 0 {
		return 0
	}
	if i >= len(s.variants) {
		return len(s.variants) - 1
	}
	return i
}

// Weights returns the flat weight slice for the given variant.
func (s *Storage) Weights(variant int) []float32 { return s.variants[s.Variant(variant)].weights }

// biasRowOffset is the index of the first element of the bias row.
func (s *Storage) biasRowOffset() int { return s.InputSize * s.OutputSize }

// Init zeroes the moment arrays, Halton-seeds the weights of variant 0,
// sets the bias row to bias, then copies variant 0 into every other
// variant. activeInputCount is the fan-in used to scale the Halton draw
// (spec.md §4.1): for the common case it equals InputSize, but callers
// may pass a different "typical active feature count" for sparse layers
// whose true input size vastly exceeds the number of features active in
// any one sample (exactly as the source's NetworkTest seeds both layers
// of its toy network with the hidden-layer width).
func (s *Storage) Init(activeInputCount int, bias float32) {
	v0 := &s.variants[0]
	for k := range v0.m1 {
		v0.m1[k] = 0
		v0.m2[k] = 0
	}

	scale := float32(math.Sqrt(2.0 / float64(activeInputCount)))

	h := halton.New(s.InputSize)
	for i := 0; i < s.OutputSize; i++ {
		for j := 0; j < s.InputSize; j++ {
			u := h.GetDouble(j)
			v0.weights[j*s.OutputSize+i] = (float32(u) - 0.5) * scale
		}
		h.NextSample()
	}

	biasOff := s.biasRowOffset()
	for i := 0; i < s.OutputSize; i++ {
		v0.weights[biasOff+i] = bias
	}

	for v := 1; v < len(s.variants); v++ {
		copy(s.variants[v].weights, v0.weights)
		for k := range s.variants[v].m1 {
			s.variants[v].m1[k] = 0
			s.variants[v].m2[k] = 0
		}
	}
}

// boundFor returns the clamp bound for row j (the bias row is InputSize).
func (s *Storage) boundFor(j int) float32 {
	if j < s.InputSize {
		return s.WeightsRange
	}
	return s.BiasRange
}

func clampf(w, bound float32) float32 {
	if w > bound {
		return bound
	}
	if w < -bound {
		return -bound
	}
	return w
}

// Update applies the ADADELTA or ADAM update rule to every variant of
// this storage, iterating row by row with the per-row clamp bound
// (spec.md §4.6). g.InputSize/g.OutputSize must match this storage's
// shape; see package grad.
func (s *Storage) Update(optimizer Optimizer, g *grad.Gradients, opts UpdateOptions) {
	if g.InputSize != s.InputSize || g.OutputSize != s.OutputSize {
		panic(fmt.Sprintf("weights: gradient shape (%d,%d) does not match storage shape (%d,%d)",
			g.InputSize, g.OutputSize, s.InputSize, s.OutputSize))
	}
	rows := s.InputSize + 1
	for v := range s.variants {
		vv := &s.variants[v]
		gv := g.Values(v)
		for j := 0; j < rows; j++ {
			bound := s.boundFor(j)
			rowStart := j * s.OutputSize
			for i := 0; i < s.OutputSize; i++ {
				k := rowStart + i
				switch optimizer {
				case Adadelta:
					updateAdadelta(vv, k, gv[k], s.Mask[k], bound, opts)
				case Adam:
					updateAdam(vv, k, gv[k], s.Mask[k], bound, opts)
				}
			}
		}
	}
}

func updateAdadelta(vv *variant, k int, gRaw, mask, bound float32, opts UpdateOptions) {
	g := opts.GradientScale * gRaw
	g += vv.weights[k] * opts.WeightDecay

	m := adadeltaRho*vv.m1[k] + (1-adadeltaRho)*g*g
	delta := g * float32(math.Sqrt(float64((vv.m2[k]+adadeltaEps)/(m+adadeltaEps))))
	m2 := adadeltaRho*vv.m2[k] + (1-adadeltaRho)*delta*delta

	vv.m1[k] = m
	vv.m2[k] = m2

	w := vv.weights[k] - opts.LearningRate*mask*delta
	if opts.ClampWeights {
		w = clampf(w, bound)
	}
	vv.weights[k] = w
}

func updateAdam(vv *variant, k int, gRaw, mask, bound float32, opts UpdateOptions) {
	g := opts.GradientScale * gRaw

	t := float64(opts.Iteration + 1)
	m := adamBeta1*vv.m1[k] + (1-adamBeta1)*g
	v := adamBeta2*vv.m2[k] + (1-adamBeta2)*g*g
	vv.m1[k] = m
	vv.m2[k] = v

	mHat := float64(m) / (1 - math.Pow(adamBeta1, t))
	vHat := float64(v) / (1 - math.Pow(adamBeta2, t))
	delta := float32(mHat/(math.Sqrt(vHat)+adamEps)) + vv.weights[k]*opts.WeightDecay

	w := vv.weights[k] - opts.LearningRate*mask*delta
	if opts.ClampWeights {
		w = clampf(w, bound)
	}
	vv.weights[k] = w
}
