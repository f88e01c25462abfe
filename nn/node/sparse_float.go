package node

import (
	"github.com/Witek902/Caissa-sub002/nn/grad"
	"github.com/Witek902/Caissa-sub002/nn/weights"
)

// SparseFloatInput is the first-layer node for features carried as
// (index, value) pairs rather than implicit 1.0s. It has the same
// sparse-row cost profile as SparseBinaryInput but a general (not
// tile-constrained) inner loop, since it cannot reuse the all-ones
// trick that lets SparseBinaryInput batch eight SIMD lanes at a time
// (spec.md §4.3).
type SparseFloatInput struct {
	inputSize  int
	outputSize int
	storage    *weights.Storage
}

// NewSparseFloatInput builds a SparseFloatInput node backed by storage.
func NewSparseFloatInput(inputSize, outputSize int, storage *weights.Storage) *SparseFloatInput {
	if storage.InputSize != inputSize || storage.OutputSize != outputSize {
		panic("node: SparseFloatInput storage shape mismatch")
	}
	return &SparseFloatInput{inputSize: inputSize, outputSize: outputSize, storage: storage}
}

func (n *SparseFloatInput) NumInputs() int                   { return n.inputSize }
func (n *SparseFloatInput) NumOutputs() int                  { return n.outputSize }
func (n *SparseFloatInput) IsInputNode() bool                { return true }
func (n *SparseFloatInput) InputMode() InputMode             { return Sparse }
func (n *SparseFloatInput) IsTrainable() bool                { return true }
func (n *SparseFloatInput) Predecessors() []Node             { return nil }
func (n *SparseFloatInput) WeightsStorage() *weights.Storage { return n.storage }

func (n *SparseFloatInput) CreateContext() *Context {
	return &Context{Outputs: make([]float32, n.outputSize)}
}

// Run copies the bias row into Outputs, then for every active (index,
// value) pair adds value * weight row index into Outputs.
func (n *SparseFloatInput) Run(ctx *Context) {
	variant := n.storage.Variant(ctx.Variant)
	w := n.storage.Weights(variant)
	bias := w[n.inputSize*n.outputSize:]
	copy(ctx.Outputs, bias[:n.outputSize])

	for _, f := range ctx.ActiveFloat {
		row := w[int(f.Index)*n.outputSize : int(f.Index)*n.outputSize+n.outputSize]
		for i, out := range ctx.Outputs {
			ctx.Outputs[i] = out + f.Value*row[i]
		}
	}
}

// Backpropagate adds value*error into the gradient row of every active
// feature and into the bias row, marking each touched row dirty. Like
// SparseBinaryInput, it produces no InputError.
func (n *SparseFloatInput) Backpropagate(ctx *Context, errorIn []float32, g *grad.Gradients) {
	variant := n.storage.Variant(ctx.Variant)
	scaled := make([]float32, n.outputSize)
	for _, f := range ctx.ActiveFloat {
		for i, e := range errorIn {
			scaled[i] = f.Value * e
		}
		g.AddToRow(variant, int(f.Index), scaled)
	}
	g.AddToRow(variant, n.inputSize, errorIn)
}
