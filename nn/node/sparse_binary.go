package node

import (
	"fmt"

	"github.com/Witek902/Caissa-sub002/nn/grad"
	"github.com/Witek902/Caissa-sub002/nn/weights"
)

// tileWidth is the SparseBinaryInput output tile: eight eight-lane SIMD
// accumulators processed together (spec.md §4.3, glossary "Tile").
const tileWidth = 64

// SparseBinaryInput is the first-layer node for features that are
// either present or absent (value implicitly 1.0): inputs arrive as a
// list of active feature indices, never a dense vector. Forward and
// backward only ever touch the rows named by those indices, which is
// what keeps a training step at O(activeFeatures·O) instead of O(I·O)
// (spec.md §4.4 rationale).
type SparseBinaryInput struct {
	inputSize  int
	outputSize int
	storage    *weights.Storage
}

// NewSparseBinaryInput builds a SparseBinaryInput node of the given
// shape backed by storage. I must fit in 16 bits (indices are uint16)
// and O must be divisible by 64 — both are programmer-error invariants
// the forward kernel relies on (spec.md §3, §7).
func NewSparseBinaryInput(inputSize, outputSize int, storage *weights.Storage) *SparseBinaryInput {
	if inputSize > 65535 {
		panic(fmt.Sprintf("node: SparseBinaryInput input size %d exceeds uint16 index range", inputSize))
	}
	if outputSize%tileWidth != 0 {
		panic(fmt.Sprintf("node: SparseBinaryInput output size %d must be a multiple of %d", outputSize, tileWidth))
	}
	if storage.InputSize != inputSize || storage.OutputSize != outputSize {
		panic("node: SparseBinaryInput storage shape mismatch")
	}
	return &SparseBinaryInput{inputSize: inputSize, outputSize: outputSize, storage: storage}
}

func (n *SparseBinaryInput) NumInputs() int     { return n.inputSize }
func (n *SparseBinaryInput) NumOutputs() int    { return n.outputSize }
func (n *SparseBinaryInput) IsInputNode() bool  { return true }
func (n *SparseBinaryInput) InputMode() InputMode { return SparseBinary }
func (n *SparseBinaryInput) IsTrainable() bool  { return true }
func (n *SparseBinaryInput) Predecessors() []Node { return nil }
func (n *SparseBinaryInput) WeightsStorage() *weights.Storage { return n.storage }

func (n *SparseBinaryInput) CreateContext() *Context {
	return &Context{Outputs: make([]float32, n.outputSize)}
}

// Run copies the bias row into Outputs, then adds weight row f for
// every active feature index f, processing the output in 64-wide
// tiles (spec.md §4.3).
func (n *SparseBinaryInput) Run(ctx *Context) {
	variant := n.storage.Variant(ctx.Variant)
	w := n.storage.Weights(variant)
	bias := w[n.inputSize*n.outputSize:]
	copy(ctx.Outputs, bias[:n.outputSize])

	for _, f := range ctx.ActiveBinary {
		row := w[int(f)*n.outputSize : int(f)*n.outputSize+n.outputSize]
		for tile := 0; tile < n.outputSize; tile += tileWidth {
			out := ctx.Outputs[tile : tile+tileWidth]
			in := row[tile : tile+tileWidth]
			for i := range out {
				out[i] += in[i]
			}
		}
	}
}

// Backpropagate adds error into the gradient row of every active
// feature (no value multiply — the implicit feature value is 1.0) and
// into the bias row, marking each touched row dirty. It produces no
// InputError: SparseBinaryInput is always a leaf (spec.md §4.4).
func (n *SparseBinaryInput) Backpropagate(ctx *Context, errorIn []float32, g *grad.Gradients) {
	variant := n.storage.Variant(ctx.Variant)
	for _, f := range ctx.ActiveBinary {
		g.AddToRow(variant, int(f), errorIn)
	}
	g.AddToRow(variant, n.inputSize, errorIn)
}
