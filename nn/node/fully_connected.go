package node

import (
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/Witek902/Caissa-sub002/nn/grad"
	"github.com/Witek902/Caissa-sub002/nn/weights"
)

// FullyConnected is a dense layer taking its input from a predecessor
// node's outputs. Its forward/backward kernels special-case the O=1
// output (a single score node, the common case for a chess evaluation
// head) as a horizontally reduced dot product, and otherwise run an
// epsilon-gated outer-product accumulation that skips input columns the
// predecessor activation already zeroed (spec.md §4.3, §4.4).
type FullyConnected struct {
	previous   Node
	inputSize  int
	outputSize int
	storage    *weights.Storage
}

// NewFullyConnected builds a FullyConnected node reading previous's
// output as its dense input.
func NewFullyConnected(previous Node, inputSize, outputSize int, storage *weights.Storage) *FullyConnected {
	if previous.NumOutputs() != inputSize {
		panic("node: FullyConnected input size does not match predecessor's output size")
	}
	if storage.InputSize != inputSize || storage.OutputSize != outputSize {
		panic("node: FullyConnected storage shape mismatch")
	}
	return &FullyConnected{previous: previous, inputSize: inputSize, outputSize: outputSize, storage: storage}
}

func (n *FullyConnected) NumInputs() int                   { return n.inputSize }
func (n *FullyConnected) NumOutputs() int                  { return n.outputSize }
func (n *FullyConnected) IsInputNode() bool                { return false }
func (n *FullyConnected) InputMode() InputMode             { return Unknown }
func (n *FullyConnected) IsTrainable() bool                { return true }
func (n *FullyConnected) Predecessors() []Node             { return []Node{n.previous} }
func (n *FullyConnected) WeightsStorage() *weights.Storage { return n.storage }

func (n *FullyConnected) CreateContext() *Context {
	return &Context{
		Outputs:    make([]float32, n.outputSize),
		InputError: make([]float32, n.inputSize),
	}
}

func (n *FullyConnected) Run(ctx *Context) {
	variant := n.storage.Variant(ctx.Variant)
	w := n.storage.Weights(variant)
	biasOff := n.inputSize * n.outputSize

	if n.outputSize == 1 {
		weightRow := blas32.Vector{N: n.inputSize, Inc: 1, Data: w[0:n.inputSize]}
		input := blas32.Vector{N: n.inputSize, Inc: 1, Data: ctx.Inputs}
		ctx.Outputs[0] = w[biasOff] + blas32.Dot(weightRow, input)
		return
	}

	copy(ctx.Outputs, w[biasOff:biasOff+n.outputSize])
	for j, in := range ctx.Inputs {
		if in > -activationEpsilon && in < activationEpsilon {
			continue
		}
		row := w[j*n.outputSize : j*n.outputSize+n.outputSize]
		for i := range ctx.Outputs {
			ctx.Outputs[i] += in * row[i]
		}
	}
}

func (n *FullyConnected) Backpropagate(ctx *Context, errorIn []float32, g *grad.Gradients) {
	variant := n.storage.Variant(ctx.Variant)

	if n.outputSize == 1 {
		e := errorIn[0]
		if e <= -activationEpsilon || e >= activationEpsilon {
			w := n.storage.Weights(variant)
			for j := range ctx.InputError {
				ctx.InputError[j] = w[j] * e
			}
			scaled := make([]float32, n.inputSize)
			for j, in := range ctx.Inputs {
				scaled[j] = in * e
			}
			// grad row j gets in[j]*e; accumulate one element at a time
			// since gradient rows for a width-1 output are length 1.
			for j := 0; j < n.inputSize; j++ {
				g.AddToRow(variant, j, scaled[j:j+1])
			}
		} else {
			for j := range ctx.InputError {
				ctx.InputError[j] = 0
			}
		}
		g.AddToRow(variant, n.inputSize, errorIn)
		return
	}

	for j := range ctx.InputError {
		ctx.InputError[j] = 0
	}

	w := n.storage.Weights(variant)
	for i, e := range errorIn {
		if e <= -activationEpsilon || e >= activationEpsilon {
			for j := range ctx.InputError {
				ctx.InputError[j] += w[j*n.outputSize+i] * e
			}
		}
	}

	scaled := make([]float32, n.outputSize)
	for j, in := range ctx.Inputs {
		if in > -activationEpsilon && in < activationEpsilon {
			continue
		}
		for i, e := range errorIn {
			scaled[i] = in * e
		}
		g.AddToRow(variant, j, scaled)
	}

	g.AddToRow(variant, n.inputSize, errorIn)
}
