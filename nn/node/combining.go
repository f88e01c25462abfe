package node

import (
	"fmt"

	"github.com/Witek902/Caissa-sub002/nn/grad"
	"github.com/Witek902/Caissa-sub002/nn/weights"
)

// CombineOp selects how a Combining node merges its two predecessors'
// outputs.
type CombineOp int

const (
	ConcatOp CombineOp = iota
	SumOp
)

// Combining merges two predecessors' outputs: Concat places the
// secondary output after the primary, Sum adds them element-wise
// (requiring equal widths). It owns no weights.
type Combining struct {
	primary, secondary Node
	op                 CombineOp
	outputSize         int
}

// NewConcat builds a Combining node whose output is a.Outputs followed
// by b.Outputs.
func NewConcat(a, b Node) *Combining {
	return &Combining{primary: a, secondary: b, op: ConcatOp, outputSize: a.NumOutputs() + b.NumOutputs()}
}

// NewSum builds a Combining node whose output is a.Outputs + b.Outputs
// element-wise. a and b must have equal output widths.
func NewSum(a, b Node) *Combining {
	if a.NumOutputs() != b.NumOutputs() {
		panic(fmt.Sprintf("node: Sum requires equal widths, got %d and %d", a.NumOutputs(), b.NumOutputs()))
	}
	return &Combining{primary: a, secondary: b, op: SumOp, outputSize: a.NumOutputs()}
}

func (n *Combining) NumInputs() int                   { return n.primary.NumOutputs() + n.secondary.NumOutputs() }
func (n *Combining) NumOutputs() int                  { return n.outputSize }
func (n *Combining) IsInputNode() bool                { return false }
func (n *Combining) InputMode() InputMode             { return Unknown }
func (n *Combining) IsTrainable() bool                { return false }
func (n *Combining) Predecessors() []Node             { return []Node{n.primary, n.secondary} }
func (n *Combining) WeightsStorage() *weights.Storage { return nil }

func (n *Combining) CreateContext() *Context {
	return &Context{
		Outputs:             make([]float32, n.outputSize),
		InputError:          make([]float32, n.primary.NumOutputs()),
		SecondaryInputError: make([]float32, n.secondary.NumOutputs()),
	}
}

func (n *Combining) Run(ctx *Context) {
	switch n.op {
	case ConcatOp:
		copy(ctx.Outputs, ctx.Inputs)
		copy(ctx.Outputs[len(ctx.Inputs):], ctx.SecondaryInputs)
	case SumOp:
		for i := range ctx.Outputs {
			ctx.Outputs[i] = ctx.Inputs[i] + ctx.SecondaryInputs[i]
		}
	}
}

func (n *Combining) Backpropagate(ctx *Context, errorIn []float32, _ *grad.Gradients) {
	switch n.op {
	case ConcatOp:
		primaryWidth := len(ctx.InputError)
		copy(ctx.InputError, errorIn[:primaryWidth])
		copy(ctx.SecondaryInputError, errorIn[primaryWidth:])
	case SumOp:
		copy(ctx.InputError, errorIn)
		copy(ctx.SecondaryInputError, errorIn)
	}
}
