package node

import (
	"math"

	"github.com/Witek902/Caissa-sub002/nn/evalscore"
	"github.com/Witek902/Caissa-sub002/nn/grad"
	"github.com/Witek902/Caissa-sub002/nn/weights"
)

// ActivationFunc selects the element-wise nonlinearity an Activation
// node applies. EvalToGameScore is not named in the core spec; it is
// carried over from the source's Common.hpp/ActivationNode as an
// additional closed-set case (see SPEC_FULL.md §4).
type ActivationFunc int

const (
	Linear ActivationFunc = iota
	ReLU
	CReLU
	SqrCReLU
	Sigmoid
	EvalToGameScore
)

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

func apply(f ActivationFunc, x float32) float32 {
	switch f {
	case Linear:
		return x
	case ReLU:
		if x < 0 {
			return 0
		}
		return x
	case CReLU:
		if x <= 0 {
			return 0
		}
		if x >= 1 {
			return 1
		}
		return x
	case SqrCReLU:
		if x <= 0 {
			return 0
		}
		if x >= 1 {
			return 1
		}
		return x * x
	case Sigmoid:
		return sigmoid(x)
	case EvalToGameScore:
		return float32(evalscore.EvalToExpectedGameScore(float64(x)))
	default:
		panic("node: unknown activation function")
	}
}

// derivative returns f'(x), evaluated at the pre-activation value x
// (the node's input, not its output) — exactly what Activation.Backward
// needs (spec.md §4.4).
func derivative(f ActivationFunc, x float32) float32 {
	switch f {
	case Linear:
		return 1
	case ReLU:
		if x < 0 {
			return 0
		}
		return 1
	case CReLU:
		if x <= 0 || x >= 1 {
			return 0
		}
		return 1
	case SqrCReLU:
		if x <= 0 || x >= 1 {
			return 0
		}
		return 2 * x
	case Sigmoid:
		s := sigmoid(x)
		return s * (1 - s)
	case EvalToGameScore:
		return float32(evalscore.EvalToExpectedGameScoreDerivative(float64(x)))
	default:
		panic("node: unknown activation function")
	}
}

// Activation applies an element-wise nonlinearity to a predecessor's
// output. It owns no weights.
type Activation struct {
	previous Node
	fn       ActivationFunc
	size     int
}

// NewActivation builds an Activation node of fn applied to previous's
// output.
func NewActivation(previous Node, fn ActivationFunc) *Activation {
	return &Activation{previous: previous, fn: fn, size: previous.NumOutputs()}
}

func (n *Activation) NumInputs() int                   { return n.size }
func (n *Activation) NumOutputs() int                  { return n.size }
func (n *Activation) IsInputNode() bool                { return false }
func (n *Activation) InputMode() InputMode             { return Unknown }
func (n *Activation) IsTrainable() bool                { return false }
func (n *Activation) Predecessors() []Node             { return []Node{n.previous} }
func (n *Activation) WeightsStorage() *weights.Storage { return nil }

func (n *Activation) CreateContext() *Context {
	return &Context{
		Outputs:    make([]float32, n.size),
		InputError: make([]float32, n.size),
	}
}

func (n *Activation) Run(ctx *Context) {
	for i, x := range ctx.Inputs {
		ctx.Outputs[i] = apply(n.fn, x)
	}
}

func (n *Activation) Backpropagate(ctx *Context, errorIn []float32, _ *grad.Gradients) {
	for i, x := range ctx.Inputs {
		ctx.InputError[i] = errorIn[i] * derivative(n.fn, x)
	}
}
