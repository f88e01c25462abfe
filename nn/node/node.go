// Package node implements the five computation-node kinds that make up
// a network graph: SparseBinaryInput, SparseFloatInput, FullyConnected,
// Activation, and Combining (Concat/Sum). Each kind owns its own
// forward and backward kernel; the shared Node interface lets the
// surrounding nn package wire them into a topologically ordered graph
// without knowing which concrete kind it's holding (spec.md §3, §4.3,
// §4.4, §9 "Polymorphism").
package node

import (
	"github.com/Witek902/Caissa-sub002/nn/grad"
	"github.com/Witek902/Caissa-sub002/nn/weights"
)

// InputMode tags how an input-node's context should be populated by the
// caller's InputDesc (spec.md §3).
type InputMode int

const (
	// Unknown marks a non-input node; it has no InputMode.
	Unknown InputMode = iota
	Full
	Sparse
	SparseBinary
)

// ActiveFeature is one (index, value) pair of a sparse-float input
// vector.
type ActiveFeature struct {
	Index uint32
	Value float32
}

// Context holds the per-node scratch a Run/Backpropagate call reads and
// writes: a non-owning view of this node's inputs, its own output
// buffer, and the error buffer its predecessor(s) should read from
// during backpropagation (spec.md §3 "NodeRunContext"). Only the fields
// relevant to a given node kind are populated; the rest stay nil.
type Context struct {
	Inputs  []float32
	Outputs []float32

	// Variant selects which of a trainable node's parallel weight
	// matrices this context's Run/Backpropagate calls use (spec.md §3
	// InputDesc.variant, §9 "Variants"). Non-trainable node kinds
	// ignore it. The network sets it from the caller's InputDesc
	// before each Run.
	Variant int

	InputError []float32

	// Secondary* are populated only for Combining nodes.
	SecondaryInputs      []float32
	SecondaryInputError  []float32

	// Active* are populated only for the matching sparse input kind.
	ActiveBinary []uint16
	ActiveFloat  []ActiveFeature
}

// Node is the shared capability surface every concrete node kind
// implements. Forward/backward kernels never return errors (spec.md
// §7): malformed graphs are a programmer error caught at construction
// time, not a runtime condition.
type Node interface {
	NumInputs() int
	NumOutputs() int

	// IsInputNode reports whether this node consumes an InputDesc slot
	// directly rather than a predecessor's output.
	IsInputNode() bool
	// InputMode is Unknown for non-input nodes.
	InputMode() InputMode

	// IsTrainable reports whether this node owns a weight storage and
	// therefore needs a Gradients buffer passed to Backpropagate.
	IsTrainable() bool

	// WeightsStorage returns the shared storage this node updates, or
	// nil if IsTrainable() is false.
	WeightsStorage() *weights.Storage

	// Predecessors returns this node's direct predecessor(s) in
	// topological order: none for input nodes, one for Activation and
	// FullyConnected, two for Combining.
	Predecessors() []Node

	// CreateContext allocates a Context of the right shape for this
	// node kind.
	CreateContext() *Context

	// Run computes ctx.Outputs from ctx.Inputs (and ctx.SecondaryInputs
	// / ctx.ActiveBinary / ctx.ActiveFloat, depending on kind).
	Run(ctx *Context)

	// Backpropagate receives errorIn, the derivative of loss with
	// respect to this node's output (len == NumOutputs), and writes
	// ctx.InputError (and ctx.SecondaryInputError for Combining nodes).
	// g is nil unless IsTrainable() — non-trainable kinds ignore it.
	Backpropagate(ctx *Context, errorIn []float32, g *grad.Gradients)
}

const activationEpsilon = 1e-10
