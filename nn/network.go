// Package nn wires node.Node kinds into a network: a topologically
// ordered graph, per-runner scratch, and the forward pass that routes a
// caller's InputDesc into the first layer and threads each node's
// output into the next (spec.md §3 "Network", §4.5, §6).
package nn

import (
	"fmt"
	"math"

	"github.com/Witek902/Caissa-sub002/nn/grad"
	"github.com/Witek902/Caissa-sub002/nn/node"
	"github.com/Witek902/Caissa-sub002/nn/weights"
)

// MaxInputNodes bounds how many leading input nodes a Network may have,
// matching the array-of-inputs shape InputDesc carries (spec.md §3).
const MaxInputNodes = 4

// NodeInput is one input slot's value, tagged by which of the three
// input modes it carries. Exactly one of the slices is populated,
// matching the mode the corresponding input node advertises.
type NodeInput struct {
	Mode         node.InputMode
	Full         []float32
	Sparse       []node.ActiveFeature
	SparseBinary []uint16
}

// Validate checks the invariants the source's NodeInput::Validate
// enforces: no NaN feature values, and for sparse modes, no duplicate
// indices (spec.md §7, SPEC_FULL.md §4). It is not on any hot path —
// callers that want this checked call it once per batch item, not per
// kernel invocation.
func (in NodeInput) Validate() error {
	switch in.Mode {
	case node.Full:
		for i, v := range in.Full {
			if math.IsNaN(float64(v)) {
				return fmt.Errorf("nn: NodeInput Full[%d] is NaN", i)
			}
		}
	case node.Sparse:
		seen := make(map[uint32]struct{}, len(in.Sparse))
		for _, f := range in.Sparse {
			if math.IsNaN(float64(f.Value)) {
				return fmt.Errorf("nn: NodeInput Sparse index %d has NaN value", f.Index)
			}
			if _, dup := seen[f.Index]; dup {
				return fmt.Errorf("nn: NodeInput Sparse has duplicate index %d", f.Index)
			}
			seen[f.Index] = struct{}{}
		}
	case node.SparseBinary:
		seen := make(map[uint16]struct{}, len(in.SparseBinary))
		for _, idx := range in.SparseBinary {
			if _, dup := seen[idx]; dup {
				return fmt.Errorf("nn: NodeInput SparseBinary has duplicate index %d", idx)
			}
			seen[idx] = struct{}{}
		}
	}
	return nil
}

// InputDesc is the caller-supplied description of one training/run
// example: up to MaxInputNodes input slots plus a variant selector
// routed to every trainable node's weight storage (spec.md §3).
type InputDesc struct {
	Inputs  [MaxInputNodes]NodeInput
	Variant int
}

// Validate runs NodeInput.Validate over every populated input slot.
func (d InputDesc) Validate() error {
	for i := range d.Inputs {
		if err := d.Inputs[i].Validate(); err != nil {
			return fmt.Errorf("nn: input slot %d: %w", i, err)
		}
	}
	return nil
}

// OutputMode tags whether a TrainingVector's target is a single scalar
// or a full vector (spec.md §6).
type OutputMode int

const (
	Single OutputMode = iota
	FullOutput
)

// NodeOutput is a training target: either a single float or a full
// vector, matching the last node's output width.
type NodeOutput struct {
	Mode   OutputMode
	Single float32
	Full   []float32
}

// TrainingVector pairs one input example with its target output.
type TrainingVector struct {
	Input  InputDesc
	Output NodeOutput
}

// errorSource tells the backward pass where a given node's output error
// lives once some later node has computed it: either the final loss
// gradient (for the last node) or a slot in a later node's context.
type errorSource struct {
	isLast    bool
	consumer  int
	secondary bool
}

// Network is an ordered, topologically sorted sequence of nodes: every
// node's predecessor(s) appear earlier in the list. The last node is
// the network's output (spec.md §3).
type Network struct {
	nodes []node.Node
	index map[node.Node]int
}

// Init builds a Network from nodes, which must already be in
// topological order with the final node as the output.
func (net *Network) Init(nodes []node.Node) {
	net.nodes = nodes
	net.index = make(map[node.Node]int, len(nodes))
	for i, n := range nodes {
		net.index[n] = i
	}
}

// Nodes returns the network's node list in topological order.
func (net *Network) Nodes() []node.Node { return net.nodes }

// Save always reports failure: the core has no on-disk format (the
// quantized packed-network layout is an external collaborator's
// concern — spec.md §1, §6, §9 Open Questions).
func (net *Network) Save(path string) bool { return false }

// Load always reports failure, mirroring Save.
func (net *Network) Load(path string) bool { return false }

// RunContext holds one runner's private scratch: a Context per node
// plus the wiring RunContext.Init precomputes so backpropagation knows
// where to read each node's output error from (spec.md §3, §4.5).
type RunContext struct {
	contexts   []*node.Context
	errorSrc   []errorSource
	tempValues []float32
}

// Init allocates this RunContext's per-node scratch and precomputes
// error routing for net. One RunContext must exist per concurrent
// runner (worker thread); it is reused across every sample that worker
// processes (spec.md §3 "Lifecycle", §5).
func (ctx *RunContext) Init(net *Network) {
	ctx.contexts = make([]*node.Context, len(net.nodes))
	for i, n := range net.nodes {
		ctx.contexts[i] = n.CreateContext()
	}

	ctx.errorSrc = make([]errorSource, len(net.nodes))
	last := len(net.nodes) - 1
	ctx.errorSrc[last] = errorSource{isLast: true}

	for c, n := range net.nodes {
		preds := n.Predecessors()
		for portIdx, pred := range preds {
			pi, ok := net.index[pred]
			if !ok {
				panic("nn: predecessor not found in network node list")
			}
			ctx.errorSrc[pi] = errorSource{consumer: c, secondary: portIdx == 1}
		}
	}

	ctx.tempValues = make([]float32, net.nodes[last].NumOutputs())
}

// errorFor returns the error buffer node i's Backpropagate should
// receive, given lossGrad (the final node's output error).
func (ctx *RunContext) errorFor(i int, lossGrad []float32) []float32 {
	src := ctx.errorSrc[i]
	if src.isLast {
		return lossGrad
	}
	consumerCtx := ctx.contexts[src.consumer]
	if src.secondary {
		return consumerCtx.SecondaryInputError
	}
	return consumerCtx.InputError
}

// Outputs returns the last node's output buffer after a Run.
func (ctx *RunContext) Outputs() []float32 {
	return ctx.contexts[len(ctx.contexts)-1].Outputs
}

func bindInput(c *node.Context, in NodeInput) {
	switch in.Mode {
	case node.Full:
		c.Inputs = in.Full
	case node.Sparse:
		c.ActiveFloat = in.Sparse
	case node.SparseBinary:
		c.ActiveBinary = in.SparseBinary
	}
}

// Run evaluates net over input, writing into ctx, and returns the last
// node's output. For a fixed set of weights, Run is deterministic: the
// same input always produces bit-identical output (spec.md §8).
func (net *Network) Run(input InputDesc, ctx *RunContext) []float32 {
	inputSlot := 0
	for i, n := range net.nodes {
		c := ctx.contexts[i]
		c.Variant = input.Variant

		if n.IsInputNode() {
			bindInput(c, input.Inputs[inputSlot])
			inputSlot++
		} else if preds := n.Predecessors(); len(preds) == 2 {
			c.Inputs = ctx.contexts[net.index[preds[0]]].Outputs
			c.SecondaryInputs = ctx.contexts[net.index[preds[1]]].Outputs
		} else {
			c.Inputs = ctx.contexts[net.index[preds[0]]].Outputs
		}

		n.Run(c)
	}
	return ctx.Outputs()
}

// Backpropagate walks net's nodes in reverse, handing each its output
// error (sourced from lossGrad for the last node, or from whichever
// later node's InputError/SecondaryInputError it feeds, per
// RunContext.Init) and its Gradients buffer (nil for non-trainable
// nodes). gradientsFor looks up the per-worker Gradients buffer for a
// trainable node's weight storage; it is supplied by package trainer.
func (net *Network) Backpropagate(ctx *RunContext, lossGrad []float32, gradientsFor func(*weights.Storage) *grad.Gradients) {
	for i := len(net.nodes) - 1; i >= 0; i-- {
		n := net.nodes[i]
		errorIn := ctx.errorFor(i, lossGrad)

		var g *grad.Gradients
		if n.IsTrainable() {
			g = gradientsFor(n.WeightsStorage())
		}
		n.Backpropagate(ctx.contexts[i], errorIn, g)
	}
}

// TempValues returns the scratch buffer sized to the last node's output
// width, used by the trainer to compute the loss derivative in place.
func (ctx *RunContext) TempValues() []float32 { return ctx.tempValues }
