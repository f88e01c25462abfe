package node

import (
	"testing"

	"github.com/Witek902/Caissa-sub002/nn/grad"
)

func TestFullyConnectedO1EqualsBiasPlusDot(t *testing.T) {
	prev := &fakePrev{size: 3}
	s := newTestStorage(3, 1)
	// Set weights to known values: row j = j+1, bias = 10.
	w := s.Weights(0)
	w[0], w[1], w[2] = 1, 2, 3
	w[3] = 10 // bias row (index 3 == inputSize)

	fc := NewFullyConnected(prev, 3, 1, s)
	ctx := fc.CreateContext()
	ctx.Inputs = []float32{1, 2, 3}

	fc.Run(ctx)

	want := float32(10 + 1*1 + 2*2 + 3*3)
	if ctx.Outputs[0] != want {
		t.Fatalf("output = %v, want %v", ctx.Outputs[0], want)
	}
}

func TestFullyConnectedO1BackpropagateFusedKernel(t *testing.T) {
	prev := &fakePrev{size: 2}
	s := newTestStorage(2, 1)
	w := s.Weights(0)
	w[0], w[1] = 2, 5

	fc := NewFullyConnected(prev, 2, 1, s)
	ctx := fc.CreateContext()
	ctx.Inputs = []float32{3, 4}

	g := grad.New(2, 1, 1, false)
	fc.Backpropagate(ctx, []float32{0.5}, g)

	if ctx.InputError[0] != 1.0 || ctx.InputError[1] != 2.5 {
		t.Fatalf("InputError = %v, want [1 2.5]", ctx.InputError)
	}
	if got := g.Row(0, 0)[0]; got != 1.5 { // input[0]*error = 3*0.5
		t.Errorf("grad row 0 = %v, want 1.5", got)
	}
	if got := g.Row(0, 1)[0]; got != 2.0 { // input[1]*error = 4*0.5
		t.Errorf("grad row 1 = %v, want 2.0", got)
	}
	if got := g.Row(0, 2)[0]; got != 0.5 { // bias row == errorIn
		t.Errorf("bias grad = %v, want 0.5", got)
	}
}
