package node

import (
	"testing"

	"github.com/Witek902/Caissa-sub002/nn/grad"
	"github.com/Witek902/Caissa-sub002/nn/weights"
)

func TestSparseFloatOutputIsBiasWhenEmpty(t *testing.T) {
	s := newTestStorage(4, tileWidth)
	n := NewSparseFloatInput(4, tileWidth, s)
	ctx := n.CreateContext()
	ctx.ActiveFloat = nil

	n.Run(ctx)

	bias := s.Weights(0)[4*tileWidth:]
	for i, v := range ctx.Outputs {
		if v != bias[i] {
			t.Fatalf("output[%d] = %v, want bias %v", i, v, bias[i])
		}
	}
}

func TestSparseFloatDirtyRowsMatchActiveFeatures(t *testing.T) {
	s := newTestStorage(4, tileWidth)
	n := NewSparseFloatInput(4, tileWidth, s)
	ctx := n.CreateContext()
	ctx.ActiveFloat = []ActiveFeature{{Index: 1, Value: 0.5}, {Index: 3, Value: 2}}

	g := grad.New(4, tileWidth, 1, true)
	errorIn := make([]float32, tileWidth)
	for i := range errorIn {
		errorIn[i] = 1
	}
	n.Backpropagate(ctx, errorIn, g)

	for f := 0; f <= 4; f++ {
		want := f == 1 || f == 3 || f == 4 // bias row is index 4 (==inputSize)
		if got := g.Dirty(0, f); got != want {
			t.Errorf("row %d dirty=%v, want %v", f, got, want)
		}
	}
}

func TestSparseFloatGradientMatchesDenseFullyConnected(t *testing.T) {
	const inputSize = 4
	const outputSize = tileWidth

	sparseStorage := newTestStorage(inputSize, outputSize)
	sf := NewSparseFloatInput(inputSize, outputSize, sparseStorage)
	sfCtx := sf.CreateContext()
	sfCtx.ActiveFloat = []ActiveFeature{{Index: 0, Value: 2}, {Index: 2, Value: 0.5}}

	errorIn := make([]float32, outputSize)
	for i := range errorIn {
		errorIn[i] = float32(i) * 0.1
	}

	sfGrad := grad.New(inputSize, outputSize, 1, true)
	sf.Backpropagate(sfCtx, errorIn, sfGrad)

	denseStorage := weights.New(inputSize, outputSize, 1, false)
	copy(denseStorage.Weights(0), sparseStorage.Weights(0))
	prev := &fakePrev{size: inputSize}
	fc := NewFullyConnected(prev, inputSize, outputSize, denseStorage)
	fcCtx := fc.CreateContext()
	fcCtx.Inputs = []float32{2, 0, 0.5, 0}

	denseGrad := grad.New(inputSize, outputSize, 1, false)
	fc.Backpropagate(fcCtx, errorIn, denseGrad)

	for row := 0; row < inputSize; row++ {
		sparseRow := sfGrad.Row(0, row)
		denseRow := denseGrad.Row(0, row)
		for i := range sparseRow {
			if sparseRow[i] != denseRow[i] {
				t.Fatalf("row %d col %d: sparse=%v dense=%v", row, i, sparseRow[i], denseRow[i])
			}
		}
	}
	sparseBias := sfGrad.Row(0, inputSize)
	denseBias := denseGrad.Row(0, inputSize)
	for i := range sparseBias {
		if sparseBias[i] != denseBias[i] {
			t.Fatalf("bias col %d: sparse=%v dense=%v", i, sparseBias[i], denseBias[i])
		}
	}
}
