package weights

import (
	"math"
	"testing"

	"github.com/Witek902/Caissa-sub002/nn/grad"
)

func allFinite(t *testing.T, values []float32) {
	t.Helper()
	for i, v := range values {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("element %d is not finite: %v", i, v)
		}
	}
}

func TestInitBoundsAndBiasRow(t *testing.T) {
	s := New(8, 4, 1, false)
	s.Init(8, 0.5)

	w := s.Weights(0)
	allFinite(t, w)

	biasOff := s.biasRowOffset()
	for i := 0; i < s.OutputSize; i++ {
		if w[biasOff+i] != 0.5 {
			t.Errorf("bias[%d] = %v, want 0.5", i, w[biasOff+i])
		}
	}
	for _, v := range w[:biasOff] {
		if v < -1 || v > 1 {
			t.Errorf("initial weight %v outside expected Halton range", v)
		}
	}
}

func TestInitCopiesVariant0IntoOthers(t *testing.T) {
	s := New(4, 2, 3, false)
	s.Init(4, 0.1)

	w0 := s.Weights(0)
	for v := 1; v < s.NumVariants(); v++ {
		wv := s.Weights(v)
		for i := range w0 {
			if wv[i] != w0[i] {
				t.Fatalf("variant %d diverges from variant 0 at %d: %v != %v", v, i, wv[i], w0[i])
			}
		}
	}
}

func TestUpdateKeepsWeightsBounded(t *testing.T) {
	s := New(2, 2, 1, false)
	s.Init(2, 0)
	s.WeightsRange = 1.0
	s.BiasRange = 1.0

	g := grad.New(2, 2, 1, false)
	for row := 0; row <= 2; row++ {
		g.AddToRow(0, row, []float32{5, -5})
	}

	opts := UpdateOptions{LearningRate: 0.5, WeightDecay: 1e-5, GradientScale: 1.0, ClampWeights: true}
	for i := 0; i < 50; i++ {
		s.Update(Adam, g, opts)
	}

	allFinite(t, s.Weights(0))
	for _, w := range s.Weights(0) {
		if w > 1.0001 || w < -1.0001 {
			t.Errorf("weight %v exceeds clamp bound 1.0", w)
		}
	}
}

func TestClampEnforcement(t *testing.T) {
	s := New(1, 1, 1, false)
	s.WeightsRange = 1.0
	s.BiasRange = 1.0
	w := s.Weights(0)
	w[0] = 0.999 // row 0, col 0

	g := grad.New(1, 1, 1, false)
	g.AddToRow(0, 0, []float32{1000})

	// A first ADADELTA step has size sqrt(eps/(1-rho)) ~ 4.5e-4 whatever the
	// gradient, so the learning rate is what carries this update past -1.
	opts := UpdateOptions{LearningRate: 10000, GradientScale: 1.0, ClampWeights: true}
	s.Update(Adadelta, g, opts)

	if got := s.Weights(0)[0]; got != -1.0 && got != 1.0 {
		t.Fatalf("expected weight clamped to ±1.0, got %v", got)
	}
}

func TestMaskFreezesRow(t *testing.T) {
	s := New(2, 1, 1, false)
	s.Init(2, 0)
	frozenRow := 0
	s.Mask[frozenRow*s.OutputSize] = 0

	before := append([]float32(nil), s.Weights(0)...)

	g := grad.New(2, 1, 1, false)
	for row := 0; row <= 2; row++ {
		g.AddToRow(0, row, []float32{1})
	}

	opts := UpdateOptions{LearningRate: 0.5, GradientScale: 1.0, ClampWeights: true}
	for i := 0; i < 10; i++ {
		s.Update(Adam, g, opts)
	}

	after := s.Weights(0)
	if after[frozenRow*s.OutputSize] != before[frozenRow*s.OutputSize] {
		t.Errorf("frozen row changed: %v != %v", after[frozenRow*s.OutputSize], before[frozenRow*s.OutputSize])
	}
	otherRow := 1 * s.OutputSize
	if after[otherRow] == before[otherRow] {
		t.Errorf("expected unfrozen row to change")
	}
}

func TestVariantFallbackClampsToLast(t *testing.T) {
	s := New(1, 1, 2, false)
	if got := s.Variant(5); got != 1 {
		t.Errorf("Variant(5) = %d, want 1", got)
	}
	if got := s.Variant(-1); got != 0 {
		t.Errorf("Variant(-1) = %d, want 0", got)
	}
}
