package node

import "testing"

func TestConcatRunAndBackpropagate(t *testing.T) {
	a := &fakePrev{size: 2}
	b := &fakePrev{size: 3}
	c := NewConcat(a, b)

	ctx := c.CreateContext()
	ctx.Inputs = []float32{1, 2}
	ctx.SecondaryInputs = []float32{3, 4, 5}

	c.Run(ctx)
	want := []float32{1, 2, 3, 4, 5}
	for i := range want {
		if ctx.Outputs[i] != want[i] {
			t.Fatalf("Outputs = %v, want %v", ctx.Outputs, want)
		}
	}

	errorIn := []float32{10, 20, 30, 40, 50}
	c.Backpropagate(ctx, errorIn, nil)
	if ctx.InputError[0] != 10 || ctx.InputError[1] != 20 {
		t.Errorf("InputError = %v, want [10 20]", ctx.InputError)
	}
	if ctx.SecondaryInputError[0] != 30 || ctx.SecondaryInputError[1] != 40 || ctx.SecondaryInputError[2] != 50 {
		t.Errorf("SecondaryInputError = %v, want [30 40 50]", ctx.SecondaryInputError)
	}
}

func TestSumRunAndBackpropagate(t *testing.T) {
	a := &fakePrev{size: 2}
	b := &fakePrev{size: 2}
	s := NewSum(a, b)

	ctx := s.CreateContext()
	ctx.Inputs = []float32{1, 2}
	ctx.SecondaryInputs = []float32{10, 20}

	s.Run(ctx)
	if ctx.Outputs[0] != 11 || ctx.Outputs[1] != 22 {
		t.Fatalf("Outputs = %v, want [11 22]", ctx.Outputs)
	}

	errorIn := []float32{5, 6}
	s.Backpropagate(ctx, errorIn, nil)
	if ctx.InputError[0] != 5 || ctx.InputError[1] != 6 {
		t.Errorf("InputError = %v, want [5 6]", ctx.InputError)
	}
	if ctx.SecondaryInputError[0] != 5 || ctx.SecondaryInputError[1] != 6 {
		t.Errorf("SecondaryInputError = %v, want [5 6]", ctx.SecondaryInputError)
	}
}

func TestSumRequiresMatchingWidths(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for mismatched Sum widths")
		}
	}()
	NewSum(&fakePrev{size: 2}, &fakePrev{size: 3})
}
