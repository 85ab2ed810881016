package tensor

import (
	"errors"
	"testing"
)

func seq(shape Shape) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = float64(i)
	}
	return t
}

func TestNew_ShapeMismatch(t *testing.T) {
	if _, err := New(make([]float64, 5), Shape{2, 3}); err == nil {
		t.Fatal("expected error for 5 elements in (2×3)")
	}
	if _, err := New(nil, Shape{0, 3}); err == nil {
		t.Fatal("expected error for zero dimension")
	}
}

func TestAt_NegativeIndex(t *testing.T) {
	x := seq(Shape{3, 4})
	if got := x.At(-1, -1); got != 11 {
		t.Errorf("At(-1,-1) = %v, want 11", got)
	}
	if got := x.At(1, -2); got != 6 {
		t.Errorf("At(1,-2) = %v, want 6", got)
	}
}

func TestAt_OutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	seq(Shape{2, 2}).At(2, 0)
}

func TestSwapAxes(t *testing.T) {
	// (batch=2, features=3, time=4) -> (2, 4, 3)
	x := seq(Shape{2, 3, 4})
	y := x.SwapAxes(1, 2)

	if !y.Shape().Equal(Shape{2, 4, 3}) {
		t.Fatalf("shape = %v, want (2×4×3)", y.Shape())
	}
	for b := range 2 {
		for f := range 3 {
			for ti := range 4 {
				if x.At(b, f, ti) != y.At(b, ti, f) {
					t.Fatalf("mismatch at b=%d f=%d t=%d", b, f, ti)
				}
			}
		}
	}
	// Source is untouched.
	if x.At(0, 1, 0) != 4 {
		t.Errorf("source modified")
	}
}

func TestNarrowAndSelect(t *testing.T) {
	x := seq(Shape{2, 3, 2})

	tail := x.Narrow(1, 1, 2)
	if !tail.Shape().Equal(Shape{2, 2, 2}) {
		t.Fatalf("narrow shape = %v", tail.Shape())
	}
	if tail.At(0, 0, 0) != x.At(0, 1, 0) || tail.At(1, 1, 1) != x.At(1, 2, 1) {
		t.Errorf("narrow picked wrong elements: %v", tail.Data())
	}

	first := x.Select(1, 0)
	if !first.Shape().Equal(Shape{2, 2}) {
		t.Fatalf("select shape = %v", first.Shape())
	}
	want := []float64{0, 1, 6, 7}
	for i, v := range first.Data() {
		if v != want[i] {
			t.Fatalf("select data = %v, want %v", first.Data(), want)
		}
	}

	last := x.Select(1, -1)
	if last.At(1, 1) != x.At(1, 2, 1) {
		t.Errorf("select(-1) = %v", last.Data())
	}
}

func TestRowIsView(t *testing.T) {
	x := seq(Shape{2, 3})
	r := x.Row(1)
	r[0] = 42
	if x.At(1, 0) != 42 {
		t.Errorf("Row did not alias the buffer")
	}
}

func TestTo(t *testing.T) {
	x := seq(Shape{2})
	if x.To(CPU) != x {
		t.Error("To(same device) should return the receiver")
	}
	g := x.To(WebGPU)
	if g.Device() != WebGPU || g == x {
		t.Errorf("To(WebGPU) = %v", g)
	}
	g.Data()[0] = 7
	if x.Data()[0] != 0 {
		t.Error("transfer aliased the source buffer")
	}
}

func TestParseDevice(t *testing.T) {
	d, err := ParseDevice(" CPU ")
	if err != nil || d != CPU {
		t.Fatalf("ParseDevice(CPU) = %v, %v", d, err)
	}
	if d, _ := ParseDevice("webgpu"); d != WebGPU {
		t.Errorf("ParseDevice(webgpu) = %v", d)
	}
	if _, err := ParseDevice("cuda"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("ParseDevice(cuda) err = %v", err)
	}
}

func TestShapeString(t *testing.T) {
	if s := (Shape{2, 3, 4}).String(); s != "(2×3×4)" {
		t.Errorf("String() = %q", s)
	}
}
