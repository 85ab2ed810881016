// Package tensor provides the dense float64 tensor used by the MACE training core.
//
// Tensors are row-major and always contiguous. Shape manipulation
// (SwapAxes, Narrow, Select) returns new tensors and never aliases the
// source buffer, except Row which exposes a view of one leading slice.
package tensor

import (
	"fmt"
	"strings"
)

// Tensor is a contiguous, row-major float64 tensor tagged with a Device.
type Tensor struct {
	data   []float64
	shape  Shape
	stride []int
	device Device
}

// New wraps data in a tensor of the given shape.
//
// The slice is used directly, not copied. Returns an error if the shape is
// invalid or does not match len(data).
func New(data []float64, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("tensor: data has %d elements, shape %v needs %d",
			len(data), shape, shape.NumElements())
	}
	return &Tensor{
		data:   data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		device: CPU,
	}, nil
}

// MustNew is like New but panics on error.
func MustNew(data []float64, shape Shape) *Tensor {
	t, err := New(data, shape)
	if err != nil {
		panic(err)
	}
	return t
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape) *Tensor {
	return MustNew(make([]float64, shape.NumElements()), shape)
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Dim returns the size of dimension d. Negative d counts from the end.
func (t *Tensor) Dim(d int) int {
	return t.shape[axis(d, len(t.shape))]
}

// Data returns the underlying buffer.
func (t *Tensor) Data() []float64 {
	return t.data
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Device returns the device the tensor is tagged with.
func (t *Tensor) Device() Device {
	return t.device
}

// To returns the tensor on device d. If the tensor is already there it is
// returned as is, otherwise a copy tagged with d is returned.
func (t *Tensor) To(d Device) *Tensor {
	if t.device == d {
		return t
	}
	out := t.Clone()
	out.device = d
	return out
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Tensor{
		data:   data,
		shape:  t.shape.Clone(),
		stride: append([]int(nil), t.stride...),
		device: t.device,
	}
}

// offset converts a multi-index into a buffer offset.
// Negative indices count from the end of their dimension.
func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: %d indices for rank %d", len(idx), len(t.shape)))
	}
	off := 0
	for d, i := range idx {
		if i < 0 {
			i += t.shape[d]
		}
		if i < 0 || i >= t.shape[d] {
			panic(fmt.Sprintf("tensor: index %d out of range for dimension %d of size %d", idx[d], d, t.shape[d]))
		}
		off += i * t.stride[d]
	}
	return off
}

// At returns the element at idx. Negative indices count from the end,
// so t.At(-1, -1) is the last element of a matrix.
func (t *Tensor) At(idx ...int) float64 {
	return t.data[t.offset(idx)]
}

// Set stores v at idx.
func (t *Tensor) Set(v float64, idx ...int) {
	t.data[t.offset(idx)] = v
}

// Row returns a view of the contiguous block at leading index i.
// Writes through the returned slice modify t.
func (t *Tensor) Row(i int) []float64 {
	if len(t.shape) == 0 {
		panic("tensor: Row on scalar")
	}
	if i < 0 {
		i += t.shape[0]
	}
	if i < 0 || i >= t.shape[0] {
		panic(fmt.Sprintf("tensor: row %d out of range for size %d", i, t.shape[0]))
	}
	n := t.stride[0]
	return t.data[i*n : (i+1)*n]
}

// SwapAxes returns a copy with axes a and b exchanged.
func (t *Tensor) SwapAxes(a, b int) *Tensor {
	a, b = axis(a, len(t.shape)), axis(b, len(t.shape))
	shape := t.shape.Clone()
	shape[a], shape[b] = shape[b], shape[a]

	return t.gather(shape, func(idx []int) int {
		src := 0
		for d, v := range idx {
			sd := d
			switch d {
			case a:
				sd = b
			case b:
				sd = a
			}
			src += v * t.stride[sd]
		}
		return src
	})
}

// Narrow returns a copy of the slice [start, start+length) along dim.
func (t *Tensor) Narrow(dim, start, length int) *Tensor {
	dim = axis(dim, len(t.shape))
	if start < 0 || length <= 0 || start+length > t.shape[dim] {
		panic(fmt.Sprintf("tensor: narrow [%d, %d) out of range for dimension %d of size %d",
			start, start+length, dim, t.shape[dim]))
	}
	shape := t.shape.Clone()
	shape[dim] = length

	return t.gather(shape, func(idx []int) int {
		src := 0
		for d, v := range idx {
			if d == dim {
				v += start
			}
			src += v * t.stride[d]
		}
		return src
	})
}

// Select returns a copy of index along dim, with dim removed.
func (t *Tensor) Select(dim, index int) *Tensor {
	dim = axis(dim, len(t.shape))
	if index < 0 {
		index += t.shape[dim]
	}
	narrowed := t.Narrow(dim, index, 1)

	shape := make(Shape, 0, len(t.shape)-1)
	shape = append(shape, t.shape[:dim]...)
	shape = append(shape, t.shape[dim+1:]...)

	out := MustNew(narrowed.data, shape)
	out.device = t.device
	return out
}

// gather builds a tensor of shape by reading src(idx) for every output index.
func (t *Tensor) gather(shape Shape, src func(idx []int) int) *Tensor {
	out := Zeros(shape)
	out.device = t.device
	idx := make([]int, len(shape))
	for i := range out.data {
		out.data[i] = t.data[src(idx)]
		advance(idx, shape)
	}
	return out
}

// String returns a compact description, not the full contents.
func (t *Tensor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tensor%v on %s", t.shape, t.device)
	if len(t.data) <= 8 {
		fmt.Fprintf(&b, " %v", t.data)
	}
	return b.String()
}
