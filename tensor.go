package obbdata

import (
	"fmt"
)

// Tensor is a dense row major float32 array with a fixed shape
type Tensor struct {
	shape   []int
	strides []int
	data    []float32
}

// NewTensor allocates a Tensor of the given shape with every element set to
// fill
func NewTensor(shape []int, fill float32) *Tensor {

	t := &Tensor{
		shape:   make([]int, len(shape)),
		strides: make([]int, len(shape)),
	}

	copy(t.shape, shape)

	size := 1

	for i := len(shape) - 1; i >= 0; i-- {
		t.strides[i] = size
		size *= shape[i]
	}

	t.data = make([]float32, size)

	if fill != 0 {
		for i := range t.data {
			t.data[i] = fill
		}
	}

	return t
}

// Shape returns a copy of the tensor dimensions
func (t *Tensor) Shape() []int {
	out := make([]int, len(t.shape))
	copy(out, t.shape)
	return out
}

// Data returns the underlying element buffer
func (t *Tensor) Data() []float32 {
	return t.data
}

// Len returns the number of elements
func (t *Tensor) Len() int {
	return len(t.data)
}

// At returns the element at the given index
func (t *Tensor) At(idx ...int) float32 {
	return t.data[t.offset(idx)]
}

// Set the element at the given index
func (t *Tensor) Set(val float32, idx ...int) {
	t.data[t.offset(idx)] = val
}

// Sub returns the block of elements for index i of the leading dimension
func (t *Tensor) Sub(i int) ([]float32, error) {

	if len(t.shape) == 0 || i < 0 || i >= t.shape[0] {
		return nil, fmt.Errorf("index %d out of range for shape %v", i, t.shape)
	}

	stride := t.strides[0]

	return t.data[i*stride : (i+1)*stride], nil
}

// offset calculates the position of idx in the data buffer
func (t *Tensor) offset(idx []int) int {

	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor index %v does not match shape %v", idx, t.shape))
	}

	off := 0

	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("tensor index %v out of range for shape %v", idx, t.shape))
		}

		off += v * t.strides[i]
	}

	return off
}
