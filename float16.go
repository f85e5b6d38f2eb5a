package obbdata

import (
	"fmt"

	"github.com/x448/float16"
)

// Float16 returns a half precision copy of the tensor data for feeding
// mixed precision training steps
func (t *Tensor) Float16() []float16.Float16 {
	out := make([]float16.Float16, len(t.data))

	for i, v := range t.data {
		out[i] = float16.Fromfloat32(v)
	}

	return out
}

// TensorFromFloat16 builds a float32 Tensor from half precision data
func TensorFromFloat16(shape []int, data []float16.Float16) (*Tensor, error) {

	t := NewTensor(shape, 0)

	if len(data) != len(t.data) {
		return nil, fmt.Errorf("shape %v needs %d elements, got %d", shape, len(t.data),
			len(data))
	}

	for i, v := range data {
		t.data[i] = v.Float32()
	}

	return t, nil
}
