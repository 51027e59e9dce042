package model

import (
	"context"
	"fmt"
)

// Tensor is a dense float32 tensor in NHWC layout.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zeroed tensor.
func NewTensor(shape ...int) Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return Tensor{Shape: append([]int(nil), shape...), Data: make([]float32, n)}
}

// At returns the value at the given NHWC index.
func (t Tensor) At(n, y, x, c int) float32 {
	return t.Data[t.offset(n, y, x, c)]
}

// Set stores v at the given NHWC index.
func (t Tensor) Set(n, y, x, c int, v float32) {
	t.Data[t.offset(n, y, x, c)] = v
}

func (t Tensor) offset(n, y, x, c int) int {
	h, w, ch := t.Shape[1], t.Shape[2], t.Shape[3]
	return ((n*h+y)*w+x)*ch + c
}

// Validate checks the tensor is a 4-D batch with consistent data length.
func (t Tensor) Validate() error {
	if len(t.Shape) != 4 {
		return fmt.Errorf("tensor: want 4 dims, got %d", len(t.Shape))
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	if n != len(t.Data) {
		return fmt.Errorf("tensor: shape %v needs %d values, have %d", t.Shape, n, len(t.Data))
	}
	return nil
}

// ScoreModel scores a batch of preprocessed images. It returns one score vector per
// batch item, ordered like skin.SkinTypes. Implementations must not mutate shared state.
type ScoreModel interface {
	Predict(ctx context.Context, batch Tensor) ([][]float32, error)
}
