package embedding

import (
	"context"
	"fmt"
	"math"

	"pestmatch/internal/domain"
)

// MockModel is a deterministic stand-in for a pretrained network. It
// average-pools each channel of the input over a grid x grid layout, giving
// grid*grid*3 values. Identical images produce identical embeddings, and
// visually close images produce close ones.
type MockModel struct {
	grid int
}

// NewMockModel sizes the grid so the output length is close to dimension.
func NewMockModel(dimension int) *MockModel {
	grid := int(math.Sqrt(float64(dimension) / 3))
	if grid < 1 {
		grid = 1
	}
	return &MockModel{grid: grid}
}

func (m *MockModel) Predict(_ context.Context, input domain.Tensor) ([]float32, error) {
	if len(input.Shape) != 4 || input.Shape[3] != 3 {
		return nil, fmt.Errorf("mock model expects [1,H,W,3] input, got %v", input.Shape)
	}
	height, width := input.Shape[1], input.Shape[2]
	if height < m.grid || width < m.grid {
		return nil, fmt.Errorf("input %dx%d smaller than grid %d", width, height, m.grid)
	}

	out := make([]float32, m.grid*m.grid*3)
	counts := make([]int, m.grid*m.grid)
	for y := 0; y < height; y++ {
		gy := y * m.grid / height
		for x := 0; x < width; x++ {
			gx := x * m.grid / width
			cell := gy*m.grid + gx
			base := (y*width + x) * 3
			out[cell*3] += input.Data[base]
			out[cell*3+1] += input.Data[base+1]
			out[cell*3+2] += input.Data[base+2]
			counts[cell]++
		}
	}
	for cell, n := range counts {
		for c := 0; c < 3; c++ {
			out[cell*3+c] /= float32(n)
		}
	}
	return out, nil
}

func (m *MockModel) Dimension() int {
	return m.grid * m.grid * 3
}

func (m *MockModel) ModelName() string {
	return "mock"
}

func (m *MockModel) Close() error {
	return nil
}
