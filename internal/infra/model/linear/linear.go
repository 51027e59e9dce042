// Package linear loads a dense softmax image-scoring artifact exported from training.
package linear

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/goccy/go-json"

	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
	"github.com/bryanwahyu/skiniq/internal/infra/model"
)

// Model scores flattened NHWC input with a single dense layer followed by softmax.
type Model struct {
	Labels     []string    `json:"labels"`
	InputShape []int       `json:"input_shape"` // [H, W, C]
	Weights    [][]float32 `json:"weights"`     // [len(Labels)][H*W*C]
	Bias       []float32   `json:"bias"`
}

// Validate checks the artifact against the skin type ordering and its own shapes.
func (m *Model) Validate() error {
	if len(m.Labels) != len(domain.SkinTypes) {
		return fmt.Errorf("linear: %d labels, want %d", len(m.Labels), len(domain.SkinTypes))
	}
	for i, l := range m.Labels {
		if l != string(domain.SkinTypes[i]) {
			return fmt.Errorf("linear: label %d is %q, want %q", i, l, domain.SkinTypes[i])
		}
	}
	if len(m.InputShape) != 3 {
		return fmt.Errorf("linear: input_shape must be [H, W, C]")
	}
	features := m.InputShape[0] * m.InputShape[1] * m.InputShape[2]
	if len(m.Weights) != len(m.Labels) || len(m.Bias) != len(m.Labels) {
		return fmt.Errorf("linear: weights/bias must have one row per label")
	}
	for i, row := range m.Weights {
		if len(row) != features {
			return fmt.Errorf("linear: weights row %d has %d values, want %d", i, len(row), features)
		}
	}
	return nil
}

// Predict implements model.ScoreModel.
func (m *Model) Predict(ctx context.Context, batch model.Tensor) ([][]float32, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	if batch.Shape[1] != m.InputShape[0] || batch.Shape[2] != m.InputShape[1] || batch.Shape[3] != m.InputShape[2] {
		return nil, fmt.Errorf("linear: input %v does not match model %v", batch.Shape[1:], m.InputShape)
	}
	per := len(batch.Data) / batch.Shape[0]
	out := make([][]float32, batch.Shape[0])
	for n := range out {
		x := batch.Data[n*per : (n+1)*per]
		logits := make([]float64, len(m.Weights))
		for k, row := range m.Weights {
			sum := float64(m.Bias[k])
			for i, w := range row {
				sum += float64(w) * float64(x[i])
			}
			logits[k] = sum
		}
		out[n] = softmax(logits)
	}
	return out, nil
}

func softmax(z []float64) []float32 {
	maxZ := math.Inf(-1)
	for _, v := range z {
		maxZ = math.Max(maxZ, v)
	}
	var sum float64
	exps := make([]float64, len(z))
	for i, v := range z {
		exps[i] = math.Exp(v - maxZ)
		sum += exps[i]
	}
	out := make([]float32, len(z))
	for i := range exps {
		out[i] = float32(exps[i] / sum)
	}
	return out
}

// Load reads the artifact from path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrModelUnavailable, path, err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrModelUnavailable, path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	return &m, nil
}

// Loader adapts Load to model.ImageLoader.
func Loader(path string) model.ImageLoader {
	return func(ctx context.Context) (model.ScoreModel, error) {
		return Load(path)
	}
}
