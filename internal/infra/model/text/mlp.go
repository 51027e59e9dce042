package text

import (
	"fmt"
	"math"
)

// Network is a fitted multi-layer perceptron. Coefs[i] has shape [fan_in][fan_out].
type Network struct {
	Coefs         [][][]float64 `json:"coefs"`
	Intercepts    [][]float64   `json:"intercepts"`
	Activation    string        `json:"activation"`     // relu, tanh, logistic, identity
	OutActivation string        `json:"out_activation"` // logistic (multi-label) or softmax
}

// Init validates layer shapes.
func (m *Network) Init() error {
	if len(m.Coefs) == 0 {
		return fmt.Errorf("mlp: no layers")
	}
	if len(m.Intercepts) != len(m.Coefs) {
		return fmt.Errorf("mlp: %d weight layers but %d intercept layers", len(m.Coefs), len(m.Intercepts))
	}
	for i, w := range m.Coefs {
		if len(w) == 0 {
			return fmt.Errorf("mlp: layer %d has no inputs", i)
		}
		out := len(m.Intercepts[i])
		for r, row := range w {
			if len(row) != out {
				return fmt.Errorf("mlp: layer %d row %d has %d outputs, want %d", i, r, len(row), out)
			}
		}
		if i > 0 && len(w) != len(m.Intercepts[i-1]) {
			return fmt.Errorf("mlp: layer %d expects %d inputs, previous layer gives %d", i, len(w), len(m.Intercepts[i-1]))
		}
	}
	if m.Activation == "" {
		m.Activation = "relu"
	}
	if _, err := activation(m.Activation); err != nil {
		return err
	}
	switch m.OutActivation {
	case "":
		m.OutActivation = "logistic"
	case "logistic", "softmax":
	default:
		return fmt.Errorf("mlp: unsupported out_activation %q", m.OutActivation)
	}
	return nil
}

// InputDim is the expected feature count.
func (m *Network) InputDim() int { return len(m.Coefs[0]) }

// OutputDim is the number of labels.
func (m *Network) OutputDim() int { return len(m.Intercepts[len(m.Intercepts)-1]) }

// Predict returns a binary indicator per label.
func (m *Network) Predict(x SparseVector) []int {
	act, _ := activation(m.Activation)

	// First layer consumes the sparse input directly.
	h := append([]float64(nil), m.Intercepts[0]...)
	for k, idx := range x.Index {
		row := m.Coefs[0][idx]
		for j := range h {
			h[j] += x.Value[k] * row[j]
		}
	}

	last := len(m.Coefs) - 1
	for layer := 1; layer <= last; layer++ {
		for j := range h {
			h[j] = act(h[j])
		}
		next := append([]float64(nil), m.Intercepts[layer]...)
		for i, hv := range h {
			if hv == 0 {
				continue
			}
			row := m.Coefs[layer][i]
			for j := range next {
				next[j] += hv * row[j]
			}
		}
		h = next
	}

	out := make([]int, len(h))
	if m.OutActivation == "softmax" {
		best := 0
		for j := range h {
			if h[j] > h[best] {
				best = j
			}
		}
		out[best] = 1
		return out
	}
	for j, z := range h {
		if logistic(z) > 0.5 {
			out[j] = 1
		}
	}
	return out
}

func activation(name string) (func(float64) float64, error) {
	switch name {
	case "relu":
		return func(x float64) float64 { return math.Max(0, x) }, nil
	case "tanh":
		return math.Tanh, nil
	case "logistic":
		return logistic, nil
	case "identity":
		return func(x float64) float64 { return x }, nil
	}
	return nil, fmt.Errorf("mlp: unsupported activation %q", name)
}

func logistic(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
