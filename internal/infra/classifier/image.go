// Package classifier adapts the model registry to the domain classifier ports.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
	"github.com/bryanwahyu/skiniq/internal/infra/model"
	"github.com/bryanwahyu/skiniq/internal/metrics"
)

// Image predicts a skin type from an encoded photo.
type Image struct {
	Registry *model.Registry
	Size     int // defaults to InputSize
}

var _ domain.ImageClassifier = (*Image)(nil)

func (c *Image) Classify(ctx context.Context, data []byte) (domain.SkinType, error) {
	size := c.Size
	if size <= 0 {
		size = InputSize
	}
	// decode before touching the registry so bad input never loads a model
	batch, err := Preprocess(data, size)
	if err != nil {
		return "", err
	}
	if c.Registry == nil {
		return "", fmt.Errorf("%w: no registry", domain.ErrModelUnavailable)
	}
	m, err := c.Registry.Image(ctx)
	if err != nil {
		return "", err
	}

	start := time.Now()
	scores, err := m.Predict(ctx, batch)
	metrics.InferenceDuration.WithLabelValues("image").Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, domain.ErrModelUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	if len(scores) != 1 || len(scores[0]) != len(domain.SkinTypes) {
		return "", fmt.Errorf("%w: unexpected score shape", domain.ErrModelUnavailable)
	}
	return domain.SkinTypeAt(argmax(scores[0]))
}

// argmax returns the first index holding the maximum.
func argmax(v []float32) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
