package classifier

import (
	"context"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
	"github.com/bryanwahyu/skiniq/internal/infra/model"
	"github.com/bryanwahyu/skiniq/internal/metrics"
)

// Text predicts issue tags from a free-text description.
type Text struct {
	Registry *model.Registry
}

var _ domain.TextClassifier = (*Text)(nil)

// Classify returns the predicted tags, possibly empty. A description with nothing left
// after normalization yields an empty result without loading the model.
func (c *Text) Classify(ctx context.Context, description string) ([]string, error) {
	doc := Normalize(description)
	if doc == "" {
		return []string{}, nil
	}
	if c.Registry == nil {
		return nil, fmt.Errorf("%w: no registry", domain.ErrModelUnavailable)
	}
	a, err := c.Registry.Text(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tags := a.Predict(doc)
	metrics.InferenceDuration.WithLabelValues("text").Observe(time.Since(start).Seconds())
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}
