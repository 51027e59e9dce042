package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
	"github.com/bryanwahyu/skiniq/internal/infra/model/text"
	"github.com/bryanwahyu/skiniq/internal/metrics"
)

// ImageLoader loads the image scoring model.
type ImageLoader func(ctx context.Context) (ScoreModel, error)

// TextLoader loads the text vectorizer, classifier and label binarizer.
type TextLoader func(ctx context.Context) (*text.Artifacts, error)

// Registry owns the process-wide, read-only model artifacts. Each artifact group is loaded
// at most once on first use; concurrent first callers wait for the same load. A failed
// load is not remembered, so the next caller tries again.
type Registry struct {
	image lazy[ScoreModel]
	text  lazy[*text.Artifacts]
	log   zerolog.Logger
}

// NewRegistry creates a registry. Nil loaders make the corresponding group unavailable.
func NewRegistry(img ImageLoader, txt TextLoader, log zerolog.Logger) *Registry {
	r := &Registry{log: log.With().Str("component", "model_registry").Logger()}
	r.image.name = "image"
	r.image.load = img
	r.text.name = "text"
	r.text.load = txt
	return r
}

// Image returns the image scoring model, loading it if needed.
func (r *Registry) Image(ctx context.Context) (ScoreModel, error) {
	return r.image.get(ctx, r.log)
}

// Text returns the text artifacts, loading them if needed.
func (r *Registry) Text(ctx context.Context) (*text.Artifacts, error) {
	return r.text.get(ctx, r.log)
}

// EnsureLoaded loads every artifact group. Idempotent.
func (r *Registry) EnsureLoaded(ctx context.Context) error {
	_, ierr := r.Image(ctx)
	_, terr := r.Text(ctx)
	return errors.Join(ierr, terr)
}

// Loaded reports whether every artifact group is resident.
func (r *Registry) Loaded() bool {
	return r.image.val.Load() != nil && r.text.val.Load() != nil
}

// Check implements the readiness checker used by the health handler.
func (r *Registry) Check(ctx context.Context) error {
	if !r.Loaded() {
		return errors.New("models not loaded")
	}
	return nil
}

type lazy[T any] struct {
	name string
	load func(ctx context.Context) (T, error)
	mu   sync.Mutex
	val  atomic.Pointer[T]
}

func (l *lazy[T]) get(ctx context.Context, log zerolog.Logger) (T, error) {
	if v := l.val.Load(); v != nil {
		return *v, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if v := l.val.Load(); v != nil {
		return *v, nil
	}

	var zero T
	if l.load == nil {
		return zero, fmt.Errorf("%w: no %s model configured", domain.ErrModelUnavailable, l.name)
	}
	v, err := l.load(ctx)
	if err != nil {
		metrics.ModelLoadsTotal.WithLabelValues(l.name, "error").Inc()
		log.Error().Err(err).Str("artifact", l.name).Msg("model load failed")
		if errors.Is(err, domain.ErrModelUnavailable) {
			return zero, err
		}
		return zero, fmt.Errorf("%w: load %s: %v", domain.ErrModelUnavailable, l.name, err)
	}
	l.val.Store(&v)
	metrics.ModelLoadsTotal.WithLabelValues(l.name, "ok").Inc()
	log.Info().Str("artifact", l.name).Msg("model loaded")
	return v, nil
}
