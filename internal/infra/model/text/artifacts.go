// Package text holds the fitted text-classification artifacts: a TF-IDF vectorizer, a
// multi-layer perceptron and a label binarizer, exported from training as JSON.
package text

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
)

// Artifacts is the loaded, validated text model.
type Artifacts struct {
	Vectorizer *Vectorizer
	Network    *Network
	Binarizer  *Binarizer
}

// Paths of the three artifact files.
type Paths struct {
	Vectorizer string
	Classifier string
	Binarizer  string
}

// Predict runs vectorizer, network and inverse binarizer over a cleaned document.
func (a *Artifacts) Predict(doc string) []string {
	return a.Binarizer.Inverse(a.Network.Predict(a.Vectorizer.Transform(doc)))
}

// Validate checks the three artifacts fit together.
func (a *Artifacts) Validate() error {
	if err := a.Vectorizer.Init(); err != nil {
		return err
	}
	if err := a.Network.Init(); err != nil {
		return err
	}
	if err := a.Binarizer.Init(); err != nil {
		return err
	}
	if a.Network.InputDim() != a.Vectorizer.Dim() {
		return fmt.Errorf("classifier expects %d features, vectorizer produces %d", a.Network.InputDim(), a.Vectorizer.Dim())
	}
	if a.Network.OutputDim() != len(a.Binarizer.Classes) {
		return fmt.Errorf("classifier has %d outputs, binarizer has %d classes", a.Network.OutputDim(), len(a.Binarizer.Classes))
	}
	return nil
}

// Load reads and validates the artifacts. Failures wrap domain.ErrModelUnavailable.
func Load(p Paths) (*Artifacts, error) {
	a := &Artifacts{Vectorizer: &Vectorizer{}, Network: &Network{}, Binarizer: &Binarizer{}}
	if err := readJSON(p.Vectorizer, a.Vectorizer); err != nil {
		return nil, err
	}
	if err := readJSON(p.Classifier, a.Network); err != nil {
		return nil, err
	}
	if err := readJSON(p.Binarizer, a.Binarizer); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	return a, nil
}

// FileLoader adapts Load to the registry's loader signature.
func FileLoader(p Paths) func(ctx context.Context) (*Artifacts, error) {
	return func(ctx context.Context) (*Artifacts, error) { return Load(p) }
}

func readJSON(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", domain.ErrModelUnavailable, path, err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrModelUnavailable, path, err)
	}
	return nil
}
