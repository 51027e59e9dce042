// Package tfserving scores images against a TensorFlow Serving REST endpoint.
package tfserving

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
	"github.com/bryanwahyu/skiniq/internal/infra/model"
	"github.com/bryanwahyu/skiniq/internal/metrics"
)

// Client calls /v1/models/{name}:predict through a circuit breaker.
type Client struct {
	baseURL string
	name    string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[][]float32]
	log     zerolog.Logger
}

// Options for New.
type Options struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// New builds a client. Circuit breaker: opens after 5 consecutive failures, probes
// again after 30s with at most 1 request.
func New(opts Options, log zerolog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	name := "tfserving-" + opts.Model
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		name:    opts.Model,
		http:    &http.Client{Timeout: opts.Timeout},
		log:     log.With().Str("component", "tfserving").Str("model", opts.Model).Logger(),
	}
	c.cb = gobreaker.NewCircuitBreaker[[][]float32](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return c
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

type statusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

// Ping checks that the served model has an AVAILABLE version.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/models/%s", c.baseURL, c.name), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: tfserving status: %v", domain.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: tfserving status: http %d", domain.ErrModelUnavailable, resp.StatusCode)
	}
	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return fmt.Errorf("%w: tfserving status: %v", domain.ErrModelUnavailable, err)
	}
	for _, v := range st.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			return nil
		}
	}
	return fmt.Errorf("%w: tfserving model %s has no available version", domain.ErrModelUnavailable, c.name)
}

// Loader returns a registry loader that verifies the model is served.
func (c *Client) Loader() model.ImageLoader {
	return func(ctx context.Context) (model.ScoreModel, error) {
		if err := c.Ping(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Predict implements model.ScoreModel.
func (c *Client) Predict(ctx context.Context, batch model.Tensor) ([][]float32, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	out, err := c.cb.Execute(func() ([][]float32, error) {
		return c.predict(ctx, batch)
	})
	if err != nil {
		result := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
		metrics.CircuitBreakerRequests.WithLabelValues(c.cb.Name(), result).Inc()
		if errors.Is(err, domain.ErrModelUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	metrics.CircuitBreakerRequests.WithLabelValues(c.cb.Name(), "success").Inc()
	return out, nil
}

func (c *Client) predict(ctx context.Context, batch model.Tensor) ([][]float32, error) {
	body, err := json.Marshal(map[string]any{"instances": instances(batch)})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/v1/models/%s:predict", c.baseURL, c.name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tfserving predict: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tfserving predict: http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var pr struct {
		Predictions [][]float32 `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("tfserving predict: decode: %w", err)
	}
	if len(pr.Predictions) != batch.Shape[0] {
		return nil, fmt.Errorf("tfserving predict: %d predictions for batch of %d", len(pr.Predictions), batch.Shape[0])
	}
	return pr.Predictions, nil
}

// instances converts an NHWC tensor to the nested row format TF Serving expects.
func instances(t model.Tensor) [][][][]float32 {
	n, h, w, ch := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	out := make([][][][]float32, n)
	for i := 0; i < n; i++ {
		out[i] = make([][][]float32, h)
		for y := 0; y < h; y++ {
			out[i][y] = make([][]float32, w)
			for x := 0; x < w; x++ {
				px := make([]float32, ch)
				for c := 0; c < ch; c++ {
					px[c] = t.At(i, y, x, c)
				}
				out[i][y][x] = px
			}
		}
	}
	return out
}
