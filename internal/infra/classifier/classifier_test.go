package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
	"github.com/bryanwahyu/skiniq/internal/infra/model"
	"github.com/bryanwahyu/skiniq/internal/infra/model/linear"
	"github.com/bryanwahyu/skiniq/internal/infra/model/text"
)

type fixedScores struct {
	scores []float32
	calls  atomic.Int32
}

func (f *fixedScores) Predict(ctx context.Context, batch model.Tensor) ([][]float32, error) {
	f.calls.Add(1)
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	return [][]float32{f.scores}, nil
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageRegistry(m model.ScoreModel) *model.Registry {
	return model.NewRegistry(func(ctx context.Context) (model.ScoreModel, error) { return m, nil }, nil, zerolog.Nop())
}

func TestPreprocess(t *testing.T) {
	batch, err := Preprocess(pngBytes(t, 40, 20, color.NRGBA{R: 255, G: 0, B: 51, A: 128}), InputSize)
	require.NoError(t, err)
	require.Equal(t, []int{1, InputSize, InputSize, 3}, batch.Shape)

	// alpha is dropped, not blended against a background
	require.InDelta(t, 1.0, batch.At(0, 75, 75, 0), 1e-3)
	require.InDelta(t, 0.0, batch.At(0, 75, 75, 1), 1e-3)
	require.InDelta(t, 0.2, batch.At(0, 75, 75, 2), 1e-3)
}

func patternPNG(t *testing.T, n int, px func(x, y int) color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, n, n))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			img.SetNRGBA(x, y, px(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func checker(x, y, cell int) uint8 {
	if (x/cell+y/cell)%2 == 1 {
		return 255
	}
	return 0
}

// Expected bytes come from PIL Image.resize((150, 150)) on the same patterns.
func TestPreprocessMatchesPillowBicubic(t *testing.T) {
	type pin struct {
		y, x int
		rgb  [3]uint8
	}
	cases := []struct {
		name string
		n    int
		px   func(x, y int) color.NRGBA
		pins []pin
	}{
		{
			name: "downscale 300",
			n:    300,
			px: func(x, y int) color.NRGBA {
				return color.NRGBA{R: checker(x, y, 3), G: uint8(x * 255 / 299), B: uint8(x * y % 256), A: 255}
			},
			pins: []pin{
				{0, 0, [3]uint8{0, 0, 0}},
				{1, 1, [3]uint8{127, 1, 6}},
				{2, 5, [3]uint8{10, 9, 48}},
				{74, 75, [3]uint8{245, 128, 145}},
				{75, 74, [3]uint8{245, 126, 145}},
				{33, 100, [3]uint8{128, 171, 132}},
				{149, 149, [3]uint8{0, 254, 101}},
				{149, 0, [3]uint8{255, 0, 23}},
				{10, 120, [3]uint8{128, 204, 201}},
			},
		},
		{
			name: "upscale 100",
			n:    100,
			px: func(x, y int) color.NRGBA {
				var b uint8
				if x >= 50 {
					b = 255
				}
				return color.NRGBA{R: checker(x, y, 5), G: uint8(y * 255 / 99), B: b, A: 255}
			},
			pins: []pin{
				{0, 0, [3]uint8{0, 0, 0}},
				{1, 1, [3]uint8{0, 1, 0}},
				{2, 5, [3]uint8{0, 2, 0}},
				{74, 75, [3]uint8{201, 126, 224}},
				{75, 74, [3]uint8{201, 128, 31}},
				{33, 100, [3]uint8{255, 56, 255}},
				{149, 149, [3]uint8{0, 255, 255}},
				{149, 0, [3]uint8{255, 255, 0}},
				{10, 120, [3]uint8{224, 17, 255}},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			batch, err := Preprocess(patternPNG(t, tc.n, tc.px), InputSize)
			require.NoError(t, err)
			for _, p := range tc.pins {
				for c := 0; c < 3; c++ {
					require.InDelta(t, float64(p.rgb[c])/255, float64(batch.At(0, p.y, p.x, c)), 1e-6,
						"pixel (%d,%d) channel %d", p.y, p.x, c)
				}
			}
		})
	}
}

func TestBicubicAxisWeightsSumToOne(t *testing.T) {
	for _, tc := range [][2]int{{300, 150}, {100, 150}, {640, 150}, {7, 150}} {
		ax := bicubicAxis(tc[0], tc[1])
		require.Len(t, ax.start, tc[1])
		for i, kk := range ax.k {
			var sum int64
			for _, k := range kk {
				sum += k
			}
			require.InDelta(t, 1<<precisionBits, sum, float64(len(kk)), "%v output %d", tc, i)
			require.LessOrEqual(t, ax.start[i]+len(kk), tc[0])
		}
	}
}

func TestResizeRGBSameSizeIsIdentity(t *testing.T) {
	pix := []uint8{1, 2, 3, 40, 50, 60, 70, 80, 90, 200, 210, 220}
	require.Equal(t, pix, resizeRGB(pix, 2, 2, 2, 2))
}

func TestPreprocessRejectsGarbage(t *testing.T) {
	_, err := Preprocess([]byte("not an image"), InputSize)
	require.True(t, errors.Is(err, domain.ErrDecode))

	_, err = Preprocess(nil, InputSize)
	require.True(t, errors.Is(err, domain.ErrDecode))
}

func TestImageClassify(t *testing.T) {
	m := &fixedScores{scores: []float32{0.1, 0.05, 0.6, 0.2, 0.05}}
	c := &Image{Registry: imageRegistry(m)}

	got, err := c.Classify(context.Background(), pngBytes(t, 10, 10, color.White))
	require.NoError(t, err)
	require.Equal(t, domain.SkinTypeOily, got)

	again, err := c.Classify(context.Background(), pngBytes(t, 10, 10, color.White))
	require.NoError(t, err)
	require.Equal(t, got, again)
}

func TestImageClassifyTieTakesFirst(t *testing.T) {
	c := &Image{Registry: imageRegistry(&fixedScores{scores: []float32{0.1, 0.4, 0.1, 0.4, 0}}), Size: 8}
	got, err := c.Classify(context.Background(), pngBytes(t, 4, 4, color.Black))
	require.NoError(t, err)
	require.Equal(t, domain.SkinTypeNormal, got)
}

func TestImageClassifyDecodeSkipsModel(t *testing.T) {
	m := &fixedScores{scores: []float32{1, 0, 0, 0, 0}}
	c := &Image{Registry: imageRegistry(m)}

	_, err := c.Classify(context.Background(), []byte{0xff, 0xd8, 0x00})
	require.True(t, errors.Is(err, domain.ErrDecode))
	require.Zero(t, m.calls.Load())
}

func TestImageClassifyBadScoreShape(t *testing.T) {
	c := &Image{Registry: imageRegistry(&fixedScores{scores: []float32{1, 0}}), Size: 8}
	_, err := c.Classify(context.Background(), pngBytes(t, 4, 4, color.Black))
	require.True(t, errors.Is(err, domain.ErrModelUnavailable))
}

func TestImageClassifyInputSizeMismatch(t *testing.T) {
	weights := make([][]float32, len(domain.SkinTypes))
	for i := range weights {
		weights[i] = make([]float32, 4*4*3)
	}
	m := &linear.Model{
		Labels:     []string{"Dry", "Normal", "Oily", "Combination", "Sensitive"},
		InputShape: []int{4, 4, 3},
		Weights:    weights,
		Bias:       make([]float32, len(domain.SkinTypes)),
	}
	require.NoError(t, m.Validate())

	c := &Image{Registry: imageRegistry(m), Size: 8}
	_, err := c.Classify(context.Background(), pngBytes(t, 4, 4, color.Black))
	require.ErrorIs(t, err, domain.ErrModelUnavailable)
	require.ErrorContains(t, err, "does not match model")
}

type failingScores struct{ err error }

func (f failingScores) Predict(ctx context.Context, batch model.Tensor) ([][]float32, error) {
	return nil, f.err
}

func TestImageClassifyPredictErrorIsModelUnavailable(t *testing.T) {
	c := &Image{Registry: imageRegistry(failingScores{err: errors.New("connection reset")}), Size: 8}
	_, err := c.Classify(context.Background(), pngBytes(t, 4, 4, color.Black))
	require.ErrorIs(t, err, domain.ErrModelUnavailable)
	require.ErrorContains(t, err, "connection reset")

	// already classified errors are not wrapped twice
	wrapped := fmt.Errorf("%w: upstream 503", domain.ErrModelUnavailable)
	c = &Image{Registry: imageRegistry(failingScores{err: wrapped}), Size: 8}
	_, err = c.Classify(context.Background(), pngBytes(t, 4, 4, color.Black))
	require.Equal(t, wrapped, err)
}

func TestImageClassifyNoModel(t *testing.T) {
	c := &Image{Registry: model.NewRegistry(nil, nil, zerolog.Nop()), Size: 8}
	_, err := c.Classify(context.Background(), pngBytes(t, 4, 4, color.Black))
	require.True(t, errors.Is(err, domain.ErrModelUnavailable))
}

func textArtifacts(t *testing.T) *text.Artifacts {
	t.Helper()
	a := &text.Artifacts{
		Vectorizer: &text.Vectorizer{
			Vocabulary: map[string]int{"acne": 0, "breakout": 1, "dark": 2, "circle": 3},
			IDF:        []float64{1, 1, 1, 1},
			Lowercase:  true,
		},
		Network: &text.Network{
			Coefs: [][][]float64{
				{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}},
				{{10, 0}, {10, 0}, {0, 10}, {0, 10}},
			},
			Intercepts: [][]float64{{0, 0, 0, 0}, {-1, -1}},
		},
		Binarizer: &text.Binarizer{Classes: []string{"acne", "dark circles"}},
	}
	require.NoError(t, a.Validate())
	return a
}

func TestTextClassify(t *testing.T) {
	a := textArtifacts(t)
	c := &Text{Registry: model.NewRegistry(nil, func(ctx context.Context) (*text.Artifacts, error) { return a, nil }, zerolog.Nop())}

	tags, err := c.Classify(context.Background(), "I have ACNE and a dark circle!!")
	require.NoError(t, err)
	require.Equal(t, []string{"acne", "dark circles"}, tags)

	tags, err = c.Classify(context.Background(), "smooth cheeks")
	require.NoError(t, err)
	require.NotNil(t, tags)
	require.Empty(t, tags)
}

func TestTextClassifyEmptyNeedsNoModel(t *testing.T) {
	c := &Text{}
	for _, in := range []string{"", "   ", "!!! 123 ???", "the and of it"} {
		tags, err := c.Classify(context.Background(), in)
		require.NoError(t, err, in)
		require.Equal(t, []string{}, tags, in)
	}
}

func TestNormalize(t *testing.T) {
	require.Equal(t, "oily skin acne", Normalize("My Oily skin, and the ACNE!"))
	require.Equal(t, "dont skin", Normalize("don't\tskin\n"))
	require.Equal(t, "", Normalize("123 ..."))

	for _, sep := range []string{"\r", "\v", "\f", "\x1c", "\x1d", "\x1e", "\x1f", "\u00a0", "\u2028"} {
		require.Equal(t, "acne redness", Normalize("acne"+sep+"redness"), "separator %q", sep)
	}
	require.Equal(t, "acneredness", Normalize("acne\x07redness"))
}
