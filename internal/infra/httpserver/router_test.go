package httpserver

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/skiniq/internal/application"
	appanalysis "github.com/bryanwahyu/skiniq/internal/application/analysis"
	"github.com/bryanwahyu/skiniq/internal/domain/routine"
	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
	"github.com/bryanwahyu/skiniq/internal/infra/classifier"
	"github.com/bryanwahyu/skiniq/internal/infra/db/memory"
	"github.com/bryanwahyu/skiniq/internal/infra/model"
	"github.com/bryanwahyu/skiniq/internal/middleware"
)

type constScores []float32

func (c constScores) Predict(ctx context.Context, batch model.Tensor) ([][]float32, error) {
	return [][]float32{c}, nil
}

type stubText struct {
	tags []string
	err  error
}

func (s stubText) Classify(ctx context.Context, description string) ([]string, error) {
	return s.tags, s.err
}

type brokenProfiles struct{ *memory.Store }

func (brokenProfiles) Update(ctx context.Context, subjectID string, u domain.ProfileUpdate) error {
	return errors.New("disk full")
}

func setup(t *testing.T) (*appanalysis.Service, *memory.Store, http.Handler) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Create(context.Background(), "ana"))

	reg := model.NewRegistry(func(ctx context.Context) (model.ScoreModel, error) {
		return constScores{0.1, 0.1, 0.1, 0.6, 0.1}, nil
	}, nil, zerolog.Nop())

	svc := &appanalysis.Service{
		Profiles:        store,
		Analyses:        store,
		Failures:        store,
		ImageClassifier: &classifier.Image{Registry: reg, Size: 16},
		TextClassifier:  stubText{tags: []string{"acne"}},
		Routines:        routine.Default(),
		Clock:           application.SystemClock{},
		Logger:          zerolog.Nop(),
	}
	h := NewRouter(svc, Options{
		Logger:   zerolog.Nop(),
		Checkers: map[string]middleware.HealthChecker{"models": reg},
	})
	return svc, store, h
}

func pngBody(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.RGBA{A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAnalyzeImageRawBody(t *testing.T) {
	_, _, h := setup(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/subjects/ana/analyses/image", bytes.NewReader(pngBody(t)))
	req.Header.Set("Content-Type", "image/png")

	rec := do(h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	require.Equal(t, "Combination", body["skin_type"])
	require.Equal(t, true, body["persisted"])
	require.Equal(t, []any{"Balance hydration and exfoliation in different zones"}, body["routine"])
	require.Equal(t, []any{}, body["skin_issues"])
}

func TestAnalyzeImageMultipart(t *testing.T) {
	_, _, h := setup(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "face.png")
	require.NoError(t, err)
	_, err = part.Write(pngBody(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/subjects/ana/analyses/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAnalyzeImageErrors(t *testing.T) {
	_, store, h := setup(t)

	rec := do(h, httptest.NewRequest(http.MethodPost, "/v1/subjects/ana/analyses/image", strings.NewReader("not an image")))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	p, _ := store.Get(context.Background(), "ana")
	require.Empty(t, p.PredictedSkinType)

	rec = do(h, httptest.NewRequest(http.MethodPost, "/v1/subjects/bob/analyses/image", bytes.NewReader(pngBody(t))))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, httptest.NewRequest(http.MethodPost, "/v1/subjects/ana/analyses/image", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, httptest.NewRequest(http.MethodPost, "/v1/subjects/a%20b/analyses/image", bytes.NewReader(pngBody(t))))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeImagePersistenceFailure(t *testing.T) {
	svc, store, h := setup(t)
	svc.Profiles = brokenProfiles{store}

	rec := do(h, httptest.NewRequest(http.MethodPost, "/v1/subjects/ana/analyses/image", bytes.NewReader(pngBody(t))))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, false, body["persisted"])
	require.Contains(t, body["persistence_error"], "disk full")
	require.Equal(t, "Combination", body["skin_type"])
}

func TestAnalyzeQuestionnaire(t *testing.T) {
	_, _, h := setup(t)
	payload := `{"gender":"f","age":28,"skinType":"Oily","skinConcerns":["shine"],"skinConditionDiseases":[],"skinBreakouts":"often","skinDescription":"persistent acne on chin"}`

	rec := do(h, httptest.NewRequest(http.MethodPost, "/v1/subjects/ana/analyses/questionnaire", strings.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	require.Equal(t, []any{
		"Use oil-free cleanser and exfoliate regularly",
		"Use salicylic acid cleanser and niacinamide serum",
	}, body["routine"])

	rec = do(h, httptest.NewRequest(http.MethodGet, "/v1/subjects/ana/profile", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	prof := decode(t, rec)
	require.Equal(t, []any{"acne"}, prof["predicted_skin_issues"])
	require.Equal(t, "persistent acne on chin", prof["skin_details"].(map[string]any)["skinDescription"])
}

func TestAnalyzeQuestionnaireValidation(t *testing.T) {
	_, _, h := setup(t)
	rec := do(h, httptest.NewRequest(http.MethodPost, "/v1/subjects/ana/analyses/questionnaire", strings.NewReader(`{"skinDescription":"x"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, httptest.NewRequest(http.MethodPost, "/v1/subjects/ana/analyses/questionnaire", strings.NewReader(`{`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeQuestionnaireModelUnavailable(t *testing.T) {
	svc, _, h := setup(t)
	svc.TextClassifier = stubText{err: domain.ErrModelUnavailable}
	rec := do(h, httptest.NewRequest(http.MethodPost, "/v1/subjects/ana/analyses/questionnaire", strings.NewReader(`{"skinType":"Dry","skinDescription":"flaky"}`)))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/v1/subjects/ana/failures", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	require.Equal(t, "classify_text", items[0].(map[string]any)["stage"])
}

func TestRoutineAndHistory(t *testing.T) {
	_, _, h := setup(t)
	rec := do(h, httptest.NewRequest(http.MethodGet, "/v1/subjects/ana/routine", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []any{"Use gentle skincare and consult a dermatologist"}, decode(t, rec)["routine"])

	do(h, httptest.NewRequest(http.MethodPost, "/v1/subjects/ana/analyses/image", bytes.NewReader(pngBody(t))))
	rec = do(h, httptest.NewRequest(http.MethodGet, "/v1/subjects/ana/analyses?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	require.Equal(t, "image", items[0].(map[string]any)["source"])

	rec = do(h, httptest.NewRequest(http.MethodGet, "/v1/subjects/zed/routine", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadiness(t *testing.T) {
	_, _, h := setup(t)
	rec := do(h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	do(h, httptest.NewRequest(http.MethodPost, "/v1/subjects/ana/analyses/image", bytes.NewReader(pngBody(t))))
	// text group is still missing
	rec = do(h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

type memImages struct{ keys []string }

func (m *memImages) PutImage(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.keys = append(m.keys, key)
	return "http://img.local/" + key, nil
}

func TestDiaryMultipart(t *testing.T) {
	svc, store, h := setup(t)
	imgs := &memImages{}
	svc.Images = imgs
	svc.Diary = store

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("date", "2024-03-01"))
	require.NoError(t, mw.WriteField("text", "cheeks calmer today"))
	for _, name := range []string{"a.png", "b.png"} {
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(pngBody(t))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/subjects/ana/diary", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(h, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	require.Equal(t, "2024-03-01", body["date"])
	require.Len(t, body["photos"], 2)
	require.Len(t, imgs.keys, 2)
	require.True(t, strings.HasPrefix(imgs.keys[0], "diary/ana/"))

	rec = do(h, httptest.NewRequest(http.MethodGet, "/v1/subjects/ana/diary?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode(t, rec)["items"], 1)
}

func TestDiaryJSONAndValidation(t *testing.T) {
	svc, store, h := setup(t)
	svc.Diary = store

	req := httptest.NewRequest(http.MethodPost, "/v1/subjects/ana/diary", strings.NewReader(`{"date":"2024-03-02","text":"dry patches"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(h, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, []any{}, decode(t, rec)["photos"])

	req = httptest.NewRequest(http.MethodPost, "/v1/subjects/ana/diary", strings.NewReader(`{"date":"yesterday","text":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusBadRequest, do(h, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/subjects/nobody/diary", strings.NewReader(`{"date":"2024-03-02","text":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusNotFound, do(h, req).Code)
}

func TestProfileImage(t *testing.T) {
	svc, store, h := setup(t)
	svc.Images = &memImages{}

	req := httptest.NewRequest(http.MethodPut, "/v1/subjects/ana/profile/image", bytes.NewReader(pngBody(t)))
	req.Header.Set("Content-Type", "image/png")
	rec := do(h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	url, _ := decode(t, rec)["profile_image"].(string)
	require.True(t, strings.HasPrefix(url, "http://img.local/profiles/ana/"))

	p, err := store.Get(context.Background(), "ana")
	require.NoError(t, err)
	require.Equal(t, url, p.ProfileImage)
	require.Empty(t, p.PredictedSkinType)

	req = httptest.NewRequest(http.MethodPut, "/v1/subjects/ana/profile/image", strings.NewReader("plain text"))
	require.Equal(t, http.StatusUnprocessableEntity, do(h, req).Code)
}
