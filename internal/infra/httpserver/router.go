package httpserver

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	appanalysis "github.com/bryanwahyu/skiniq/internal/application/analysis"
	"github.com/bryanwahyu/skiniq/internal/domain/diary"
	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
	"github.com/bryanwahyu/skiniq/internal/logging"
	"github.com/bryanwahyu/skiniq/internal/middleware"
)

// Options for NewRouter
type Options struct {
	Logger         zerolog.Logger
	Checkers       map[string]middleware.HealthChecker // readiness checks
	CORSOrigins    []string
	RateLimit      int // requests per window; 0 disables
	RateWindow     time.Duration
	MaxUploadBytes int64
}

type Router struct {
	svc       *appanalysis.Service
	maxUpload int64
}

func NewRouter(svc *appanalysis.Service, opts Options) http.Handler {
	r := &Router{svc: svc, maxUpload: opts.MaxUploadBytes}
	if r.maxUpload <= 0 {
		r.maxUpload = 10 << 20
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware(opts.Logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	if opts.RateLimit > 0 {
		window := opts.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		mux.Use(middleware.RateLimitMiddleware(opts.RateLimit, window))
	}

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/healthz", middleware.LivenessHandler)
	mux.Get("/readyz", middleware.HealthHandler(opts.Checkers))
	mux.Handle("/metrics", middleware.MetricsHandler())

	mux.Route("/v1/subjects/{subject}", func(rt chi.Router) {
		rt.Post("/analyses/image", r.wrap(r.handleAnalyzeImage))
		rt.Post("/analyses/questionnaire", r.wrap(r.handleAnalyzeQuestionnaire))
		rt.Get("/analyses", r.wrap(r.handleHistory))
		rt.Get("/failures", r.wrap(r.handleFailures))
		rt.Get("/routine", r.wrap(r.handleRoutine))
		rt.Get("/profile", r.wrap(r.handleProfile))
		rt.Put("/profile/image", r.wrap(r.handleProfileImage))
		rt.Post("/diary", r.wrap(r.handleAddDiary))
		rt.Get("/diary", r.wrap(r.handleListDiary))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks client input errors that never reach the service.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var br badRequest
		var tooLarge *http.MaxBytesError
		status := http.StatusInternalServerError
		switch {
		case errors.As(err, &br):
			status = http.StatusBadRequest
		case errors.As(err, &tooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, domain.ErrSubjectNotFound):
			status = http.StatusNotFound
		case errors.Is(err, domain.ErrDecode):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, domain.ErrModelUnavailable):
			status = http.StatusServiceUnavailable
		}

		l := logging.Ctx(req.Context())
		ev := l.Warn()
		if status >= 500 {
			ev = l.Error()
		}
		if stage, ok := domain.StageOf(err); ok {
			ev = ev.Str("stage", string(stage))
		}
		ev.Err(err).Int("status", status).Msg("request failed")

		msg := err.Error()
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
		writeJSON(w, status, map[string]string{"error": msg})
	}
}

// analysisResponse adds the persistence flag to a result.
type analysisResponse struct {
	*appanalysis.Result
	Persisted        bool   `json:"persisted"`
	PersistenceError string `json:"persistence_error,omitempty"`
}

// respondAnalysis writes the result even when only persistence failed.
func respondAnalysis(w http.ResponseWriter, req *http.Request, res *appanalysis.Result, err error) error {
	if err != nil && (res == nil || !errors.Is(err, domain.ErrPersistence)) {
		return err
	}
	out := analysisResponse{Result: res, Persisted: err == nil}
	if err != nil {
		out.PersistenceError = err.Error()
		logging.Ctx(req.Context()).Error().Err(err).Msg("analysis computed but not persisted")
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func subjectParam(req *http.Request) (string, error) {
	subject := chi.URLParam(req, "subject")
	if err := middleware.ValidateSubjectID(subject); err != nil {
		return "", badRequest{err.Error()}
	}
	return subject, nil
}

// POST /v1/subjects/{subject}/analyses/image
// Body: multipart form with a "file" part, or the raw image bytes.
func (r *Router) handleAnalyzeImage(w http.ResponseWriter, req *http.Request) error {
	subject, err := subjectParam(req)
	if err != nil {
		return err
	}
	data, err := r.readImage(w, req)
	if err != nil {
		return err
	}

	res, err := r.svc.AnalyzeImage(req.Context(), subject, data)
	return respondAnalysis(w, req, res, err)
}

// POST /v1/subjects/{subject}/analyses/questionnaire
// Body: SkinDetails JSON
func (r *Router) handleAnalyzeQuestionnaire(w http.ResponseWriter, req *http.Request) error {
	subject, err := subjectParam(req)
	if err != nil {
		return err
	}
	req.Body = http.MaxBytesReader(w, req.Body, 1<<20)

	var body domain.SkinDetails
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest{fmt.Sprintf("invalid json: %v", err)}
	}
	body.SkinDescription = middleware.SanitizeString(body.SkinDescription)
	body.SkinType = strings.TrimSpace(body.SkinType)
	if err := middleware.ValidateStruct(body); err != nil {
		return badRequest{err.Error()}
	}

	res, err := r.svc.AnalyzeQuestionnaire(req.Context(), subject, body)
	return respondAnalysis(w, req, res, err)
}

// GET /v1/subjects/{subject}/routine
func (r *Router) handleRoutine(w http.ResponseWriter, req *http.Request) error {
	subject, err := subjectParam(req)
	if err != nil {
		return err
	}
	res, err := r.svc.GetRecommendedRoutine(req.Context(), subject)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

// GET /v1/subjects/{subject}/profile
func (r *Router) handleProfile(w http.ResponseWriter, req *http.Request) error {
	subject, err := subjectParam(req)
	if err != nil {
		return err
	}
	p, err := r.svc.GetProfile(req.Context(), subject)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

// GET /v1/subjects/{subject}/analyses?limit=
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	subject, err := subjectParam(req)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.svc.History(req.Context(), subject, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
	return nil
}

// GET /v1/subjects/{subject}/failures?limit=
func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) error {
	subject, err := subjectParam(req)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.svc.ListFailures(req.Context(), subject, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
	return nil
}

// PUT /v1/subjects/{subject}/profile/image
// Body: multipart form with a "file" part, or the raw image bytes.
func (r *Router) handleProfileImage(w http.ResponseWriter, req *http.Request) error {
	subject, err := subjectParam(req)
	if err != nil {
		return err
	}
	data, err := r.readImage(w, req)
	if err != nil {
		return err
	}
	url, err := r.svc.UpdateProfileImage(req.Context(), subject, data)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"profile_image": url})
	return nil
}

// POST /v1/subjects/{subject}/diary
// Body: multipart form with "date", "text" and zero or more "file" parts, or JSON {date, text}.
func (r *Router) handleAddDiary(w http.ResponseWriter, req *http.Request) error {
	subject, err := subjectParam(req)
	if err != nil {
		return err
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)

	var in diary.Input
	var photos [][]byte
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := parseMultipart(req, r.maxUpload); err != nil {
			return err
		}
		in.Date = req.FormValue("date")
		in.Text = req.FormValue("text")
		files := req.MultipartForm.File["file"]
		if len(files) > maxDiaryPhotos {
			return badRequest{fmt.Sprintf("at most %d photos per entry", maxDiaryPhotos)}
		}
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				return err
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return err
			}
			photos = append(photos, data)
		}
	} else if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest{fmt.Sprintf("invalid json: %v", err)}
	}

	in.Date = strings.TrimSpace(in.Date)
	in.Text = middleware.SanitizeString(in.Text)
	if err := middleware.ValidateStruct(in); err != nil {
		return badRequest{err.Error()}
	}

	e, err := r.svc.AddDiaryEntry(req.Context(), subject, in, photos)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, e)
	return nil
}

// GET /v1/subjects/{subject}/diary?limit=
func (r *Router) handleListDiary(w http.ResponseWriter, req *http.Request) error {
	subject, err := subjectParam(req)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.svc.ListDiary(req.Context(), subject, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
	return nil
}

const maxDiaryPhotos = 10

// readImage reads a single image from a multipart "file" part or the raw body.
func (r *Router) readImage(w http.ResponseWriter, req *http.Request) ([]byte, error) {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)

	var data []byte
	var err error
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := parseMultipart(req, r.maxUpload); err != nil {
			return nil, err
		}
		f, _, err := req.FormFile("file")
		if err != nil {
			return nil, badRequest{"missing file part"}
		}
		defer f.Close()
		if data, err = io.ReadAll(f); err != nil {
			return nil, err
		}
	} else if data, err = io.ReadAll(req.Body); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, badRequest{"empty image"}
	}
	return data, nil
}

func parseMultipart(req *http.Request, maxBytes int64) error {
	if err := req.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest{fmt.Sprintf("invalid multipart body: %v", err)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
