package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/skiniq/internal/application"
	"github.com/bryanwahyu/skiniq/internal/domain/diary"
	"github.com/bryanwahyu/skiniq/internal/domain/failures"
	"github.com/bryanwahyu/skiniq/internal/domain/routine"
	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
	"github.com/bryanwahyu/skiniq/internal/infra/executor/pool"
	"github.com/bryanwahyu/skiniq/internal/metrics"
)

// Service implements the analysis use-cases.
// Service is safe for concurrent use; collaborators must be as well.
type Service struct {
	Profiles        domain.ProfileRepository
	Analyses        domain.HistoryRepository // optional
	Images          domain.ImageStore        // optional
	Failures        failures.Repository      // optional
	Diary           diary.Repository         // optional
	ImageClassifier domain.ImageClassifier
	TextClassifier  domain.TextClassifier
	Routines        *routine.Engine
	Pool            *pool.Pool // nil = inline
	Clock           application.Clock
	Logger          zerolog.Logger
}

// Result of an analysis or a routine read
type Result struct {
	SkinType   domain.SkinType `json:"skin_type"`
	SkinIssues []string        `json:"skin_issues"`
	Routine    []string        `json:"routine"`
}

// ProfileView is a profile with its current routine.
type ProfileView struct {
	*domain.Profile
	Routine []string `json:"routine"`
}

//
// ==== USE CASES ====
//

// AnalyzeImage classifies a face photo, stores the predicted type and returns the routine.
// On a storage failure the computed result is returned together with an error wrapping
// domain.ErrPersistence.
func (s *Service) AnalyzeImage(ctx context.Context, subjectID string, image []byte) (*Result, error) {
	log := s.logger(ctx, subjectID, domain.SourceImage)

	if _, err := s.lookup(ctx, subjectID); err != nil {
		s.count(domain.SourceImage, err)
		return nil, err
	}

	skinType, err := pool.Run(ctx, s.Pool, func(ctx context.Context) (domain.SkinType, error) {
		return s.ImageClassifier.Classify(ctx, image)
	})
	if err != nil {
		err = &domain.StageError{SubjectID: subjectID, Stage: domain.StageClassifyImage, Err: err}
		s.recordFailure(ctx, subjectID, domain.SourceImage, err)
		s.count(domain.SourceImage, err)
		log.Warn().Err(err).Msg("image analysis failed")
		return nil, err
	}

	res := &Result{
		SkinType:   skinType,
		SkinIssues: []string{},
		Routine:    s.routines().Recommend(string(skinType), nil),
	}

	update := domain.ProfileUpdate{PredictedSkinType: &skinType}
	var imageURL string
	var perr error
	if s.Images != nil {
		url, err := s.upload(ctx, subjectID, "profiles", image)
		if err != nil {
			perr = err
		} else {
			imageURL = url
			update.ProfileImage = &url
		}
	}

	perr = errors.Join(perr, s.persist(ctx, subjectID, update, &domain.AnalysisRecord{
		Source:   domain.SourceImage,
		SkinType: skinType,
		Routine:  res.Routine,
		ImageURL: imageURL,
	}))

	s.count(domain.SourceImage, perr)
	if perr != nil {
		log.Error().Err(perr).Str("skin_type", string(skinType)).Msg("image analysis not persisted")
		return res, perr
	}
	log.Info().Str("skin_type", string(skinType)).Msg("image analysis done")
	return res, nil
}

// AnalyzeQuestionnaire classifies the free-text description, stores the answers and
// predicted issues and returns the routine for the declared skin type.
func (s *Service) AnalyzeQuestionnaire(ctx context.Context, subjectID string, details domain.SkinDetails) (*Result, error) {
	log := s.logger(ctx, subjectID, domain.SourceQuestionnaire)

	if _, err := s.lookup(ctx, subjectID); err != nil {
		s.count(domain.SourceQuestionnaire, err)
		return nil, err
	}

	issues, err := pool.Run(ctx, s.Pool, func(ctx context.Context) ([]string, error) {
		return s.TextClassifier.Classify(ctx, details.SkinDescription)
	})
	if err != nil {
		err = &domain.StageError{SubjectID: subjectID, Stage: domain.StageClassifyText, Err: err}
		s.recordFailure(ctx, subjectID, domain.SourceQuestionnaire, err)
		s.count(domain.SourceQuestionnaire, err)
		log.Warn().Err(err).Msg("questionnaire analysis failed")
		return nil, err
	}
	if issues == nil {
		issues = []string{}
	}

	skinType := domain.SkinType(details.SkinType)
	if t, ok := domain.ParseSkinType(details.SkinType); ok {
		skinType = t
	}
	res := &Result{
		SkinType:   skinType,
		SkinIssues: issues,
		Routine:    s.routines().Recommend(details.SkinType, issues),
	}

	perr := s.persist(ctx, subjectID, domain.ProfileUpdate{
		SkinDetails:         &details,
		PredictedSkinIssues: issues,
	}, &domain.AnalysisRecord{
		Source:      domain.SourceQuestionnaire,
		SkinType:    skinType,
		SkinIssues:  issues,
		Routine:     res.Routine,
		Description: details.SkinDescription,
	})

	s.count(domain.SourceQuestionnaire, perr)
	if perr != nil {
		log.Error().Err(perr).Strs("skin_issues", issues).Msg("questionnaire analysis not persisted")
		return res, perr
	}
	log.Info().Strs("skin_issues", issues).Msg("questionnaire analysis done")
	return res, nil
}

// GetRecommendedRoutine recomputes the routine from the stored predictions. Read only.
func (s *Service) GetRecommendedRoutine(ctx context.Context, subjectID string) (*Result, error) {
	p, err := s.lookup(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	issues := p.PredictedSkinIssues
	if issues == nil {
		issues = []string{}
	}
	return &Result{
		SkinType:   p.PredictedSkinType,
		SkinIssues: issues,
		Routine:    s.routines().Recommend(string(p.PredictedSkinType), issues),
	}, nil
}

// GetProfile returns the stored profile with its current routine.
func (s *Service) GetProfile(ctx context.Context, subjectID string) (*ProfileView, error) {
	p, err := s.lookup(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if p.PredictedSkinIssues == nil {
		p.PredictedSkinIssues = []string{}
	}
	return &ProfileView{
		Profile: p,
		Routine: s.routines().Recommend(string(p.PredictedSkinType), p.PredictedSkinIssues),
	}, nil
}

// History ambil N analisis terakhir, newest first
func (s *Service) History(ctx context.Context, subjectID string, limit int) ([]*domain.AnalysisRecord, error) {
	if _, err := s.lookup(ctx, subjectID); err != nil {
		return nil, err
	}
	if s.Analyses == nil {
		return []*domain.AnalysisRecord{}, nil
	}
	recs, err := s.Analyses.Latest(ctx, subjectID, clampLimit(limit))
	if err != nil {
		return nil, stageErr(subjectID, domain.StageLookup, err)
	}
	return recs, nil
}

// ListFailures ambil N failure terakhir untuk subject
func (s *Service) ListFailures(ctx context.Context, subjectID string, limit int) ([]*failures.Failure, error) {
	if s.Failures == nil {
		return []*failures.Failure{}, nil
	}
	list, err := s.Failures.ListBySubject(ctx, subjectID, clampLimit(limit))
	if err != nil {
		return nil, stageErr(subjectID, domain.StageLookup, err)
	}
	return list, nil
}

//
// ==== helpers ====
//

func (s *Service) lookup(ctx context.Context, subjectID string) (*domain.Profile, error) {
	p, err := s.Profiles.Get(ctx, subjectID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, &domain.StageError{SubjectID: subjectID, Stage: domain.StageLookup, Err: domain.ErrSubjectNotFound}
	case err != nil:
		return nil, stageErr(subjectID, domain.StageLookup, err)
	case p == nil:
		return nil, &domain.StageError{SubjectID: subjectID, Stage: domain.StageLookup, Err: domain.ErrSubjectNotFound}
	}
	return p, nil
}

// persist writes the profile update then the history record. Both are attempted.
func (s *Service) persist(ctx context.Context, subjectID string, u domain.ProfileUpdate, rec *domain.AnalysisRecord) error {
	var errs []error
	if err := s.Profiles.Update(ctx, subjectID, u); err != nil {
		errs = append(errs, stageErr(subjectID, domain.StagePersistProfile, err))
	}
	if s.Analyses != nil {
		rec.ID = uuid.New().String()
		rec.SubjectID = subjectID
		rec.CreatedAt = s.now()
		if _, err := s.Analyses.Append(ctx, rec); err != nil {
			errs = append(errs, stageErr(subjectID, domain.StagePersistHistory, err))
		}
	}
	return errors.Join(errs...)
}

// stageErr wraps a storage error so it matches domain.ErrPersistence as well as the cause.
func stageErr(subjectID string, stage domain.Stage, err error) error {
	if !errors.Is(err, domain.ErrPersistence) {
		err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return &domain.StageError{SubjectID: subjectID, Stage: stage, Err: err}
}

// recordFailure is best-effort; its own errors are only logged.
func (s *Service) recordFailure(ctx context.Context, subjectID string, src domain.Source, err error) {
	if s.Failures == nil {
		return
	}
	stage, _ := domain.StageOf(err)
	f := &failures.Failure{
		SubjectID: subjectID,
		Source:    string(src),
		Stage:     string(stage),
		Message:   err.Error(),
		CreatedAt: s.now(),
	}
	// pakai context terpisah supaya tetap tersimpan walau request dibatalkan
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if serr := s.Failures.Save(sctx, f); serr != nil {
		s.Logger.Warn().Err(serr).Str("subject_id", subjectID).Msg("failed to record analysis failure")
	}
}

func (s *Service) count(src domain.Source, err error) {
	metrics.AnalysesTotal.WithLabelValues(string(src), outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrSubjectNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrDecode):
		return "decode_error"
	case errors.Is(err, domain.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence_error"
	}
	return "error"
}

func (s *Service) logger(ctx context.Context, subjectID string, src domain.Source) zerolog.Logger {
	l := s.Logger
	if cl := zerolog.Ctx(ctx); cl != nil && cl.GetLevel() != zerolog.Disabled {
		l = *cl
	}
	return l.With().Str("subject_id", subjectID).Str("source", string(src)).Logger()
}

func (s *Service) routines() *routine.Engine {
	if s.Routines == nil {
		return defaultEngine
	}
	return s.Routines
}

var defaultEngine = routine.Default()

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

func imageKey(prefix, subjectID string, data []byte) string {
	ext := ".bin"
	switch http.DetectContentType(data) {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	case "image/bmp":
		ext = ".bmp"
	}
	return fmt.Sprintf("%s/%s/%s%s", prefix, subjectID, uuid.New().String(), ext)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 100:
		return 100
	}
	return limit
}
