package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bryanwahyu/skiniq/internal/domain/diary"
	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
)

// AddDiaryEntry uploads the photos and appends a diary entry. Every photo is checked
// before anything is uploaded.
func (s *Service) AddDiaryEntry(ctx context.Context, subjectID string, in diary.Input, photos [][]byte) (*diary.Entry, error) {
	if _, err := s.lookup(ctx, subjectID); err != nil {
		return nil, err
	}
	if s.Diary == nil {
		return nil, stageErr(subjectID, domain.StagePersistDiary, errors.New("diary store not configured"))
	}
	for i, p := range photos {
		if _, ok := imageType(p); !ok {
			return nil, &domain.StageError{SubjectID: subjectID, Stage: domain.StageUploadImage,
				Err: fmt.Errorf("%w: photo %d is not an image", domain.ErrDecode, i)}
		}
	}

	urls := make([]string, 0, len(photos))
	for _, p := range photos {
		url, err := s.upload(ctx, subjectID, "diary", p)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}

	e := &diary.Entry{
		ID:        uuid.New().String(),
		SubjectID: subjectID,
		Date:      in.Date,
		Text:      in.Text,
		Photos:    urls,
		CreatedAt: s.now(),
	}
	if err := s.Diary.AddEntry(ctx, e); err != nil {
		return nil, stageErr(subjectID, domain.StagePersistDiary, err)
	}
	s.Logger.Info().Str("subject_id", subjectID).Str("date", e.Date).Int("photos", len(urls)).Msg("diary entry created")
	return e, nil
}

// ListDiary ambil N entry terakhir, newest first
func (s *Service) ListDiary(ctx context.Context, subjectID string, limit int) ([]*diary.Entry, error) {
	if _, err := s.lookup(ctx, subjectID); err != nil {
		return nil, err
	}
	if s.Diary == nil {
		return []*diary.Entry{}, nil
	}
	list, err := s.Diary.ListEntries(ctx, subjectID, clampLimit(limit))
	if err != nil {
		return nil, stageErr(subjectID, domain.StageLookup, err)
	}
	return list, nil
}

// UpdateProfileImage stores a new profile photo without classifying it.
func (s *Service) UpdateProfileImage(ctx context.Context, subjectID string, data []byte) (string, error) {
	if _, err := s.lookup(ctx, subjectID); err != nil {
		return "", err
	}
	if _, ok := imageType(data); !ok {
		return "", &domain.StageError{SubjectID: subjectID, Stage: domain.StageUploadImage,
			Err: fmt.Errorf("%w: not an image", domain.ErrDecode)}
	}
	url, err := s.upload(ctx, subjectID, "profiles", data)
	if err != nil {
		return "", err
	}
	if err := s.Profiles.Update(ctx, subjectID, domain.ProfileUpdate{ProfileImage: &url}); err != nil {
		return "", stageErr(subjectID, domain.StagePersistProfile, err)
	}
	return url, nil
}

func (s *Service) upload(ctx context.Context, subjectID, prefix string, data []byte) (string, error) {
	if s.Images == nil {
		return "", stageErr(subjectID, domain.StageUploadImage, errors.New("image store not configured"))
	}
	ct := http.DetectContentType(data)
	url, err := s.Images.PutImage(ctx, imageKey(prefix, subjectID, data), data, ct)
	if err != nil {
		return "", stageErr(subjectID, domain.StageUploadImage, err)
	}
	return url, nil
}

func imageType(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	ct := http.DetectContentType(data)
	return ct, strings.HasPrefix(ct, "image/")
}
