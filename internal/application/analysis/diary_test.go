package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/skiniq/internal/domain/diary"
	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestAddDiaryEntry(t *testing.T) {
	s, store, _, _ := newService(t)
	imgs := &fakeImages{url: "http://img/p.png"}
	s.Images = imgs
	s.Diary = store

	e, err := s.AddDiaryEntry(context.Background(), "ana", diary.Input{Date: "2024-03-01", Text: "less redness"}, [][]byte{pngMagic, pngMagic})
	require.NoError(t, err)
	require.NotEmpty(t, e.ID)
	require.Equal(t, now, e.CreatedAt)
	require.Equal(t, []string{"http://img/p.png", "http://img/p.png"}, e.Photos)
	require.Len(t, imgs.keys, 2)
	require.True(t, strings.HasPrefix(imgs.keys[0], "diary/ana/"))
	require.True(t, strings.HasSuffix(imgs.keys[0], ".png"))

	list, err := s.ListDiary(context.Background(), "ana", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "less redness", list[0].Text)
}

func TestAddDiaryEntryRejectsNonImageBeforeUpload(t *testing.T) {
	s, store, _, _ := newService(t)
	imgs := &fakeImages{url: "http://img/p.png"}
	s.Images = imgs
	s.Diary = store

	_, err := s.AddDiaryEntry(context.Background(), "ana", diary.Input{Date: "2024-03-01", Text: "x"}, [][]byte{pngMagic, []byte("hello")})
	require.ErrorIs(t, err, domain.ErrDecode)
	require.Empty(t, imgs.keys)

	list, _ := store.ListEntries(context.Background(), "ana", 10)
	require.Empty(t, list)
}

func TestAddDiaryEntryStorageErrors(t *testing.T) {
	s, store, _, _ := newService(t)
	s.Diary = store

	// photos need an image store
	_, err := s.AddDiaryEntry(context.Background(), "ana", diary.Input{Date: "2024-03-01", Text: "x"}, [][]byte{pngMagic})
	require.ErrorIs(t, err, domain.ErrPersistence)
	stage, _ := domain.StageOf(err)
	require.Equal(t, domain.StageUploadImage, stage)

	s.Images = &fakeImages{err: errors.New("bucket gone")}
	_, err = s.AddDiaryEntry(context.Background(), "ana", diary.Input{Date: "2024-03-01", Text: "x"}, [][]byte{pngMagic})
	require.ErrorIs(t, err, domain.ErrPersistence)

	// a text-only entry needs no image store
	s.Images = nil
	e, err := s.AddDiaryEntry(context.Background(), "ana", diary.Input{Date: "2024-03-01", Text: "x"}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{}, e.Photos)
}

func TestDiaryUnknownSubject(t *testing.T) {
	s, store, _, _ := newService(t)
	s.Diary = store

	_, err := s.AddDiaryEntry(context.Background(), "nobody", diary.Input{Date: "2024-03-01", Text: "x"}, nil)
	require.ErrorIs(t, err, domain.ErrSubjectNotFound)
	_, err = s.ListDiary(context.Background(), "nobody", 10)
	require.ErrorIs(t, err, domain.ErrSubjectNotFound)
}

func TestUpdateProfileImage(t *testing.T) {
	s, store, img, _ := newService(t)
	s.Images = &fakeImages{url: "http://img/new.png"}

	url, err := s.UpdateProfileImage(context.Background(), "ana", pngMagic)
	require.NoError(t, err)
	require.Equal(t, "http://img/new.png", url)
	require.Zero(t, img.calls)

	p, err := store.Get(context.Background(), "ana")
	require.NoError(t, err)
	require.Equal(t, "http://img/new.png", p.ProfileImage)

	_, err = s.UpdateProfileImage(context.Background(), "ana", []byte("not an image"))
	require.ErrorIs(t, err, domain.ErrDecode)
}
