package badgerdb

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/skiniq/internal/domain/diary"
	"github.com/bryanwahyu/skiniq/internal/domain/failures"
	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Get(ctx, "budi")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, s.Update(ctx, "budi", domain.ProfileUpdate{}), domain.ErrNotFound)

	require.NoError(t, s.Create(ctx, "budi"))
	dry := domain.SkinTypeDry
	require.NoError(t, s.Update(ctx, "budi", domain.ProfileUpdate{PredictedSkinType: &dry}))
	require.NoError(t, s.Update(ctx, "budi", domain.ProfileUpdate{
		SkinDetails:         &domain.SkinDetails{SkinType: "Dry", Age: 31},
		PredictedSkinIssues: []string{"eczema"},
	}))
	// creating again keeps the data
	require.NoError(t, s.Create(ctx, "budi"))

	p, err := s.Get(ctx, "budi")
	require.NoError(t, err)
	require.Equal(t, domain.SkinTypeDry, p.PredictedSkinType)
	require.Equal(t, []string{"eczema"}, p.PredictedSkinIssues)
	require.Equal(t, 31, p.SkinDetails.Age)
}

func TestConcurrentUpdatesLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Create(ctx, "budi"))

	var wg sync.WaitGroup
	for _, st := range domain.SkinTypes {
		wg.Add(1)
		go func(st domain.SkinType) {
			defer wg.Done()
			_ = s.Update(ctx, "budi", domain.ProfileUpdate{PredictedSkinType: &st})
		}(st)
	}
	wg.Wait()

	p, err := s.Get(ctx, "budi")
	require.NoError(t, err)
	require.Contains(t, domain.SkinTypes, p.PredictedSkinType)
}

func TestHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, &domain.AnalysisRecord{
			ID:        fmt.Sprintf("rec-%d", i),
			SubjectID: "budi",
			Source:    domain.SourceImage,
			Routine:   []string{"step"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	// another subject sharing a prefix must not leak in
	_, err := s.Append(ctx, &domain.AnalysisRecord{ID: "x", SubjectID: "budi2", CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)

	recs, err := s.Latest(ctx, "budi", 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, "rec-4", recs[0].ID)
	require.Equal(t, "rec-2", recs[2].ID)
	require.Equal(t, []string{"step"}, recs[0].Routine)
}

func TestFailures(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Save(ctx, &failures.Failure{SubjectID: "budi", Stage: "classify_image", Message: "a"}))
	require.NoError(t, s.Save(ctx, &failures.Failure{SubjectID: "budi", Stage: "classify_text", Message: "b"}))

	list, err := s.ListBySubject(ctx, "budi", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "b", list[0].Message)
	require.Greater(t, list[0].ID, list[1].ID)
}

func TestDiaryEntriesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AddEntry(ctx, &diary.Entry{
			ID:        fmt.Sprintf("d-%d", i),
			SubjectID: "budi",
			Date:      "2024-01-01",
			Photos:    []string{"http://img/" + fmt.Sprint(i)},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, s.AddEntry(ctx, &diary.Entry{ID: "other", SubjectID: "budi2", CreatedAt: base.Add(48 * time.Hour)}))
	require.Error(t, s.AddEntry(ctx, &diary.Entry{SubjectID: "budi"}))

	list, err := s.ListEntries(ctx, "budi", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "d-2", list[0].ID)
	require.Equal(t, []string{"http://img/2"}, list[0].Photos)
	require.Equal(t, "d-1", list[1].ID)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "db")
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, "budi"))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(ctx, "budi")
	require.NoError(t, err)
}
