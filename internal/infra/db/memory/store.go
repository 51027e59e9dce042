// Package memory is an in-process store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bryanwahyu/skiniq/internal/domain/diary"
	"github.com/bryanwahyu/skiniq/internal/domain/failures"
	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
)

// Store keeps profiles, history, diary entries and failures in maps guarded by one mutex.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*domain.Profile
	history  map[string][]*domain.AnalysisRecord
	failures map[string][]*failures.Failure
	diary    map[string][]*diary.Entry
	nextID   int64
	now      func() time.Time
}

func New() *Store {
	return &Store{
		profiles: map[string]*domain.Profile{},
		history:  map[string][]*domain.AnalysisRecord{},
		failures: map[string][]*failures.Failure{},
		diary:    map[string][]*diary.Entry{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var (
	_ domain.ProfileRepository = (*Store)(nil)
	_ domain.HistoryRepository = (*Store)(nil)
	_ failures.Repository      = (*Store)(nil)
	_ diary.Repository         = (*Store)(nil)
)

// Create registers an empty profile. Creating an existing subject is a no-op.
func (s *Store) Create(ctx context.Context, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[subjectID]; !ok {
		s.profiles[subjectID] = &domain.Profile{SubjectID: subjectID, UpdatedAt: s.now()}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, subjectID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[subjectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (s *Store) Update(ctx context.Context, subjectID string, u domain.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[subjectID]
	if !ok {
		return domain.ErrNotFound
	}
	if u.IsEmpty() {
		return nil
	}
	u.Apply(p, s.now())
	return nil
}

func (s *Store) Append(ctx context.Context, r *domain.AnalysisRecord) (string, error) {
	if r.ID == "" {
		return "", fmt.Errorf("record id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cloneRecord(r)
	s.history[r.SubjectID] = append(s.history[r.SubjectID], c)
	return c.ID, nil
}

// Latest returns up to limit records, newest first.
func (s *Store) Latest(ctx context.Context, subjectID string, limit int) ([]*domain.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.history[subjectID]
	out := make([]*domain.AnalysisRecord, 0, min(limit, len(recs)))
	for i := len(recs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneRecord(recs[i]))
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, f *failures.Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	f.ID = s.nextID
	c := *f
	s.failures[f.SubjectID] = append(s.failures[f.SubjectID], &c)
	return nil
}

func (s *Store) ListBySubject(ctx context.Context, subjectID string, limit int) ([]*failures.Failure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.failures[subjectID]
	out := make([]*failures.Failure, 0, min(limit, len(list)))
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		c := *list[i]
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) AddEntry(ctx context.Context, e *diary.Entry) error {
	if e.ID == "" {
		return fmt.Errorf("entry id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diary[e.SubjectID] = append(s.diary[e.SubjectID], cloneEntry(e))
	return nil
}

// ListEntries returns up to limit diary entries, newest first.
func (s *Store) ListEntries(ctx context.Context, subjectID string, limit int) ([]*diary.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.diary[subjectID]
	out := make([]*diary.Entry, 0, min(limit, len(list)))
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneEntry(list[i]))
	}
	return out, nil
}

// Ping implements the health checker.
func (s *Store) Ping(ctx context.Context) error { return nil }

func cloneProfile(p *domain.Profile) *domain.Profile {
	c := *p
	c.PredictedSkinIssues = append([]string(nil), p.PredictedSkinIssues...)
	if p.SkinDetails != nil {
		d := *p.SkinDetails
		d.SkinConcerns = append([]string(nil), d.SkinConcerns...)
		d.SkinConditions = append([]string(nil), d.SkinConditions...)
		c.SkinDetails = &d
	}
	return &c
}

func cloneRecord(r *domain.AnalysisRecord) *domain.AnalysisRecord {
	c := *r
	c.SkinIssues = append([]string(nil), r.SkinIssues...)
	c.Routine = append([]string(nil), r.Routine...)
	return &c
}

func cloneEntry(e *diary.Entry) *diary.Entry {
	c := *e
	c.Photos = append([]string(nil), e.Photos...)
	return &c
}
