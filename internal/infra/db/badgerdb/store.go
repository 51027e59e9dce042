// Package badgerdb is an embedded profile, history, diary and failure store for
// single-node deployments.
package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/bryanwahyu/skiniq/internal/domain/diary"
	"github.com/bryanwahyu/skiniq/internal/domain/failures"
	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
)

// Key prefixes for BadgerDB storage
const (
	profileKeyPrefix = "profile:"
	historyKeyPrefix = "history:"
	failureKeyPrefix = "failure:"
	diaryKeyPrefix   = "diary:"
	failureSeqKey    = "seq:failure"

	conflictRetries = 3
)

// Store implements the profile, history and failure repositories on one BadgerDB.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
	now func() time.Time
}

var (
	_ domain.ProfileRepository = (*Store)(nil)
	_ domain.HistoryRepository = (*Store)(nil)
	_ failures.Repository      = (*Store)(nil)
	_ diary.Repository         = (*Store)(nil)
)

// Open opens (or creates) a store at path. An empty path keeps everything in memory.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return New(db)
}

// New wraps an already opened database.
func New(db *badger.DB) (*Store, error) {
	seq, err := db.GetSequence([]byte(failureSeqKey), 100)
	if err != nil {
		return nil, fmt.Errorf("failure sequence: %w", err)
	}
	return &Store{db: db, seq: seq, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	return errors.Join(s.seq.Release(), s.db.Close())
}

// Ping implements the health checker.
func (s *Store) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger closed")
	}
	return nil
}

// Create stores an empty profile unless one exists.
func (s *Store) Create(ctx context.Context, subjectID string) error {
	return s.update(func(txn *badger.Txn) error {
		key := []byte(profileKeyPrefix + subjectID)
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setJSON(txn, key, &domain.Profile{SubjectID: subjectID, UpdatedAt: s.now()})
	})
}

func (s *Store) Get(ctx context.Context, subjectID string) (*domain.Profile, error) {
	var p domain.Profile
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(profileKeyPrefix+subjectID), &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update merges u into the stored profile in a single transaction. An empty update
// only checks that the profile exists.
func (s *Store) Update(ctx context.Context, subjectID string, u domain.ProfileUpdate) error {
	return s.update(func(txn *badger.Txn) error {
		key := []byte(profileKeyPrefix + subjectID)
		var p domain.Profile
		if err := getJSON(txn, key, &p); err != nil {
			return err
		}
		if u.IsEmpty() {
			return nil
		}
		u.Apply(&p, s.now())
		return setJSON(txn, key, &p)
	})
}

func (s *Store) Append(ctx context.Context, r *domain.AnalysisRecord) (string, error) {
	if r.ID == "" {
		return "", errors.New("record id required")
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	key := []byte(fmt.Sprintf("%s%s:%020d:%s", historyKeyPrefix, r.SubjectID, created.UnixNano(), r.ID))
	err := s.update(func(txn *badger.Txn) error { return setJSON(txn, key, r) })
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// Latest returns up to limit records, newest first.
func (s *Store) Latest(ctx context.Context, subjectID string, limit int) ([]*domain.AnalysisRecord, error) {
	out := []*domain.AnalysisRecord{}
	err := scanReverse(s.db, historyKeyPrefix+subjectID+":", limit, func(val []byte) error {
		var r domain.AnalysisRecord
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		out = append(out, &r)
		return nil
	})
	return out, err
}

func (s *Store) Save(ctx context.Context, f *failures.Failure) error {
	id, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("next failure id: %w", err)
	}
	f.ID = int64(id) + 1
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	key := []byte(fmt.Sprintf("%s%s:%020d", failureKeyPrefix, f.SubjectID, f.ID))
	return s.update(func(txn *badger.Txn) error { return setJSON(txn, key, f) })
}

func (s *Store) ListBySubject(ctx context.Context, subjectID string, limit int) ([]*failures.Failure, error) {
	out := []*failures.Failure{}
	err := scanReverse(s.db, failureKeyPrefix+subjectID+":", limit, func(val []byte) error {
		var f failures.Failure
		if err := json.Unmarshal(val, &f); err != nil {
			return err
		}
		out = append(out, &f)
		return nil
	})
	return out, err
}

func (s *Store) AddEntry(ctx context.Context, e *diary.Entry) error {
	if e.ID == "" {
		return errors.New("entry id required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	key := []byte(fmt.Sprintf("%s%s:%020d:%s", diaryKeyPrefix, e.SubjectID, e.CreatedAt.UnixNano(), e.ID))
	return s.update(func(txn *badger.Txn) error { return setJSON(txn, key, e) })
}

// ListEntries returns up to limit diary entries, newest first.
func (s *Store) ListEntries(ctx context.Context, subjectID string, limit int) ([]*diary.Entry, error) {
	out := []*diary.Entry{}
	err := scanReverse(s.db, diaryKeyPrefix+subjectID+":", limit, func(val []byte) error {
		var e diary.Entry
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		out = append(out, &e)
		return nil
	})
	return out, err
}

// update retries on transaction conflicts; concurrent profile writes are last-write-wins.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < conflictRetries; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getJSON(txn *badger.Txn, key []byte, into any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, into)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// scanReverse walks keys under prefix from the highest down, stopping after limit items.
func scanReverse(db *badger.DB, prefix string, limit int, fn func(val []byte) error) error {
	if limit <= 0 {
		limit = 20
	}
	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		n := 0
		for it.Seek(append([]byte(prefix), 0xff)); it.ValidForPrefix([]byte(prefix)) && n < limit; it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
			n++
		}
		return nil
	})
}
