package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bryanwahyu/skiniq/internal/domain/diary"
)

type DiaryRepository struct{ db *sql.DB }

func NewDiaryRepository(db *sql.DB) *DiaryRepository { return &DiaryRepository{db: db} }

func (r *DiaryRepository) AddEntry(ctx context.Context, e *diary.Entry) error {
	if e.ID == "" {
		return errors.New("entry id required")
	}
	const q = `
INSERT INTO skin_diary_entries
  (id, subject_id, entry_date, body, photos, created_at)
VALUES ($1,$2,$3,$4,$5::jsonb,$6)`
	_, err := r.db.ExecContext(ctx, q, e.ID, e.SubjectID, e.Date, e.Text, jsonList(e.Photos), e.CreatedAt)
	return err
}

func (r *DiaryRepository) ListEntries(ctx context.Context, subjectID string, limit int) ([]*diary.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, subject_id, entry_date, body, photos, created_at
FROM skin_diary_entries
WHERE subject_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, subjectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*diary.Entry{}
	for rows.Next() {
		var e diary.Entry
		var photos sql.NullString
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.Date, &e.Text, &photos, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Photos, err = parseList(photos); err != nil {
			return nil, fmt.Errorf("decode photos: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
