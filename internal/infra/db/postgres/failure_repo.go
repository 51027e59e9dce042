package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/bryanwahyu/skiniq/internal/domain/failures"
)

type FailureRepository struct{ db *sql.DB }

func NewFailureRepository(db *sql.DB) *FailureRepository { return &FailureRepository{db: db} }

func (r *FailureRepository) Save(ctx context.Context, f *failures.Failure) error {
	const q = `
INSERT INTO skin_analysis_failures (subject_id, source, stage, message, created_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id`
	msg := f.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return r.db.QueryRowContext(ctx, q,
		stringOrDash(f.SubjectID), stringOrDash(f.Source), stringOrDash(f.Stage), msg, created,
	).Scan(&f.ID)
}

func (r *FailureRepository) ListBySubject(ctx context.Context, subjectID string, limit int) ([]*failures.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, subject_id, source, stage, message, created_at
FROM skin_analysis_failures
WHERE subject_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, subjectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*failures.Failure{}
	for rows.Next() {
		var f failures.Failure
		if err := rows.Scan(&f.ID, &f.SubjectID, &f.Source, &f.Stage, &f.Message, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
