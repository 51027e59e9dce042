package mysql

import (
	"context"
	"database/sql"
	"fmt"

	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository { return &HistoryRepository{db: db} }

func (r *HistoryRepository) Append(ctx context.Context, rec *domain.AnalysisRecord) (string, error) {
	const q = `
INSERT INTO skin_analyses
  (id, subject_id, source, skin_type, skin_issues, routine, description, image_url, created_at)
VALUES (?,?,?,?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.SubjectID, stringOrDash(string(rec.Source)), string(rec.SkinType),
		jsonList(rec.SkinIssues), jsonList(rec.Routine), rec.Description, rec.ImageURL, rec.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (r *HistoryRepository) Latest(ctx context.Context, subjectID string, limit int) ([]*domain.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, subject_id, source, skin_type, skin_issues, routine, description, image_url, created_at
FROM skin_analyses
WHERE subject_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, subjectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.AnalysisRecord{}
	for rows.Next() {
		var rec domain.AnalysisRecord
		var issues, routine, desc sql.NullString
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.Source, &rec.SkinType,
			&issues, &routine, &desc, &rec.ImageURL, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if rec.SkinIssues, err = parseList(issues); err != nil {
			return nil, fmt.Errorf("decode skin_issues: %w", err)
		}
		if rec.Routine, err = parseList(routine); err != nil {
			return nil, fmt.Errorf("decode routine: %w", err)
		}
		rec.Description = desc.String
		out = append(out, &rec)
	}
	return out, rows.Err()
}
