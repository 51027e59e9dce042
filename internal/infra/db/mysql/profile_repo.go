package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
)

type ProfileRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts an empty profile; existing subjects are left alone.
func (r *ProfileRepository) Create(ctx context.Context, subjectID string) error {
	const q = `INSERT IGNORE INTO skin_profiles (subject_id, updated_at) VALUES (?, ?)`
	_, err := r.db.ExecContext(ctx, q, subjectID, r.now())
	return err
}

func (r *ProfileRepository) Get(ctx context.Context, subjectID string) (*domain.Profile, error) {
	const q = `
SELECT subject_id, predicted_skin_type, predicted_skin_issues, skin_details, profile_image, updated_at
FROM skin_profiles
WHERE subject_id = ?
LIMIT 1;`
	var p domain.Profile
	var issues, details sql.NullString
	err := r.db.QueryRowContext(ctx, q, subjectID).Scan(
		&p.SubjectID, &p.PredictedSkinType, &issues, &details, &p.ProfileImage, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.PredictedSkinIssues, err = parseList(issues); err != nil {
		return nil, fmt.Errorf("decode predicted_skin_issues: %w", err)
	}
	if p.SkinDetails, err = parseDetails(details); err != nil {
		return nil, fmt.Errorf("decode skin_details: %w", err)
	}
	return &p, nil
}

// Update merges the non-nil fields. The DSN must set clientFoundRows=true so an
// unchanged row still counts as found.
func (r *ProfileRepository) Update(ctx context.Context, subjectID string, u domain.ProfileUpdate) error {
	cols, args, err := updateColumns(u)
	if err != nil {
		return err
	}
	sets := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		sets = append(sets, c+" = ?")
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, r.now(), subjectID)

	q := "UPDATE skin_profiles SET " + strings.Join(sets, ", ") + " WHERE subject_id = ?"
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Ping implements the health checker.
func (r *ProfileRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
