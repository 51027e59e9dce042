package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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
	const q = `INSERT INTO skin_profiles (subject_id, updated_at) VALUES ($1, $2) ON CONFLICT (subject_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, q, subjectID, r.now())
	return err
}

func (r *ProfileRepository) Get(ctx context.Context, subjectID string) (*domain.Profile, error) {
	const q = `
SELECT subject_id, predicted_skin_type, predicted_skin_issues, skin_details, profile_image, updated_at
FROM skin_profiles
WHERE subject_id = $1
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

func (r *ProfileRepository) Update(ctx context.Context, subjectID string, u domain.ProfileUpdate) error {
	set, args, err := updateSet(u)
	if err != nil {
		return err
	}
	args = append(args, r.now(), subjectID)
	q := fmt.Sprintf("UPDATE skin_profiles SET %s WHERE subject_id = $%d", set, len(args))
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
