package failures

import "context"

// Repository defines persistence for analysis failures
type Repository interface {
	Save(ctx context.Context, f *Failure) error
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]*Failure, error)
}
