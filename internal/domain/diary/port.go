package diary

import "context"

// Repository stores diary entries per subject
type Repository interface {
	AddEntry(ctx context.Context, e *Entry) error
	ListEntries(ctx context.Context, subjectID string, limit int) ([]*Entry, error)
}
