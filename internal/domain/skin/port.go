package skin

import "context"

// ProfileRepository port. Get returns ErrNotFound for unknown subjects; Update merges the
// supplied fields and returns ErrNotFound when the subject does not exist.
type ProfileRepository interface {
	Get(ctx context.Context, subjectID string) (*Profile, error)
	Update(ctx context.Context, subjectID string, u ProfileUpdate) error
}

// HistoryRepository port (append-only)
type HistoryRepository interface {
	Append(ctx context.Context, r *AnalysisRecord) (string, error)
	Latest(ctx context.Context, subjectID string, limit int) ([]*AnalysisRecord, error)
}

// ImageStore port for uploaded face photos
type ImageStore interface {
	PutImage(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ImageClassifier turns image bytes into a skin type.
type ImageClassifier interface {
	Classify(ctx context.Context, data []byte) (SkinType, error)
}

// TextClassifier turns a free-text description into issue tags.
type TextClassifier interface {
	Classify(ctx context.Context, description string) ([]string, error)
}
