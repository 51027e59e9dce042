package failures

import "time"

// Failure is a persisted record of an analysis that could not produce a result.
type Failure struct {
	ID        int64     `json:"id"`
	SubjectID string    `json:"subject_id"`
	Source    string    `json:"source,omitempty"` // image | questionnaire
	Stage     string    `json:"stage,omitempty"`  // classify_image | classify_text | ...
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
