package skin

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced to callers of the analysis service.
var (
	ErrDecode           = errors.New("image decode failed")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrSubjectNotFound  = errors.New("subject not found")
	ErrPersistence      = errors.New("persistence failed")

	// ErrNotFound is returned by repositories; the service translates it to ErrSubjectNotFound.
	ErrNotFound = errors.New("not found")
)

// Stage of the pipeline an error came from
type Stage string

const (
	StageLookup         Stage = "lookup"
	StageClassifyImage  Stage = "classify_image"
	StageClassifyText   Stage = "classify_text"
	StageUploadImage    Stage = "upload_image"
	StagePersistProfile Stage = "persist_profile"
	StagePersistHistory Stage = "persist_history"
	StagePersistDiary   Stage = "persist_diary"
)

// StageError carries subject and stage context for logging at the boundary.
type StageError struct {
	SubjectID string
	Stage     Stage
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("subject %s: %s: %v", e.SubjectID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage of the first StageError in err's chain.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
