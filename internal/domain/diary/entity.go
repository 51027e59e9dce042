package diary

import "time"

// Entry is one skin diary note with optional photos. Entries are append-only.
type Entry struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	Date      string    `json:"date"` // YYYY-MM-DD, as entered by the user
	Text      string    `json:"text"`
	Photos    []string  `json:"photos"`
	CreatedAt time.Time `json:"created_at"`
}

// Input is what a client submits for a new entry.
type Input struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Text string `json:"text" validate:"required,max=4000"`
}
