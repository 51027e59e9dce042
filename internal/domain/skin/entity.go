package skin

import "time"

// Source of an analysis
type Source string

const (
	SourceImage         Source = "image"
	SourceQuestionnaire Source = "questionnaire"
)

// SkinDetails raw questionnaire answers
type SkinDetails struct {
	Gender          string   `json:"gender" validate:"omitempty,max=32"`
	Age             int      `json:"age" validate:"gte=0,lte=130"`
	SkinType        string   `json:"skinType" validate:"required,max=64"`
	SkinConcerns    []string `json:"skinConcerns" validate:"omitempty,dive,max=128"`
	SkinConditions  []string `json:"skinConditionDiseases" validate:"omitempty,dive,max=128"`
	SkinBreakouts   string   `json:"skinBreakouts" validate:"omitempty,max=256"`
	SkinDescription string   `json:"skinDescription" validate:"max=4000"`
}

// Profile is owned by the storage collaborator. Only the analysis service writes the
// predicted fields; last write wins.
type Profile struct {
	SubjectID           string       `json:"subject_id"`
	PredictedSkinType   SkinType     `json:"predicted_skin_type"`
	PredictedSkinIssues []string     `json:"predicted_skin_issues"`
	SkinDetails         *SkinDetails `json:"skin_details,omitempty"`
	ProfileImage        string       `json:"profile_image,omitempty"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// ProfileUpdate carries a partial update: nil fields are left untouched.
type ProfileUpdate struct {
	PredictedSkinType   *SkinType
	PredictedSkinIssues []string // nil = untouched, empty = cleared
	SkinDetails         *SkinDetails
	ProfileImage        *string
}

// IsEmpty reports whether the update would change nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.PredictedSkinType == nil && u.PredictedSkinIssues == nil &&
		u.SkinDetails == nil && u.ProfileImage == nil
}

// Apply merges the update into p.
func (u ProfileUpdate) Apply(p *Profile, now time.Time) {
	if u.PredictedSkinType != nil {
		p.PredictedSkinType = *u.PredictedSkinType
	}
	if u.PredictedSkinIssues != nil {
		p.PredictedSkinIssues = append([]string(nil), u.PredictedSkinIssues...)
	}
	if u.SkinDetails != nil {
		d := *u.SkinDetails
		p.SkinDetails = &d
	}
	if u.ProfileImage != nil {
		p.ProfileImage = *u.ProfileImage
	}
	p.UpdatedAt = now
}

// AnalysisRecord is an append-only history entry. Never updated after Append.
type AnalysisRecord struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subject_id"`
	Source      Source    `json:"source"`
	SkinType    SkinType  `json:"skin_type"`
	SkinIssues  []string  `json:"skin_issues"`
	Routine     []string  `json:"routine"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
