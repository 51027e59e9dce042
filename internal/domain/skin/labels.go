package skin

import (
	"fmt"
	"strings"
)

// SkinType label predicted by the image classifier or supplied by the questionnaire
type SkinType string

const (
	SkinTypeDry         SkinType = "Dry"
	SkinTypeNormal      SkinType = "Normal"
	SkinTypeOily        SkinType = "Oily"
	SkinTypeCombination SkinType = "Combination"
	SkinTypeSensitive   SkinType = "Sensitive"
)

// SkinTypes is the classifier output ordering. Index i of a score vector maps to SkinTypes[i].
var SkinTypes = []SkinType{
	SkinTypeDry,
	SkinTypeNormal,
	SkinTypeOily,
	SkinTypeCombination,
	SkinTypeSensitive,
}

// SkinTypeAt maps a classifier output index to its label.
func SkinTypeAt(i int) (SkinType, error) {
	if i < 0 || i >= len(SkinTypes) {
		return "", fmt.Errorf("skin type index %d out of range [0,%d)", i, len(SkinTypes))
	}
	return SkinTypes[i], nil
}

// ParseSkinType matches a label case-insensitively.
func ParseSkinType(s string) (SkinType, bool) {
	for _, t := range SkinTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	return "", false
}
