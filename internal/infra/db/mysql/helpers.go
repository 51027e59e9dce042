package mysql

import (
	"database/sql"
	"strings"

	"github.com/goccy/go-json"

	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
)

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// jsonList encodes a string list column; nil becomes [].
func jsonList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func parseList(ns sql.NullString) ([]string, error) {
	out := []string{}
	if !ns.Valid || ns.String == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseDetails(ns sql.NullString) (*domain.SkinDetails, error) {
	if !ns.Valid || ns.String == "" || ns.String == "null" {
		return nil, nil
	}
	var d domain.SkinDetails
	if err := json.Unmarshal([]byte(ns.String), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// updateColumns turns a partial profile update into SET assignments and args.
func updateColumns(u domain.ProfileUpdate) ([]string, []any, error) {
	var cols []string
	var args []any
	if u.PredictedSkinType != nil {
		cols = append(cols, "predicted_skin_type")
		args = append(args, string(*u.PredictedSkinType))
	}
	if u.PredictedSkinIssues != nil {
		cols = append(cols, "predicted_skin_issues")
		args = append(args, jsonList(u.PredictedSkinIssues))
	}
	if u.SkinDetails != nil {
		b, err := json.Marshal(u.SkinDetails)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, "skin_details")
		args = append(args, string(b))
	}
	if u.ProfileImage != nil {
		cols = append(cols, "profile_image")
		args = append(args, *u.ProfileImage)
	}
	return cols, args, nil
}
