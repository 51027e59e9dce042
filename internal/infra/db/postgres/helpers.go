package postgres

import (
	"database/sql"
	"fmt"
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

// updateSet builds "col = $n" assignments for a partial profile update. Placeholders
// start at $1; updated_at and the subject id take the last two.
func updateSet(u domain.ProfileUpdate) (string, []any, error) {
	var sets []string
	var args []any
	add := func(col, cast string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d%s", col, len(args), cast))
	}
	if u.PredictedSkinType != nil {
		add("predicted_skin_type", "", string(*u.PredictedSkinType))
	}
	if u.PredictedSkinIssues != nil {
		add("predicted_skin_issues", "::jsonb", jsonList(u.PredictedSkinIssues))
	}
	if u.SkinDetails != nil {
		b, err := json.Marshal(u.SkinDetails)
		if err != nil {
			return "", nil, err
		}
		add("skin_details", "::jsonb", string(b))
	}
	if u.ProfileImage != nil {
		add("profile_image", "", *u.ProfileImage)
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)+1))
	return strings.Join(sets, ", "), args, nil
}
