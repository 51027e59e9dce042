package middleware

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Input validation and sanitization utilities

var (
	validate     *validator.Validate
	validateOnce sync.Once

	subjectIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.@-]{1,128}$`)
)

// GetValidator returns the shared validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct validates a request body and flattens field errors into one message.
func ValidateStruct(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// ValidateSubjectID validates subject ID format
func ValidateSubjectID(subject string) error {
	if subject == "" {
		return fmt.Errorf("subject ID cannot be empty")
	}
	if !subjectIDPattern.MatchString(subject) {
		return fmt.Errorf("invalid subject ID format (alphanumeric, dot, at, dash, underscore only, max 128 chars)")
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters; control whitespace becomes a plain space so
	// "acne\rredness" still reads as two words.
	var result strings.Builder
	for _, r := range input {
		switch {
		case r == '\t' || r == '\n' || r >= 32:
			result.WriteRune(r)
		case r == '\r' || r == '\v' || r == '\f' || (r >= 0x1c && r <= 0x1f):
			result.WriteByte(' ')
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
