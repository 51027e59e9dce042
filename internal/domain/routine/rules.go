package routine

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// BaseRule maps a skin type to its base instruction.
type BaseRule struct {
	SkinType    string `yaml:"skin_type"`
	Instruction string `yaml:"instruction"`
}

// IssueRule maps an issue keyword to an instruction.
type IssueRule struct {
	Keyword     string `yaml:"keyword"`
	Instruction string `yaml:"instruction"`
}

// Rules is the declarative rule table. Order of Issues is significant.
type Rules struct {
	Base     []BaseRule  `yaml:"base"`
	Issues   []IssueRule `yaml:"issues"`
	Fallback string      `yaml:"fallback"`
}

// DefaultRules returns the embedded rule table.
func DefaultRules() (Rules, error) {
	return ParseRules(defaultRules)
}

// LoadRules reads a rule table from a YAML file.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule table.
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

// Validate checks the invariants the engine relies on.
func (r Rules) Validate() error {
	if strings.TrimSpace(r.Fallback) == "" {
		return errors.New("rules: fallback instruction is required")
	}
	seen := make(map[string]bool, len(r.Base))
	for i, b := range r.Base {
		key := strings.ToLower(b.SkinType)
		if key == "" || b.Instruction == "" {
			return fmt.Errorf("rules: base[%d] needs skin_type and instruction", i)
		}
		if seen[key] {
			return fmt.Errorf("rules: duplicate base rule for %q", b.SkinType)
		}
		seen[key] = true
	}
	for i, is := range r.Issues {
		if is.Keyword == "" || is.Instruction == "" {
			return fmt.Errorf("rules: issues[%d] needs keyword and instruction", i)
		}
	}
	return nil
}
