package text

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

const defaultTokenPattern = `\b\w\w+\b`

// Vectorizer is a fitted term-frequency × inverse-document-frequency transform.
type Vectorizer struct {
	Vocabulary   map[string]int `json:"vocabulary"`
	IDF          []float64      `json:"idf"`
	NgramRange   [2]int         `json:"ngram_range"`
	Norm         string         `json:"norm"` // l2, l1 or none
	SublinearTF  bool           `json:"sublinear_tf"`
	Binary       bool           `json:"binary"`
	Lowercase    bool           `json:"lowercase"`
	TokenPattern string         `json:"token_pattern"`

	token *regexp.Regexp
}

// Init validates the fitted state and compiles the tokenizer.
func (v *Vectorizer) Init() error {
	if len(v.Vocabulary) == 0 {
		return fmt.Errorf("vectorizer: empty vocabulary")
	}
	if len(v.IDF) != len(v.Vocabulary) {
		return fmt.Errorf("vectorizer: %d idf weights for %d terms", len(v.IDF), len(v.Vocabulary))
	}
	for term, idx := range v.Vocabulary {
		if idx < 0 || idx >= len(v.IDF) {
			return fmt.Errorf("vectorizer: term %q has index %d out of range", term, idx)
		}
	}
	if v.NgramRange == [2]int{} {
		v.NgramRange = [2]int{1, 1}
	}
	if v.NgramRange[0] < 1 || v.NgramRange[1] < v.NgramRange[0] {
		return fmt.Errorf("vectorizer: bad ngram_range %v", v.NgramRange)
	}
	switch v.Norm {
	case "":
		v.Norm = "l2"
	case "l1", "l2", "none":
	default:
		return fmt.Errorf("vectorizer: unknown norm %q", v.Norm)
	}

	pattern := v.TokenPattern
	if pattern == "" {
		pattern = defaultTokenPattern
	}
	// Go's RE2 has no (?u); \w is ASCII only, which matches the cleaned input anyway.
	pattern = strings.TrimPrefix(pattern, "(?u)")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("vectorizer: token_pattern: %w", err)
	}
	v.token = re
	return nil
}

// Dim is the feature space size.
func (v *Vectorizer) Dim() int { return len(v.IDF) }

// SparseVector holds the non-zero entries of a feature vector.
type SparseVector struct {
	Index []int
	Value []float64
}

// Transform vectorizes one document.
func (v *Vectorizer) Transform(doc string) SparseVector {
	if v.Lowercase {
		doc = strings.ToLower(doc)
	}
	tokens := v.token.FindAllString(doc, -1)

	counts := make(map[int]float64)
	order := make([]int, 0, len(tokens))
	for n := v.NgramRange[0]; n <= v.NgramRange[1]; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			idx, ok := v.Vocabulary[strings.Join(tokens[i:i+n], " ")]
			if !ok {
				continue
			}
			if _, seen := counts[idx]; !seen {
				order = append(order, idx)
			}
			counts[idx]++
		}
	}

	out := SparseVector{Index: order, Value: make([]float64, len(order))}
	for i, idx := range order {
		tf := counts[idx]
		switch {
		case v.Binary:
			tf = 1
		case v.SublinearTF:
			tf = 1 + math.Log(tf)
		}
		out.Value[i] = tf * v.IDF[idx]
	}
	normalize(out.Value, v.Norm)
	return out
}

func normalize(vals []float64, norm string) {
	var total float64
	switch norm {
	case "l2":
		for _, x := range vals {
			total += x * x
		}
		total = math.Sqrt(total)
	case "l1":
		for _, x := range vals {
			total += math.Abs(x)
		}
	default:
		return
	}
	if total == 0 {
		return
	}
	for i := range vals {
		vals[i] /= total
	}
}
