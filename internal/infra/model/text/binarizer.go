package text

import "fmt"

// Binarizer maps between label sets and fixed-length indicator vectors.
type Binarizer struct {
	Classes []string `json:"classes"`
}

// Init validates the class list.
func (b *Binarizer) Init() error {
	if len(b.Classes) == 0 {
		return fmt.Errorf("binarizer: no classes")
	}
	seen := make(map[string]bool, len(b.Classes))
	for _, c := range b.Classes {
		if seen[c] {
			return fmt.Errorf("binarizer: duplicate class %q", c)
		}
		seen[c] = true
	}
	return nil
}

// Inverse returns the classes whose indicator is set, in class order.
func (b *Binarizer) Inverse(indicator []int) []string {
	out := make([]string, 0, len(indicator))
	for i, v := range indicator {
		if v != 0 && i < len(b.Classes) {
			out = append(out, b.Classes[i])
		}
	}
	return out
}

// Transform returns the indicator vector for labels. Unknown labels are ignored.
func (b *Binarizer) Transform(labels []string) []int {
	out := make([]int, len(b.Classes))
	for _, l := range labels {
		for i, c := range b.Classes {
			if c == l {
				out[i] = 1
			}
		}
	}
	return out
}
