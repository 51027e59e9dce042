package text

// fixture builds a small fitted model:
//
//	vocabulary: acne, breakout, dark, circle
//	labels:     acne, dark circles
//
// The hidden layer copies its input, the output layer sums the evidence for each label.
func fixture() *Artifacts {
	return &Artifacts{
		Vectorizer: &Vectorizer{
			Vocabulary: map[string]int{"acne": 0, "breakout": 1, "dark": 2, "circle": 3},
			IDF:        []float64{1, 1, 1, 1},
			Lowercase:  true,
		},
		Network: &Network{
			Coefs: [][][]float64{
				{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}},
				{{10, 0}, {10, 0}, {0, 10}, {0, 10}},
			},
			Intercepts: [][]float64{{0, 0, 0, 0}, {-1, -1}},
			Activation: "relu",
		},
		Binarizer: &Binarizer{Classes: []string{"acne", "dark circles"}},
	}
}
