package model

import (
	"regexp"

	"gonum.org/v1/gonum/floats"
)

var wordPattern = regexp.MustCompile(`[\p{L}_$][\p{L}\p{N}_$]*|\p{N}+|\S`)

// Words splits source text into identifier, number and single-symbol tokens.
func Words(s string) []string {
	return wordPattern.FindAllString(s, -1)
}

// CosineSimilarity compares the word frequency vectors of a and b. Two texts
// without any word are considered identical.
func CosineSimilarity(a, b string) float64 {
	wa, wb := Words(a), Words(b)
	if len(wa) == 0 && len(wb) == 0 {
		return 1
	}
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	va, vb := frequencies(wa, wb)
	return floats.Dot(va, vb) / (floats.Norm(va, 2) * floats.Norm(vb, 2))
}

// frequencies counts both word lists over their joint vocabulary, in order
// of first appearance.
func frequencies(a, b []string) (va, vb []float64) {
	index := make(map[string]int, len(a)+len(b))
	for _, w := range append(append([]string(nil), a...), b...) {
		if _, ok := index[w]; !ok {
			index[w] = len(index)
		}
	}
	va, vb = make([]float64, len(index)), make([]float64, len(index))
	for _, w := range a {
		va[index[w]]++
	}
	for _, w := range b {
		vb[index[w]]++
	}
	return va, vb
}
