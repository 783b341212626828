// Package refactor detects refactorings between two source trees.
package refactor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrDetection = errors.New("refactoring detection failed")

// Location is a line range in one file. FilePath is relative to the tree
// root and slash separated.
type Location struct {
	FilePath  string `json:"filePath"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
}

// Refactoring is one detected operation with the code it touches on both
// sides.
type Refactoring struct {
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Left        []Location `json:"leftSideLocations"`
	Right       []Location `json:"rightSideLocations"`
}

type Detector interface {
	Detect(ctx context.Context, beforeRoot, afterRoot string) ([]Refactoring, error)
}

// Nop detects nothing.
type Nop struct{}

func (Nop) Detect(context.Context, string, string) ([]Refactoring, error) { return nil, nil }

type report struct {
	Commits []struct {
		Refactorings []Refactoring `json:"refactorings"`
	} `json:"commits"`
}

// ParseReport reads the JSON report written by RefactoringMiner.
func ParseReport(r io.Reader) ([]Refactoring, error) {
	var rep report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("%w: malformed report: %v", ErrDetection, err)
	}
	var out []Refactoring
	for _, c := range rep.Commits {
		out = append(out, c.Refactorings...)
	}
	return out, nil
}
