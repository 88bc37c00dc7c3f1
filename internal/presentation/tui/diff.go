package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/pmezard/go-difflib/difflib"
)

// UnifiedDiff compares two versions of a top-level collection as indented JSON.
// Identical trees yield an empty string.
func UnifiedDiff(docID string, before, after []*domain.Node) (string, error) {
	a, err := treeLines(before)
	if err != nil {
		return "", err
	}
	b, err := treeLines(after)
	if err != nil {
		return "", err
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: docID + " (before)",
		ToFile:   docID + " (after)",
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to diff document %s: %w", docID, err)
	}
	return diff, nil
}

// Colorize highlights the added and removed lines of a unified diff.
func Colorize(diff string) string {
	p := termenv.ColorProfile()
	lines := strings.SplitAfter(diff, "\n")
	var sb strings.Builder
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			sb.WriteString(termenv.String(line).Bold().String())
		case strings.HasPrefix(line, "+"):
			sb.WriteString(termenv.String(line).Foreground(p.Color("#22c55e")).String())
		case strings.HasPrefix(line, "-"):
			sb.WriteString(termenv.String(line).Foreground(p.Color("#ef4444")).String())
		case strings.HasPrefix(line, "@@"):
			sb.WriteString(termenv.String(line).Foreground(p.Color("#818cf8")).String())
		default:
			sb.WriteString(line)
		}
	}
	return sb.String()
}

func treeLines(items []*domain.Node) ([]string, error) {
	if items == nil {
		items = []*domain.Node{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tree: %w", err)
	}
	return difflib.SplitLines(string(data)), nil
}
