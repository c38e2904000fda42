package models

import (
	"strings"

	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
)

const maxLabelLength = 255

// CanonicalIdentifier is the resolved form of a user-supplied identifier.
// Records are keyed by Address only; Name is the display label, empty when
// the input was an address literal.
type CanonicalIdentifier struct {
	Address id.Address `json:"address"`
	Name    string     `json:"name,omitempty"`
}

func (c CanonicalIdentifier) String() string {
	if c.Name != "" {
		return c.Name + " (" + c.Address.String() + ")"
	}
	return c.Address.String()
}

// NormalizeLabel lowercases a human-readable name and checks its grammar:
// dot-separated non-empty labels of [a-z0-9-_], at least two labels.
func NormalizeLabel(raw string) (string, error) {
	label := strings.ToLower(strings.TrimSpace(raw))
	if label == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "identifier is required")
	}
	if len(label) > maxLabelLength {
		return "", dErrors.New(dErrors.CodeBadRequest, "identifier is too long")
	}
	parts := strings.Split(label, ".")
	if len(parts) < 2 {
		return "", dErrors.New(dErrors.CodeBadRequest, "identifier must be an address or a dotted name")
	}
	for _, part := range parts {
		if part == "" {
			return "", dErrors.New(dErrors.CodeBadRequest, "identifier has an empty label")
		}
		for _, c := range part {
			if !isLabelChar(c) {
				return "", dErrors.New(dErrors.CodeBadRequest, "identifier contains invalid characters")
			}
		}
	}
	return label, nil
}

func isLabelChar(c rune) bool {
	return ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') || c == '-' || c == '_'
}

// DistinctLabels normalizes reverse-record names and drops duplicates and
// names that fail the label grammar. Order of first appearance is kept.
func DistinctLabels(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, raw := range names {
		label, err := NormalizeLabel(raw)
		if err != nil {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}
