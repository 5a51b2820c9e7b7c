// Package text prepares request text for the speech models.
package text

import (
	"errors"
	"strings"
)

// ErrEmptyText is returned when the input text is empty or whitespace-only.
var ErrEmptyText = errors.New("text is empty")

// Normalize trims surrounding whitespace, folds line endings to \n and rejects
// empty input.
func Normalize(s string) (string, error) {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyText
	}

	return s, nil
}
