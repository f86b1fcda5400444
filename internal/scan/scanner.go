// Package scan captures page snapshots for extraction.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/pwgen/internal/fetch"
)

// ErrEmptySnapshot is returned when a page yields no content.
var ErrEmptySnapshot = errors.New("empty snapshot")

type Scanner struct {
	fetcher fetch.Fetcher
}

func New(f fetch.Fetcher) *Scanner {
	return &Scanner{fetcher: f}
}

// Scan returns the full markup of target.
func (s *Scanner) Scan(ctx context.Context, target string) (string, error) {
	content, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("scanning %s: %w", target, ErrEmptySnapshot)
	}
	return content, nil
}
