package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors for SourceDescriptor.
var (
	ErrEmptySourceName = errors.New("source name cannot be empty")
	ErrEmptySourceURL  = errors.New("source url cannot be empty")
	ErrDuplicateSource = errors.New("duplicate source name")
)

// Maintainer holds display-only metadata about who publishes a source.
type Maintainer struct {
	Name        string `json:"maintainer_name,omitempty"`
	URL         string `json:"maintainer_url,omitempty"`
	Description string `json:"maintainer_description,omitempty"`
}

// Complete reports whether every maintainer field is present.
func (m Maintainer) Complete() bool {
	return m.Name != "" && m.URL != "" && m.Description != ""
}

// SourceDescriptor describes one upstream blocklist for the duration of a run.
// The pipeline only reads Name and Category; URL, Format and Preserve are
// consumed by the fetch and staleness collaborators.
type SourceDescriptor struct {
	Name       string
	URL        string
	Category   Category
	Preserve   bool
	Format     string
	Maintainer Maintainer
}

// Validate checks the descriptor's required fields.
func (s SourceDescriptor) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptySourceName
	}
	if strings.TrimSpace(s.URL) == "" {
		return fmt.Errorf("%w: %s", ErrEmptySourceURL, s.Name)
	}
	if s.Category > CategoryRestricted {
		return fmt.Errorf("%w: %s", ErrInvalidCategory, s.Name)
	}
	return nil
}

// ValidateSources validates every descriptor and rejects duplicate names.
// Any failure is wrapped in ErrConfig.
func ValidateSources(sources []SourceDescriptor) error {
	seen := make(map[string]struct{}, len(sources))
	for i, s := range sources {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%w: source %d: %w", ErrConfig, i+1, err)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: %w: %s", ErrConfig, ErrDuplicateSource, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
