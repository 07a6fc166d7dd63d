package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/yaha/internal/domain"
	"github.com/phrazzld/yaha/internal/whitelist"
)

// sourceEntry is the on-disk form of one source in the sources file.
// The legacy "nsfw" flag is accepted as an alias for category "restricted".
type sourceEntry struct {
	Name                  string          `json:"name" validate:"required"`
	URL                   string          `json:"url" validate:"required,url"`
	Category              string          `json:"category,omitempty" validate:"omitempty,oneof=general restricted"`
	NSFW                  json.RawMessage `json:"nsfw,omitempty"`
	Preserve              bool            `json:"preserve,omitempty"`
	Format                string          `json:"format,omitempty" validate:"omitempty,oneof=auto hosts raw domains adblock abp"`
	MaintainerName        string          `json:"maintainer_name,omitempty"`
	MaintainerURL         string          `json:"maintainer_url,omitempty" validate:"omitempty,url"`
	MaintainerDescription string          `json:"maintainer_description,omitempty"`
}

func (e sourceEntry) descriptor() (domain.SourceDescriptor, error) {
	category, err := domain.ParseCategory(e.Category)
	if err != nil {
		return domain.SourceDescriptor{}, err
	}

	if len(e.NSFW) > 0 {
		var nsfw bool
		if err := json.Unmarshal(e.NSFW, &nsfw); err != nil {
			return domain.SourceDescriptor{}, fmt.Errorf("%w: nsfw must be a boolean", domain.ErrInvalidCategory)
		}
		switch {
		case nsfw && e.Category == "general":
			return domain.SourceDescriptor{}, fmt.Errorf("%w: nsfw conflicts with category general", domain.ErrInvalidCategory)
		case nsfw:
			category = domain.CategoryRestricted
		}
	}

	return domain.SourceDescriptor{
		Name:     e.Name,
		URL:      e.URL,
		Category: category,
		Preserve: e.Preserve,
		Format:   e.Format,
		Maintainer: domain.Maintainer{
			Name:        e.MaintainerName,
			URL:         e.MaintainerURL,
			Description: e.MaintainerDescription,
		},
	}, nil
}

func entryFor(s domain.SourceDescriptor) sourceEntry {
	return sourceEntry{
		Name:                  s.Name,
		URL:                   s.URL,
		Category:              s.Category.String(),
		Preserve:              s.Preserve,
		Format:                s.Format,
		MaintainerName:        s.Maintainer.Name,
		MaintainerURL:         s.Maintainer.URL,
		MaintainerDescription: s.Maintainer.Description,
	}
}

// ParseSources decodes a JSON array of sources. Every failure wraps
// domain.ErrConfig and names the offending entry.
func ParseSources(data []byte) ([]domain.SourceDescriptor, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var entries []sourceEntry
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: decoding sources: %w", domain.ErrConfig, err)
	}

	validate := validator.New()
	sources := make([]domain.SourceDescriptor, 0, len(entries))
	for i, e := range entries {
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("%w: source %d (%q): validation failed: %w", domain.ErrConfig, i+1, e.Name, err)
		}
		d, err := e.descriptor()
		if err != nil {
			return nil, fmt.Errorf("%w: source %d (%q): %w", domain.ErrConfig, i+1, e.Name, err)
		}
		sources = append(sources, d)
	}

	if err := domain.ValidateSources(sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// LoadSources reads the sources file at path.
func LoadSources(path string) ([]domain.SourceDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading sources: %w", domain.ErrConfig, err)
	}
	return ParseSources(data)
}

// SaveSources atomically rewrites the sources file, used after stale
// sources are purged.
func SaveSources(path string, sources []domain.SourceDescriptor) error {
	entries := make([]sourceEntry, len(sources))
	for i, s := range sources {
		entries[i] = entryFor(s)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sources: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".sources-*.json")
	if err != nil {
		return fmt.Errorf("creating temp sources file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing sources: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing sources: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing sources: %w", err)
	}
	return nil
}

// LoadWhitelist reads the whitelist at path. A missing file yields an empty
// set. Malformed rules are skipped and listed by Set.Rejected; a file that
// cannot be read wraps domain.ErrConfig.
func LoadWhitelist(path string) (*whitelist.Set, error) {
	if path == "" {
		return whitelist.Empty(), nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return whitelist.Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening whitelist: %w", domain.ErrConfig, err)
	}
	defer func() { _ = f.Close() }()

	return whitelist.Load(f)
}
