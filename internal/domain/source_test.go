package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceDescriptor_Validate(t *testing.T) {
	t.Parallel()

	valid := SourceDescriptor{Name: "adaway", URL: "https://adaway.org/hosts.txt"}
	assert.NoError(t, valid.Validate())

	noName := valid
	noName.Name = "  "
	assert.ErrorIs(t, noName.Validate(), ErrEmptySourceName)

	noURL := valid
	noURL.URL = ""
	assert.ErrorIs(t, noURL.Validate(), ErrEmptySourceURL)

	badCategory := valid
	badCategory.Category = Category(7)
	assert.ErrorIs(t, badCategory.Validate(), ErrInvalidCategory)
}

func TestValidateSources(t *testing.T) {
	t.Parallel()

	sources := []SourceDescriptor{
		{Name: "a", URL: "https://a.example/list"},
		{Name: "b", URL: "https://b.example/list", Category: CategoryRestricted},
	}
	assert.NoError(t, ValidateSources(sources))

	dup := append(sources, SourceDescriptor{Name: "a", URL: "https://c.example/list"})
	err := ValidateSources(dup)
	assert.ErrorIs(t, err, ErrConfig)
	assert.ErrorIs(t, err, ErrDuplicateSource)

	missing := []SourceDescriptor{{Name: "x"}}
	err = ValidateSources(missing)
	assert.ErrorIs(t, err, ErrConfig)
	assert.ErrorIs(t, err, ErrEmptySourceURL)
}

func TestDomainRecord_Less(t *testing.T) {
	t.Parallel()

	a := DomainRecord{Domain: "a.com", Source: 2}
	b := DomainRecord{Domain: "a.com", Source: 3}
	c := DomainRecord{Domain: "b.com", Source: 0}

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, b.Less(c))
	assert.False(t, a.Less(a))
}

func TestMaintainer_Complete(t *testing.T) {
	t.Parallel()

	assert.False(t, Maintainer{Name: "x"}.Complete())
	assert.True(t, Maintainer{Name: "x", URL: "https://x", Description: "d"}.Complete())
}
