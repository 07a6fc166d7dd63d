package domain

import (
	"fmt"
	"strings"
)

// Category determines which output set(s) a source's domains are eligible for.
type Category uint8

// Possible category values. The zero value is General.
const (
	CategoryGeneral Category = iota
	CategoryRestricted
)

// String returns the configuration spelling of the category.
func (c Category) String() string {
	switch c {
	case CategoryGeneral:
		return "general"
	case CategoryRestricted:
		return "restricted"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// ParseCategory converts a configuration value into a Category.
// An empty value means General.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "general":
		return CategoryGeneral, nil
	case "restricted":
		return CategoryRestricted, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if c > CategoryRestricted {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCategory, uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
