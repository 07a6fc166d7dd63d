package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input   string
		want    Category
		wantErr bool
	}{
		{input: "", want: CategoryGeneral},
		{input: "general", want: CategoryGeneral},
		{input: " Restricted ", want: CategoryRestricted},
		{input: "nsfw", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseCategory(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCategory)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCategory_TextRoundTrip(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		Category Category `json:"category"`
	}

	data, err := json.Marshal(wrapper{Category: CategoryRestricted})
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"restricted"}`, string(data))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"category":"general"}`), &w))
	assert.Equal(t, CategoryGeneral, w.Category)

	assert.Error(t, json.Unmarshal([]byte(`{"category":"adult"}`), &w))
}
