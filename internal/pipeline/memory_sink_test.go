package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySinkCommit(t *testing.T) {
	t.Parallel()

	s := NewMemorySink()
	require.NoError(t, s.General("a.com"))
	require.NoError(t, s.Restricted("a.com"))
	require.NoError(t, s.Restricted("b.com"))

	assert.Empty(t, s.GeneralDomains(), "staged output must not be visible")

	require.NoError(t, s.Commit())
	assert.Equal(t, []string{"a.com"}, s.GeneralDomains())
	assert.Equal(t, []string{"a.com", "b.com"}, s.RestrictedDomains())
	assert.False(t, s.Aborted())

	assert.ErrorIs(t, s.General("c.com"), ErrSinkClosed)
	assert.ErrorIs(t, s.Commit(), ErrSinkClosed)
	require.NoError(t, s.Abort())
	assert.False(t, s.Aborted(), "abort after commit keeps committed output")
	assert.Equal(t, []string{"a.com"}, s.GeneralDomains())
}

func TestMemorySinkAbort(t *testing.T) {
	t.Parallel()

	s := NewMemorySink()
	require.NoError(t, s.General("a.com"))
	require.NoError(t, s.Abort())
	require.NoError(t, s.Abort())

	assert.True(t, s.Aborted())
	assert.Empty(t, s.GeneralDomains())
	assert.ErrorIs(t, s.Restricted("a.com"), ErrSinkClosed)
}
