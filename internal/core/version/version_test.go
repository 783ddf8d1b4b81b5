package version

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/configurator/internal/core/events"
)

func TestParse(t *testing.T) {
	n, err := Parse("users.1.2.3.4")
	require.NoError(t, err)

	assert.Equal(t, "users", n.Collection)
	assert.Equal(t, []int{1, 2, 3, 4}, n.Parts())
	assert.Equal(t, "1.2.3.4", n.String())
	assert.Equal(t, "users.1.2.3.4", n.Full())
	assert.Equal(t, "users.1.2.3.yaml", n.SchemaFileName())
	assert.Equal(t, 4, n.EnumeratorVersion())
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "users", "users.1.2.3", "users.1.2.x.0", ".1.2.3.4", "users.1.2.3.-1"} {
		_, err := Parse(s)
		require.Error(t, err, s)
		assert.True(t, errors.Is(err, events.ErrValidation), s)
	}
}

func TestCompare(t *testing.T) {
	a, _ := Parse("users.1.0.0.1")
	b, _ := Parse("users.1.0.1.0")

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, b.AtLeast(a))
	assert.False(t, Zero("users").AtLeast(a))
}

func TestFromParts(t *testing.T) {
	n, err := FromParts("users", []int{0, 0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, "users.0.0.1.0", n.Full())

	_, err = FromParts("users", []int{1})
	assert.Error(t, err)
}
