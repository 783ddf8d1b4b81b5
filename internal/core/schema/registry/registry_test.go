package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	r := New[func() string]()
	r.MustRegister("object", func() string { return "object" })
	r.Fallback(func() string { return "custom" })

	f, ok := r.Lookup("object")
	assert.True(t, ok)
	assert.Equal(t, "object", f())

	f, ok = r.Lookup("word")
	assert.False(t, ok)
	assert.Equal(t, "custom", f())

	assert.ErrorIs(t, r.Register("object", nil), ErrDuplicate)

	f, ok = r.Lookup("object")
	assert.True(t, ok)
	assert.Equal(t, "object", f())
}
