package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPtrCopies(t *testing.T) {
	s := "a"
	p := Ptr(s)
	s = "b"
	assert.Equal(t, "a", *p)
}

func TestDeref(t *testing.T) {
	assert.Equal(t, 3, Deref[int](nil, 3))
	assert.Equal(t, 5, Deref(Ptr(5), 3))
}

func TestResultKeepsPartialValue(t *testing.T) {
	r := NewResult("partial", assert.AnError)
	v, err := r.Value()
	assert.Equal(t, "partial", v)
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, r.Ok())
	assert.Equal(t, "fallback", r.ValueOr("fallback"))

	ok := NewResult(1, nil)
	assert.True(t, ok.Ok())
	assert.Equal(t, 1, ok.ValueOr(2))
}
