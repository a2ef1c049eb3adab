package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	cases := []struct {
		a, b Coordinate
		want int
	}{
		{Coordinate{0, 0}, Coordinate{3, 4}, 7},
		{Coordinate{3, 4}, Coordinate{0, 0}, 7},
		{Coordinate{-2, 5}, Coordinate{2, -5}, 14},
		{Coordinate{1, 1}, Coordinate{1, 1}, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Distance(tc.a, tc.b), "%v -> %v", tc.a, tc.b)
	}
}

func TestErrorKinds(t *testing.T) {
	err := NewError(ErrConflict, "ride already exists")
	wrapped := fmt.Errorf("create ride: %w", err)

	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, "ride already exists", err.Error())
}

func TestNewIDIsOrdered(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.Len(t, string(a), 26)
	assert.Less(t, string(a), string(b))
}

func TestRandomToken(t *testing.T) {
	tok := RandomToken(15)
	assert.Len(t, tok, 30)
	assert.NotEqual(t, tok, RandomToken(15))
}
