//go:build !libpostal

package postal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithoutLibpostal(t *testing.T) {
	assert.False(t, Available)
	n, err := New()
	assert.Nil(t, n)
	assert.True(t, errors.Is(err, ErrUnavailable))
}
