package common

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{name: "zero", size: 0},
		{name: "sixteen", size: 16},
		{name: "thirty two", size: 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := MakeRandHexString(tt.size)
			require.NoError(t, err)
			assert.Len(t, s, tt.size*2)

			raw, err := hex.DecodeString(s)
			require.NoError(t, err)
			assert.Len(t, raw, tt.size)
		})
	}
}

func TestGenerateRandByteArray(t *testing.T) {
	a := GenerateRandByteArray(32)
	b := GenerateRandByteArray(32)

	assert.Len(t, a, 32)
	assert.Len(t, b, 32)
	assert.NotEqual(t, a, b)
}

func TestWipeByteArray(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	assert.Equal(t, []byte{0, 0, 0, 0, 0}, buf)

	assert.NotPanics(t, func() { WipeByteArray(nil) })
}

func TestSentinelsMatchWhenWrapped(t *testing.T) {
	err := fmt.Errorf("resolve %q: %w", "notes", ErrForbidden)
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.False(t, errors.Is(err, ErrNotFound))
}
