package helpers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrimPaddedString(t *testing.T) {
	testCases := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "SpacePadded",
			input:    []byte("MY_DISC         "),
			expected: "MY_DISC",
		},
		{
			name:     "NulPadded",
			input:    []byte("MY_DISC\x00\x00\x00"),
			expected: "MY_DISC",
		},
		{
			name:     "AllSpaces",
			input:    []byte("                "),
			expected: "",
		},
		{
			name:     "Empty",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "InteriorSpacesKept",
			input:    []byte("MY DISC  "),
			expected: "MY DISC",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, TrimPaddedString(tc.input))
		})
	}
}

func TestPascalString(t *testing.T) {
	raw := append([]byte{7}, []byte("TestVolXXXX")...)
	require.Equal(t, "TestVol", PascalString(raw))

	// Length byte larger than the buffer gets clamped.
	require.Equal(t, "AB", PascalString([]byte{9, 'A', 'B'}))
	require.Equal(t, "", PascalString(nil))
}

func TestAllDigits(t *testing.T) {
	require.True(t, AllDigits("123456"))
	require.False(t, AllDigits("12A3"))
	require.False(t, AllDigits(""))
}
