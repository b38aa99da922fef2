package controllers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitOAuthName(t *testing.T) {
	cases := []struct {
		name      string
		full      string
		first     string
		last      string
		wantFirst string
		wantLast  string
	}{
		{"provider splits the name", "", "Ada", "Lovelace", "Ada", "Lovelace"},
		{"full name only", "Grace Hopper", "", "", "Grace", "Hopper"},
		{"single word", "Prince", "", "", "Prince", ""},
		{"multi-part surname", "Ludwig van Beethoven", "", "", "Ludwig", "van Beethoven"},
		{"nothing at all", "", "", "", "Unknown", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first, last := splitOAuthName(tc.full, tc.first, tc.last)
			assert.Equal(t, tc.wantFirst, first)
			assert.Equal(t, tc.wantLast, last)
		})
	}
}

func TestRandomPasswordIsUnique(t *testing.T) {
	a, err := randomPassword()
	require.NoError(t, err)
	b, err := randomPassword()
	require.NoError(t, err)

	assert.Len(t, a, 48)
	assert.NotEqual(t, a, b)
}
