package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/docscan-mcp/internal/geometry"
)

func TestParseQuad(t *testing.T) {
	want := geometry.Quad{{X: 1, Y: 2}, {X: 3.5, Y: 4}, {X: 5, Y: -6}, {X: 7, Y: 8}}

	for _, s := range []string{
		"1,2,3.5,4,5,-6,7,8",
		"1 2 3.5 4 5 -6 7 8",
		"1, 2, 3.5, 4, 5, -6, 7, 8",
	} {
		q, err := parseQuad(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, q, s)
	}
}

func TestParseQuad_Errors(t *testing.T) {
	for _, s := range []string{"", "1,2,3", "1,2,3,4,5,6,7,8,9", "1,2,3,4,5,6,7,x"} {
		_, err := parseQuad(s)
		assert.Error(t, err, s)
	}
}
