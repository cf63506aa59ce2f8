package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/stereotweet/internal/types"
)

func TestParseJudgment(t *testing.T) {
	j, err := ParseJudgment(`{"coordinates":{"x":15.2,"y":4.1},"keywords":"taxes, fiscal","reasoning":"fiscally conservative framing"}`)
	require.NoError(t, err)
	assert.Equal(t, types.Judgment{
		Coordinates: types.Coordinates{X: 15.2, Y: 4.1},
		Keywords:    "taxes, fiscal",
		Reasoning:   "fiscally conservative framing",
	}, j)
}

func TestParseJudgmentClamps(t *testing.T) {
	j, err := ParseJudgment(`{"coordinates":{"x":-5,"y":25},"keywords":"","reasoning":"r"}`)
	require.NoError(t, err)
	assert.Equal(t, types.Coordinates{X: 0, Y: 20}, j.Coordinates)
}

func TestParseJudgmentAllowsSurroundingWhitespace(t *testing.T) {
	_, err := ParseJudgment("\n  {\"coordinates\":{\"x\":0,\"y\":0},\"keywords\":\"k\",\"reasoning\":\"r\"}\n")
	assert.NoError(t, err)
}

func TestParseJudgmentMalformed(t *testing.T) {
	tests := map[string]string{
		"not json":         `not json`,
		"empty":            ``,
		"array":            `[{"coordinates":{"x":1,"y":1},"keywords":"k","reasoning":"r"}]`,
		"trailing text":    `{"coordinates":{"x":1,"y":1},"keywords":"k","reasoning":"r"} thanks!`,
		"leading text":     `Sure: {"coordinates":{"x":1,"y":1},"keywords":"k","reasoning":"r"}`,
		"two objects":      `{"coordinates":{"x":1,"y":1},"keywords":"k","reasoning":"r"}{}`,
		"missing coords":   `{"keywords":"k","reasoning":"r"}`,
		"missing y":        `{"coordinates":{"x":1},"keywords":"k","reasoning":"r"}`,
		"missing reason":   `{"coordinates":{"x":1,"y":1},"keywords":"k"}`,
		"wrong coord type": `{"coordinates":{"x":"1","y":1},"keywords":"k","reasoning":"r"}`,
		"null":             `null`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJudgment(body)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrMalformedJudgment)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Twitter post info\n\n- Post text: Taxes are too high")
	assert.Contains(t, p, "- Post text: Taxes are too high")
	assert.Contains(t, p, "(20,20)")
	assert.Contains(t, p, `"coordinates"`)
	assert.Contains(t, p, "*only* as a JSON object")
}
