package analyzer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	"github.com/ibeckermayer/stereotweet/internal/render"
	"github.com/ibeckermayer/stereotweet/internal/types"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type rawCoordinates struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

type rawJudgment struct {
	Coordinates *rawCoordinates `json:"coordinates" validate:"required"`
	Keywords    *string         `json:"keywords" validate:"required"`
	Reasoning   *string         `json:"reasoning" validate:"required"`
}

// ParseJudgment decodes a provider answer. The whole text must be exactly one
// JSON object of the expected shape; coordinates are clamped into the plane
// rather than rejected.
func ParseJudgment(text string) (types.Judgment, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))

	var raw rawJudgment
	if err := dec.Decode(&raw); err != nil {
		return types.Judgment{}, malformed(fmt.Errorf("decode judgment: %w (response was: %.200s)", err, text))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return types.Judgment{}, malformed(fmt.Errorf("trailing data after judgment (response was: %.200s)", text))
	}
	if err := validate.Struct(raw); err != nil {
		return types.Judgment{}, malformed(fmt.Errorf("invalid judgment: %w", err))
	}

	return types.Judgment{
		Coordinates: types.Coordinates{
			X: render.Clamp(*raw.Coordinates.X, render.XMax),
			Y: render.Clamp(*raw.Coordinates.Y, render.YMax),
		},
		Keywords:  *raw.Keywords,
		Reasoning: *raw.Reasoning,
	}, nil
}

func malformed(err error) error {
	return types.NewError(types.KindMalformedJudgment, err)
}
