package render

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/stereotweet/internal/types"
)

func whitePlane(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	path := filepath.Join(t.TempDir(), "plane.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func decode(t *testing.T, raw []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func isMarkerRed(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 > 200 && g>>8 < 100 && b>>8 < 100
}

func isWhite(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 == 0xff && g>>8 == 0xff && b>>8 == 0xff
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-5, XMax))
	assert.Equal(t, 20.0, Clamp(25, XMax))
	assert.Equal(t, 7.5, Clamp(7.5, XMax))
}

func TestToPixel(t *testing.T) {
	x, y := ToPixel(types.Coordinates{X: -5, Y: 25}, image.Pt(400, 300))
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 300.0, y)

	x, y = ToPixel(types.Coordinates{X: 15.2, Y: 4.1}, image.Pt(400, 400))
	assert.InDelta(t, 304.0, x, 1e-9)
	assert.InDelta(t, 82.0, y, 1e-9)
}

func TestRenderPlacesMarker(t *testing.T) {
	r := New(whitePlane(t, 400, 400), 10)

	raw, err := r.Render(types.Coordinates{X: 15.2, Y: 4.1})
	require.NoError(t, err)
	img := decode(t, raw)
	assert.Equal(t, image.Rect(0, 0, 400, 400), img.Bounds())

	// Marker centre at (15.2/20*W, 4.1/20*H).
	assert.True(t, isMarkerRed(img.At(304, 82)))
	// The outline ring is dark.
	ring := img.At(304+10, 82)
	rr, _, _, _ := ring.RGBA()
	assert.Less(t, rr>>8, uint32(200))
	// Far away the plane is untouched.
	assert.True(t, isWhite(img.At(50, 350)))
}

func TestRenderClampsOutOfRange(t *testing.T) {
	r := New(whitePlane(t, 200, 100), 10)

	raw, err := r.Render(types.Coordinates{X: -5, Y: 25})
	require.NoError(t, err)
	img := decode(t, raw)

	// Marker centred on (0, H): only its upper-right quarter is visible.
	assert.True(t, isMarkerRed(img.At(2, 97)))
	assert.True(t, isWhite(img.At(100, 50)))
	assert.True(t, isWhite(img.At(2, 2)))
}

func TestRenderDoesNotMutatePlane(t *testing.T) {
	r := New(whitePlane(t, 100, 100), 10)

	_, err := r.Render(types.Coordinates{X: 10, Y: 10})
	require.NoError(t, err)
	plane, err := r.Plane()
	require.NoError(t, err)
	assert.True(t, isWhite(plane.At(50, 50)))
}

func TestRenderBase64(t *testing.T) {
	r := New("", 0)

	s, err := r.RenderBase64(types.Coordinates{X: 10, Y: 10})
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	img := decode(t, raw)
	assert.Equal(t, image.Rect(0, 0, planeSize, planeSize), img.Bounds())
}

func TestLoadPlaneDownscalesWideImages(t *testing.T) {
	plane, err := LoadPlane(whitePlane(t, 2048, 1024))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1024, 512), plane.Bounds())
}

func TestPlaneLoadErrorIsSticky(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "missing.png"), 10)

	_, err := r.Render(types.Coordinates{})
	require.Error(t, err)
	_, err = r.Render(types.Coordinates{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
