// Package render places a judgment's marker on the compass plane.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/ibeckermayer/stereotweet/internal/types"
)

// Bounds of the judgment coordinate space.
const (
	XMax = 20.0
	YMax = 20.0
)

const (
	defaultRadius = 10
	outlineWidth  = 2
	// kappa places cubic control points so four segments approximate a circle.
	kappa = 0.5522847498
)

var (
	markerFill    = color.NRGBA{R: 255, G: 0, B: 0, A: 204}
	markerOutline = color.NRGBA{R: 0, G: 0, B: 0, A: 204}
)

// Renderer owns the base plane, loaded on first use and shared read-only by
// every render afterwards.
type Renderer struct {
	planePath string
	radius    float64

	once  sync.Once
	plane *image.NRGBA
	err   error
}

// New creates a renderer. An empty planePath uses the generated compass.
func New(planePath string, radius float64) *Renderer {
	if radius <= 0 {
		radius = defaultRadius
	}
	return &Renderer{planePath: planePath, radius: radius}
}

// Plane returns the base image, loading it once.
func (r *Renderer) Plane() (*image.NRGBA, error) {
	r.once.Do(func() {
		if r.planePath == "" {
			r.plane = DefaultPlane()
			return
		}
		r.plane, r.err = LoadPlane(r.planePath)
		if r.err == nil {
			slog.Info("[render] loaded base plane", slog.String("path", r.planePath),
				slog.Int("width", r.plane.Bounds().Dx()), slog.Int("height", r.plane.Bounds().Dy()))
		}
	})
	return r.plane, r.err
}

// Clamp bounds v to [0, max].
func Clamp(v, max float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > max:
		return max
	default:
		return v
	}
}

// ToPixel maps judgment coordinates onto an image of the given size.
func ToPixel(c types.Coordinates, size image.Point) (float64, float64) {
	return Clamp(c.X, XMax) / XMax * float64(size.X),
		Clamp(c.Y, YMax) / YMax * float64(size.Y)
}

// Render draws the marker for c on a copy of the plane and returns it as PNG.
func (r *Renderer) Render(c types.Coordinates) ([]byte, error) {
	plane, err := r.Plane()
	if err != nil {
		return nil, fmt.Errorf("load plane: %w", err)
	}

	img := image.NewNRGBA(plane.Bounds())
	draw.Draw(img, img.Bounds(), plane, plane.Bounds().Min, draw.Src)

	px, py := ToPixel(c, img.Bounds().Size())
	DrawMarker(img, px, py, r.radius)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderBase64 is Render with the PNG base64-encoded for the reply payload.
func (r *Renderer) RenderBase64(c types.Coordinates) (string, error) {
	raw, err := r.Render(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DrawMarker draws a filled, outlined circle centred on (cx, cy).
func DrawMarker(dst draw.Image, cx, cy, radius float64) {
	b := dst.Bounds()
	x, y := float32(cx-float64(b.Min.X)), float32(cy-float64(b.Min.Y))
	r := float32(radius)

	fill := vector.NewRasterizer(b.Dx(), b.Dy())
	circle(fill, x, y, r, false)
	fill.Draw(dst, b, image.NewUniform(markerFill), image.Point{})

	// The outline straddles the circle edge; the inner contour winds the
	// other way so it cuts a hole.
	ring := vector.NewRasterizer(b.Dx(), b.Dy())
	circle(ring, x, y, r+outlineWidth/2, false)
	circle(ring, x, y, r-outlineWidth/2, true)
	ring.Draw(dst, b, image.NewUniform(markerOutline), image.Point{})
}

func circle(z *vector.Rasterizer, cx, cy, r float32, reverse bool) {
	k := r * kappa
	z.MoveTo(cx+r, cy)
	if !reverse {
		z.CubeTo(cx+r, cy+k, cx+k, cy+r, cx, cy+r)
		z.CubeTo(cx-k, cy+r, cx-r, cy+k, cx-r, cy)
		z.CubeTo(cx-r, cy-k, cx-k, cy-r, cx, cy-r)
		z.CubeTo(cx+k, cy-r, cx+r, cy-k, cx+r, cy)
	} else {
		z.CubeTo(cx+r, cy-k, cx+k, cy-r, cx, cy-r)
		z.CubeTo(cx-k, cy-r, cx-r, cy-k, cx-r, cy)
		z.CubeTo(cx-r, cy+k, cx-k, cy+r, cx, cy+r)
		z.CubeTo(cx+k, cy+r, cx+r, cy+k, cx+r, cy)
	}
	z.ClosePath()
}
