package render

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	planeSize     = 512
	maxPlaneWidth = 1024
)

var (
	quadAuthLeft  = color.NRGBA{R: 0xff, G: 0x75, B: 0x75, A: 0xff}
	quadAuthRight = color.NRGBA{R: 0x75, G: 0xba, B: 0xff, A: 0xff}
	quadLibLeft   = color.NRGBA{R: 0x9a, G: 0xed, B: 0x97, A: 0xff}
	quadLibRight  = color.NRGBA{R: 0xc0, G: 0x9a, B: 0xec, A: 0xff}
	gridColor     = color.NRGBA{R: 0, G: 0, B: 0, A: 0x30}
)

// LoadPlane decodes a PNG or JPEG base image, downscaling planes wider than
// 1024 px.
func LoadPlane(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode plane %s: %w", path, err)
	}

	b := src.Bounds()
	if b.Dx() > maxPlaneWidth {
		h := b.Dy() * maxPlaneWidth / b.Dx()
		dst := image.NewNRGBA(image.Rect(0, 0, maxPlaneWidth, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		return dst, nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst, nil
}

// DefaultPlane draws the four-quadrant compass with a 20x20 grid.
func DefaultPlane() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, planeSize, planeSize))
	half := planeSize / 2

	fill := func(r image.Rectangle, c color.Color) {
		draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
	}
	fill(image.Rect(0, 0, half, half), quadAuthLeft)
	fill(image.Rect(half, 0, planeSize, half), quadAuthRight)
	fill(image.Rect(0, half, half, planeSize), quadLibLeft)
	fill(image.Rect(half, half, planeSize, planeSize), quadLibRight)

	grid := image.NewUniform(gridColor)
	for i := 1; i < int(XMax); i++ {
		p := i * planeSize / int(XMax)
		draw.Draw(img, image.Rect(p, 0, p+1, planeSize), grid, image.Point{}, draw.Over)
		draw.Draw(img, image.Rect(0, p, planeSize, p+1), grid, image.Point{}, draw.Over)
	}

	fill(image.Rect(half-1, 0, half+1, planeSize), color.Black)
	fill(image.Rect(0, half-1, planeSize, half+1), color.Black)

	label(img, "Authoritarian", half, 16, true)
	label(img, "Libertarian", half, planeSize-6, true)
	label(img, "Left", 6, half-6, false)
	label(img, "Right", planeSize-6-measure("Right"), half-6, false)
	return img
}

func measure(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

func label(dst draw.Image, s string, x, y int, centered bool) {
	if centered {
		x -= measure(s) / 2
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
