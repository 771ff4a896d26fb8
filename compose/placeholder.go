package compose

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const placeholderLabel = "NO DATA"

// placeholderTile renders the stand-in for an unresolvable grid cell:
// a flat fill with a border, corner-to-corner diagonals, and a centered
// label. Deterministic for a given size and fill color.
func placeholderTile(size int, fill color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	line := color.RGBA{
		R: scaleChannel(fill.R),
		G: scaleChannel(fill.G),
		B: scaleChannel(fill.B),
		A: 0xff,
	}

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	for i := 0; i < size; i++ {
		img.SetRGBA(i, 0, line)
		img.SetRGBA(i, size-1, line)
		img.SetRGBA(0, i, line)
		img.SetRGBA(size-1, i, line)
		img.SetRGBA(i, i, line)
		img.SetRGBA(size-1-i, i, line)
	}

	face := basicfont.Face7x13
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(line),
		Face: face,
	}
	w := d.MeasureString(placeholderLabel)
	d.Dot = fixed.Point26_6{
		X: fixed.I(size)/2 - w/2,
		Y: fixed.I(size)/2 + fixed.I(face.Height)/2,
	}
	d.DrawString(placeholderLabel)
	return img
}

// scaleChannel darkens one channel by a quarter for border contrast.
func scaleChannel(v uint8) uint8 {
	return uint8(int(v) * 3 / 4)
}
