package resolve

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	_ "image/jpeg"
)

// scaleQuadrant synthesizes a tile at zoom parent+dz from its ancestor
// payload: crop the 1/2^dz sub-rectangle addressed by the quadrant
// offsets, then resample it up to tileSize. Always re-encodes as PNG.
func scaleQuadrant(data []byte, dz, offsetX, offsetY, tileSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	scale := 1 << uint(dz)
	b := img.Bounds()
	subW := b.Dx() / scale
	subH := b.Dy() / scale
	if subW < 1 || subH < 1 {
		return nil, fmt.Errorf("tile %dx%d too small to split %d ways", b.Dx(), b.Dy(), scale)
	}
	crop := image.Rect(
		b.Min.X+offsetX*subW,
		b.Min.Y+offsetY*subH,
		b.Min.X+(offsetX+1)*subW,
		b.Min.Y+(offsetY+1)*subH,
	)

	dst := image.NewRGBA(image.Rect(0, 0, tileSize, tileSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
