package mbtiles

import "testing"

func TestSniffFormat(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want TileFormat
	}{
		{"png", []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00}, FormatPNG},
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}, FormatJPEG},
		{"gzip-pbf", []byte{0x1f, 0x8b, 0x08, 0x00}, FormatPBF},
		{"garbage", []byte{0xde, 0xad, 0xbe, 0xef}, FormatUnknown},
		{"empty", nil, FormatUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := SniffFormat(c.data); got != c.want {
				t.Errorf("got %s, want %s", got, c.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("png") != FormatPNG {
		t.Error("png")
	}
	if ParseFormat("jpg") != FormatJPEG || ParseFormat("jpeg") != FormatJPEG {
		t.Error("jpeg")
	}
	if ParseFormat("pbf") != FormatPBF {
		t.Error("pbf")
	}
	if ParseFormat("webp") != FormatUnknown {
		t.Error("unknown formats must not be guessed")
	}
}

func TestFormatRaster(t *testing.T) {
	if !FormatPNG.Raster() || !FormatJPEG.Raster() {
		t.Error("png and jpeg are raster")
	}
	if FormatPBF.Raster() || FormatUnknown.Raster() {
		t.Error("pbf and unknown are not raster")
	}
}
