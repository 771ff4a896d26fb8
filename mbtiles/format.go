package mbtiles

import "bytes"

// TileFormat is the payload format of a store, decided once at open time
// and cached on the descriptor. Tiles are never re-sniffed per read.
type TileFormat int

const (
	FormatUnknown TileFormat = iota
	FormatPNG
	FormatJPEG
	FormatPBF
)

func (f TileFormat) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpg"
	case FormatPBF:
		return "pbf"
	}
	return "unknown"
}

// Raster reports whether the format can be decoded to pixels.
func (f TileFormat) Raster() bool {
	return f == FormatPNG || f == FormatJPEG
}

// ContentType returns the MIME type for serving tiles of this format.
func (f TileFormat) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatPBF:
		return "application/x-protobuf"
	}
	return "application/octet-stream"
}

// ParseFormat maps an MBTiles metadata `format` value.
func ParseFormat(s string) TileFormat {
	switch s {
	case "png":
		return FormatPNG
	case "jpg", "jpeg":
		return FormatJPEG
	case "pbf", "mvt":
		return FormatPBF
	}
	return FormatUnknown
}

var (
	pngSignature  = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	jpegSignature = []byte{0xff, 0xd8, 0xff}
	gzipSignature = []byte{0x1f, 0x8b}
)

// SniffFormat detects the payload format from its leading bytes.
// Vector tiles are stored gzip-compressed protobuf, so a gzip header
// means pbf.
func SniffFormat(data []byte) TileFormat {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return FormatPNG
	case bytes.HasPrefix(data, jpegSignature):
		return FormatJPEG
	case bytes.HasPrefix(data, gzipSignature):
		return FormatPBF
	}
	return FormatUnknown
}
