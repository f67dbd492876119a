package rawtool

import (
	"image"
	"image/jpeg"
	"io"
)

// JPEGEncoder encodes rasters with the standard library JPEG encoder.
// The chroma-subsampling mode is accepted per the encoder contract but
// the standard encoder fixes its own subsampling, so the value is
// currently advisory.
type JPEGEncoder struct{}

func NewJPEGEncoder() *JPEGEncoder {
	return &JPEGEncoder{}
}

func (e *JPEGEncoder) Encode(w io.Writer, img image.Image, quality int, _ string) error {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}
