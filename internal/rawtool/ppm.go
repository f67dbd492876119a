package rawtool

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// maxDimension caps a raster edge well above any real sensor while
// keeping size arithmetic far from overflow.
const maxDimension = 1 << 15

// DecodePPM parses a binary PPM (P6) raster as produced by dcraw.
// Both 8-bit and 16-bit sample depths are accepted; 16-bit samples are
// reduced to 8 bits.
func DecodePPM(data []byte) (image.Image, error) {
	p := &ppmParser{data: data}

	magic, err := p.token()
	if err != nil {
		return nil, err
	}
	if magic != "P6" {
		return nil, fmt.Errorf("unsupported magic %q", magic)
	}

	width, err := p.number()
	if err != nil {
		return nil, err
	}
	height, err := p.number()
	if err != nil {
		return nil, err
	}
	maxval, err := p.number()
	if err != nil {
		return nil, err
	}

	if width <= 0 || height <= 0 || width > maxDimension || height > maxDimension {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if maxval <= 0 || maxval >= 1<<16 {
		return nil, fmt.Errorf("invalid maxval %d", maxval)
	}

	// Exactly one whitespace byte separates the header from the raster.
	if err := p.skipOne(); err != nil {
		return nil, err
	}

	wide := maxval > 255
	sampleBytes := 1
	if wide {
		sampleBytes = 2
	}
	need := int64(width) * int64(height) * 3 * int64(sampleBytes)
	raster := p.rest()
	if int64(len(raster)) < need {
		return nil, fmt.Errorf("truncated raster: need %d bytes, have %d", need, len(raster))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	idx := 0
	sample := func() uint8 {
		if wide {
			// Big-endian 16-bit sample, scaled down.
			v := int(raster[idx])<<8 | int(raster[idx+1])
			idx += 2
			return uint8(v * 255 / maxval)
		}
		v := int(raster[idx])
		idx++
		if maxval != 255 {
			v = v * 255 / maxval
		}
		return uint8(v)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: sample(), G: sample(), B: sample(), A: 255})
		}
	}

	return img, nil
}

type ppmParser struct {
	data []byte
	pos  int
}

func (p *ppmParser) skipSpaceAndComments() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c == '#' {
			for p.pos < len(p.data) && p.data[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			p.pos++
			continue
		}
		return
	}
}

func (p *ppmParser) token() (string, error) {
	p.skipSpaceAndComments()
	start := p.pos
	for p.pos < len(p.data) && !isSpace(p.data[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return "", errors.New("unexpected end of header")
	}
	return string(p.data[start:p.pos]), nil
}

func (p *ppmParser) number() (int, error) {
	tok, err := p.token()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range tok {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("malformed number %q", tok)
		}
		n = n*10 + int(c-'0')
		if n > 1<<28 {
			return 0, fmt.Errorf("number %q out of range", tok)
		}
	}
	return n, nil
}

func (p *ppmParser) skipOne() error {
	if p.pos >= len(p.data) || !isSpace(p.data[p.pos]) {
		return errors.New("missing raster separator")
	}
	p.pos++
	return nil
}

func (p *ppmParser) rest() []byte {
	return p.data[p.pos:]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
