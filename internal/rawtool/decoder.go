// Package rawtool provides the default RawDecoder and ImageEncoder
// implementations: a dcraw subprocess for RAW decoding and the standard
// JPEG encoder for output.
package rawtool

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strconv"

	"github.com/truevine-insights/spectrum/internal/convert"
	"github.com/truevine-insights/spectrum/internal/preset"
)

// DcrawDecoder shells out to dcraw, reading the developed raster from
// stdout as PPM. The binary path is injectable for tests.
type DcrawDecoder struct {
	// Bin is the dcraw executable; defaults to "dcraw" on PATH.
	Bin string
}

func NewDcrawDecoder() *DcrawDecoder {
	return &DcrawDecoder{Bin: "dcraw"}
}

// args maps decode parameters onto dcraw flags. Camera white balance is
// always used; -W suppresses auto-brightening when the bundle disables
// it.
func (d *DcrawDecoder) args(path string, params convert.DecodeParams) []string {
	args := []string{"-c", "-w"}

	if !params.AutoBright {
		args = append(args, "-W")
	}

	threshold := params.NoiseThreshold
	if threshold == 0 {
		// Noise-reduction modes without an explicit threshold get a
		// wavelet-denoise default.
		switch params.NoiseReduction {
		case preset.NoiseReductionLight:
			threshold = 25
		case preset.NoiseReductionFull:
			threshold = 100
		}
	}
	if threshold > 0 {
		args = append(args, "-n", strconv.Itoa(threshold))
	}

	if params.MedianPasses > 0 {
		args = append(args, "-m", strconv.Itoa(params.MedianPasses))
	}

	return append(args, path)
}

func (d *DcrawDecoder) Decode(ctx context.Context, path string, params convert.DecodeParams) (image.Image, error) {
	bin := d.Bin
	if bin == "" {
		bin = "dcraw"
	}

	cmd := exec.CommandContext(ctx, bin, d.args(path, params)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("dcraw: %s", msg)
	}

	img, err := DecodePPM(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("dcraw output: %w", err)
	}
	return img, nil
}
