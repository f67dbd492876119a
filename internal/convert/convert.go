// Package convert turns one RAW source file into one encoded output
// file under a preset bundle, writing atomically.
package convert

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/truevine-insights/spectrum/internal/preset"
	"github.com/truevine-insights/spectrum/pkg/types"
)

// DecodeParams carries the decoder-facing subset of a preset bundle.
type DecodeParams struct {
	AutoBright     bool
	NoiseThreshold int
	MedianPasses   int
	NoiseReduction preset.NoiseReduction
}

// RawDecoder produces an RGB raster from a RAW file, or fails.
type RawDecoder interface {
	Decode(ctx context.Context, path string, params DecodeParams) (image.Image, error)
}

// Encoder writes an encoded image at the given quality and
// chroma-subsampling mode.
type Encoder interface {
	Encode(w io.Writer, img image.Image, quality int, chromaMode string) error
}

// AutoBrightMode overrides a bundle's auto-bright flag when set.
type AutoBrightMode string

const (
	// AutoBrightPreset follows whatever the resolved bundle specifies.
	AutoBrightPreset AutoBrightMode = ""
	AutoBrightOn     AutoBrightMode = "on"
	AutoBrightOff    AutoBrightMode = "off"
)

// Options are the pipeline-wide switches threaded in from config.
type Options struct {
	// EnableSharpen gates sharpening globally; a bundle's own sharpen
	// flag must also be set for sharpening to run.
	EnableSharpen bool
	// SharpenRadius, SharpenAmount and SharpenThreshold replace the
	// bundle's sharpen parameters when radius and amount are both set;
	// left zero, the bundle's own values apply.
	SharpenRadius    float64
	SharpenAmount    float64
	SharpenThreshold float64
	// AutoBright forces auto-brightening on or off for every preset.
	AutoBright AutoBrightMode
	// ChromaMode is passed through to the encoder.
	ChromaMode string
}

type Converter struct {
	decoder RawDecoder
	encoder Encoder
	presets *preset.Resolver
	opts    Options
}

func New(decoder RawDecoder, encoder Encoder, presets *preset.Resolver, opts Options) *Converter {
	return &Converter{
		decoder: decoder,
		encoder: encoder,
		presets: presets,
		opts:    opts,
	}
}

// Convert decodes src, applies the preset's enhancements, and writes
// dst atomically. Failures are captured in the outcome; this boundary
// never raises, so one bad file cannot abort a batch.
func (c *Converter) Convert(ctx context.Context, src, dst string, quality int, presetName string) types.ConversionOutcome {
	outcome := types.ConversionOutcome{Src: src, Dst: dst}

	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}

	bundle := c.presets.Resolve(presetName)

	autoBright := bundle.AutoBright
	switch c.opts.AutoBright {
	case AutoBrightOn:
		autoBright = true
	case AutoBrightOff:
		autoBright = false
	}

	img, err := c.decoder.Decode(ctx, src, DecodeParams{
		AutoBright:     autoBright,
		NoiseThreshold: bundle.NoiseThreshold,
		MedianPasses:   bundle.MedianPasses,
		NoiseReduction: bundle.NoiseReduction,
	})
	if err != nil {
		outcome.Error = fmt.Sprintf("decode failed: %v", err)
		return outcome
	}

	img = c.enhance(img, bundle)

	size, err := c.writeAtomic(dst, img, quality)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Success = true
	outcome.SizeBytes = size
	return outcome
}

// writeAtomic encodes into a temporary file in dst's parent and renames
// it over dst, so the destination is only ever absent or complete. The
// temp file is removed on every exit path.
func (c *Converter) writeAtomic(dst string, img image.Image, quality int) (int64, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp_*"+filepath.Ext(dst))
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	err = c.encoder.Encode(tmp, img, quality, c.opts.ChromaMode)
	if closeErr := tmp.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("encode failed: %w", err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return 0, fmt.Errorf("finalize output: %w", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return 0, nil
	}
	return info.Size(), nil
}
