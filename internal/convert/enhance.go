package convert

import (
	"image"

	"github.com/disintegration/gift"

	"github.com/truevine-insights/spectrum/internal/preset"
)

// enhance applies the bundle's adjustments in the fixed order contrast,
// color, brightness, then sharpening. Each step is a sequential
// transform on the previous result, so the order is part of the
// contract. Neutral multipliers add no filter at all.
func (c *Converter) enhance(img image.Image, bundle preset.Bundle) image.Image {
	var filters []gift.Filter

	if bundle.Contrast != 1.0 {
		filters = append(filters, gift.Contrast(toPercent(bundle.Contrast)))
	}
	if bundle.Color != 1.0 {
		filters = append(filters, gift.Saturation(toPercent(bundle.Color)))
	}
	if bundle.Brightness != 1.0 {
		filters = append(filters, gift.Brightness(toPercent(bundle.Brightness)))
	}

	if c.opts.EnableSharpen && bundle.Sharpen.Enabled {
		radius := bundle.Sharpen.Radius
		amount := bundle.Sharpen.Amount
		threshold := bundle.Sharpen.Threshold
		if c.opts.SharpenRadius > 0 && c.opts.SharpenAmount > 0 {
			radius = c.opts.SharpenRadius
			amount = c.opts.SharpenAmount
			threshold = c.opts.SharpenThreshold
		}
		filters = append(filters, gift.UnsharpMask(
			float32(radius),
			float32(amount),
			float32(threshold),
		))
	}

	if len(filters) == 0 {
		return img
	}

	g := gift.New(filters...)
	out := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(out, img)
	return out
}

// toPercent maps a 1.0-neutral multiplier onto gift's percentage scale.
func toPercent(multiplier float64) float32 {
	return float32((multiplier - 1.0) * 100)
}
