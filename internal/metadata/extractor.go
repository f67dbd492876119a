package metadata

import (
	"fmt"
	"os"

	"github.com/rwcarlsen/goexif/exif"
)

// KeyFields are the metadata fields users typically care about when
// checking what a copy preserved.
type KeyFields struct {
	Make             string `json:"make,omitempty"`
	Model            string `json:"model,omitempty"`
	LensModel        string `json:"lens_model,omitempty"`
	DateTimeOriginal string `json:"date_time_original,omitempty"`
	ISO              string `json:"iso,omitempty"`
	ExposureTime     string `json:"exposure_time,omitempty"`
	FNumber          string `json:"f_number,omitempty"`
	FocalLength      string `json:"focal_length,omitempty"`
	GPSLatitude      string `json:"gps_latitude,omitempty"`
	GPSLongitude     string `json:"gps_longitude,omitempty"`
}

// Extractor reads EXIF key fields from image files.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(path string) (*KeyFields, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("no EXIF data: %w", err)
	}

	fields := &KeyFields{
		Make:             tagString(x, exif.Make),
		Model:            tagString(x, exif.Model),
		LensModel:        tagString(x, exif.LensModel),
		DateTimeOriginal: tagString(x, exif.DateTimeOriginal),
		ISO:              tagString(x, exif.ISOSpeedRatings),
		ExposureTime:     tagString(x, exif.ExposureTime),
		FNumber:          tagString(x, exif.FNumber),
		FocalLength:      tagString(x, exif.FocalLength),
	}

	if lat, long, err := x.LatLong(); err == nil {
		fields.GPSLatitude = fmt.Sprintf("%.6f", lat)
		fields.GPSLongitude = fmt.Sprintf("%.6f", long)
	}

	return fields, nil
}

func tagString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	if s, err := tag.StringVal(); err == nil {
		return s
	}
	return tag.String()
}
