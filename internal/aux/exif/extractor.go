package exif

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	goexif "github.com/rwcarlsen/goexif/exif"
)

// DefaultExtractor reads a photo's EXIF tags with goexif, falling back to
// the file's own mtime and (if the EXIF dimension tags are absent) the
// image decoder's reported size. Confirmed against
// _examples/original_source/photo-search-intent-first/api/v1/endpoints/metadata.py's
// _build_exif_index: EXIF extraction is deterministic, always-available
// core logic, never an ML-gated capability, so it gets a concrete default
// rather than staying caller-supplied only.
func DefaultExtractor(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, err
	}
	defer f.Close()

	rec := Record{Path: path}

	x, decodeErr := goexif.Decode(f)
	if decodeErr == nil {
		rec.Camera = strings.TrimSpace(tagString(x, goexif.Make) + " " + tagString(x, goexif.Model))
		rec.ISO = tagFloat(x, goexif.ISOSpeedRatings)
		rec.FNumber = tagFloat(x, goexif.FNumber)
		rec.Focal = tagFloat(x, goexif.FocalLength)
		rec.Exposure = tagFloat(x, goexif.ExposureTime)
		rec.Flash = flashString(x)
		rec.WB = whiteBalanceString(x)
		rec.Metering = meteringString(x)

		if lat, lon, err := x.LatLong(); err == nil {
			rec.Lat, rec.Lon = &lat, &lon
		}
		rec.Altitude = gpsAltitude(x)
		rec.Heading = tagFloat(x, goexif.GPSImgDirection)

		if w := tagFloat(x, goexif.PixelXDimension); w != nil {
			rec.Width = int(*w)
		}
		if h := tagFloat(x, goexif.PixelYDimension); h != nil {
			rec.Height = int(*h)
		}

		if t, err := x.DateTime(); err == nil {
			rec.MTime = float64(t.Unix())
		}
	}

	if rec.Width == 0 || rec.Height == 0 {
		if w, h, ok := decodeDimensions(path); ok {
			rec.Width, rec.Height = w, h
		}
	}
	if rec.MTime == 0 {
		if info, err := os.Stat(path); err == nil {
			rec.MTime = float64(info.ModTime().Unix())
		}
	}

	return rec, nil
}

func tagString(x *goexif.Exif, name goexif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return strings.ToValidUTF8(strings.Trim(tag.String(), `"`), "�")
	}
	return strings.ToValidUTF8(s, "�")
}

func tagFloat(x *goexif.Exif, name goexif.FieldName) *float64 {
	tag, err := x.Get(name)
	if err != nil {
		return nil
	}
	if r, err := tag.Rat(0); err == nil {
		v, _ := r.Float64()
		return &v
	}
	if i, err := tag.Int(0); err == nil {
		v := float64(i)
		return &v
	}
	return nil
}

// gpsAltitude applies GPSAltitudeRef's sign (0=above sea level, 1=below) to
// the unsigned GPSAltitude magnitude.
func gpsAltitude(x *goexif.Exif) *float64 {
	alt := tagFloat(x, goexif.GPSAltitude)
	if alt == nil {
		return nil
	}
	if ref := tagString(x, goexif.GPSAltitudeRef); ref == "1" {
		v := -*alt
		return &v
	}
	return alt
}

// flashString maps the Flash tag's low bit (fired/did-not-fire) per the
// EXIF spec, ignoring the higher return/mode bits the filter table doesn't
// distinguish (spec §4.7).
func flashString(x *goexif.Exif) string {
	tag, err := x.Get(goexif.Flash)
	if err != nil {
		return ""
	}
	v, err := tag.Int(0)
	if err != nil {
		return ""
	}
	if v&0x1 != 0 {
		return "fired"
	}
	return "no"
}

// whiteBalanceString maps the WhiteBalance tag (0=auto, 1=manual).
func whiteBalanceString(x *goexif.Exif) string {
	tag, err := x.Get(goexif.WhiteBalance)
	if err != nil {
		return ""
	}
	v, err := tag.Int(0)
	if err != nil {
		return ""
	}
	if v == 0 {
		return "auto"
	}
	return "manual"
}

// meteringString maps the MeteringMode tag's numeric codes to the filter
// table's category names (spec §4.7); unmapped codes fall back to "other".
func meteringString(x *goexif.Exif) string {
	tag, err := x.Get(goexif.MeteringMode)
	if err != nil {
		return ""
	}
	v, err := tag.Int(0)
	if err != nil {
		return ""
	}
	switch v {
	case 1:
		return "average"
	case 2:
		return "center"
	case 3:
		return "spot"
	case 4:
		return "multispot"
	case 5:
		return "pattern"
	case 6:
		return "partial"
	default:
		return "other"
	}
}

func decodeDimensions(path string) (int, int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
