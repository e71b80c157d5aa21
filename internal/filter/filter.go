package filter

import (
	"strings"

	"github.com/aman-oss/photoidx/internal/aux/exif"
)

// Filters are the structured predicates of spec §4.7's filter table.
// A zero-value field means "unconstrained".
type Filters struct {
	FavoritesOnly bool
	Tags          []string
	Persons       []string
	Person        string

	DateFrom, DateTo *float64 // unix seconds; mtime or EXIF date per UseEXIFDate
	UseEXIFDate      bool

	Camera string

	ISOMin, ISOMax         *float64
	FMin, FMax             *float64
	AltMin, AltMax         *float64
	HeadingMin, HeadingMax *float64

	Flash    string // "fired" | "no"
	WB       string // "auto" | "manual"
	Metering string // average|center|spot|multispot|pattern|partial|other (matrix aliases to pattern)

	SharpOnly    bool
	ExcludeUnder bool
	ExcludeOver  bool

	HasText bool
	Place   string
}

// PhotoContext supplies the per-store lookups the Filter layer needs:
// favorites/tags/persons membership, EXIF metadata, quality scores, OCR
// text presence, and reverse-geocoded place.
type PhotoContext struct {
	Favorites map[string]bool
	Tags      map[string][]string
	Persons   map[string][]string // person name -> paths

	EXIF func(path string) (exif.Record, bool)

	// MTime resolves a photo's raw filesystem mtime, used by date filters
	// when UseEXIFDate is false (spec §9 open question: date filters
	// default to file mtime, which is always present, over EXIF capture
	// date, which frequently is not).
	MTime func(path string) (float64, bool)

	Sharpness  func(path string) (float64, bool)
	Brightness func(path string) (float64, bool)

	HasOCRText func(path string) bool
	Place      func(path string) (string, bool)
}

// Apply drops rows failing any constrained predicate in f, preserving
// order (spec §4.7: filters never reorder, only drop).
func Apply(paths []string, f Filters, ctx PhotoContext) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if matches(p, f, ctx) {
			out = append(out, p)
		}
	}
	return out
}

func matches(path string, f Filters, ctx PhotoContext) bool {
	if f.FavoritesOnly && !ctx.Favorites[path] {
		return false
	}

	if len(f.Tags) > 0 {
		have := map[string]bool{}
		for _, t := range ctx.Tags[path] {
			have[t] = true
		}
		for _, want := range f.Tags {
			if !have[want] {
				return false
			}
		}
	}

	if len(f.Persons) > 0 {
		for _, name := range f.Persons {
			found := false
			for _, p := range ctx.Persons[name] {
				if p == path {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	if f.Person != "" {
		found := false
		for _, p := range ctx.Persons[f.Person] {
			if p == path {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	rec, hasEXIF := exifRecord(path, ctx)

	if f.DateFrom != nil || f.DateTo != nil {
		ts, ok := dateValue(path, f.UseEXIFDate, rec, hasEXIF, ctx)
		if !ok {
			return false
		}
		if f.DateFrom != nil && ts < *f.DateFrom {
			return false
		}
		if f.DateTo != nil && ts > *f.DateTo {
			return false
		}
	}

	if f.Camera != "" {
		if !hasEXIF || !strings.Contains(strings.ToLower(rec.Camera), strings.ToLower(f.Camera)) {
			return false
		}
	}

	if !numericConstraint(hasEXIF, rec.ISO, f.ISOMin, f.ISOMax) {
		return false
	}
	if !numericConstraint(hasEXIF, rec.FNumber, f.FMin, f.FMax) {
		return false
	}
	if !numericConstraint(hasEXIF, rec.Altitude, f.AltMin, f.AltMax) {
		return false
	}
	if !numericConstraint(hasEXIF, rec.Heading, f.HeadingMin, f.HeadingMax) {
		return false
	}

	if f.Flash != "" && (!hasEXIF || !strings.EqualFold(rec.Flash, f.Flash)) {
		return false
	}
	if f.WB != "" && (!hasEXIF || !strings.EqualFold(rec.WB, f.WB)) {
		return false
	}
	if f.Metering != "" {
		want := normalizeMetering(f.Metering)
		if !hasEXIF || !strings.EqualFold(normalizeMetering(rec.Metering), want) {
			return false
		}
	}

	if f.SharpOnly {
		v, ok := valueOrZero(ctx.Sharpness, path)
		if !ok || v < 60 {
			return false
		}
	}
	if f.ExcludeUnder {
		v, ok := valueOrZero(ctx.Brightness, path)
		if !ok || v < 50 {
			return false
		}
	}
	if f.ExcludeOver {
		v, ok := valueOrZero(ctx.Brightness, path)
		if !ok || v > 205 {
			return false
		}
	}

	if f.HasText && (ctx.HasOCRText == nil || !ctx.HasOCRText(path)) {
		return false
	}

	if f.Place != "" {
		if ctx.Place == nil {
			return false
		}
		place, ok := ctx.Place(path)
		if !ok || !strings.Contains(strings.ToLower(place), strings.ToLower(f.Place)) {
			return false
		}
	}

	return true
}

// numericConstraint applies a [min,max] bound to an EXIF numeric field.
// Both null is unconstrained; a missing value fails any active constraint
// (spec §4.7).
func numericConstraint(hasEXIF bool, value *float64, min, max *float64) bool {
	if min == nil && max == nil {
		return true
	}
	if !hasEXIF || value == nil {
		return false
	}
	if min != nil && *value < *min {
		return false
	}
	if max != nil && *value > *max {
		return false
	}
	return true
}

func normalizeMetering(m string) string {
	if strings.EqualFold(m, "matrix") {
		return "pattern"
	}
	return strings.ToLower(m)
}

func valueOrZero(f func(string) (float64, bool), path string) (float64, bool) {
	if f == nil {
		return 0, false
	}
	return f(path)
}

func exifRecord(path string, ctx PhotoContext) (exif.Record, bool) {
	if ctx.EXIF == nil {
		return exif.Record{}, false
	}
	return ctx.EXIF(path)
}

// dateValue resolves the timestamp a date filter compares against: the
// EXIF capture date when useEXIFDate is set, otherwise the raw
// filesystem mtime (spec §9 open question's resolution, see DESIGN.md).
// A missing value on either path fails the constraint rather than
// falling back silently.
func dateValue(path string, useEXIFDate bool, rec exif.Record, hasEXIF bool, ctx PhotoContext) (float64, bool) {
	if useEXIFDate {
		if !hasEXIF {
			return 0, false
		}
		return rec.MTime, true
	}
	return valueOrZero(ctx.MTime, path)
}

// EvalContext supplies RPN term evaluation's field lookups: document text,
// the bare-text index, and the per-path metadata the mini language's
// field:value terms route to (spec §4.7).
type EvalContext struct {
	DocIndex *DocIndex
	Captions map[string]string
	OCRTexts map[string]string

	Favorites map[string]bool
	Tags      map[string][]string
	Persons   map[string][]string // person name -> paths
	EXIF      func(path string) (exif.Record, bool)
	MTime     func(path string) (float64, bool)

	Sharpness  func(path string) (float64, bool)
	Brightness func(path string) (float64, bool)
	Place      func(path string) (string, bool)
}

// DocumentText returns the combined document (caption + ocr + filename)
// for substring matching (spec §4.7).
func (c *EvalContext) DocumentText(path string) string {
	name := path
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		name = path[idx+1:]
	}
	return c.Captions[path] + "\n" + c.OCRTexts[path] + "\n" + name
}
