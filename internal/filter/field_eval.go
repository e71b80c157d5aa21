package filter

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aman-oss/photoidx/internal/aux/exif"
)

// numericFields names the mini language's comparator-eligible fields
// (spec §4.7).
var numericFields = map[string]bool{
	"iso": true, "fnumber": true, "width": true, "height": true, "mtime": true,
	"brightness": true, "sharpness": true, "exposure": true, "focal": true, "duration": true,
}

// evaluateField routes a compiled field:value term to its handler. Unknown
// fields degrade to a bare-text search of the token verbatim (spec §4.7).
func evaluateField(field, value string, path string, ctx *EvalContext) bool {
	switch field {
	case "camera":
		rec, ok := rawEXIF(ctx, path)
		return ok && strings.Contains(strings.ToLower(rec.Camera), strings.ToLower(value))
	case "place":
		if ctx.Place == nil {
			return false
		}
		place, ok := ctx.Place(path)
		return ok && strings.Contains(strings.ToLower(place), strings.ToLower(value))
	case "tag":
		return hasTag(ctx, path, value)
	case "rating":
		return hasTag(ctx, path, "rating:"+value)
	case "person":
		for _, p := range ctx.Persons[value] {
			if p == path {
				return true
			}
		}
		return false
	case "has_text":
		text := ctx.OCRTexts[path]
		want := strings.EqualFold(value, "true") || value == "1" || value == ""
		return want == (strings.TrimSpace(text) != "")
	case "filetype":
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		return ext == strings.ToLower(strings.TrimPrefix(value, "."))
	}

	if numericFields[field] {
		return evaluateNumeric(field, value, path, ctx)
	}

	return bareTextMatch(field+":"+value, path, ctx)
}

func hasTag(ctx *EvalContext, path, tag string) bool {
	for _, t := range ctx.Tags[path] {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func rawEXIF(ctx *EvalContext, path string) (exif.Record, bool) {
	if ctx.EXIF == nil {
		return exif.Record{}, false
	}
	return ctx.EXIF(path)
}

// evaluateNumeric parses a comparator value (">=N", ">N", "<=N", "<N",
// "=N", or a bare number implying "=") and applies it to field's resolved
// value for path.
func evaluateNumeric(field, value string, path string, ctx *EvalContext) bool {
	op, numStr := splitComparator(value)
	target, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return false
	}

	actual, ok := resolveNumericField(field, path, ctx)
	if !ok {
		return false
	}

	switch op {
	case ">=":
		return actual >= target
	case ">":
		return actual > target
	case "<=":
		return actual <= target
	case "<":
		return actual < target
	default: // "="
		return actual == target
	}
}

func splitComparator(value string) (op, rest string) {
	switch {
	case strings.HasPrefix(value, ">="):
		return ">=", value[2:]
	case strings.HasPrefix(value, "<="):
		return "<=", value[2:]
	case strings.HasPrefix(value, ">"):
		return ">", value[1:]
	case strings.HasPrefix(value, "<"):
		return "<", value[1:]
	case strings.HasPrefix(value, "="):
		return "=", value[1:]
	default:
		return "=", value
	}
}

func resolveNumericField(field, path string, ctx *EvalContext) (float64, bool) {
	ptrField := func(p *float64, ok bool) (float64, bool) {
		if !ok || p == nil {
			return 0, false
		}
		return *p, true
	}

	switch field {
	case "iso":
		rec, ok := rawEXIF(ctx, path)
		return ptrField(rec.ISO, ok)
	case "fnumber":
		rec, ok := rawEXIF(ctx, path)
		return ptrField(rec.FNumber, ok)
	case "focal":
		rec, ok := rawEXIF(ctx, path)
		return ptrField(rec.Focal, ok)
	case "exposure":
		rec, ok := rawEXIF(ctx, path)
		return ptrField(rec.Exposure, ok)
	case "width":
		rec, ok := rawEXIF(ctx, path)
		if !ok {
			return 0, false
		}
		return float64(rec.Width), true
	case "height":
		rec, ok := rawEXIF(ctx, path)
		if !ok {
			return 0, false
		}
		return float64(rec.Height), true
	case "mtime":
		rec, ok := rawEXIF(ctx, path)
		if !ok {
			return 0, false
		}
		return rec.MTime, true
	case "brightness":
		return valueOrZero(ctx.Brightness, path)
	case "sharpness":
		return valueOrZero(ctx.Sharpness, path)
	case "duration":
		return 0, false // video duration has no source signal in this index; degrades to unconstrained-fails
	}
	return 0, false
}
