package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aman-oss/photoidx/internal/aux/exif"
	"github.com/aman-oss/photoidx/internal/filter"
)

func TestApplyFavoritesOnly(t *testing.T) {
	ctx := filter.PhotoContext{Favorites: map[string]bool{"/a.jpg": true}}
	out := filter.Apply([]string{"/a.jpg", "/b.jpg"}, filter.Filters{FavoritesOnly: true}, ctx)
	assert.Equal(t, []string{"/a.jpg"}, out)
}

func TestApplyTagsRequiresSuperset(t *testing.T) {
	ctx := filter.PhotoContext{Tags: map[string][]string{"/a.jpg": {"beach", "sunset"}}}
	out := filter.Apply([]string{"/a.jpg", "/b.jpg"}, filter.Filters{Tags: []string{"beach", "sunset"}}, ctx)
	assert.Equal(t, []string{"/a.jpg"}, out)
}

func TestApplyISORangeMissingValueFails(t *testing.T) {
	iso := 200.0
	ctx := filter.PhotoContext{EXIF: func(path string) (exif.Record, bool) {
		if path == "/a.jpg" {
			return exif.Record{ISO: &iso}, true
		}
		return exif.Record{}, false
	}}
	min := 100.0
	out := filter.Apply([]string{"/a.jpg", "/b.jpg"}, filter.Filters{ISOMin: &min}, ctx)
	assert.Equal(t, []string{"/a.jpg"}, out)
}

func TestApplyMeteringAliasesMatrixToPattern(t *testing.T) {
	ctx := filter.PhotoContext{EXIF: func(path string) (exif.Record, bool) {
		return exif.Record{Metering: "matrix"}, true
	}}
	out := filter.Apply([]string{"/a.jpg"}, filter.Filters{Metering: "pattern"}, ctx)
	assert.Equal(t, []string{"/a.jpg"}, out)
}

func TestApplySharpOnlyThreshold(t *testing.T) {
	ctx := filter.PhotoContext{Sharpness: func(path string) (float64, bool) {
		if path == "/sharp.jpg" {
			return 80, true
		}
		return 10, true
	}}
	out := filter.Apply([]string{"/sharp.jpg", "/blurry.jpg"}, filter.Filters{SharpOnly: true}, ctx)
	assert.Equal(t, []string{"/sharp.jpg"}, out)
}

func TestApplyHasTextRequiresOCR(t *testing.T) {
	ctx := filter.PhotoContext{HasOCRText: func(path string) bool { return path == "/a.jpg" }}
	out := filter.Apply([]string{"/a.jpg", "/b.jpg"}, filter.Filters{HasText: true}, ctx)
	assert.Equal(t, []string{"/a.jpg"}, out)
}

func TestApplyNoConstraintsKeepsAll(t *testing.T) {
	out := filter.Apply([]string{"/a.jpg", "/b.jpg"}, filter.Filters{}, filter.PhotoContext{})
	assert.Equal(t, []string{"/a.jpg", "/b.jpg"}, out)
}

func TestApplyDateRangeDefaultsToMTime(t *testing.T) {
	ctx := filter.PhotoContext{MTime: func(path string) (float64, bool) {
		switch path {
		case "/a.jpg":
			return 100, true
		case "/b.jpg":
			return 500, true
		}
		return 0, false
	}}
	from, to := 50.0, 200.0
	out := filter.Apply([]string{"/a.jpg", "/b.jpg"}, filter.Filters{DateFrom: &from, DateTo: &to}, ctx)
	assert.Equal(t, []string{"/a.jpg"}, out)
}

func TestApplyDateRangeMissingMTimeFails(t *testing.T) {
	ctx := filter.PhotoContext{MTime: func(path string) (float64, bool) { return 0, false }}
	from := 0.0
	out := filter.Apply([]string{"/a.jpg"}, filter.Filters{DateFrom: &from}, ctx)
	assert.Empty(t, out)
}

func TestApplyDateRangeUsesEXIFDateWhenRequested(t *testing.T) {
	ctx := filter.PhotoContext{
		EXIF: func(path string) (exif.Record, bool) {
			if path == "/a.jpg" {
				return exif.Record{MTime: 1000}, true
			}
			return exif.Record{}, false
		},
		MTime: func(path string) (float64, bool) { return 1, true }, // would wrongly pass if UseEXIFDate were ignored
	}
	from := 900.0
	out := filter.Apply([]string{"/a.jpg", "/b.jpg"}, filter.Filters{DateFrom: &from, UseEXIFDate: true}, ctx)
	assert.Equal(t, []string{"/a.jpg"}, out)
}
