package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/aux/exif"
	"github.com/aman-oss/photoidx/internal/filter"
)

func ctxFor(captions, ocr map[string]string) *filter.EvalContext {
	return &filter.EvalContext{Captions: captions, OCRTexts: ocr}
}

func TestCompileAndEvaluateBareText(t *testing.T) {
	rpn, err := filter.Compile("sunset")
	require.NoError(t, err)

	ctx := ctxFor(map[string]string{"/a.jpg": "sunset over the bay"}, nil)
	assert.True(t, filter.Evaluate(rpn, "/a.jpg", ctx))

	ctx2 := ctxFor(map[string]string{"/b.jpg": "a cat"}, nil)
	assert.False(t, filter.Evaluate(rpn, "/b.jpg", ctx2))
}

func TestCompileAndEvaluateBooleanLogic(t *testing.T) {
	rpn, err := filter.Compile(`sunset AND NOT cat`)
	require.NoError(t, err)

	ctx := ctxFor(map[string]string{"/a.jpg": "sunset and cat"}, nil)
	assert.False(t, filter.Evaluate(rpn, "/a.jpg", ctx))

	ctx2 := ctxFor(map[string]string{"/b.jpg": "sunset and dog"}, nil)
	assert.True(t, filter.Evaluate(rpn, "/b.jpg", ctx2))
}

func TestCompileHandlesParens(t *testing.T) {
	rpn, err := filter.Compile(`(cat OR dog) AND sunset`)
	require.NoError(t, err)

	ctx := ctxFor(map[string]string{"/a.jpg": "sunset with dog"}, nil)
	assert.True(t, filter.Evaluate(rpn, "/a.jpg", ctx))
}

func TestCompileRejectsMismatchedParens(t *testing.T) {
	_, err := filter.Compile(`(cat AND dog`)
	assert.Error(t, err)
}

func TestEvaluateQuotedLiteralIsSubstringOverRawText(t *testing.T) {
	rpn, err := filter.Compile(`"red car"`)
	require.NoError(t, err)

	ctx := ctxFor(nil, map[string]string{"/a.jpg": "a red car parked outside"})
	assert.True(t, filter.Evaluate(rpn, "/a.jpg", ctx))
}

func TestEvaluateNumericComparators(t *testing.T) {
	rpn, err := filter.Compile("iso:>=400")
	require.NoError(t, err)

	iso := 800.0
	ctx := &filter.EvalContext{
		EXIF: func(path string) (exif.Record, bool) {
			return exif.Record{ISO: &iso}, true
		},
	}
	assert.True(t, filter.Evaluate(rpn, "/a.jpg", ctx))
}

func TestEvaluateFieldPersonAndHasText(t *testing.T) {
	rpn, err := filter.Compile(`person:alice AND has_text:true`)
	require.NoError(t, err)

	ctx := &filter.EvalContext{
		Persons:  map[string][]string{"alice": {"/a.jpg"}},
		OCRTexts: map[string]string{"/a.jpg": "some text"},
	}
	assert.True(t, filter.Evaluate(rpn, "/a.jpg", ctx))
	assert.False(t, filter.Evaluate(rpn, "/b.jpg", ctx))
}
