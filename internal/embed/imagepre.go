package embed

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// clipImageSize is the square input resolution CLIP-family vision towers
// expect (ViT-B/32 and most variants use 224x224).
const clipImageSize = 224

// CLIP's published per-channel normalization constants (OpenAI checkpoint).
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// DecodeImage opens and decodes an image file via the standard library's
// format-sniffing image.Decode, shared by the CLIP preprocessor and the
// perceptual-hash Hasher (internal/aux/phash) so both read exactly the same
// set of formats.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// decodeAndPreprocess reads an image file, resizes it to clipImageSize x
// clipImageSize with bilinear interpolation, and returns it as a
// channel-first (C, H, W) float32 tensor normalized per CLIP's published
// mean/std. No example repo in the corpus vendors an image-resize library,
// so resizing is implemented directly against the standard library's
// image.Image interface.
func decodeAndPreprocess(path string) ([]float32, error) {
	img, err := DecodeImage(path)
	if err != nil {
		return nil, err
	}

	resized := resizeBilinear(img, clipImageSize, clipImageSize)

	tensor := make([]float32, 3*clipImageSize*clipImageSize)
	plane := clipImageSize * clipImageSize
	for y := 0; y < clipImageSize; y++ {
		for x := 0; x < clipImageSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			idx := y*clipImageSize + x
			tensor[0*plane+idx] = (float32(r)/65535 - clipMean[0]) / clipStd[0]
			tensor[1*plane+idx] = (float32(g)/65535 - clipMean[1]) / clipStd[1]
			tensor[2*plane+idx] = (float32(b)/65535 - clipMean[2]) / clipStd[2]
		}
	}
	return tensor, nil
}

// resizeBilinear resizes src to width x height using bilinear interpolation
// into a freshly allocated image.RGBA.
func resizeBilinear(src image.Image, width, height int) *image.RGBA {
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	if srcW == 0 || srcH == 0 {
		return dst
	}

	xRatio := float64(srcW) / float64(width)
	yRatio := float64(srcH) / float64(height)

	for dy := 0; dy < height; dy++ {
		sy := (float64(dy) + 0.5) * yRatio
		y0 := int(sy)
		if y0 >= srcH {
			y0 = srcH - 1
		}
		y1 := y0 + 1
		if y1 >= srcH {
			y1 = srcH - 1
		}
		fy := sy - float64(y0)

		for dx := 0; dx < width; dx++ {
			sx := (float64(dx) + 0.5) * xRatio
			x0 := int(sx)
			if x0 >= srcW {
				x0 = srcW - 1
			}
			x1 := x0 + 1
			if x1 >= srcW {
				x1 = srcW - 1
			}
			fx := sx - float64(x0)

			c00 := src.At(bounds.Min.X+x0, bounds.Min.Y+y0)
			c10 := src.At(bounds.Min.X+x1, bounds.Min.Y+y0)
			c01 := src.At(bounds.Min.X+x0, bounds.Min.Y+y1)
			c11 := src.At(bounds.Min.X+x1, bounds.Min.Y+y1)

			dst.Set(dx, dy, bilerp(c00, c10, c01, c11, fx, fy))
		}
	}
	return dst
}

func bilerp(c00, c10, c01, c11 color.Color, fx, fy float64) color.Color {
	r00, g00, b00, a00 := c00.RGBA()
	r10, g10, b10, a10 := c10.RGBA()
	r01, g01, b01, a01 := c01.RGBA()
	r11, g11, b11, a11 := c11.RGBA()

	lerp2 := func(v00, v10, v01, v11 uint32) uint8 {
		top := float64(v00)*(1-fx) + float64(v10)*fx
		bot := float64(v01)*(1-fx) + float64(v11)*fx
		return uint8((top*(1-fy) + bot*fy) / 257)
	}

	return rgbaColor{
		R: lerp2(r00, r10, r01, r11),
		G: lerp2(g00, g10, g01, g11),
		B: lerp2(b00, b10, b01, b11),
		A: lerp2(a00, a10, a01, a11),
	}
}

type rgbaColor struct{ R, G, B, A uint8 }

func (c rgbaColor) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R) * 257
	g = uint32(c.G) * 257
	b = uint32(c.B) * 257
	a = uint32(c.A) * 257
	return
}
