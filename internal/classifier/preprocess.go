package classifier

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// DecodeImage decodes JPEG, PNG or GIF bytes.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid image: %w", err)
	}
	return img, nil
}

// ToTensor resizes img to size x size and writes RGB values scaled to [0,1]
// in the requested layout.
func ToTensor(img image.Image, size int, layout string) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	bounds := resized.Bounds()
	plane := size * size
	out := make([]float32, 3*plane)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			rgb := [3]float32{float32(r) / 65535.0, float32(g) / 65535.0, float32(b) / 65535.0}

			pixel := y*size + x
			for c := 0; c < 3; c++ {
				if layout == LayoutNCHW {
					out[c*plane+pixel] = rgb[c]
				} else {
					out[pixel*3+c] = rgb[c]
				}
			}
		}
	}
	return out
}
