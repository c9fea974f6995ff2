// Package imaging decodes reference and query images into model input
// tensors.
package imaging

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"

	"pestmatch/internal/domain"
)

// DefaultSize is the square input resolution of MobileNet-family models.
const DefaultSize = 224

// Preprocessor loads an image, stretches it to Size x Size and scales the
// RGB channels to [0, 1]. The aspect ratio is not preserved.
type Preprocessor struct {
	size int
}

func NewPreprocessor(size int) *Preprocessor {
	if size <= 0 {
		size = DefaultSize
	}
	return &Preprocessor{size: size}
}

func (p *Preprocessor) Size() int {
	return p.size
}

// Preprocess returns a [1, size, size, 3] tensor.
func (p *Preprocessor) Preprocess(path string) (domain.Tensor, error) {
	img, err := Decode(path)
	if err != nil {
		return domain.Tensor{}, err
	}
	return p.FromImage(img), nil
}

// FromImage converts an already decoded image.
func (p *Preprocessor) FromImage(img image.Image) domain.Tensor {
	resized := resize.Resize(uint(p.size), uint(p.size), img, resize.Lanczos3)
	return ToTensor(resized)
}

// Decode opens and decodes a JPEG or PNG file.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrIO, path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrIO, path, err)
	}
	return img, nil
}

// ToTensor lays the image out as NHWC float32 with a batch dimension of 1.
func ToTensor(img image.Image) domain.Tensor {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	data := make([]float32, 0, width*height*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// RGBA() is 16-bit; the high byte is the 8-bit channel value
			data = append(data,
				float32(r>>8)/255.0,
				float32(g>>8)/255.0,
				float32(b>>8)/255.0,
			)
		}
	}

	return domain.Tensor{
		Shape: []int{1, height, width, 3},
		Data:  data,
	}
}
