package classifier

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
	"github.com/bryanwahyu/skiniq/internal/infra/model"
)

// InputSize is the square edge the image model was trained on.
const InputSize = 150

// Preprocess decodes an encoded image and returns a [1, size, size, 3] tensor with
// channel values scaled to [0, 1]. Alpha is dropped, not composited. Resizing is bicubic
// with the same arithmetic as the training pipeline (see resizeRGB).
func Preprocess(data []byte, size int) (model.Tensor, error) {
	if len(data) == 0 {
		return model.Tensor{}, fmt.Errorf("%w: empty image", domain.ErrDecode)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return model.Tensor{}, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return model.Tensor{}, fmt.Errorf("%w: zero-sized image", domain.ErrDecode)
	}

	w, h := b.Dx(), b.Dy()
	rgb := make([]uint8, 0, w*h*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			rgb = append(rgb, c.R, c.G, c.B)
		}
	}
	pix := resizeRGB(rgb, w, h, size, size)

	t := model.NewTensor(1, size, size, 3)
	for i, v := range pix {
		t.Data[i] = float32(v) / 255
	}
	return t, nil
}
