package telemetry

import (
	"image"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/tilt_matrix/internal/max7219"
)

// Image returns the frame as a 1-bit 8x8 image.
func (f Frame) Image() *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, max7219.Size, max7219.Size))
	for y, row := range f.Rows {
		for x := 0; x < max7219.Size; x++ {
			if row&(1<<uint(x)) != 0 {
				img.SetBit(x, y, image1bit.On)
			}
		}
	}
	return img
}

// WritePNG encodes the frame scaled up by scale, each cell a square block.
func (f Frame) WritePNG(w io.Writer, scale int) error {
	if scale < 1 {
		scale = 1
	}
	src := f.Image()
	dst := image.NewGray(image.Rect(0, 0, max7219.Size*scale, max7219.Size*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return png.Encode(w, dst)
}
