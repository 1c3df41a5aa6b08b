package dicomfile

import (
	"fmt"
	"image"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Grid is a decoded sample array: one or more frames of Rows x Cols pixels
// with Channels samples per pixel, promoted to float64 so later arithmetic
// cannot overflow the stored integer type.
type Grid struct {
	Rows     int
	Cols     int
	Channels int
	Frames   [][]float64
}

// IsColor reports whether the grid holds RGB or RGBA samples.
func (g *Grid) IsColor() bool {
	return g.Channels == 3 || g.Channels == 4
}

// PixelGrid decodes the pixel payload into float64 frames. Compressed
// frames are decoded through the registered image codecs; a frame whose
// decompression fails is skipped rather than failing the whole grid, so the
// caller proceeds with whatever decode succeeded.
func (d *Dataset) PixelGrid() (*Grid, error) {
	el, err := d.ds.FindElementByTag(tag.PixelData)
	if err != nil || el == nil || el.Value == nil {
		return nil, fmt.Errorf("no pixel data element")
	}

	info, ok := el.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, fmt.Errorf("pixel data element has unexpected value type")
	}
	if info.IntentionallySkipped || len(info.Frames) == 0 {
		return nil, fmt.Errorf("pixel data carries no frames")
	}

	grid := &Grid{}
	for _, fr := range info.Frames {
		if fr.IsEncapsulated() {
			img, err := fr.GetImage()
			if err != nil {
				continue
			}
			appendImageFrame(grid, img)
			continue
		}

		native, err := fr.GetNativeFrame()
		if err != nil {
			continue
		}
		appendNativeFrame(grid, native.Rows, native.Cols, native.Data)
	}

	if len(grid.Frames) == 0 {
		return nil, fmt.Errorf("no decodable frames in pixel data")
	}
	return grid, nil
}

func appendNativeFrame(grid *Grid, rows, cols int, data [][]int) {
	if rows <= 0 || cols <= 0 || len(data) == 0 {
		return
	}
	channels := len(data[0])
	if channels == 0 {
		return
	}
	if grid.Rows == 0 {
		grid.Rows, grid.Cols, grid.Channels = rows, cols, channels
	} else if grid.Rows != rows || grid.Cols != cols || grid.Channels != channels {
		// Mixed-geometry stacks are not renderable as one grid.
		return
	}

	frame := make([]float64, 0, rows*cols*channels)
	for _, px := range data {
		for _, sample := range px {
			frame = append(frame, float64(sample))
		}
	}
	grid.Frames = append(grid.Frames, frame)
}

func appendImageFrame(grid *Grid, img image.Image) {
	bounds := img.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	if rows <= 0 || cols <= 0 {
		return
	}

	channels := 3
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		channels = 1
	}

	if grid.Rows == 0 {
		grid.Rows, grid.Cols, grid.Channels = rows, cols, channels
	} else if grid.Rows != rows || grid.Cols != cols || grid.Channels != channels {
		return
	}

	frame := make([]float64, 0, rows*cols*channels)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if channels == 1 {
				frame = append(frame, float64(r>>8))
				continue
			}
			frame = append(frame, float64(r>>8), float64(g>>8), float64(b>>8))
		}
	}
	grid.Frames = append(grid.Frames, frame)
}
