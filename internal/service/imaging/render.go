package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"time"

	"github.com/suyashkumar/dicom/pkg/tag"
	"gonum.org/v1/gonum/floats"

	"github.com/mriview/dicom-api/internal/dicomfile"
	"github.com/mriview/dicom-api/internal/model"
	apperrors "github.com/mriview/dicom-api/pkg/errors"
)

const jpegQuality = 95

// Render produces an 8-bit raster for one slice. The window argument
// overrides the header window when non-nil; with neither present the full
// rescaled range is normalized as-is.
func (s *Service) Render(ctx context.Context, sliceID string, format model.ImageFormat, window *model.Window) ([]byte, error) {
	start := time.Now()

	data, err := s.render(ctx, sliceID, format, window)

	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
			if apperrors.IsNotFound(err) {
				s.metrics.RenderMisses.Inc()
			}
		}
		s.metrics.RendersTotal.WithLabelValues(string(format), status).Inc()
		s.metrics.RenderLatency.WithLabelValues(string(format)).Observe(time.Since(start).Seconds())
	}
	return data, err
}

// RenderBase64 renders a slice and wraps the bytes as a data URI payload.
func (s *Service) RenderBase64(ctx context.Context, sliceID string, format model.ImageFormat, window *model.Window) (string, error) {
	data, err := s.Render(ctx, sliceID, format, window)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (s *Service) render(ctx context.Context, sliceID string, format model.ImageFormat, window *model.Window) ([]byte, error) {
	sl, ok := s.index.Slice(sliceID)
	if !ok {
		return nil, apperrors.NotFound("slice", nil)
	}
	if sl.FilePath == "" || !s.store.Exists(sl.FilePath) {
		return nil, apperrors.NotFound("slice file", nil)
	}

	ds, err := dicomfile.Open(sl.FilePath)
	if err != nil {
		return nil, apperrors.Unprocessable("decode", err)
	}

	grid, err := ds.PixelGrid()
	if err != nil {
		return nil, apperrors.Unprocessable("pixel data", err)
	}

	img := rasterize(ds, grid, window)

	var buf bytes.Buffer
	switch format {
	case model.FormatJPEG:
		if err := jpeg.Encode(&buf, toRGBA(img), &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, apperrors.Internal(fmt.Errorf("encode jpeg: %w", err))
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			return nil, apperrors.Internal(fmt.Errorf("encode png: %w", err))
		}
	}

	s.audit(ctx, "render", "slice", sliceID, "ok")
	return buf.Bytes(), nil
}

// rasterize runs the numeric pipeline over every decoded frame at once,
// then picks the displayable plane. Running the math over the whole volume
// keeps multi-frame normalization consistent with single-frame files.
func rasterize(ds *dicomfile.Dataset, grid *dicomfile.Grid, window *model.Window) image.Image {
	flat := flatten(grid)

	if ds.String(tag.PhotometricInterpretation) == "MONOCHROME1" {
		max := floats.Max(flat)
		floats.Scale(-1, flat)
		floats.AddConst(max, flat)
	}

	slope, intercept := rescaleParams(ds)
	if slope != 1 || intercept != 0 {
		floats.Scale(slope, flat)
		floats.AddConst(intercept, flat)
	}

	if w := selectWindow(ds, window); w != nil {
		lo := w.Center - w.Width/2
		hi := w.Center + w.Width/2
		clip(flat, lo, hi)
	}

	pixels := normalize(flat)

	return assemble(grid, pixels)
}

func flatten(grid *dicomfile.Grid) []float64 {
	n := 0
	for _, fr := range grid.Frames {
		n += len(fr)
	}
	flat := make([]float64, 0, n)
	for _, fr := range grid.Frames {
		flat = append(flat, fr...)
	}
	return flat
}

func rescaleParams(ds *dicomfile.Dataset) (slope, intercept float64) {
	slope, intercept = 1, 0
	if v, ok := ds.Float(tag.RescaleSlope); ok {
		slope = v
	}
	if v, ok := ds.Float(tag.RescaleIntercept); ok {
		intercept = v
	}
	return slope, intercept
}

// selectWindow prefers an explicit request over the header, and takes the
// first header value when the header carries a list.
func selectWindow(ds *dicomfile.Dataset, window *model.Window) *model.Window {
	if window != nil {
		return window
	}
	centers := ds.Floats(tag.WindowCenter)
	widths := ds.Floats(tag.WindowWidth)
	if len(centers) == 0 || len(widths) == 0 {
		return nil
	}
	return &model.Window{Center: centers[0], Width: widths[0]}
}

func clip(v []float64, lo, hi float64) {
	for i := range v {
		if v[i] < lo {
			v[i] = lo
		} else if v[i] > hi {
			v[i] = hi
		}
	}
}

// normalize maps the post-clip range onto 0..255. A constant plane maps to
// uniform zero rather than dividing by a zero range.
func normalize(v []float64) []uint8 {
	out := make([]uint8, len(v))
	if len(v) == 0 {
		return out
	}
	min, max := floats.Min(v), floats.Max(v)
	if max == min {
		return out
	}
	scale := 255 / (max - min)
	for i, x := range v {
		out[i] = uint8((x - min) * scale)
	}
	return out
}

// assemble picks the displayable plane out of the normalized volume:
// a color frame becomes RGB/RGBA, anything else renders the first frame
// as 8-bit grayscale.
func assemble(grid *dicomfile.Grid, pixels []uint8) image.Image {
	frameLen := grid.Rows * grid.Cols * grid.Channels
	if frameLen <= 0 || len(pixels) < frameLen {
		return image.NewGray(image.Rect(0, 0, 1, 1))
	}
	frame := pixels[:frameLen]

	if grid.IsColor() {
		img := image.NewRGBA(image.Rect(0, 0, grid.Cols, grid.Rows))
		for y := 0; y < grid.Rows; y++ {
			for x := 0; x < grid.Cols; x++ {
				i := (y*grid.Cols + x) * grid.Channels
				px := (y*img.Stride + x*4)
				img.Pix[px] = frame[i]
				img.Pix[px+1] = frame[i+1]
				img.Pix[px+2] = frame[i+2]
				if grid.Channels == 4 {
					img.Pix[px+3] = frame[i+3]
				} else {
					img.Pix[px+3] = 255
				}
			}
		}
		return img
	}

	gray := image.NewGray(image.Rect(0, 0, grid.Cols, grid.Rows))
	stride := grid.Cols * grid.Channels
	for y := 0; y < grid.Rows; y++ {
		for x := 0; x < grid.Cols; x++ {
			gray.Pix[y*gray.Stride+x] = frame[y*stride+x*grid.Channels]
		}
	}
	return gray
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			rgba.Set(x, y, img.At(x, y))
		}
	}
	return rgba
}
