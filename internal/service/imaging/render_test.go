package imaging

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mriview/dicom-api/internal/dicomfile"
	"github.com/mriview/dicom-api/internal/model"
	apperrors "github.com/mriview/dicom-api/pkg/errors"
)

func grayGrid(rows, cols int, values []float64) *dicomfile.Grid {
	return &dicomfile.Grid{Rows: rows, Cols: cols, Channels: 1, Frames: [][]float64{values}}
}

func TestRasterizeWindowClipsAndNormalizes(t *testing.T) {
	ds := headerDataset(t)
	grid := grayGrid(2, 2, []float64{0, 100, 200, 300})

	img := rasterize(ds, grid, &model.Window{Center: 150, Width: 100})

	gray, ok := img.(*image.Gray)
	require.True(t, ok)
	// Window [100, 200]: 0 and 100 clip to the floor, 200 and 300 to the
	// ceiling, then the post-clip range maps to 0..255.
	assert.Equal(t, []uint8{0, 0, 255, 255}, gray.Pix)
}

func TestRasterizeHeaderWindowUsedWhenNoOverride(t *testing.T) {
	ds := headerDataset(t,
		mustEl(t, tag.WindowCenter, []string{"150", "999"}),
		mustEl(t, tag.WindowWidth, []string{"100", "999"}),
	)
	grid := grayGrid(2, 2, []float64{0, 100, 200, 300})

	img := rasterize(ds, grid, nil)

	gray := img.(*image.Gray)
	assert.Equal(t, []uint8{0, 0, 255, 255}, gray.Pix)
}

func TestRasterizeNoWindowNormalizesFullRange(t *testing.T) {
	ds := headerDataset(t)
	grid := grayGrid(1, 3, []float64{0, 50, 100})

	gray := rasterize(ds, grid, nil).(*image.Gray)
	assert.Equal(t, []uint8{0, 127, 255}, gray.Pix)
}

func TestRasterizeConstantPlaneIsUniformZero(t *testing.T) {
	ds := headerDataset(t)
	grid := grayGrid(2, 2, []float64{7, 7, 7, 7})

	gray := rasterize(ds, grid, nil).(*image.Gray)
	assert.Equal(t, []uint8{0, 0, 0, 0}, gray.Pix)
}

func TestRasterizeMonochrome1Inverts(t *testing.T) {
	ds := headerDataset(t,
		mustEl(t, tag.PhotometricInterpretation, []string{"MONOCHROME1"}),
	)
	grid := grayGrid(1, 3, []float64{0, 50, 100})

	gray := rasterize(ds, grid, nil).(*image.Gray)
	assert.Equal(t, []uint8{255, 127, 0}, gray.Pix)
}

func TestRasterizeAppliesRescale(t *testing.T) {
	ds := headerDataset(t,
		mustEl(t, tag.RescaleSlope, []string{"2"}),
		mustEl(t, tag.RescaleIntercept, []string{"-1000"}),
	)
	grid := grayGrid(1, 2, []float64{500, 600})

	// 500*2-1000=0, 600*2-1000=200; windowed [0,100] clips the second.
	gray := rasterize(ds, grid, &model.Window{Center: 50, Width: 100}).(*image.Gray)
	assert.Equal(t, []uint8{0, 255}, gray.Pix)
}

func TestRasterizeMultiFrameNormalizesAcrossVolume(t *testing.T) {
	ds := headerDataset(t)
	grid := &dicomfile.Grid{
		Rows: 1, Cols: 2, Channels: 1,
		Frames: [][]float64{{0, 100}, {200, 300}},
	}

	// Only the first frame is drawn, but the scale comes from all frames.
	gray := rasterize(ds, grid, nil).(*image.Gray)
	assert.Equal(t, []uint8{0, 85}, gray.Pix)
}

func TestAssembleColorFrame(t *testing.T) {
	grid := &dicomfile.Grid{
		Rows: 1, Cols: 2, Channels: 3,
		Frames: [][]float64{{255, 0, 0, 0, 255, 0}},
	}

	img := assemble(grid, []uint8{255, 0, 0, 0, 255, 0})
	rgba, ok := img.(*image.RGBA)
	require.True(t, ok)
	assert.Equal(t, uint8(255), rgba.Pix[0])
	assert.Equal(t, uint8(255), rgba.Pix[3])
	assert.Equal(t, uint8(255), rgba.Pix[5])
}

func TestSelectWindowPrecedence(t *testing.T) {
	ds := headerDataset(t,
		mustEl(t, tag.WindowCenter, []string{"40"}),
		mustEl(t, tag.WindowWidth, []string{"80"}),
	)

	w := selectWindow(ds, &model.Window{Center: 1, Width: 2})
	assert.Equal(t, 1.0, w.Center)

	w = selectWindow(ds, nil)
	require.NotNil(t, w)
	assert.Equal(t, 40.0, w.Center)
	assert.Equal(t, 80.0, w.Width)

	assert.Nil(t, selectWindow(headerDataset(t), nil))
}

func TestRenderUnknownSlice(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Render(context.Background(), "missing", model.FormatPNG, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRenderSliceWithoutPixels(t *testing.T) {
	svc := newTestService(t)

	sl, err := svc.Resolve(context.Background(), []byte("garbage"), "a.dcm", "PatientA/Brain/a.dcm")
	require.NoError(t, err)

	_, err = svc.Render(context.Background(), sl.ID, model.FormatPNG, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsUnprocessable(err))
}

func TestRasterizeEncodesAsPNG(t *testing.T) {
	ds := headerDataset(t)
	img := rasterize(ds, grayGrid(2, 2, []float64{0, 100, 200, 300}), nil)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, decoded.Bounds().Dx())
}

func TestToRGBAFromGray(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 1, 1))
	gray.Pix[0] = 200

	rgba := toRGBA(gray)
	assert.Equal(t, uint8(200), rgba.Pix[0])
	assert.Equal(t, uint8(200), rgba.Pix[1])
	assert.Equal(t, uint8(200), rgba.Pix[2])
	assert.Equal(t, uint8(255), rgba.Pix[3])
}
