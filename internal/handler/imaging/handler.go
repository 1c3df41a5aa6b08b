// Package imaging exposes the upload, browse, and render endpoints.
package imaging

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mriview/dicom-api/internal/handler"
	"github.com/mriview/dicom-api/internal/middleware"
	"github.com/mriview/dicom-api/internal/model"
	"github.com/mriview/dicom-api/internal/service/imaging"
)

const imageCacheSeconds = 3600

var (
	errInvalidFormat = errors.New("format must be png or jpeg")
	errInvalidWindow = errors.New("window_center and window_width must be numeric")
)

type Handler struct {
	service *imaging.Service
}

func NewHandler(service *imaging.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/upload", h.Upload)
	r.GET("/studies", h.ListStudies)
	r.GET("/studies/:id/series", h.ListSeries)
	r.GET("/series/:id/slices", h.ListSlices)

	slices := r.Group("/slices/:id")
	{
		slices.GET("/metadata", h.GetMetadata)
		slices.GET("/image", middleware.Cache(imageCacheSeconds), h.GetImage)
		slices.GET("/image-base64", middleware.Cache(imageCacheSeconds), h.GetImageBase64)
	}
}

// Upload ingests a multipart batch. Each file carries an optional parallel
// paths[] entry preserving the client's folder layout; one bad file is
// reported in its result row and never fails the batch.
func (h *Handler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid multipart form: "+err.Error()))
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("no files in upload"))
		return
	}
	paths := form.Value["paths"]

	resp := model.UploadResponse{Files: make([]model.UploadFileResult, 0, len(files))}
	for i, fh := range files {
		relativePath := fh.Filename
		if i < len(paths) && paths[i] != "" {
			relativePath = paths[i]
		}

		result := model.UploadFileResult{Filename: fh.Filename, RelativePath: relativePath}

		content, err := readFile(fh)
		if err == nil {
			var sl *model.Slice
			sl, err = h.service.Resolve(c.Request.Context(), content, fh.Filename, relativePath)
			if err == nil {
				result.Success = true
				result.SliceID = sl.ID
				result.StudyID = sl.StudyID
				result.SeriesID = sl.SeriesID
			}
		}
		if err != nil {
			result.Error = err.Error()
			resp.Failed++
		} else {
			resp.Uploaded++
		}
		resp.Files = append(resp.Files, result)
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *Handler) ListStudies(c *gin.Context) {
	studies := h.service.ListStudies(c.Request.Context())
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"studies": studies,
		"count":   len(studies),
	}))
}

func (h *Handler) ListSeries(c *gin.Context) {
	series := h.service.ListSeries(c.Request.Context(), c.Param("id"))
	if len(series) == 0 {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("study not found"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"series": series,
		"count":  len(series),
	}))
}

func (h *Handler) ListSlices(c *gin.Context) {
	slices := h.service.ListSlices(c.Request.Context(), c.Param("id"))
	if len(slices) == 0 {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("series not found"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"slices": slices,
		"count":  len(slices),
	}))
}

func (h *Handler) GetMetadata(c *gin.Context) {
	meta, err := h.service.GetMetadata(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(meta))
}

func (h *Handler) GetImage(c *gin.Context) {
	format, window, err := renderParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	data, err := h.service.Render(c.Request.Context(), c.Param("id"), format, window)
	if err != nil {
		c.Error(err)
		return
	}
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (h *Handler) GetImageBase64(c *gin.Context) {
	format, window, err := renderParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	b64, err := h.service.RenderBase64(c.Request.Context(), c.Param("id"), format, window)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"image":      b64,
		"media_type": format.ContentType(),
		"format":     string(format),
	}))
}

// renderParams parses format and windowing query parameters. The window
// applies only when center and width are both given, matching the viewer's
// slider behavior of sending them as a pair.
func renderParams(c *gin.Context) (model.ImageFormat, *model.Window, error) {
	format := model.ImageFormat(c.DefaultQuery("format", string(model.FormatPNG)))
	if format != model.FormatPNG && format != model.FormatJPEG {
		return "", nil, errInvalidFormat
	}

	centerStr := c.Query("window_center")
	widthStr := c.Query("window_width")
	if centerStr == "" || widthStr == "" {
		return format, nil, nil
	}

	center, err := strconv.ParseFloat(centerStr, 64)
	if err != nil {
		return "", nil, errInvalidWindow
	}
	width, err := strconv.ParseFloat(widthStr, 64)
	if err != nil {
		return "", nil, errInvalidWindow
	}
	return format, &model.Window{Center: center, Width: width}, nil
}
