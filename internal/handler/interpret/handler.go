// Package interpret exposes the AI series-summary endpoints.
package interpret

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mriview/dicom-api/internal/handler"
	"github.com/mriview/dicom-api/internal/model"
	"github.com/mriview/dicom-api/internal/service/interpret"
)

type Handler struct {
	service *interpret.Service
}

func NewHandler(service *interpret.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/interpret")
	{
		group.GET("/status", h.Status)
		group.POST("/series/:id", h.InterpretSeries)
		group.GET("/series/:id", h.GetSeriesInterpretation)
	}
}

func (h *Handler) Status(c *gin.Context) {
	message := "interpretation service is ready"
	if !h.service.Available() {
		message = "ANTHROPIC_API_KEY not configured"
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"available": h.service.Available(),
		"message":   message,
	}))
}

func (h *Handler) InterpretSeries(c *gin.Context) {
	var req model.InterpretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	h.respond(c, c.Param("id"), &req)
}

// GetSeriesInterpretation serves polling clients: cache hit or a fresh run,
// with refresh available as a query flag.
func (h *Handler) GetSeriesInterpretation(c *gin.Context) {
	req := model.InterpretRequest{
		Refresh: c.Query("refresh") == "true",
	}
	h.respond(c, c.Param("id"), &req)
}

func (h *Handler) respond(c *gin.Context, seriesID string, req *model.InterpretRequest) {
	result, err := h.service.InterpretSeries(c.Request.Context(), seriesID, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}
