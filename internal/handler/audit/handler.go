// Package audit exposes the access-log query endpoint.
package audit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mriview/dicom-api/internal/handler"
	"github.com/mriview/dicom-api/internal/service/audit"
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/audit")
	{
		group.GET("/logs", h.ListLogs)
	}
}

// ListLogs filters by any of action, entity_type, entity_id query params.
func (h *Handler) ListLogs(c *gin.Context) {
	filters := map[string]interface{}{}
	for _, key := range []string{"action", "entity_type", "entity_id"} {
		if v := c.Query(key); v != "" {
			filters[key] = v
		}
	}

	logs, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"logs":  logs,
		"count": len(logs),
	}))
}
