package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wellbeing-companion/internal/domain"
)

type ToolHandler struct{}

func NewToolHandler() *ToolHandler {
	return &ToolHandler{}
}

// ListTools maneja GET /tools.
func (h *ToolHandler) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": domain.CopingTools()})
}
