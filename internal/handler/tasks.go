package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amrrdev/docflow/internal/service"
)

type TaskHandler struct {
	statusService *service.StatusService
}

func NewTaskHandler(statusService *service.StatusService) *TaskHandler {
	return &TaskHandler{
		statusService: statusService,
	}
}

func (h *TaskHandler) Status(c *gin.Context) {
	view, err := h.statusService.GetStatus(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *TaskHandler) Results(c *gin.Context) {
	view, err := h.statusService.GetResults(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
