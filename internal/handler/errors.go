package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/amrrdev/docflow/internal/apperr"
)

// writeError renders err as {"code", "message"} with the status of its kind.
func writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(apperr.KindOf(err))
	respondError(c, status, apperr.MessageOf(err))
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"code":    status,
		"message": message,
	})
}
