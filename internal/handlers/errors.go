package handlers

import (
	"github.com/gin-gonic/gin"

	"performance-service/internal/apperr"
)

// respondError maps an apperr kind to its HTTP status. Internal errors never
// leak their message.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	msg := err.Error()
	if kind == apperr.KindInternal {
		msg = "Internal server error"
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{
		"error": msg,
		"code":  apperr.CodeOf(err),
	})
}
