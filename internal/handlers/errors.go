package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-installments/internal/services"
	"github.com/sjperalta/fintera-installments/pkg/logger"
)

// respondError maps a service failure to its HTTP status. Unclassified
// errors are logged and hidden behind a generic 500.
func respondError(c *gin.Context, err error) {
	var se *services.ServiceError
	if errors.As(err, &se) {
		status := http.StatusInternalServerError
		switch se.Kind {
		case services.KindNotFound:
			status = http.StatusNotFound
		case services.KindConflict:
			status = http.StatusConflict
		case services.KindValidation:
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": se.Message, "kind": se.Kind})
		return
	}

	_ = c.Error(err)
	logger.FromContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": services.KindValidation})
}

// idParam parses a positive numeric path parameter
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name, "kind": services.KindValidation})
		return 0, false
	}
	return uint(id), true
}

func pagination(page, perPage int, total int64) gin.H {
	pages := int64(0)
	if perPage > 0 {
		pages = (total + int64(perPage) - 1) / int64(perPage)
	}
	return gin.H{
		"page":        page,
		"per_page":    perPage,
		"total":       total,
		"total_pages": pages,
	}
}
