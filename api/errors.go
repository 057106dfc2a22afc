package api

import (
	"errors"
	"net/http"

	"ventas/internal/sales"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps ledger errors to HTTP statuses. Unknown errors are logged
// and reported with the generic message only.
func respondError(c *gin.Context, logger *zap.Logger, err error, generic string) {
	switch {
	case errors.Is(err, sales.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
	case errors.Is(err, sales.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, sales.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error(generic, zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": generic})
	}
}
