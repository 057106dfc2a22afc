package api

import (
	"net/http"

	"ventas/internal/auth"
	"ventas/internal/logging"
	"ventas/internal/sales"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the HTTP layer needs.
type Dependencies struct {
	Sales    *sales.Service
	Sessions *auth.Sessions
	// Provider may be nil when Google login is not configured; sessions
	// issued elsewhere are still accepted.
	Provider      IdentityProvider
	Logger        *zap.Logger
	SecureCookies bool
}

// InitRoutes registers every endpoint on the given Gin engine. All /api
// routes require an authenticated session and are scoped to its owner.
func InitRoutes(e *gin.Engine, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	salesHandler := NewSalesHandler(deps.Sales, logger)
	authHandler := &authHandler{
		sessions:      deps.Sessions,
		provider:      deps.Provider,
		secureCookies: deps.SecureCookies,
		logger:        logger,
	}

	e.Use(logging.Middleware(logger), gin.Recovery())

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	e.GET("/auth/login", authHandler.handleLogin)
	e.GET("/auth/callback", authHandler.handleCallback)
	e.POST("/auth/logout", authHandler.handleLogout)

	api := e.Group("/api", authHandler.RequireAuth)
	api.GET("/me", authHandler.handleMe)
	api.GET("/rubros", salesHandler.handleCategories)

	api.GET("/ventas", salesHandler.handleListSales)
	api.POST("/ventas", salesHandler.handleCreateSale)
	api.GET("/ventas/export.xlsx", salesHandler.handleExport)
	api.GET("/ventas/:id", salesHandler.handleGetSale)
	api.DELETE("/ventas/:id", salesHandler.handleDeleteSale)
	api.POST("/ventas/:id/pagos", salesHandler.handleApplyPayment)

	api.GET("/estadisticas", salesHandler.handleStatistics)
	api.GET("/estadisticas-periodo", salesHandler.handlePeriodStatistics)

	api.GET("/cierre-mensual", salesHandler.handlePendingClosing)
	api.POST("/cierre-mensual", salesHandler.handleClosePeriod)
	api.GET("/ventas-excluidas", salesHandler.handleExcluded)
}
