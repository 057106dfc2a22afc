package api

import (
	"net/http"
	"strconv"
	"strings"

	"ventas/internal/sales"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// salesHandler holds the sales service and implements HTTP handlers for sales operations.
type salesHandler struct {
	salesService *sales.Service
	logger       *zap.Logger
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(salesService *sales.Service, logger *zap.Logger) *salesHandler {
	return &salesHandler{
		salesService: salesService,
		logger:       logger,
	}
}

// handleCreateSale handles the POST /api/ventas endpoint (JSON or form body).
func (h *salesHandler) handleCreateSale(ctx *gin.Context) {
	var req createSaleRequest
	if err := ctx.ShouldBind(&req); err != nil {
		h.logger.Warn("failed to bind sale request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	owner := ownerFrom(ctx)
	sale, err := h.salesService.RegisterSale(ctx.Request.Context(), owner, sales.NewSale{
		Client:         req.Client,
		TotalValue:     req.TotalValue.Decimal(),
		InitialPayment: req.Paid.Decimal(),
		Categories:     req.Categories,
		SaleDate:       req.Date,
	})
	if err != nil {
		respondError(ctx, h.logger, err, "failed to create sale")
		return
	}

	ctx.JSON(http.StatusCreated, sale)
}

// handleListSales handles GET /api/ventas?q=&estado=&incluidas=
func (h *salesHandler) handleListSales(ctx *gin.Context) {
	opts := sales.ListOptions{Query: ctx.Query("q")}

	if raw := ctx.Query("estado"); raw != "" {
		status, err := sales.ParseStatus(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		opts.Status = status
	}
	if raw := ctx.Query("incluidas"); raw != "" {
		counted, err := strconv.ParseBool(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid incluidas value"})
			return
		}
		opts.Counted = &counted
	}

	results, err := h.salesService.ListSales(ctx.Request.Context(), ownerFrom(ctx), opts)
	if err != nil {
		respondError(ctx, h.logger, err, "failed to search sales")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"results": results, "quantity": len(results)})
}

func (h *salesHandler) handleGetSale(ctx *gin.Context) {
	sale, err := h.salesService.GetSale(ctx.Request.Context(), ownerFrom(ctx), ctx.Param("id"))
	if err != nil {
		respondError(ctx, h.logger, err, "failed to get sale")
		return
	}
	ctx.JSON(http.StatusOK, sale)
}

func (h *salesHandler) handleDeleteSale(ctx *gin.Context) {
	saleID := ctx.Param("id")
	deleted, err := h.salesService.DeleteSale(ctx.Request.Context(), ownerFrom(ctx), saleID)
	if err != nil {
		respondError(ctx, h.logger, err, "failed to delete sale")
		return
	}
	if !deleted {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"deleted": true, "id": saleID})
}

// handleApplyPayment handles POST /api/ventas/:id/pagos
func (h *salesHandler) handleApplyPayment(ctx *gin.Context) {
	var req paymentRequest
	if err := ctx.ShouldBind(&req); err != nil {
		h.logger.Warn("failed to bind payment request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	updated, err := h.salesService.ApplyPayment(ctx.Request.Context(), ownerFrom(ctx), ctx.Param("id"), req.Amount.Decimal(), req.Kind)
	if err != nil {
		respondError(ctx, h.logger, err, "failed to apply payment")
		return
	}
	ctx.JSON(http.StatusOK, updated)
}

func (h *salesHandler) handleStatistics(ctx *gin.Context) {
	stats, err := h.salesService.ComputeStatistics(ctx.Request.Context(), ownerFrom(ctx))
	if err != nil {
		respondError(ctx, h.logger, err, "failed to compute statistics")
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

// handlePeriodStatistics handles GET /api/estadisticas-periodo?fecha_inicio=&fecha_fin=
func (h *salesHandler) handlePeriodStatistics(ctx *gin.Context) {
	start := strings.TrimSpace(ctx.Query("fecha_inicio"))
	end := strings.TrimSpace(ctx.Query("fecha_fin"))
	if start == "" || end == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Fechas requeridas"})
		return
	}

	stats, err := h.salesService.ComputeStatisticsForPeriod(ctx.Request.Context(), ownerFrom(ctx), start, end)
	if err != nil {
		respondError(ctx, h.logger, err, "failed to compute period statistics")
		return
	}
	if stats == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Fechas inválidas, use YYYY-MM-DD"})
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

// handlePendingClosing lists what POST /api/cierre-mensual would exclude.
func (h *salesHandler) handlePendingClosing(ctx *gin.Context) {
	owner := ownerFrom(ctx)
	pending, err := h.salesService.ListPendingClosing(ctx.Request.Context(), owner)
	if err != nil {
		respondError(ctx, h.logger, err, "failed to list pending sales")
		return
	}
	stats, err := h.salesService.ComputeStatistics(ctx.Request.Context(), owner)
	if err != nil {
		respondError(ctx, h.logger, err, "failed to compute statistics")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"ventas_pendientes": pending, "estadisticas": stats})
}

func (h *salesHandler) handleClosePeriod(ctx *gin.Context) {
	var req closingRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBind(&req); err != nil {
			h.logger.Warn("failed to bind closing request", zap.Error(err))
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
			return
		}
	}

	report, err := h.salesService.CloseStatisticsPeriod(ctx.Request.Context(), ownerFrom(ctx), req.Month, req.year())
	if err != nil {
		respondError(ctx, h.logger, err, "failed to close period")
		return
	}
	ctx.JSON(http.StatusOK, report)
}

func (h *salesHandler) handleExcluded(ctx *gin.Context) {
	excluded, err := h.salesService.ListExcluded(ctx.Request.Context(), ownerFrom(ctx))
	if err != nil {
		respondError(ctx, h.logger, err, "failed to list excluded sales")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": excluded, "quantity": len(excluded)})
}

func (h *salesHandler) handleCategories(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"rubros": h.salesService.Categories().Names()})
}
