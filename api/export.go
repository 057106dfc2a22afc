package api

import (
	"net/http"
	"strings"

	"ventas/internal/sales"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const exportSheet = "Ventas"

var exportHeader = []interface{}{
	"Cliente", "Fecha", "Rubros", "Valor total", "Abonado", "Saldo pendiente",
	"Estado", "En estadísticas", "Mes de cierre", "Pagos", "Registrada",
}

// buildSalesWorkbook renders one row per sale.
func buildSalesWorkbook(list []*sales.Sale) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		f.Close()
		return nil, err
	}

	for i, s := range list {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		closed := ""
		if s.ClosedPeriod != nil {
			closed = *s.ClosedPeriod
		}
		counted := "No"
		if s.CountedInStatistics {
			counted = "Sí"
		}
		row := []interface{}{
			s.Client,
			s.SaleDate.String(),
			strings.Join(s.Categories, ", "),
			sales.FormatMoney(s.TotalValue),
			sales.FormatMoney(s.PaidAmount),
			sales.FormatMoney(s.OutstandingBalance),
			string(s.Status),
			counted,
			closed,
			len(s.Payments),
			s.CreatedAt.String(),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}

	return f, nil
}

// handleExport handles GET /api/ventas/export.xlsx
func (h *salesHandler) handleExport(ctx *gin.Context) {
	list, err := h.salesService.ListSales(ctx.Request.Context(), ownerFrom(ctx), sales.ListOptions{})
	if err != nil {
		respondError(ctx, h.logger, err, "failed to export sales")
		return
	}

	f, err := buildSalesWorkbook(list)
	if err != nil {
		h.logger.Error("failed to build workbook", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export sales"})
		return
	}
	defer f.Close()

	ctx.Header("Content-Disposition", `attachment; filename="ventas.xlsx"`)
	ctx.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Status(http.StatusOK)
	if err := f.Write(ctx.Writer); err != nil {
		h.logger.Error("failed to write workbook", zap.Error(err))
	}
}
