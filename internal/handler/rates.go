package handler

import (
	"errors"
	"net/http"
	"strings"

	"price-history/internal/repository"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetAllRates godoc
// @Summary      Get all conversion rate tables
// @Description  Returns the composed cross-asset rate table of every base-eligible asset
// @Tags         rates
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/rates [get]
func (h *Handler) GetAllRates(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-all-rates")
	defer span.End()

	tables, err := h.priceService.GetAllConversionTables(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rates": tables})
}

// GetRate godoc
// @Summary      Get one base asset's conversion rate table
// @Tags         rates
// @Produce      json
// @Param        base  path  string  true  "Base asset symbol (e.g., USD)"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/rates/{base} [get]
func (h *Handler) GetRate(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-rate")
	defer span.End()

	base := strings.ToUpper(strings.TrimSpace(c.Param("base")))
	span.SetAttributes(attribute.String("base", base))

	table, err := h.priceService.GetConversionTable(ctx, base)
	if errors.Is(err, repository.ErrTableNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no conversion table for base asset: " + base})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rates": table})
}
