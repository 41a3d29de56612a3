package handler

import (
	"errors"
	"net/http"
	"strings"

	"price-history/internal/repository"
	"price-history/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetAllPrices godoc
// @Summary      Get all instrument price records
// @Description  Returns current prices, reference window prices, and 24h change for every tracked instrument
// @Tags         prices
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/prices [get]
func (h *Handler) GetAllPrices(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-all-prices")
	defer span.End()

	records, err := h.priceService.GetAllPrices(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"prices": records})
}

// GetPrice godoc
// @Summary      Get one instrument's price record
// @Tags         prices
// @Produce      json
// @Param        symbol  path  string  true  "Instrument symbol (e.g., BTCUSD)"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/prices/{symbol} [get]
func (h *Handler) GetPrice(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-price")
	defer span.End()

	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	span.SetAttributes(attribute.String("symbol", symbol))

	record, err := h.priceService.GetPriceByInstrument(ctx, symbol)
	if errors.Is(err, repository.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown instrument: " + symbol})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"price": record})
}

// EditPrice godoc
// @Summary      Override an instrument's price record
// @Description  Replaces the stored prices of one instrument and stamps every reference window with the edit time
// @Tags         prices
// @Accept       json
// @Produce      json
// @Param        symbol  path  string             true  "Instrument symbol"
// @Param        edit    body  service.PriceEdit  true  "Replacement prices"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/prices/{symbol} [put]
func (h *Handler) EditPrice(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.edit-price")
	defer span.End()

	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	span.SetAttributes(attribute.String("symbol", symbol))

	var edit service.PriceEdit
	if err := c.ShouldBindJSON(&edit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid edit payload: " + err.Error()})
		return
	}

	record, err := h.priceService.EditPriceRecord(ctx, symbol, edit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"price": record})
}
