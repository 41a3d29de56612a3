package handler

import (
	"net/http"

	"price-history/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer       trace.Tracer
	priceService *service.BasePriceService
	priceHub     *PriceHub
}

func New(
	tracer trace.Tracer,
	priceService *service.BasePriceService,
	priceHub *PriceHub,
) *Handler {
	return &Handler{
		tracer:       tracer,
		priceService: priceService,
		priceHub:     priceHub,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/prices", h.GetAllPrices)
	r.GET("/api/prices/:symbol", h.GetPrice)
	r.PUT("/api/prices/:symbol", h.EditPrice)
	r.GET("/api/rates", h.GetAllRates)
	r.GET("/api/rates/:base", h.GetRate)
	r.GET("/ws/prices", h.StreamPrices)
}

// Health godoc
// @Summary      Service health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
