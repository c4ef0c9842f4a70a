package handler

import (
	"net/http"

	appcheckout "github.com/flashsale/backend/internal/application/checkout"
	"github.com/flashsale/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrderHandler serves hold-to-order conversion
type OrderHandler struct {
	BaseHandler
	orders *appcheckout.OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders *appcheckout.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/orders", h.Create)
}

// Create handles POST /api/orders. Retried requests for an already
// converted hold return the existing order with 201 unchanged.
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	holdID, err := uuid.Parse(req.HoldID)
	if err != nil {
		h.ValidationError(c, err)
		return
	}

	res, err := h.orders.CreateOrderFromHold(c.Request.Context(), holdID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewOrderResponse(res))
}
