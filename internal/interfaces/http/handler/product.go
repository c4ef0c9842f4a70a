package handler

import (
	"net/http"
	"strconv"

	appcheckout "github.com/flashsale/backend/internal/application/checkout"
	"github.com/flashsale/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// ProductHandler serves the public product view
type ProductHandler struct {
	BaseHandler
	holds *appcheckout.HoldService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(holds *appcheckout.HoldService) *ProductHandler {
	return &ProductHandler{holds: holds}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *ProductHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/products/:id", h.Get)
}

// Get handles GET /api/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeValidation, "product id must be a positive integer")
		return
	}

	view, err := h.holds.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewProductResponse(view))
}
