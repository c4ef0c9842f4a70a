package handler

import (
	"net/http"

	appcheckout "github.com/flashsale/backend/internal/application/checkout"
	"github.com/flashsale/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HoldHandler serves hold creation and release
type HoldHandler struct {
	BaseHandler
	holds *appcheckout.HoldService
}

// NewHoldHandler creates a new HoldHandler
func NewHoldHandler(holds *appcheckout.HoldService) *HoldHandler {
	return &HoldHandler{holds: holds}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *HoldHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/holds", h.Create)
	rg.POST("/holds/:id/release", h.Release)
}

// Create handles POST /api/holds
func (h *HoldHandler) Create(c *gin.Context) {
	var req dto.CreateHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	res, err := h.holds.CreateHold(c.Request.Context(), appcheckout.CreateHoldInput{
		ProductID: req.ProductID,
		Quantity:  req.Qty,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewHoldResponse(res, false))
}

// Release handles POST /api/holds/:id/release
func (h *HoldHandler) Release(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeValidation, "hold id must be a UUID")
		return
	}

	res, err := h.holds.ReleaseHold(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewHoldResponse(res, true))
}
