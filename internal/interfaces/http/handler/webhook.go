package handler

import (
	"net/http"
	"time"

	appcheckout "github.com/flashsale/backend/internal/application/checkout"
	"github.com/flashsale/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WebhookHandler serves payment provider notifications
type WebhookHandler struct {
	BaseHandler
	webhooks *appcheckout.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhooks *appcheckout.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments/webhook", h.Process)
}

// Process handles POST /api/payments/webhook. Every idempotent re-delivery
// answers 200 so the provider stops retrying; the body carries the outcome.
func (h *WebhookHandler) Process(c *gin.Context) {
	start := time.Now()

	var req dto.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		h.ValidationError(c, err)
		return
	}

	res, err := h.webhooks.ProcessWebhook(c.Request.Context(), appcheckout.WebhookInput{
		IdempotencyKey: req.IdempotencyKey,
		OrderID:        orderID,
		PaymentStatus:  req.Status,
		Payload:        req.Payload,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	switch res.Outcome {
	case appcheckout.WebhookOutcomeProcessed:
		c.JSON(http.StatusOK, dto.WebhookProcessedResponse{
			Status:           string(res.Outcome),
			OrderID:          res.OrderID.String(),
			OrderStatus:      res.OrderStatus,
			WebhookID:        res.WebhookID.String(),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		})
	case appcheckout.WebhookOutcomeDuplicate:
		c.JSON(http.StatusOK, dto.WebhookDuplicateResponse{
			Status:           string(res.Outcome),
			WebhookID:        res.WebhookID.String(),
			ProcessingStatus: res.ProcessingStatus,
			OrderStatus:      res.OrderStatus,
		})
	case appcheckout.WebhookOutcomePending:
		c.JSON(http.StatusOK, dto.WebhookPendingResponse{
			Status:    string(res.Outcome),
			WebhookID: res.WebhookID.String(),
			Message:   "order not found yet, webhook stored for later processing",
		})
	case appcheckout.WebhookOutcomeAlreadyFinalized:
		c.JSON(http.StatusOK, dto.WebhookAlreadyFinalizedResponse{
			Status:      string(res.Outcome),
			OrderStatus: res.OrderStatus,
			WebhookID:   res.WebhookID.String(),
		})
	default:
		h.InternalError(c, "unknown webhook outcome")
	}
}
