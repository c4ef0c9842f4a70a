package dto

import (
	"encoding/json"
	"time"

	appcheckout "github.com/flashsale/backend/internal/application/checkout"
	"github.com/shopspring/decimal"
)

// ProductResponse is the public product snapshot
type ProductResponse struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	AvailableStock int64           `json:"available_stock"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewProductResponse builds a ProductResponse from the application view
func NewProductResponse(view *appcheckout.ProductView) ProductResponse {
	return ProductResponse{
		ID:             view.ID,
		Name:           view.Name,
		Description:    view.Description,
		Price:          view.Price,
		AvailableStock: view.AvailableStock,
		UpdatedAt:      view.UpdatedAt,
	}
}

// CreateHoldRequest reserves units of a product
type CreateHoldRequest struct {
	ProductID int64 `json:"product_id" binding:"required,min=1"`
	Qty       int64 `json:"qty" binding:"required,min=1,max=100"`
}

// HoldResponse describes a hold
type HoldResponse struct {
	HoldID    string    `json:"hold_id"`
	ExpiresAt time.Time `json:"expires_at"`
	ProductID int64     `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	Status    string    `json:"status,omitempty"`
}

// NewHoldResponse builds a HoldResponse from the application result
func NewHoldResponse(res *appcheckout.HoldResult, withStatus bool) HoldResponse {
	out := HoldResponse{
		HoldID:    res.HoldID.String(),
		ExpiresAt: res.ExpiresAt,
		ProductID: res.ProductID,
		Quantity:  res.Quantity,
	}
	if withStatus {
		out.Status = res.Status
	}
	return out
}

// CreateOrderRequest converts a hold into an order
type CreateOrderRequest struct {
	HoldID string `json:"hold_id" binding:"required,uuid"`
}

// OrderResponse describes an order
type OrderResponse struct {
	OrderID    string          `json:"order_id"`
	HoldID     string          `json:"hold_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewOrderResponse builds an OrderResponse from the application result
func NewOrderResponse(res *appcheckout.OrderResult) OrderResponse {
	return OrderResponse{
		OrderID:    res.OrderID.String(),
		HoldID:     res.HoldID.String(),
		ProductID:  res.ProductID,
		Quantity:   res.Quantity,
		UnitPrice:  res.UnitPrice,
		TotalPrice: res.TotalPrice,
		Status:     res.Status,
		CreatedAt:  res.CreatedAt,
	}
}

// WebhookRequest is a payment provider notification
type WebhookRequest struct {
	IdempotencyKey string          `json:"idempotency_key" binding:"required,max=255"`
	OrderID        string          `json:"order_id" binding:"required,uuid"`
	Status         string          `json:"status" binding:"required,oneof=success failed"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// WebhookProcessedResponse is returned when the payment effect was applied
type WebhookProcessedResponse struct {
	Status           string `json:"status"`
	OrderID          string `json:"order_id"`
	OrderStatus      string `json:"order_status"`
	WebhookID        string `json:"webhook_id"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// WebhookDuplicateResponse is returned when the idempotency key was seen before
type WebhookDuplicateResponse struct {
	Status           string `json:"status"`
	WebhookID        string `json:"webhook_id"`
	ProcessingStatus string `json:"processing_status"`
	OrderStatus      string `json:"order_status,omitempty"`
}

// WebhookPendingResponse is returned when the order does not exist yet
type WebhookPendingResponse struct {
	Status    string `json:"status"`
	WebhookID string `json:"webhook_id"`
	Message   string `json:"message"`
}

// WebhookAlreadyFinalizedResponse is returned when the order was terminal
type WebhookAlreadyFinalizedResponse struct {
	Status      string `json:"status"`
	OrderStatus string `json:"order_status"`
	WebhookID   string `json:"webhook_id"`
}
