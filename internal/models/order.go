package models

import "time"

// Order statuses. An order starts as pending; fulfillment moves it forward.
const (
	StatusPending   = "pending"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"
)

type Order struct {
	ID         int       `json:"id"`
	UserID     int       `json:"user_id"`
	ProductID  int       `json:"product_id"`
	Quantity   int       `json:"quantity"`
	TotalPrice float64   `json:"total_price"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateOrderRequest struct {
	UserID     int     `json:"user_id" binding:"required"`
	ProductID  int     `json:"product_id" binding:"required"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"total_price"`
}
