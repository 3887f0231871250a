// Package events defines the stock-decrement event and its wire codec.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecode marks a message that can never be processed (poison message).
// Consumers must dead-letter it, not requeue it.
var ErrDecode = errors.New("malformed stock decrement event")

// StockDecrementEvent is published exactly once per committed order and
// consumed at least once; it is immutable after publish.
type StockDecrementEvent struct {
	OrderID   int `json:"order_id"`
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// Encode serializes the event as flat JSON.
func Encode(ev StockDecrementEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return data, nil
}

// Decode parses a wire message. Unknown fields are ignored for forward
// compatibility; a missing required field or a non-positive quantity is a
// decode error.
func Decode(data []byte) (StockDecrementEvent, error) {
	var wire struct {
		OrderID   *int `json:"order_id"`
		ProductID *int `json:"product_id"`
		Quantity  *int `json:"quantity"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return StockDecrementEvent{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if wire.OrderID == nil {
		return StockDecrementEvent{}, fmt.Errorf("%w: missing order_id", ErrDecode)
	}
	if wire.ProductID == nil {
		return StockDecrementEvent{}, fmt.Errorf("%w: missing product_id", ErrDecode)
	}
	if wire.Quantity == nil {
		return StockDecrementEvent{}, fmt.Errorf("%w: missing quantity", ErrDecode)
	}
	if *wire.Quantity <= 0 {
		return StockDecrementEvent{}, fmt.Errorf("%w: quantity must be positive, got %d", ErrDecode, *wire.Quantity)
	}
	return StockDecrementEvent{
		OrderID:   *wire.OrderID,
		ProductID: *wire.ProductID,
		Quantity:  *wire.Quantity,
	}, nil
}
