package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ecomstack/minishop/internal/db"
	"github.com/ecomstack/minishop/internal/models"
)

// OrderStore persists orders.
type OrderStore interface {
	Create(order *models.Order) error
	GetAll() ([]models.Order, error)
	GetByID(id int) (*models.Order, error)
	UpdateStatus(id int, status string) error
}

// EventPublisher emits the stock-decrement event for a committed order.
type EventPublisher interface {
	PublishStockDecrement(ctx context.Context, order *models.Order) error
}

type OrderHandler struct {
	repo      OrderStore
	publisher EventPublisher
}

func NewOrderHandler(repo OrderStore, pub EventPublisher) *OrderHandler {
	return &OrderHandler{repo: repo, publisher: pub}
}

// HealthCheck returns server status
func (h *OrderHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "order-service"})
}

// ListOrders returns all orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.repo.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, orders)
}

// GetOrder returns a single order
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	order, err := h.repo.GetByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// CreateOrder validates the request, persists the order as pending, and only
// after the commit publishes the stock-decrement event. A publish failure is
// recorded for replay but never fails the request: the order exists and must
// not be rolled back because of a downstream messaging problem.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Quantity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be positive"})
		return
	}
	if req.TotalPrice < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "total_price must not be negative"})
		return
	}

	order := models.Order{
		UserID:     req.UserID,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		TotalPrice: req.TotalPrice,
		Status:     models.StatusPending,
	}

	if err := h.repo.Create(&order); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.publisher.PublishStockDecrement(c.Request.Context(), &order); err != nil {
		log.Printf("⚠️ Failed to publish event for order #%d: %v", order.ID, err)
		// Don't fail the request, order is already created
	}

	log.Printf("✅ Order #%d created for product %d (qty %d)", order.ID, order.ProductID, order.Quantity)
	c.JSON(http.StatusCreated, order)
}

// UpdateOrderStatus updates the order status
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	validStatuses := map[string]bool{
		models.StatusPending:   true,
		models.StatusFulfilled: true,
		models.StatusCancelled: true,
	}
	if !validStatuses[req.Status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	if err := h.repo.UpdateStatus(id, req.Status); err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "order status updated"})
}
