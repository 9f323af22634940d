package gateway

import (
	"errors"
	"net/http"

	"github.com/example/minimart/pkg/engine"
	"github.com/example/minimart/pkg/models"
	"github.com/example/minimart/pkg/repository"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type placeOrderRequest struct {
	Items []engine.LineItem `json:"products"`
}

type updateStatusRequest struct {
	Status models.Status `json:"status"`
}

func (g *Gateway) placeOrder(c *gin.Context) {
	ident := g.identity(c)
	userID, err := primitive.ObjectIDFromHex(ident.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, token failed"})
		return
	}

	var req placeOrderRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	order, err := g.engine.PlaceOrder(c.Request.Context(), userID, req.Items)
	if err != nil {
		g.writeEngineError(c, err)
		return
	}

	ctx := c.Request.Context()
	for _, item := range order.Items {
		if err := g.cache.InvalidateProduct(ctx, item.ProductID.Hex()); err != nil {
			g.logger.Warn("Failed to invalidate product cache",
				zap.String("product_id", item.ProductID.Hex()), zap.Error(err))
		}
	}
	if err := g.cache.CacheOrderStatus(ctx, order.ID.Hex(), order.Status); err != nil {
		g.logger.Warn("Failed to cache order status", zap.String("order_id", order.ID.Hex()), zap.Error(err))
	}

	if g.producer != nil {
		g.producer.OrderPlaced(order.ID.Hex(), ident.UserID, len(order.Items), order.TotalAmount)
	}
	if g.notifier != nil {
		g.notifier.OrderPlaced(order.ID.Hex(), ident.UserID, order.TotalAmount)
	}

	c.JSON(http.StatusCreated, order)
}

func (g *Gateway) myOrders(c *gin.Context) {
	userID, err := primitive.ObjectIDFromHex(g.identity(c).UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, token failed"})
		return
	}

	orders, err := g.orders.FindByUser(c.Request.Context(), userID)
	if err != nil {
		g.serverError(c, "Failed to list orders", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (g *Gateway) listOrders(c *gin.Context) {
	orders, err := g.orders.FindAll(c.Request.Context())
	if err != nil {
		g.serverError(c, "Failed to list orders", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	order, err := g.engine.UpdateOrderStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		g.writeEngineError(c, err)
		return
	}

	if err := g.cache.CacheOrderStatus(c.Request.Context(), order.ID.Hex(), order.Status); err != nil {
		g.logger.Warn("Failed to cache order status", zap.String("order_id", order.ID.Hex()), zap.Error(err))
	}

	if g.producer != nil {
		g.producer.OrderStatusChanged(order.ID.Hex(), string(order.Status))
	}
	if g.notifier != nil {
		g.notifier.StatusChanged(order.ID.Hex(), order.UserID.Hex(), string(order.Status))
	}

	c.JSON(http.StatusOK, order)
}

// orderStatus answers from the status cache when it can; misses fall through
// to the order store and refill the cache.
func (g *Gateway) orderStatus(c *gin.Context) {
	orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid order ID"})
		return
	}
	ctx := c.Request.Context()
	ident := g.identity(c)

	// Only admins may answer from the cache alone; everyone else has to load
	// the order so ownership can be checked.
	if ident.IsAdmin {
		if status, err := g.cache.GetOrderStatusCache(ctx, orderID.Hex()); err == nil {
			c.JSON(http.StatusOK, gin.H{"order_id": orderID.Hex(), "status": status})
			return
		}
	}

	order, err := g.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Order not found"})
			return
		}
		g.serverError(c, "Failed to load order", err)
		return
	}
	if !ident.IsAdmin && order.UserID.Hex() != ident.UserID {
		c.JSON(http.StatusNotFound, gin.H{"message": "Order not found"})
		return
	}

	if err := g.cache.CacheOrderStatus(ctx, orderID.Hex(), order.Status); err != nil {
		g.logger.Warn("Failed to cache order status", zap.String("order_id", orderID.Hex()), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID.Hex(), "status": order.Status})
}

func (g *Gateway) adminData(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Admin data route working"})
}

func (g *Gateway) lowStock(c *gin.Context) {
	products, err := g.products.FindLowStock(c.Request.Context(), repository.LowStockThreshold)
	if err != nil {
		g.serverError(c, "Failed to list low stock products", err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (g *Gateway) orderAnalytics(c *gin.Context) {
	totals, err := g.orders.Totals(c.Request.Context())
	if err != nil {
		g.serverError(c, "Failed to aggregate orders", err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (g *Gateway) writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case errors.Is(err, engine.ErrProductUnavailable), errors.Is(err, engine.ErrInsufficientStock):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Product unavailable or insufficient stock."})
	case errors.Is(err, engine.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Order not found"})
	default:
		g.serverError(c, "Order operation failed", err)
	}
}
