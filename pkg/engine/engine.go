package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/minimart/pkg/models"
	"github.com/example/minimart/pkg/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CatalogStore is the catalog contract the engine reserves stock against.
// DecrementStock must apply the decrement only if current stock still covers
// the requested quantity, atomically, and return the product as it was after
// the decrement. It reports repository.ErrNotFound for a missing product and
// repository.ErrInsufficientStock when the condition does not hold.
type CatalogStore interface {
	DecrementStock(ctx context.Context, productID primitive.ObjectID, quantity int) (*models.Product, error)
	RestoreStock(ctx context.Context, productID primitive.ObjectID, quantity int) error
}

// OrderStore persists orders created by the engine.
type OrderStore interface {
	Insert(ctx context.Context, order *models.Order) (primitive.ObjectID, error)
	UpdateStatus(ctx context.Context, orderID primitive.ObjectID, status models.Status) (*models.Order, error)
}

// LineItem is a (product, quantity) pair from a placement request.
type LineItem struct {
	ProductID primitive.ObjectID `json:"product_id"`
	Quantity  int                `json:"quantity"`
}

// Engine validates availability, reserves stock and persists orders. Stock
// never goes negative under concurrent placements, and a failed placement
// leaves no partial decrement behind.
type Engine struct {
	catalog CatalogStore
	orders  OrderStore
	logger  *zap.Logger
}

func New(catalog CatalogStore, orders OrderStore, logger *zap.Logger) *Engine {
	return &Engine{
		catalog: catalog,
		orders:  orders,
		logger:  logger,
	}
}

// PlaceOrder reserves stock for every line item and persists a Pending order
// whose total is the sum of price*quantity at reservation time. Duplicate
// product references are combined before the stock check, so a request
// listing the same product twice is validated against its cumulative demand.
// On any failure every decrement already applied in this call is restored.
func (e *Engine) PlaceOrder(ctx context.Context, userID primitive.ObjectID, items []LineItem) (*models.Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order has no line items", ErrValidation)
	}
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1 for product %s", ErrValidation, item.ProductID.Hex())
		}
	}

	merged := consolidate(items)

	reserved := make([]models.OrderItem, 0, len(merged))
	var total float64
	for _, item := range merged {
		product, err := e.catalog.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			e.release(reserved)
			return nil, classifyStockError(err, item.ProductID)
		}
		reserved = append(reserved, models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			Price:       product.Price,
		})
		total += product.Price * float64(item.Quantity)
	}

	order := &models.Order{
		UserID:      userID,
		Items:       reserved,
		Status:      models.StatusPending,
		TotalAmount: total,
		CreatedAt:   time.Now().UTC(),
	}

	id, err := e.orders.Insert(ctx, order)
	if err != nil {
		e.release(reserved)
		return nil, fmt.Errorf("%w: insert order: %v", ErrTransientStore, err)
	}
	order.ID = id

	e.logger.Info("Order placed",
		zap.String("order_id", order.ID.Hex()),
		zap.String("user_id", userID.Hex()),
		zap.Int("items", len(reserved)),
		zap.Float64("total_amount", total))

	return order, nil
}

// UpdateOrderStatus sets the status unconditionally; any status may follow
// any other.
func (e *Engine) UpdateOrderStatus(ctx context.Context, orderID primitive.ObjectID, status models.Status) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	order, err := e.orders.UpdateStatus(ctx, orderID, status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("%w: update status: %v", ErrTransientStore, err)
	}

	e.logger.Info("Order status updated",
		zap.String("order_id", orderID.Hex()),
		zap.String("status", string(status)))

	return order, nil
}

// release undoes decrements already applied by a failed placement. It runs on
// a fresh context so a cancelled caller cannot strand reserved stock.
func (e *Engine) release(reserved []models.OrderItem) {
	if len(reserved) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, item := range reserved {
		if err := e.catalog.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			e.logger.Error("Failed to restore stock after aborted placement",
				zap.String("product_id", item.ProductID.Hex()),
				zap.Int("quantity", item.Quantity),
				zap.Error(err))
		}
	}
}

// consolidate sums duplicate product references, preserving first-seen order,
// so cumulative demand is checked against stock in a single decrement.
func consolidate(items []LineItem) []LineItem {
	index := make(map[primitive.ObjectID]int, len(items))
	merged := make([]LineItem, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

func classifyStockError(err error, productID primitive.ObjectID) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: product %s", ErrProductUnavailable, productID.Hex())
	case errors.Is(err, repository.ErrInsufficientStock):
		return fmt.Errorf("%w: product %s", ErrInsufficientStock, productID.Hex())
	default:
		return fmt.Errorf("%w: decrement stock: %v", ErrTransientStore, err)
	}
}
