package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/example/minimart/pkg/models"
	"github.com/example/minimart/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// fakeCatalog mimics the store's conditional decrement: check and decrement
// happen under one lock, so concurrent callers contend the way they would
// against the real conditional update.
type fakeCatalog struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]*models.Product
}

func newFakeCatalog(products ...*models.Product) *fakeCatalog {
	f := &fakeCatalog{products: make(map[primitive.ObjectID]*models.Product)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeCatalog) DecrementStock(_ context.Context, id primitive.ObjectID, quantity int) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Stock < quantity {
		return nil, repository.ErrInsufficientStock
	}
	p.Stock -= quantity
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) RestoreStock(_ context.Context, id primitive.ObjectID, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Stock += quantity
	return nil
}

func (f *fakeCatalog) stock(id primitive.ObjectID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

type fakeOrders struct {
	mu        sync.Mutex
	orders    map[primitive.ObjectID]*models.Order
	insertErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[primitive.ObjectID]*models.Order)}
}

func (f *fakeOrders) Insert(_ context.Context, order *models.Order) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return primitive.NilObjectID, f.insertErr
	}
	id := primitive.NewObjectID()
	cp := *order
	cp.ID = id
	f.orders[id] = &cp
	return id, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, orderID primitive.ObjectID, status models.Status) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	o.Status = status
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func product(name string, price float64, stock int) *models.Product {
	return &models.Product{
		ID:    primitive.NewObjectID(),
		Name:  name,
		Price: price,
		Stock: stock,
	}
}

func newEngine(catalog *fakeCatalog, orders *fakeOrders) *Engine {
	return New(catalog, orders, zap.NewNop())
}

func TestPlaceOrderSuccess(t *testing.T) {
	widget := product("widget", 99.5, 10)
	gadget := product("gadget", 10.0, 3)
	catalog := newFakeCatalog(widget, gadget)
	orders := newFakeOrders()
	e := newEngine(catalog, orders)

	order, err := e.PlaceOrder(context.Background(), primitive.NewObjectID(), []LineItem{
		{ProductID: widget.ID, Quantity: 2},
		{ProductID: gadget.ID, Quantity: 3},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, order.Status)
	assert.False(t, order.ID.IsZero())
	assert.Equal(t, 8, catalog.stock(widget.ID))
	assert.Equal(t, 0, catalog.stock(gadget.ID))
	assert.Equal(t, 2*99.5+3*10.0, order.TotalAmount)

	require.Len(t, order.Items, 2)
	assert.Equal(t, "widget", order.Items[0].ProductName)
	assert.Equal(t, 99.5, order.Items[0].Price)
}

func TestPlaceOrderTotalMatchesCapturedPrices(t *testing.T) {
	widget := product("widget", 12.25, 100)
	catalog := newFakeCatalog(widget)
	e := newEngine(catalog, newFakeOrders())

	order, err := e.PlaceOrder(context.Background(), primitive.NewObjectID(), []LineItem{
		{ProductID: widget.ID, Quantity: 7},
	})
	require.NoError(t, err)

	var sum float64
	for _, item := range order.Items {
		sum += item.Price * float64(item.Quantity)
	}
	assert.Equal(t, sum, order.TotalAmount)
}

func TestPlaceOrderEmptyItems(t *testing.T) {
	orders := newFakeOrders()
	e := newEngine(newFakeCatalog(), orders)

	_, err := e.PlaceOrder(context.Background(), primitive.NewObjectID(), nil)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, orders.count())
}

func TestPlaceOrderNonPositiveQuantity(t *testing.T) {
	widget := product("widget", 5, 10)
	catalog := newFakeCatalog(widget)
	e := newEngine(catalog, newFakeOrders())

	_, err := e.PlaceOrder(context.Background(), primitive.NewObjectID(), []LineItem{
		{ProductID: widget.ID, Quantity: 0},
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 10, catalog.stock(widget.ID))
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	widget := product("widget", 5, 10)
	catalog := newFakeCatalog(widget)
	orders := newFakeOrders()
	e := newEngine(catalog, orders)

	_, err := e.PlaceOrder(context.Background(), primitive.NewObjectID(), []LineItem{
		{ProductID: widget.ID, Quantity: 2},
		{ProductID: primitive.NewObjectID(), Quantity: 1},
	})
	assert.ErrorIs(t, err, ErrProductUnavailable)

	// The widget decrement from the first line item must not survive.
	assert.Equal(t, 10, catalog.stock(widget.ID))
	assert.Zero(t, orders.count())
}

func TestPlaceOrderInsufficientStockRestoresEarlierItems(t *testing.T) {
	widget := product("widget", 5, 10)
	gadget := product("gadget", 3, 1)
	catalog := newFakeCatalog(widget, gadget)
	orders := newFakeOrders()
	e := newEngine(catalog, orders)

	_, err := e.PlaceOrder(context.Background(), primitive.NewObjectID(), []LineItem{
		{ProductID: widget.ID, Quantity: 4},
		{ProductID: gadget.ID, Quantity: 2},
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, 10, catalog.stock(widget.ID))
	assert.Equal(t, 1, catalog.stock(gadget.ID))
	assert.Zero(t, orders.count())
}

func TestPlaceOrderCombinesDuplicateLineItems(t *testing.T) {
	widget := product("widget", 5, 5)
	catalog := newFakeCatalog(widget)
	orders := newFakeOrders()
	e := newEngine(catalog, orders)

	// 3 + 4 = 7 > 5: each line alone would pass, the combined demand must not.
	_, err := e.PlaceOrder(context.Background(), primitive.NewObjectID(), []LineItem{
		{ProductID: widget.ID, Quantity: 3},
		{ProductID: widget.ID, Quantity: 4},
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 5, catalog.stock(widget.ID))
	assert.Zero(t, orders.count())
}

func TestPlaceOrderDuplicatesWithinStock(t *testing.T) {
	widget := product("widget", 2, 5)
	catalog := newFakeCatalog(widget)
	e := newEngine(catalog, newFakeOrders())

	order, err := e.PlaceOrder(context.Background(), primitive.NewObjectID(), []LineItem{
		{ProductID: widget.ID, Quantity: 2},
		{ProductID: widget.ID, Quantity: 3},
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.Equal(t, 5, order.Items[0].Quantity)
	assert.Equal(t, 10.0, order.TotalAmount)
	assert.Equal(t, 0, catalog.stock(widget.ID))
}

func TestPlaceOrderInsertFailureRestoresStock(t *testing.T) {
	widget := product("widget", 5, 10)
	catalog := newFakeCatalog(widget)
	orders := newFakeOrders()
	orders.insertErr = errors.New("connection reset")
	e := newEngine(catalog, orders)

	_, err := e.PlaceOrder(context.Background(), primitive.NewObjectID(), []LineItem{
		{ProductID: widget.ID, Quantity: 4},
	})
	assert.ErrorIs(t, err, ErrTransientStore)
	assert.Equal(t, 10, catalog.stock(widget.ID))
}

func TestConcurrentPlacementsNeverOversell(t *testing.T) {
	widget := product("widget", 5, 10)
	catalog := newFakeCatalog(widget)
	e := newEngine(catalog, newFakeOrders())

	// Two concurrent placements of 6 against stock 10: exactly one wins.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = e.PlaceOrder(context.Background(), primitive.NewObjectID(), []LineItem{
				{ProductID: widget.ID, Quantity: 6},
			})
		}(i)
	}
	wg.Wait()

	var successes, shortages int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInsufficientStock):
			shortages++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, shortages)
	assert.Equal(t, 4, catalog.stock(widget.ID))
}

func TestConcurrentPlacementsReconcile(t *testing.T) {
	const initialStock = 50
	widget := product("widget", 2, initialStock)
	gadget := product("gadget", 3, initialStock)
	catalog := newFakeCatalog(widget, gadget)
	orders := newFakeOrders()
	e := newEngine(catalog, orders)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var reservedWidget, reservedGadget int
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			order, err := e.PlaceOrder(context.Background(), primitive.NewObjectID(), []LineItem{
				{ProductID: widget.ID, Quantity: qty},
				{ProductID: gadget.ID, Quantity: qty},
			})
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, item := range order.Items {
				switch item.ProductID {
				case widget.ID:
					reservedWidget += item.Quantity
				case gadget.ID:
					reservedGadget += item.Quantity
				}
			}
		}(i%3 + 1)
	}
	wg.Wait()

	// Decrements across all successful placements reconcile with final stock,
	// and stock never went negative.
	assert.Equal(t, initialStock-reservedWidget, catalog.stock(widget.ID))
	assert.Equal(t, initialStock-reservedGadget, catalog.stock(gadget.ID))
	assert.GreaterOrEqual(t, catalog.stock(widget.ID), 0)
	assert.GreaterOrEqual(t, catalog.stock(gadget.ID), 0)
}

func TestUpdateOrderStatus(t *testing.T) {
	widget := product("widget", 5, 10)
	catalog := newFakeCatalog(widget)
	orders := newFakeOrders()
	e := newEngine(catalog, orders)

	order, err := e.PlaceOrder(context.Background(), primitive.NewObjectID(), []LineItem{
		{ProductID: widget.ID, Quantity: 1},
	})
	require.NoError(t, err)

	updated, err := e.UpdateOrderStatus(context.Background(), order.ID, models.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, updated.Status)

	// Any status may follow any other.
	updated, err = e.UpdateOrderStatus(context.Background(), order.ID, models.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, updated.Status)
}

func TestUpdateOrderStatusUnknownOrder(t *testing.T) {
	e := newEngine(newFakeCatalog(), newFakeOrders())

	_, err := e.UpdateOrderStatus(context.Background(), primitive.NewObjectID(), models.StatusShipped)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateOrderStatusInvalidStatus(t *testing.T) {
	e := newEngine(newFakeCatalog(), newFakeOrders())

	_, err := e.UpdateOrderStatus(context.Background(), primitive.NewObjectID(), models.Status("Cancelled"))
	assert.ErrorIs(t, err, ErrValidation)
}
