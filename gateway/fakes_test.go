package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/example/minimart/pkg/models"
	"github.com/example/minimart/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Map-backed fakes for the store interfaces. The product fake also implements
// the engine's CatalogStore with the same locked check-then-decrement the
// real conditional update provides.

type fakeProducts struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]*models.Product
}

func newFakeProducts() *fakeProducts {
	return &fakeProducts{products: make(map[primitive.ObjectID]*models.Product)}
}

func (f *fakeProducts) add(p *models.Product) *models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	f.products[p.ID] = p
	return p
}

func (f *fakeProducts) Insert(_ context.Context, product *models.Product) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	product.ID = primitive.NewObjectID()
	cp := *product
	f.products[product.ID] = &cp
	return product.ID, nil
}

func (f *fakeProducts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeProducts) FindAll(_ context.Context) ([]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Product, 0, len(f.products))
	for _, p := range f.products {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeProducts) Update(_ context.Context, id primitive.ObjectID, update bson.M) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if name, ok := update["name"].(string); ok {
		p.Name = name
	}
	if price, ok := update["price"].(float64); ok {
		p.Price = price
	}
	if stock, ok := update["stock"].(int); ok {
		p.Stock = stock
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeProducts) FindLowStock(_ context.Context, threshold int) ([]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Product
	for _, p := range f.products {
		if p.Stock <= threshold {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeProducts) Stats(_ context.Context) (*repository.ProductStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repository.ProductStats{Total: int64(len(f.products))}
	for _, p := range f.products {
		if p.Stock <= repository.LowStockThreshold {
			stats.LowStock++
		}
	}
	return stats, nil
}

func (f *fakeProducts) DecrementStock(_ context.Context, id primitive.ObjectID, quantity int) (*models.Product, error) {
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

func (f *fakeProducts) RestoreStock(_ context.Context, id primitive.ObjectID, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Stock += quantity
	return nil
}

func (f *fakeProducts) stock(id primitive.ObjectID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

type fakeOrders struct {
	mu     sync.Mutex
	orders map[primitive.ObjectID]*models.Order
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[primitive.ObjectID]*models.Order)}
}

func (f *fakeOrders) Insert(_ context.Context, order *models.Order) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *fakeOrders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) FindByUser(_ context.Context, userID primitive.ObjectID) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeOrders) FindAll(_ context.Context) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Order, 0, len(f.orders))
	for _, o := range f.orders {
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeOrders) FindRecent(ctx context.Context, limit int64) ([]*models.Order, error) {
	all, _ := f.FindAll(ctx)
	if int64(len(all)) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeOrders) Totals(_ context.Context) (*repository.Totals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	totals := &repository.Totals{}
	for _, o := range f.orders {
		totals.TotalOrders++
		totals.TotalRevenue += o.TotalAmount
	}
	return totals, nil
}

func (f *fakeOrders) StatsByUser(_ context.Context) (map[primitive.ObjectID]repository.UserOrderStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := make(map[primitive.ObjectID]repository.UserOrderStats)
	for _, o := range f.orders {
		s := stats[o.UserID]
		s.UserID = o.UserID
		s.OrderCount++
		s.TotalSpent += o.TotalAmount
		if o.CreatedAt.After(s.LastOrderDate) {
			s.LastOrderDate = o.CreatedAt
		}
		stats[o.UserID] = s
	}
	return stats, nil
}

func (f *fakeOrders) StatusDistribution(_ context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dist := make(map[string]int64)
	for _, o := range f.orders {
		dist[string(o.Status)]++
	}
	return dist, nil
}

func (f *fakeOrders) ValueDistribution(_ context.Context) ([]repository.ValueBucket, error) {
	return nil, nil
}

func (f *fakeOrders) FavoriteProducts(_ context.Context, userID primitive.ObjectID, limit int64) ([]repository.FavoriteProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[primitive.ObjectID]int64)
	for _, o := range f.orders {
		if o.UserID != userID {
			continue
		}
		for _, item := range o.Items {
			counts[item.ProductID] += int64(item.Quantity)
		}
	}
	var out []repository.FavoriteProduct
	for id, count := range counts {
		out = append(out, repository.FavoriteProduct{ProductID: id, Count: count})
	}
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeOrders) CountDistinctUsers(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[primitive.ObjectID]struct{})
	for _, o := range f.orders {
		seen[o.UserID] = struct{}{}
	}
	return int64(len(seen)), nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[primitive.ObjectID]*models.User)}
}

func (f *fakeUsers) Insert(_ context.Context, user *models.User) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now()
	cp := *user
	f.users[user.ID] = &cp
	return user.ID, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByMobile(_ context.Context, mobile string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Mobile == mobile {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) FindAll(_ context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.User, 0, len(f.users))
	for _, u := range f.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeUsers) UpdateLastLogin(_ context.Context, id primitive.ObjectID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLogin = at
	return nil
}

func (f *fakeUsers) CountActiveSince(_ context.Context, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, u := range f.users {
		if !u.LastLogin.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeUsers) RegistrationSources(_ context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sources := make(map[string]int64)
	for _, u := range f.users {
		source := u.RegistrationSource
		if source == "" {
			source = "web"
		}
		sources[source]++
	}
	return sources, nil
}

func (f *fakeUsers) RegistrationsOverTime(_ context.Context, _ int64) ([]repository.RegistrationBucket, error) {
	return nil, nil
}

func (f *fakeUsers) ActivityByMonth(_ context.Context, _ time.Time) ([]repository.ActivityBucket, error) {
	return nil, nil
}

type fakeCache struct {
	mu       sync.Mutex
	products map[string]*models.Product
	statuses map[string]models.Status
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		products: make(map[string]*models.Product),
		statuses: make(map[string]models.Status),
	}
}

func (f *fakeCache) CacheProduct(_ context.Context, product *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *product
	f.products[product.ID.Hex()] = &cp
	return nil
}

func (f *fakeCache) GetProductCache(_ context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCache) InvalidateProduct(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, id)
	return nil
}

func (f *fakeCache) CacheOrderStatus(_ context.Context, orderID string, status models.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[orderID] = status
	return nil
}

func (f *fakeCache) GetOrderStatusCache(_ context.Context, orderID string) (models.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statuses[orderID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return s, nil
}
