package gateway

import (
	"context"
	"time"

	"github.com/example/minimart/pkg/models"
	"github.com/example/minimart/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Consumer-side views of the repositories, narrowed to what the handlers
// touch. The concrete repository types satisfy them.

type ProductStore interface {
	Insert(ctx context.Context, product *models.Product) (primitive.ObjectID, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.Product, error)
	FindAll(ctx context.Context) ([]*models.Product, error)
	Update(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	FindLowStock(ctx context.Context, threshold int) ([]*models.Product, error)
	Stats(ctx context.Context) (*repository.ProductStats, error)
}

type OrderStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Order, error)
	FindAll(ctx context.Context) ([]*models.Order, error)
	FindRecent(ctx context.Context, limit int64) ([]*models.Order, error)
	Totals(ctx context.Context) (*repository.Totals, error)
	StatsByUser(ctx context.Context) (map[primitive.ObjectID]repository.UserOrderStats, error)
	StatusDistribution(ctx context.Context) (map[string]int64, error)
	ValueDistribution(ctx context.Context) ([]repository.ValueBucket, error)
	FavoriteProducts(ctx context.Context, userID primitive.ObjectID, limit int64) ([]repository.FavoriteProduct, error)
	CountDistinctUsers(ctx context.Context) (int64, error)
}

type UserStore interface {
	Insert(ctx context.Context, user *models.User) (primitive.ObjectID, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByMobile(ctx context.Context, mobile string) (*models.User, error)
	FindAll(ctx context.Context) ([]*models.User, error)
	UpdateLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
	CountActiveSince(ctx context.Context, since time.Time) (int64, error)
	RegistrationSources(ctx context.Context) (map[string]int64, error)
	RegistrationsOverTime(ctx context.Context, limit int64) ([]repository.RegistrationBucket, error)
	ActivityByMonth(ctx context.Context, activeSince time.Time) ([]repository.ActivityBucket, error)
}

type Cache interface {
	CacheProduct(ctx context.Context, product *models.Product) error
	GetProductCache(ctx context.Context, id string) (*models.Product, error)
	InvalidateProduct(ctx context.Context, id string) error
	CacheOrderStatus(ctx context.Context, orderID string, status models.Status) error
	GetOrderStatusCache(ctx context.Context, orderID string) (models.Status, error)
}
