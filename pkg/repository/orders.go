package repository

import (
	"context"
	"errors"
	"time"

	"github.com/example/minimart/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ordersCollection = "orders"

type OrderRepository struct {
	collection *mongo.Collection
}

func NewOrderRepository(m *MongoRepository) *OrderRepository {
	return &OrderRepository{collection: m.Database().Collection(ordersCollection)}
}

func (r *OrderRepository) Insert(ctx context.Context, order *models.Order) (primitive.ObjectID, error) {
	res, err := r.collection.InsertOne(ctx, order)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []*models.Order
	if err = cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) FindAll(ctx context.Context) ([]*models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []*models.Order
	if err = cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) FindRecent(ctx context.Context, limit int64) ([]*models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []*models.Order
	if err = cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus sets the status unconditionally. ErrNotFound when no order
// matches.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.Status) (*models.Order, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order models.Order
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}}, opts).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// Totals is the top-line revenue aggregate for the admin dashboard.
type Totals struct {
	TotalOrders  int64   `json:"totalOrders"`
	TotalRevenue float64 `json:"totalRevenue"`
}

func (r *OrderRepository) Totals(ctx context.Context) (*Totals, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":          nil,
			"totalOrders":  bson.M{"$sum": 1},
			"totalRevenue": bson.M{"$sum": "$total_amount"},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []Totals
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &Totals{}, nil
	}
	return &results[0], nil
}

// UserOrderStats summarizes one user's order history.
type UserOrderStats struct {
	UserID        primitive.ObjectID `bson:"_id" json:"user_id"`
	OrderCount    int64              `bson:"orderCount" json:"orderCount"`
	TotalSpent    float64            `bson:"totalSpent" json:"totalSpent"`
	LastOrderDate time.Time          `bson:"lastOrderDate" json:"lastOrderDate"`
}

func (r *OrderRepository) StatsByUser(ctx context.Context) (map[primitive.ObjectID]UserOrderStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":           "$user",
			"orderCount":    bson.M{"$sum": 1},
			"totalSpent":    bson.M{"$sum": "$total_amount"},
			"lastOrderDate": bson.M{"$max": "$created_at"},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []UserOrderStats
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	stats := make(map[primitive.ObjectID]UserOrderStats, len(results))
	for _, s := range results {
		stats[s.UserID] = s
	}
	return stats, nil
}

func (r *OrderRepository) StatusDistribution(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	dist := make(map[string]int64, len(results))
	for _, row := range results {
		dist[row.Status] = row.Count
	}
	return dist, nil
}

// ValueBucket is one slot of the order value histogram.
type ValueBucket struct {
	Bucket  interface{} `bson:"_id" json:"bucket"`
	Count   int64       `bson:"count" json:"count"`
	Average float64     `bson:"average" json:"average"`
}

func (r *OrderRepository) ValueDistribution(ctx context.Context) ([]ValueBucket, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$bucket", Value: bson.M{
			"groupBy":    "$total_amount",
			"boundaries": bson.A{0, 500, 1000, 1500, 2000, 3000, 5000},
			"default":    "5000+",
			"output": bson.M{
				"count":   bson.M{"$sum": 1},
				"average": bson.M{"$avg": "$total_amount"},
			},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var buckets []ValueBucket
	if err = cursor.All(ctx, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// FavoriteProduct is a product a user orders most, by cumulative quantity.
type FavoriteProduct struct {
	ProductID primitive.ObjectID `bson:"_id" json:"product_id"`
	Count     int64              `bson:"count" json:"count"`
}

func (r *OrderRepository) FavoriteProducts(ctx context.Context, userID primitive.ObjectID, limit int64) ([]FavoriteProduct, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user": userID}}},
		{{Key: "$unwind", Value: "$products"}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$products.product",
			"count": bson.M{"$sum": "$products.quantity"},
		}}},
		{{Key: "$sort", Value: bson.M{"count": -1}}},
		{{Key: "$limit", Value: limit}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var favorites []FavoriteProduct
	if err = cursor.All(ctx, &favorites); err != nil {
		return nil, err
	}
	return favorites, nil
}

// CountDistinctUsers reports how many users have placed at least one order.
func (r *OrderRepository) CountDistinctUsers(ctx context.Context) (int64, error) {
	users, err := r.collection.Distinct(ctx, "user", bson.M{})
	if err != nil {
		return 0, err
	}
	return int64(len(users)), nil
}
