package repository

import (
	"context"
	"errors"
	"time"

	"github.com/example/minimart/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const usersCollection = "users"

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(m *MongoRepository) *UserRepository {
	return &UserRepository{collection: m.Database().Collection(usersCollection)}
}

func (r *UserRepository) Insert(ctx context.Context, user *models.User) (primitive.ObjectID, error) {
	user.CreatedAt = time.Now().UTC()

	res, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByMobile(ctx context.Context, mobile string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"mobile": mobile}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindAll(ctx context.Context) ([]*models.User, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"last_login": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) CountActiveSince(ctx context.Context, since time.Time) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"last_login": bson.M{"$gte": since}})
}

func (r *UserRepository) RegistrationSources(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$registration_source",
			"count": bson.M{"$sum": 1},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Source string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	sources := make(map[string]int64, len(results))
	for _, row := range results {
		source := row.Source
		if source == "" {
			source = "web"
		}
		sources[source] += row.Count
	}
	return sources, nil
}

// RegistrationBucket is one day of the registrations-over-time series.
type RegistrationBucket struct {
	Date  RegistrationDate `bson:"_id" json:"date"`
	Count int64            `bson:"count" json:"count"`
}

type RegistrationDate struct {
	Year  int `bson:"year" json:"year"`
	Month int `bson:"month" json:"month"`
	Day   int `bson:"day" json:"day"`
}

func (r *UserRepository) RegistrationsOverTime(ctx context.Context, limit int64) ([]RegistrationBucket, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"year":  bson.M{"$year": "$created_at"},
				"month": bson.M{"$month": "$created_at"},
				"day":   bson.M{"$dayOfMonth": "$created_at"},
			},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "_id.year", Value: 1},
			{Key: "_id.month", Value: 1},
			{Key: "_id.day", Value: 1},
		}}},
		{{Key: "$limit", Value: limit}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var buckets []RegistrationBucket
	if err = cursor.All(ctx, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// ActivityBucket groups users by the month of their last login.
type ActivityBucket struct {
	Month       int   `bson:"_id" json:"month"`
	ActiveUsers int64 `bson:"activeUsers" json:"activeUsers"`
	TotalUsers  int64 `bson:"totalUsers" json:"totalUsers"`
}

func (r *UserRepository) ActivityByMonth(ctx context.Context, activeSince time.Time) ([]ActivityBucket, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$project", Value: bson.M{
			"month": bson.M{"$month": "$last_login"},
			"active": bson.M{"$cond": bson.A{
				bson.M{"$gte": bson.A{"$last_login", activeSince}},
				1,
				0,
			}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":         "$month",
			"activeUsers": bson.M{"$sum": "$active"},
			"totalUsers":  bson.M{"$sum": 1},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var buckets []ActivityBucket
	if err = cursor.All(ctx, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}
