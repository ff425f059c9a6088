package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/learnhub/learnhub/pkg/repository"
	"github.com/learnhub/learnhub/pkg/observability/tracing"
	mongostore "github.com/learnhub/learnhub/pkg/store/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding notifications.
const CollectionName = "notifications"

// MongoRepository stores notifications in MongoDB.
type MongoRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoRepository binds the repository to the adapter's database.
func NewMongoRepository(adapter *mongostore.Adapter) (*MongoRepository, error) {
	if adapter == nil {
		return nil, errors.New("mongodb adapter is required")
	}
	return &MongoRepository{collection: adapter.Collection(CollectionName), timeout: adapter.OperationTimeout()}, nil
}

// EnsureIndexes creates the per-user listing indexes.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := mongostore.WithOperationTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("user_created")},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "read", Value: 1}}, Options: options.Index().SetName("user_read")},
	})
	if err != nil {
		return fmt.Errorf("create notification indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Insert(ctx context.Context, n *Notification) (err error) {
	if err := n.Validate(); err != nil {
		return err
	}
	ctx, end := mongostore.Operation(ctx, r.timeout, CollectionName, tracing.SpanOperationDBInsert)
	defer func() { end(err) }()
	if _, err := r.collection.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, userID string, page repository.Pagination) (_ *Page, err error) {
	ctx, end := mongostore.Operation(ctx, r.timeout, CollectionName, tracing.SpanOperationDBQuery)
	defer func() { end(err) }()

	filter := bson.M{"userId": userID}
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}
	out := &Page{Notifications: []Notification{}, Pagination: page.Info(total)}
	if int64(page.Offset()) >= total {
		return out, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit()))
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	if err := cursor.All(ctx, &out.Notifications); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return out, nil
}

func (r *MongoRepository) MarkRead(ctx context.Context, userID, id string) (err error) {
	ctx, end := mongostore.Operation(ctx, r.timeout, CollectionName, tracing.SpanOperationDBUpdate)
	defer func() { end(err) }()
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "userId": userID}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) MarkAllRead(ctx context.Context, userID string) (_ int64, err error) {
	ctx, end := mongostore.Operation(ctx, r.timeout, CollectionName, tracing.SpanOperationDBUpdate)
	defer func() { end(err) }()
	res, err := r.collection.UpdateMany(ctx, bson.M{"userId": userID, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *MongoRepository) UnreadCount(ctx context.Context, userID string) (_ int64, err error) {
	ctx, end := mongostore.Operation(ctx, r.timeout, CollectionName, tracing.SpanOperationDBQuery)
	defer func() { end(err) }()
	n, err := r.collection.CountDocuments(ctx, bson.M{"userId": userID, "read": false})
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}
