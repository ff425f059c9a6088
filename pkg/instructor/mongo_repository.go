package instructor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/learnhub/learnhub/pkg/observability/tracing"
	mongostore "github.com/learnhub/learnhub/pkg/store/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding instructors.
const CollectionName = "instructors"

// MongoRepository stores instructors in MongoDB.
type MongoRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoRepository binds the repository to the adapter's database.
func NewMongoRepository(adapter *mongostore.Adapter) (*MongoRepository, error) {
	if adapter == nil {
		return nil, errors.New("mongodb adapter is required")
	}
	return &MongoRepository{
		collection: adapter.Collection(CollectionName),
		timeout:    adapter.OperationTimeout(),
	}, nil
}

// EnsureIndexes creates the unique email index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := mongostore.WithOperationTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "declinedAt", Value: 1}}, Options: options.Index().SetName("status_declined")},
	})
	if err != nil {
		return fmt.Errorf("create instructor indexes: %w", err)
	}
	return nil
}

// Create inserts a new instructor.
func (r *MongoRepository) Create(ctx context.Context, in *Instructor) (err error) {
	if err := in.Validate(); err != nil {
		return err
	}
	ctx, end := mongostore.Operation(ctx, r.timeout, CollectionName, tracing.SpanOperationDBInsert)
	defer func() { end(err) }()

	doc := *in
	doc.Email = NormalizeEmail(doc.Email)
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert instructor: %w", err)
	}
	return nil
}

// Get loads an instructor by id.
func (r *MongoRepository) Get(ctx context.Context, id string) (*Instructor, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail loads an instructor by normalized email.
func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (*Instructor, error) {
	return r.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (_ *Instructor, err error) {
	ctx, end := mongostore.Operation(ctx, r.timeout, CollectionName, tracing.SpanOperationDBQuery)
	defer func() { end(err) }()

	var out Instructor
	if err := r.collection.FindOne(ctx, filter).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find instructor: %w", err)
	}
	return &out, nil
}

// SetResumeURL stores the uploaded resume location.
func (r *MongoRepository) SetResumeURL(ctx context.Context, id, url string) (err error) {
	ctx, end := mongostore.Operation(ctx, r.timeout, CollectionName, tracing.SpanOperationDBUpdate)
	defer func() { end(err) }()

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"resumeUrl": url, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("update instructor resume: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus changes the status atomically when the current one is in from.
func (r *MongoRepository) UpdateStatus(ctx context.Context, id string, from []Status, to Status, at time.Time) (err error) {
	ctx, end := mongostore.Operation(ctx, r.timeout, CollectionName, tracing.SpanOperationDBUpdate)
	defer func() { end(err) }()

	update := bson.M{"$set": bson.M{"status": to, "updatedAt": at}}
	if to == StatusRejected {
		update["$set"].(bson.M)["declinedAt"] = at
	} else {
		update["$unset"] = bson.M{"declinedAt": ""}
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": bson.M{"$in": from}}, update)
	if err != nil {
		return fmt.Errorf("update instructor status: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

// DeleteDeclined removes the instructor in one conditional DeleteOne, so a
// reinstate that lands after the caller's read is never overridden.
func (r *MongoRepository) DeleteDeclined(ctx context.Context, id string, declinedAt *time.Time) (err error) {
	ctx, end := mongostore.Operation(ctx, r.timeout, CollectionName, tracing.SpanOperationDBDelete)
	defer func() { end(err) }()

	filter := bson.M{"_id": id, "status": StatusRejected}
	if declinedAt != nil {
		filter["declinedAt"] = bson.M{"$lte": *declinedAt}
	}
	res, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete instructor: %w", err)
	}
	if res.DeletedCount > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}
