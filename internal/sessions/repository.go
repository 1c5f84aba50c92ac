package sessions

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Repository persists sessions by refresh-token digest. Lookups of unknown
// digests return (nil, nil).
type Repository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, digest string) (*Session, error)
	// Take removes and returns the session in one step so a refresh token
	// cannot be redeemed twice.
	Take(ctx context.Context, digest string) (*Session, error)
	Delete(ctx context.Context, digest string) error
	// DeleteBySub ends every session of a user.
	DeleteBySub(ctx context.Context, sub string) (int64, error)
}

// MongoRepository keeps sessions in a collection when Redis is not configured.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, s *Session) error {
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, digest string) (*Session, error) {
	return decodeSession(r.col.FindOne(ctx, bson.M{"_id": digest}))
}

func (r *MongoRepository) Take(ctx context.Context, digest string) (*Session, error) {
	return decodeSession(r.col.FindOneAndDelete(ctx, bson.M{"_id": digest}))
}

func (r *MongoRepository) Delete(ctx context.Context, digest string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": digest})
	return err
}

func (r *MongoRepository) DeleteBySub(ctx context.Context, sub string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"sub": sub})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func decodeSession(res *mongo.SingleResult) (*Session, error) {
	var s Session
	if err := res.Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
