package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deskhub/deskhub/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollection stores records in a MongoDB collection. Every read and write
// is filtered by tenantId.
type MongoCollection[E any, P recordPtr[E]] struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoCollection[E any, P recordPtr[E]](db *mongo.Database, name string) *MongoCollection[E, P] {
	return &MongoCollection[E, P]{coll: db.Collection(name), now: time.Now}
}

func (m *MongoCollection[E, P]) Insert(ctx context.Context, rec *E) error {
	return m.insert(ctx, rec, "")
}

func (m *MongoCollection[E, P]) insert(ctx context.Context, rec *E, tenant string) error {
	prepareInsert[E, P](rec, tenant, m.now())
	if P(rec).RecordTenant() == "" {
		return ErrNoTenant
	}
	if _, err := m.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert %s: %w", P(rec).RecordID(), ErrConflict)
		}
		return err
	}
	return nil
}

func (m *MongoCollection[E, P]) Get(ctx context.Context, tenant, id string) (*E, error) {
	rec := new(E)
	err := m.coll.FindOne(ctx, bson.M{"_id": id, "tenantId": tenant}).Decode(rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *MongoCollection[E, P]) Find(ctx context.Context, q Query) ([]*E, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(q.sortDoc())
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := m.coll.Find(ctx, q.filter(), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*E{}
	for cur.Next(ctx) {
		rec := new(E)
		if err := cur.Decode(rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, cur.Err()
}

func (m *MongoCollection[E, P]) Count(ctx context.Context, q Query) (int64, error) {
	if err := q.validate(); err != nil {
		return 0, err
	}
	return m.coll.CountDocuments(ctx, q.filter())
}

func (m *MongoCollection[E, P]) Update(ctx context.Context, tenant, id string, set bson.M) (*E, error) {
	rec := new(E)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := m.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "tenantId": tenant},
		bson.M{"$set": sanitizeSet(set, m.now())},
		opts,
	).Decode(rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("update %s: %w", id, ErrConflict)
		}
		return nil, err
	}
	return rec, nil
}

func (m *MongoCollection[E, P]) Delete(ctx context.Context, tenant, id string) error {
	res, err := m.coll.DeleteOne(ctx, bson.M{"_id": id, "tenantId": tenant})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoCollection[E, P]) DeleteWhere(ctx context.Context, q Query) (int64, error) {
	if err := q.validate(); err != nil {
		return 0, err
	}
	res, err := m.coll.DeleteMany(ctx, q.filter())
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ReplaceWhere runs inside a transaction when the deployment supports one.
// Standalone servers fall back to delete-then-insert.
func (m *MongoCollection[E, P]) ReplaceWhere(ctx context.Context, q Query, recs []*E) (int64, error) {
	if err := q.validate(); err != nil {
		return 0, err
	}
	sess, err := m.coll.Database().Client().StartSession()
	if err != nil {
		return m.replace(ctx, q, recs)
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return m.replace(sc, q, recs)
	})
	if err != nil {
		if transactionsUnsupported(err) {
			logger.Warnf("store: transactions unavailable on %s, replacing without one", m.coll.Name())
			return m.replace(ctx, q, recs)
		}
		return 0, err
	}
	return res.(int64), nil
}

func (m *MongoCollection[E, P]) replace(ctx context.Context, q Query, recs []*E) (int64, error) {
	res, err := m.coll.DeleteMany(ctx, q.filter())
	if err != nil {
		return 0, err
	}
	for _, rec := range recs {
		if err := m.insert(ctx, rec, q.Tenant); err != nil {
			return 0, err
		}
	}
	return res.DeletedCount, nil
}

func transactionsUnsupported(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == 20 {
		return true
	}
	return strings.Contains(err.Error(), "Transaction numbers are only allowed")
}
