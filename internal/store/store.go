// Package store provides tenant-scoped record collections backed either by a
// MongoDB collection or by an in-memory map with identical query semantics.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
	ErrNoTenant = errors.New("query is not scoped to a tenant")
)

// Record is implemented by every persisted domain type through an embedded Meta.
type Record interface {
	RecordID() string
	SetRecordID(id string)
	RecordTenant() string
	SetRecordTenant(tenant string)
	Touch(now time.Time)
}

// Meta carries the fields shared by all records. Embed it with `bson:",inline"`.
type Meta struct {
	ID        string    `json:"id" bson:"_id"`
	TenantID  string    `json:"tenantId" bson:"tenantId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (m *Meta) RecordID() string         { return m.ID }
func (m *Meta) SetRecordID(id string)    { m.ID = id }
func (m *Meta) RecordTenant() string     { return m.TenantID }
func (m *Meta) SetRecordTenant(t string) { m.TenantID = t }

// Touch stamps UpdatedAt (and CreatedAt on first write) at the storage precision.
func (m *Meta) Touch(now time.Time) {
	now = Now(now)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
}

// Now normalizes t to UTC millisecond precision, the resolution BSON dates keep.
func Now(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// NewID returns a fresh record id.
func NewID() string { return uuid.NewString() }

type recordPtr[E any] interface {
	*E
	Record
}

// Collection is the persistence surface used by domain services.
type Collection[E any] interface {
	Insert(ctx context.Context, rec *E) error
	Get(ctx context.Context, tenant, id string) (*E, error)
	Find(ctx context.Context, q Query) ([]*E, error)
	Count(ctx context.Context, q Query) (int64, error)
	// Update applies a partial $set and returns the updated record.
	Update(ctx context.Context, tenant, id string, set bson.M) (*E, error)
	Delete(ctx context.Context, tenant, id string) error
	DeleteWhere(ctx context.Context, q Query) (int64, error)
	// ReplaceWhere atomically deletes every record matching q and inserts recs.
	ReplaceWhere(ctx context.Context, q Query, recs []*E) (int64, error)
}

// protected fields are never changed by Update.
var protected = map[string]bool{"_id": true, "tenantId": true, "createdAt": true}

func sanitizeSet(set bson.M, now time.Time) bson.M {
	out := bson.M{}
	for k, v := range set {
		if protected[k] {
			continue
		}
		out[k] = v
	}
	out["updatedAt"] = Now(now)
	return out
}

func prepareInsert[E any, P recordPtr[E]](rec *E, tenant string, now time.Time) {
	p := P(rec)
	if p.RecordID() == "" {
		p.SetRecordID(NewID())
	}
	if tenant != "" {
		p.SetRecordTenant(tenant)
	}
	p.Touch(now)
}
