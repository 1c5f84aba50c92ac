package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryCollection keeps records as BSON documents so queries behave like the
// Mongo-backed collection. Used for tests and for running without a database.
type MemoryCollection[E any, P recordPtr[E]] struct {
	mu   sync.RWMutex
	docs map[string]bson.Raw
	now  func() time.Time
}

func NewMemoryCollection[E any, P recordPtr[E]]() *MemoryCollection[E, P] {
	return &MemoryCollection[E, P]{docs: make(map[string]bson.Raw), now: time.Now}
}

func (m *MemoryCollection[E, P]) Insert(ctx context.Context, rec *E) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(rec, "")
}

func (m *MemoryCollection[E, P]) insertLocked(rec *E, tenant string) error {
	prepareInsert[E, P](rec, tenant, m.now())
	p := P(rec)
	if p.RecordTenant() == "" {
		return ErrNoTenant
	}
	if _, ok := m.docs[p.RecordID()]; ok {
		return fmt.Errorf("insert %s: %w", p.RecordID(), ErrConflict)
	}
	raw, err := bson.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	m.docs[p.RecordID()] = raw
	return nil
}

func (m *MemoryCollection[E, P]) Get(ctx context.Context, tenant, id string) (*E, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.docs[id]
	if !ok || !ownedBy(raw, tenant) {
		return nil, ErrNotFound
	}
	return decode[E](raw)
}

func (m *MemoryCollection[E, P]) Find(ctx context.Context, q Query) ([]*E, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched, err := m.match(q)
	if err != nil {
		return nil, err
	}
	sortDocs(matched, q)
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	out := make([]*E, 0, len(matched))
	for _, d := range matched {
		rec, err := decode[E](d.raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *MemoryCollection[E, P]) Count(ctx context.Context, q Query) (int64, error) {
	if err := q.validate(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched, err := m.match(q)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (m *MemoryCollection[E, P]) Update(ctx context.Context, tenant, id string, set bson.M) (*E, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[id]
	if !ok || !ownedBy(raw, tenant) {
		return nil, ErrNotFound
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	for k, v := range sanitizeSet(set, m.now()) {
		doc[k] = v
	}
	updated, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode update: %w", err)
	}
	rec, err := decode[E](updated)
	if err != nil {
		return nil, err
	}
	// re-encode through the struct so unknown keys are dropped like a typed read would
	canonical, err := bson.Marshal(rec)
	if err != nil {
		return nil, err
	}
	m.docs[id] = canonical
	return rec, nil
}

func (m *MemoryCollection[E, P]) Delete(ctx context.Context, tenant, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[id]
	if !ok || !ownedBy(raw, tenant) {
		return ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *MemoryCollection[E, P]) DeleteWhere(ctx context.Context, q Query) (int64, error) {
	if err := q.validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(q)
}

func (m *MemoryCollection[E, P]) deleteLocked(q Query) (int64, error) {
	matched, err := m.match(q)
	if err != nil {
		return 0, err
	}
	for _, d := range matched {
		delete(m.docs, d.id)
	}
	return int64(len(matched)), nil
}

func (m *MemoryCollection[E, P]) ReplaceWhere(ctx context.Context, q Query, recs []*E) (int64, error) {
	if err := q.validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string]bson.Raw, len(m.docs))
	for k, v := range m.docs {
		snapshot[k] = v
	}
	deleted, err := m.deleteLocked(q)
	if err != nil {
		return 0, err
	}
	for _, rec := range recs {
		if err := m.insertLocked(rec, q.Tenant); err != nil {
			m.docs = snapshot
			return 0, err
		}
	}
	return deleted, nil
}

type memDoc struct {
	id  string
	raw bson.Raw
	doc bson.M
}

func (m *MemoryCollection[E, P]) match(q Query) ([]memDoc, error) {
	var out []memDoc
	for id, raw := range m.docs {
		var doc bson.M
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		if matches(doc, q) {
			out = append(out, memDoc{id: id, raw: raw, doc: doc})
		}
	}
	return out, nil
}

func decode[E any](raw bson.Raw) (*E, error) {
	rec := new(E)
	if err := bson.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func ownedBy(raw bson.Raw, tenant string) bool {
	v, err := raw.LookupErr("tenantId")
	if err != nil {
		return false
	}
	s, ok := v.StringValueOK()
	return ok && s == tenant
}

func matches(doc bson.M, q Query) bool {
	if !q.AllTenants && doc["tenantId"] != q.Tenant {
		return false
	}
	for field, want := range q.Eq {
		if !valueMatches(doc[field], normalize(want)) {
			return false
		}
	}
	for field, wants := range q.In {
		hit := false
		for _, w := range wants {
			if valueMatches(doc[field], normalize(w)) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if r := q.Range; r != nil {
		dt, ok := doc[r.Field].(primitive.DateTime)
		if !ok {
			return false
		}
		t := dt.Time()
		if !r.From.IsZero() && t.Before(Now(r.From)) {
			return false
		}
		if !r.To.IsZero() && !t.Before(Now(r.To)) {
			return false
		}
	}
	if s := q.Search; s != nil && len(s.Fields) > 0 {
		needle := strings.ToLower(s.Text)
		hit := false
		for _, f := range s.Fields {
			if str, ok := doc[f].(string); ok && strings.Contains(strings.ToLower(str), needle) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// normalize converts a Go value to the representation bson.Unmarshal yields for it.
func normalize(v any) any {
	raw, err := bson.Marshal(bson.M{"v": v})
	if err != nil {
		return v
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return v
	}
	return m["v"]
}

// valueMatches mirrors Mongo equality: array fields match when any element is equal.
func valueMatches(have, want any) bool {
	if arr, ok := have.(primitive.A); ok {
		if _, wantArr := want.(primitive.A); !wantArr {
			for _, el := range arr {
				if reflect.DeepEqual(el, want) {
					return true
				}
			}
			return false
		}
	}
	return reflect.DeepEqual(have, want)
}

func sortDocs(docs []memDoc, q Query) {
	field, desc := q.sortSpec()
	sort.SliceStable(docs, func(i, j int) bool {
		c := compareValues(docs[i].doc[field], docs[j].doc[field])
		if c == 0 {
			return docs[i].id < docs[j].id
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b any) int {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case primitive.DateTime:
		if y, ok := b.(primitive.DateTime); ok {
			return cmpOrdered(int64(x), int64(y))
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmpOrdered(fa, fb)
		}
	}
	// missing values sort first
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
