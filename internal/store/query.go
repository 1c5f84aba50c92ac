package store

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Query selects records of one tenant. AllTenants is reserved for background jobs.
type Query struct {
	Tenant     string
	AllTenants bool
	Eq         map[string]any
	In         map[string][]any
	Search     *Search
	Range      *TimeRange
	// Sort names a field; a leading "-" sorts descending.
	Sort  string
	Limit int
}

// TimeRange matches Field in [From, To). Zero bounds are open.
type TimeRange struct {
	Field string
	From  time.Time
	To    time.Time
}

// Search matches records where any of Fields contains Text, ignoring case.
type Search struct {
	Text   string
	Fields []string
}

func ForTenant(tenant string) Query { return Query{Tenant: tenant} }

// Everywhere returns a query spanning all tenants.
func Everywhere() Query { return Query{AllTenants: true} }

func (q Query) Where(field string, v any) Query {
	eq := make(map[string]any, len(q.Eq)+1)
	for k, x := range q.Eq {
		eq[k] = x
	}
	eq[field] = v
	q.Eq = eq
	return q
}

func (q Query) WhereIn(field string, vs ...any) Query {
	in := make(map[string][]any, len(q.In)+1)
	for k, x := range q.In {
		in[k] = x
	}
	in[field] = vs
	q.In = in
	return q
}

func (q Query) Between(field string, from, to time.Time) Query {
	q.Range = &TimeRange{Field: field, From: from, To: to}
	return q
}

func (q Query) Matching(text string, fields ...string) Query {
	text = strings.TrimSpace(text)
	if text == "" {
		q.Search = nil
		return q
	}
	q.Search = &Search{Text: text, Fields: fields}
	return q
}

func (q Query) SortBy(field string) Query {
	q.Sort = field
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

func (q Query) validate() error {
	if !q.AllTenants && q.Tenant == "" {
		return ErrNoTenant
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (q Query) filter() bson.D {
	f := bson.D{}
	if !q.AllTenants {
		f = append(f, bson.E{Key: "tenantId", Value: q.Tenant})
	}
	for _, k := range sortedKeys(q.Eq) {
		f = append(f, bson.E{Key: k, Value: q.Eq[k]})
	}
	for _, k := range sortedKeys(q.In) {
		f = append(f, bson.E{Key: k, Value: bson.M{"$in": q.In[k]}})
	}
	if q.Range != nil {
		r := bson.M{}
		if !q.Range.From.IsZero() {
			r["$gte"] = q.Range.From
		}
		if !q.Range.To.IsZero() {
			r["$lt"] = q.Range.To
		}
		if len(r) > 0 {
			f = append(f, bson.E{Key: q.Range.Field, Value: r})
		}
	}
	if q.Search != nil && len(q.Search.Fields) > 0 {
		or := bson.A{}
		pattern := regexp.QuoteMeta(q.Search.Text)
		for _, field := range q.Search.Fields {
			or = append(or, bson.M{field: bson.M{"$regex": pattern, "$options": "i"}})
		}
		f = append(f, bson.E{Key: "$or", Value: or})
	}
	return f
}

func (q Query) sortSpec() (field string, desc bool) {
	if q.Sort == "" {
		return "createdAt", false
	}
	if strings.HasPrefix(q.Sort, "-") {
		return q.Sort[1:], true
	}
	return q.Sort, false
}

func (q Query) sortDoc() bson.D {
	field, desc := q.sortSpec()
	dir := 1
	if desc {
		dir = -1
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: 1}}
}
