package accounting

import (
	"context"
	"fmt"

	"github.com/deskhub/deskhub/internal/store"
	"github.com/redis/go-redis/v9"
)

// Sequencer hands out invoice sequence numbers per tenant and year.
type Sequencer interface {
	Next(ctx context.Context, tenant string, year int) (int64, error)
}

// RedisSequencer increments a counter key per tenant and year. A missing key
// is seeded from the highest stored sequence, so a flushed Redis or a tenant
// that was numbered without Redis continues where the stored invoices end.
type RedisSequencer struct {
	client *redis.Client
	stored *StoreSequencer
}

func NewRedisSequencer(client *redis.Client, invoices store.Collection[Invoice]) *RedisSequencer {
	r := &RedisSequencer{client: client}
	if invoices != nil {
		r.stored = NewStoreSequencer(invoices)
	}
	return r
}

func (r *RedisSequencer) Next(ctx context.Context, tenant string, year int) (int64, error) {
	key := fmt.Sprintf("invoice-seq:%s:%d", tenant, year)
	if r.stored != nil {
		n, err := r.client.Exists(ctx, key).Result()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			next, err := r.stored.Next(ctx, tenant, year)
			if err != nil {
				return 0, err
			}
			if err := r.client.SetNX(ctx, key, next-1, 0).Err(); err != nil {
				return 0, err
			}
		}
	}
	return r.client.Incr(ctx, key).Result()
}

// StoreSequencer derives the next number from the highest stored sequence of
// the year. Used without Redis; concurrent callers may collide and retry.
type StoreSequencer struct {
	invoices store.Collection[Invoice]
}

func NewStoreSequencer(invoices store.Collection[Invoice]) *StoreSequencer {
	return &StoreSequencer{invoices: invoices}
}

func (s *StoreSequencer) Next(ctx context.Context, tenant string, year int) (int64, error) {
	last, err := s.invoices.Find(ctx, store.ForTenant(tenant).Where("year", year).SortBy("-seq").Take(1))
	if err != nil {
		return 0, err
	}
	if len(last) == 0 {
		return 1, nil
	}
	return last[0].Seq + 1, nil
}

func numberPrefix(year int) string { return fmt.Sprintf("INV-%d-", year) }

// FormatNumber renders INV-<year>-<seq> with at least four sequence digits.
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("%s%04d", numberPrefix(year), seq)
}
