package accounting

import (
	"context"
	"strings"
	"time"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/store"
)

type TransactionFilter struct {
	Kind     TxKind
	From, To time.Time
	Category string
}

func (s *Service) CreateTransaction(ctx context.Context, tenant string, tx *Transaction) (*Transaction, error) {
	if tx.Kind != KindIncome && tx.Kind != KindExpense {
		return nil, httpx.Invalidf("kind must be income or expense")
	}
	if tx.AmountCents <= 0 {
		return nil, httpx.Invalidf("amountCents must be positive")
	}
	if tx.Date.IsZero() {
		tx.Date = s.now()
	}
	tx.Date = store.Now(tx.Date)
	tx.Category = strings.TrimSpace(tx.Category)
	tx.ID = ""
	tx.TenantID = tenant
	if err := s.st.Transactions.Insert(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Service) ListTransactions(ctx context.Context, tenant string, f TransactionFilter) ([]*Transaction, error) {
	q := store.ForTenant(tenant).SortBy("-date")
	if f.Kind != "" {
		q = q.Where("kind", string(f.Kind))
	}
	if f.Category != "" {
		q = q.Where("category", f.Category)
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		q = q.Between("date", f.From, f.To)
	}
	return s.st.Transactions.Find(ctx, q)
}

func (s *Service) DeleteTransaction(ctx context.Context, tenant, id string) error {
	return s.st.Transactions.Delete(ctx, tenant, id)
}

// Summary totals the ledger in [from, to) and the currently open receivables.
func (s *Service) Summary(ctx context.Context, tenant string, from, to time.Time) (*Summary, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, httpx.Invalidf("to must not be before from")
	}
	txs, err := s.ListTransactions(ctx, tenant, TransactionFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	sum := &Summary{From: from, To: to}
	for _, tx := range txs {
		switch tx.Kind {
		case KindIncome:
			sum.IncomeCents += tx.AmountCents
		case KindExpense:
			sum.ExpenseCents += tx.AmountCents
		}
	}
	sum.NetCents = sum.IncomeCents - sum.ExpenseCents

	open, err := s.st.Invoices.Find(ctx, store.ForTenant(tenant).Where("status", string(StatusSent)))
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, inv := range open {
		sum.OutstandingCents += inv.TotalCents
		if inv.DueDate.Before(now) {
			sum.OverdueCount++
		}
	}
	return sum, nil
}
