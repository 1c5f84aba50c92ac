package accounting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/store"
	"github.com/deskhub/deskhub/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	defaultDueDays  = 14
	maxNumberTries  = 3
	maxTaxRateBp    = 10000
	paymentCategory = "invoice payment"
)

// InvoiceDraft is the input for a new invoice.
type InvoiceDraft struct {
	AccountID string    `json:"accountId" binding:"required"`
	Lines     []Line    `json:"lines" binding:"required,min=1"`
	TaxRateBp int64     `json:"taxRateBp"`
	Currency  string    `json:"currency"`
	IssueDate time.Time `json:"issueDate"`
	DueDate   time.Time `json:"dueDate"`
	Notes     string    `json:"notes"`
}

type InvoicePatch struct {
	Lines     *[]Line    `json:"lines"`
	TaxRateBp *int64     `json:"taxRateBp"`
	IssueDate *time.Time `json:"issueDate"`
	DueDate   *time.Time `json:"dueDate"`
	Notes     *string    `json:"notes"`
}

type InvoiceFilter struct {
	Status    InvoiceStatus
	AccountID string
}

// computeTotals fills line amounts and the invoice totals.
func computeTotals(inv *Invoice) error {
	if inv.TaxRateBp < 0 || inv.TaxRateBp > maxTaxRateBp {
		return httpx.Invalidf("taxRateBp must be between 0 and %d", maxTaxRateBp)
	}
	if len(inv.Lines) == 0 {
		return httpx.Invalidf("an invoice needs at least one line")
	}
	var subtotal int64
	for i := range inv.Lines {
		l := &inv.Lines[i]
		l.Description = strings.TrimSpace(l.Description)
		if l.Description == "" {
			return httpx.Invalidf("line %d: description is required", i+1)
		}
		if l.Quantity <= 0 {
			return httpx.Invalidf("line %d: quantity must be positive", i+1)
		}
		if l.UnitPriceCents < 0 {
			return httpx.Invalidf("line %d: unit price must not be negative", i+1)
		}
		l.AmountCents = int64(math.Round(l.Quantity * float64(l.UnitPriceCents)))
		subtotal += l.AmountCents
	}
	inv.SubtotalCents = subtotal
	inv.TaxCents = int64(math.Round(float64(subtotal*inv.TaxRateBp) / 10000))
	inv.TotalCents = inv.SubtotalCents + inv.TaxCents
	return nil
}

func (s *Service) CreateInvoice(ctx context.Context, tenant string, d InvoiceDraft) (*Invoice, error) {
	acct, err := s.requireAccount(ctx, tenant, d.AccountID)
	if err != nil {
		return nil, err
	}
	inv := &Invoice{
		AccountID: acct.ID,
		ContactID: acct.ContactID,
		Lines:     append([]Line(nil), d.Lines...),
		TaxRateBp: d.TaxRateBp,
		Currency:  acct.Currency,
		Status:    StatusDraft,
		IssueDate: d.IssueDate,
		DueDate:   d.DueDate,
		Notes:     d.Notes,
	}
	if d.Currency != "" {
		if inv.Currency, err = normalizeCurrency(d.Currency); err != nil {
			return nil, err
		}
	}
	if err := s.fillDates(inv, defaultDueDays); err != nil {
		return nil, err
	}
	if err := computeTotals(inv); err != nil {
		return nil, err
	}
	if err := s.insertNumbered(ctx, tenant, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) fillDates(inv *Invoice, dueDays int) error {
	if inv.IssueDate.IsZero() {
		inv.IssueDate = s.now()
	}
	inv.IssueDate = store.Now(inv.IssueDate)
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.IssueDate.AddDate(0, 0, dueDays)
	}
	inv.DueDate = store.Now(inv.DueDate)
	if inv.DueDate.Before(inv.IssueDate) {
		return httpx.Invalidf("dueDate must not be before issueDate")
	}
	return nil
}

// insertNumbered assigns the next invoice number and inserts, retrying when
// another invoice took the number first.
func (s *Service) insertNumbered(ctx context.Context, tenant string, inv *Invoice) error {
	year := inv.IssueDate.Year()
	for attempt := 1; ; attempt++ {
		seq, err := s.seq.Next(ctx, tenant, year)
		if err != nil {
			return fmt.Errorf("next invoice number: %w", err)
		}
		inv.Number = FormatNumber(year, seq)
		inv.Year, inv.Seq = year, seq
		inv.ID = ""
		inv.TenantID = tenant
		taken, err := s.st.Invoices.Count(ctx, store.ForTenant(tenant).Where("number", inv.Number))
		if err != nil {
			return err
		}
		if taken == 0 {
			err = s.st.Invoices.Insert(ctx, inv)
			if err == nil {
				return nil
			}
			if !errors.Is(err, store.ErrConflict) {
				return err
			}
		}
		if attempt == maxNumberTries {
			return fmt.Errorf("invoice number %s: %w", inv.Number, store.ErrConflict)
		}
		logger.Warnf("accounting: invoice number %s taken, retrying", inv.Number)
	}
}

func (s *Service) GetInvoice(ctx context.Context, tenant, id string) (*Invoice, error) {
	return s.st.Invoices.Get(ctx, tenant, id)
}

func (s *Service) ListInvoices(ctx context.Context, tenant string, f InvoiceFilter) ([]*Invoice, error) {
	q := store.ForTenant(tenant).SortBy("-issueDate")
	if f.Status != "" {
		q = q.Where("status", string(f.Status))
	}
	if f.AccountID != "" {
		q = q.Where("accountId", f.AccountID)
	}
	return s.st.Invoices.Find(ctx, q)
}

func (s *Service) draft(ctx context.Context, tenant, id string) (*Invoice, error) {
	inv, err := s.st.Invoices.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusDraft {
		return nil, fmt.Errorf("%w %s is %s, only drafts can change", ErrInvoiceState, inv.Number, inv.Status)
	}
	return inv, nil
}

func (s *Service) UpdateInvoice(ctx context.Context, tenant, id string, p InvoicePatch) (*Invoice, error) {
	inv, err := s.draft(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	var released []string
	if p.Lines != nil {
		inv.Lines, released = replaceLines(inv.Lines, *p.Lines)
	}
	if p.TaxRateBp != nil {
		inv.TaxRateBp = *p.TaxRateBp
	}
	if p.IssueDate != nil {
		inv.IssueDate = *p.IssueDate
	}
	if p.DueDate != nil {
		inv.DueDate = *p.DueDate
	}
	if p.Notes != nil {
		inv.Notes = *p.Notes
	}
	if err := s.fillDates(inv, defaultDueDays); err != nil {
		return nil, err
	}
	if err := computeTotals(inv); err != nil {
		return nil, err
	}
	updated, err := s.st.Invoices.Update(ctx, tenant, id, bson.M{
		"lines":         inv.Lines,
		"taxRateBp":     inv.TaxRateBp,
		"subtotalCents": inv.SubtotalCents,
		"taxCents":      inv.TaxCents,
		"totalCents":    inv.TotalCents,
		"issueDate":     inv.IssueDate,
		"dueDate":       inv.DueDate,
		"notes":         inv.Notes,
	})
	if err != nil {
		return nil, err
	}
	for _, logID := range released {
		if _, err := s.st.TimeLogs.Update(ctx, tenant, logID, bson.M{"invoiceId": ""}); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("release time log %s: %w", logID, err)
		}
	}
	return updated, nil
}

// replaceLines returns next with time-log links limited to logs already billed
// on the invoice, and the ids of billed logs no longer referenced.
func replaceLines(cur, next []Line) ([]Line, []string) {
	billed := map[string]bool{}
	for _, l := range cur {
		if l.TimeLogID != "" {
			billed[l.TimeLogID] = true
		}
	}
	kept := map[string]bool{}
	out := append([]Line(nil), next...)
	for i := range out {
		id := out[i].TimeLogID
		if !billed[id] || kept[id] {
			out[i].TimeLogID = ""
			continue
		}
		kept[id] = true
	}
	var released []string
	for _, l := range cur {
		if l.TimeLogID != "" && !kept[l.TimeLogID] {
			released = append(released, l.TimeLogID)
		}
	}
	return out, released
}

// DeleteInvoice removes a draft and releases the time logs billed on it.
func (s *Service) DeleteInvoice(ctx context.Context, tenant, id string) error {
	if _, err := s.draft(ctx, tenant, id); err != nil {
		return err
	}
	if err := s.releaseTimeLogs(ctx, tenant, id); err != nil {
		return err
	}
	return s.st.Invoices.Delete(ctx, tenant, id)
}

func (s *Service) transition(ctx context.Context, tenant, id string, to InvoiceStatus, extra map[string]any) (*Invoice, error) {
	inv, err := s.st.Invoices.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if !inv.Status.CanBecome(to) {
		return nil, fmt.Errorf("%w %s cannot go from %s to %s", ErrInvoiceState, inv.Number, inv.Status, to)
	}
	set := bson.M{"status": string(to)}
	for k, v := range extra {
		set[k] = v
	}
	return s.st.Invoices.Update(ctx, tenant, id, set)
}

func (s *Service) SendInvoice(ctx context.Context, tenant, id string) (*Invoice, error) {
	return s.transition(ctx, tenant, id, StatusSent, nil)
}

// MarkPaid settles a sent invoice and books the income. The ledger entry is
// written first and removed again if the status change fails.
func (s *Service) MarkPaid(ctx context.Context, tenant, id string, paidAt time.Time) (*Invoice, error) {
	cur, err := s.st.Invoices.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if !cur.Status.CanBecome(StatusPaid) {
		return nil, fmt.Errorf("%w %s cannot go from %s to %s", ErrInvoiceState, cur.Number, cur.Status, StatusPaid)
	}
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	paidAt = store.Now(paidAt)

	var booked *Transaction
	if cur.TotalCents > 0 {
		booked, err = s.CreateTransaction(ctx, tenant, &Transaction{
			Date:        paidAt,
			Kind:        KindIncome,
			Category:    paymentCategory,
			AmountCents: cur.TotalCents,
			Description: "Payment " + cur.Number,
			AccountID:   cur.AccountID,
			InvoiceID:   cur.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("book payment of %s: %w", cur.Number, err)
		}
	}
	inv, err := s.transition(ctx, tenant, id, StatusPaid, map[string]any{"paidAt": paidAt})
	if err != nil {
		if booked != nil {
			if derr := s.st.Transactions.Delete(ctx, tenant, booked.ID); derr != nil {
				logger.Errorf("accounting: payment %s left without paid invoice: %v", booked.ID, derr)
			}
		}
		return nil, err
	}
	return inv, nil
}

// VoidInvoice cancels a draft or sent invoice; its time logs become billable again.
func (s *Service) VoidInvoice(ctx context.Context, tenant, id string) (*Invoice, error) {
	inv, err := s.transition(ctx, tenant, id, StatusVoid, nil)
	if err != nil {
		return nil, err
	}
	if err := s.releaseTimeLogs(ctx, tenant, id); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) releaseTimeLogs(ctx context.Context, tenant, invoiceID string) error {
	logs, err := s.st.TimeLogs.Find(ctx, store.ForTenant(tenant).Where("invoiceId", invoiceID))
	if err != nil {
		return err
	}
	for _, l := range logs {
		if _, err := s.st.TimeLogs.Update(ctx, tenant, l.ID, bson.M{"invoiceId": ""}); err != nil {
			return fmt.Errorf("release time log %s: %w", l.ID, err)
		}
	}
	return nil
}

// InvoiceFromTimeLogs bills every unbilled, billable time log of the account
// dated before through, one line per log at the account's hourly rate.
func (s *Service) InvoiceFromTimeLogs(ctx context.Context, tenant, accountID string, through time.Time, taxRateBp int64, dueDays int) (*Invoice, error) {
	acct, err := s.requireAccount(ctx, tenant, accountID)
	if err != nil {
		return nil, err
	}
	if through.IsZero() {
		through = s.now()
	}
	if dueDays <= 0 {
		dueDays = defaultDueDays
	}
	logs, err := s.st.TimeLogs.Find(ctx, store.ForTenant(tenant).
		Where("accountId", accountID).
		Where("invoiceId", "").
		Where("billable", true).
		Between("date", time.Time{}, through).
		SortBy("date"))
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, ErrNothingToBill
	}

	inv := &Invoice{
		AccountID: acct.ID,
		ContactID: acct.ContactID,
		TaxRateBp: taxRateBp,
		Currency:  acct.Currency,
		Status:    StatusDraft,
	}
	for _, l := range logs {
		desc := l.Description
		if desc == "" {
			desc = "Work"
		}
		inv.Lines = append(inv.Lines, Line{
			Description:    fmt.Sprintf("%s (%s)", desc, l.Date.Format("2006-01-02")),
			Quantity:       math.Round(float64(l.Minutes)/60*100) / 100,
			UnitPriceCents: acct.HourlyRateCents,
			TimeLogID:      l.ID,
		})
	}
	if err := s.fillDates(inv, dueDays); err != nil {
		return nil, err
	}
	if err := computeTotals(inv); err != nil {
		return nil, err
	}
	if err := s.insertNumbered(ctx, tenant, inv); err != nil {
		return nil, err
	}
	for _, l := range logs {
		if _, err := s.st.TimeLogs.Update(ctx, tenant, l.ID, bson.M{"invoiceId": inv.ID}); err != nil {
			return nil, fmt.Errorf("mark time log %s billed: %w", l.ID, err)
		}
	}
	return inv, nil
}
