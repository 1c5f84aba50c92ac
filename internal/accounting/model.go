// Package accounting keeps the tenant's books: client accounts, billable time,
// invoices and the income/expense ledger.
package accounting

import (
	"fmt"
	"time"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/store"
	"go.mongodb.org/mongo-driver/mongo"
)

const DefaultCurrency = "EUR"

var (
	ErrInvoiceState  = fmt.Errorf("%w: invoice", httpx.ErrState)
	ErrNothingToBill = httpx.Invalidf("no unbilled time logs")
)

// ClientAccount shadows a contact so time and invoices can be booked against it.
type ClientAccount struct {
	store.Meta      `bson:",inline"`
	ContactID       string `json:"contactId" bson:"contactId"`
	Name            string `json:"name" bson:"name"`
	HourlyRateCents int64  `json:"hourlyRateCents" bson:"hourlyRateCents"`
	Currency        string `json:"currency" bson:"currency"`
}

type TimeLog struct {
	store.Meta  `bson:",inline"`
	AccountID   string    `json:"accountId" bson:"accountId"`
	ProjectID   string    `json:"projectId" bson:"projectId"`
	UserID      string    `json:"userId" bson:"userId"`
	Date        time.Time `json:"date" bson:"date"`
	Minutes     int       `json:"minutes" bson:"minutes"`
	Description string    `json:"description" bson:"description"`
	Billable    bool      `json:"billable" bson:"billable"`
	InvoiceID   string    `json:"invoiceId" bson:"invoiceId"`
}

type InvoiceStatus string

const (
	StatusDraft InvoiceStatus = "draft"
	StatusSent  InvoiceStatus = "sent"
	StatusPaid  InvoiceStatus = "paid"
	StatusVoid  InvoiceStatus = "void"
)

// transitions lists the statuses reachable from each status.
var transitions = map[InvoiceStatus][]InvoiceStatus{
	StatusDraft: {StatusSent, StatusVoid},
	StatusSent:  {StatusPaid, StatusVoid},
}

func (s InvoiceStatus) CanBecome(next InvoiceStatus) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

type Line struct {
	Description    string  `json:"description" bson:"description"`
	Quantity       float64 `json:"quantity" bson:"quantity"`
	UnitPriceCents int64   `json:"unitPriceCents" bson:"unitPriceCents"`
	AmountCents    int64   `json:"amountCents" bson:"amountCents"`
	TimeLogID      string  `json:"timeLogId,omitempty" bson:"timeLogId"`
}

type Invoice struct {
	store.Meta    `bson:",inline"`
	Number        string        `json:"number" bson:"number"`
	Year          int           `json:"year" bson:"year"`
	Seq           int64         `json:"seq" bson:"seq"`
	AccountID     string        `json:"accountId" bson:"accountId"`
	ContactID     string        `json:"contactId" bson:"contactId"`
	Lines         []Line        `json:"lines" bson:"lines"`
	SubtotalCents int64         `json:"subtotalCents" bson:"subtotalCents"`
	TaxRateBp     int64         `json:"taxRateBp" bson:"taxRateBp"`
	TaxCents      int64         `json:"taxCents" bson:"taxCents"`
	TotalCents    int64         `json:"totalCents" bson:"totalCents"`
	Currency      string        `json:"currency" bson:"currency"`
	Status        InvoiceStatus `json:"status" bson:"status"`
	IssueDate     time.Time     `json:"issueDate" bson:"issueDate"`
	DueDate       time.Time     `json:"dueDate" bson:"dueDate"`
	PaidAt        *time.Time    `json:"paidAt,omitempty" bson:"paidAt"`
	Notes         string        `json:"notes" bson:"notes"`
}

type TxKind string

const (
	KindIncome  TxKind = "income"
	KindExpense TxKind = "expense"
)

// Transaction is one ledger entry. Amounts are always positive; Kind gives the sign.
type Transaction struct {
	store.Meta  `bson:",inline"`
	Date        time.Time `json:"date" bson:"date"`
	Kind        TxKind    `json:"kind" bson:"kind"`
	Category    string    `json:"category" bson:"category"`
	AmountCents int64     `json:"amountCents" bson:"amountCents"`
	Description string    `json:"description" bson:"description"`
	AccountID   string    `json:"accountId" bson:"accountId"`
	InvoiceID   string    `json:"invoiceId" bson:"invoiceId"`
}

type Summary struct {
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	IncomeCents      int64     `json:"incomeCents"`
	ExpenseCents     int64     `json:"expenseCents"`
	NetCents         int64     `json:"netCents"`
	OutstandingCents int64     `json:"outstandingCents"`
	OverdueCount     int       `json:"overdueCount"`
}

// Stores groups the collections the service writes to.
type Stores struct {
	Accounts     store.Collection[ClientAccount]
	TimeLogs     store.Collection[TimeLog]
	Invoices     store.Collection[Invoice]
	Transactions store.Collection[Transaction]
}

// MemoryStores returns in-memory collections for every accounting record type.
func MemoryStores() Stores {
	return Stores{
		Accounts:     store.NewMemoryCollection[ClientAccount](),
		TimeLogs:     store.NewMemoryCollection[TimeLog](),
		Invoices:     store.NewMemoryCollection[Invoice](),
		Transactions: store.NewMemoryCollection[Transaction](),
	}
}

// MongoStores binds the accounting records to their MongoDB collections.
func MongoStores(db *mongo.Database) Stores {
	return Stores{
		Accounts:     store.NewMongoCollection[ClientAccount](db, "client_accounts"),
		TimeLogs:     store.NewMongoCollection[TimeLog](db, "time_logs"),
		Invoices:     store.NewMongoCollection[Invoice](db, "invoices"),
		Transactions: store.NewMongoCollection[Transaction](db, "transactions"),
	}
}
