// Package contacts manages the tenant's address book. Every contact owns a
// client account in accounting that time logs and invoices hang off.
package contacts

import (
	"context"

	"github.com/deskhub/deskhub/internal/store"
)

type Contact struct {
	store.Meta      `bson:",inline"`
	Name            string   `json:"name" bson:"name"`
	Email           string   `json:"email" bson:"email"`
	Phone           string   `json:"phone" bson:"phone"`
	Company         string   `json:"company" bson:"company"`
	Address         string   `json:"address" bson:"address"`
	Notes           string   `json:"notes" bson:"notes"`
	Tags            []string `json:"tags" bson:"tags"`
	ClientAccountID string   `json:"clientAccountId" bson:"clientAccountId"`
}

// Patch lists the fields an update may change; nil fields are left alone.
type Patch struct {
	Name    *string   `json:"name"`
	Email   *string   `json:"email" binding:"omitempty,email"`
	Phone   *string   `json:"phone"`
	Company *string   `json:"company"`
	Address *string   `json:"address"`
	Notes   *string   `json:"notes"`
	Tags    *[]string `json:"tags"`
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	Search string
	Tag    string
	Limit  int
}

// AccountProvisioner maintains the client account shadowing each contact.
type AccountProvisioner interface {
	ProvisionAccount(ctx context.Context, tenant, contactID, name string) (string, error)
	RenameAccount(ctx context.Context, tenant, accountID, name string) error
	RemoveAccount(ctx context.Context, tenant, accountID string) error
}
