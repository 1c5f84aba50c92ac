// Package mail keeps an outbox of messages and sends them through a Mailer.
package mail

import (
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/store"
)

type Status string

const (
	StatusDraft  Status = "draft"
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

var ErrNotEditable = fmt.Errorf("%w: only drafts can be changed", httpx.ErrState)

type Message struct {
	store.Meta `bson:",inline"`
	OwnerID    string     `json:"ownerId" bson:"ownerId"`
	To         []string   `json:"to" bson:"to"`
	Cc         []string   `json:"cc" bson:"cc"`
	Subject    string     `json:"subject" bson:"subject"`
	Body       string     `json:"body" bson:"body"`
	ContactID  string     `json:"contactId" bson:"contactId"`
	Status     Status     `json:"status" bson:"status"`
	SentAt     *time.Time `json:"sentAt,omitempty" bson:"sentAt"`
	Error      string     `json:"error,omitempty" bson:"error"`
}

type Draft struct {
	To        []string `json:"to"`
	Cc        []string `json:"cc"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	ContactID string   `json:"contactId"`
}

type Patch struct {
	To        *[]string `json:"to"`
	Cc        *[]string `json:"cc"`
	Subject   *string   `json:"subject"`
	Body      *string   `json:"body"`
	ContactID *string   `json:"contactId"`
}

// cleanAddresses trims, drops blanks and validates each address.
func cleanAddresses(field string, in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		parsed, err := netmail.ParseAddress(a)
		if err != nil {
			return nil, httpx.Invalidf("%s: %q is not a valid address", field, a)
		}
		out = append(out, parsed.Address)
	}
	return out, nil
}

// sendable checks what a message needs before it can go out.
func (m *Message) sendable() error {
	if len(m.To) == 0 {
		return httpx.Invalidf("at least one recipient is required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return httpx.Invalidf("subject is required")
	}
	return nil
}
