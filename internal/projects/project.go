// Package projects tracks client work with a status, schedule and budget.
package projects

import (
	"time"

	"github.com/deskhub/deskhub/internal/store"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusOnHold    Status = "on_hold"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusOnHold, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

type Project struct {
	store.Meta  `bson:",inline"`
	Name        string     `json:"name" bson:"name"`
	Description string     `json:"description" bson:"description"`
	ContactID   string     `json:"contactId" bson:"contactId"`
	Status      Status     `json:"status" bson:"status"`
	StartDate   *time.Time `json:"startDate,omitempty" bson:"startDate"`
	DueDate     *time.Time `json:"dueDate,omitempty" bson:"dueDate"`
	BudgetCents int64      `json:"budgetCents" bson:"budgetCents"`
}

type Patch struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	ContactID   *string    `json:"contactId"`
	Status      *Status    `json:"status"`
	StartDate   *time.Time `json:"startDate"`
	DueDate     *time.Time `json:"dueDate"`
	BudgetCents *int64     `json:"budgetCents"`
}

type ListFilter struct {
	Status    Status
	ContactID string
	Search    string
}
