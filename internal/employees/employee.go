// Package employees keeps the staff directory.
package employees

import (
	"time"

	"github.com/deskhub/deskhub/internal/store"
)

type Employee struct {
	store.Meta      `bson:",inline"`
	FullName        string     `json:"fullName" bson:"fullName"`
	Email           string     `json:"email" bson:"email"`
	Phone           string     `json:"phone" bson:"phone"`
	Position        string     `json:"position" bson:"position"`
	Department      string     `json:"department" bson:"department"`
	HireDate        *time.Time `json:"hireDate,omitempty" bson:"hireDate"`
	Active          bool       `json:"active" bson:"active"`
	HourlyCostCents int64      `json:"hourlyCostCents" bson:"hourlyCostCents"`
}

type Patch struct {
	FullName        *string    `json:"fullName"`
	Email           *string    `json:"email" binding:"omitempty,email"`
	Phone           *string    `json:"phone"`
	Position        *string    `json:"position"`
	Department      *string    `json:"department"`
	HireDate        *time.Time `json:"hireDate"`
	Active          *bool      `json:"active"`
	HourlyCostCents *int64     `json:"hourlyCostCents"`
}

type ListFilter struct {
	Department string
	Active     *bool
	Search     string
}
