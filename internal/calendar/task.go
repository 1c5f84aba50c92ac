// Package calendar stores tasks and events on the tenant's shared calendar.
// Ritual tasks are written by the rituals package and are read-only here
// except for their done flag.
package calendar

import (
	"fmt"
	"time"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/store"
)

const DefaultDuration = 30 * time.Minute

var (
	ErrInvalidRange = fmt.Errorf("%w: end must not be before start", httpx.ErrInvalid)
	ErrRitualLocked = fmt.Errorf("%w: ritual tasks are managed by the ritual settings", httpx.ErrState)
)

type Kind string

const (
	KindTask   Kind = "task"
	KindEvent  Kind = "event"
	KindRitual Kind = "ritual"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Task struct {
	store.Meta  `bson:",inline"`
	OwnerID     string    `json:"ownerId" bson:"ownerId"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	Kind        Kind      `json:"kind" bson:"kind"`
	Start       time.Time `json:"start" bson:"start"`
	End         time.Time `json:"end" bson:"end"`
	AllDay      bool      `json:"allDay" bson:"allDay"`
	Done        bool      `json:"done" bson:"done"`
	Priority    Priority  `json:"priority" bson:"priority"`
	ProjectID   string    `json:"projectId" bson:"projectId"`
	ContactID   string    `json:"contactId" bson:"contactId"`
	// Ritual names the ritual (daily or weekly) that generated the task.
	Ritual string `json:"ritual,omitempty" bson:"ritual"`
}

func (t *Task) Duration() time.Duration { return t.End.Sub(t.Start) }

type Patch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Kind        *Kind      `json:"kind"`
	Start       *time.Time `json:"start"`
	End         *time.Time `json:"end"`
	AllDay      *bool      `json:"allDay"`
	Done        *bool      `json:"done"`
	Priority    *Priority  `json:"priority"`
	ProjectID   *string    `json:"projectId"`
	ContactID   *string    `json:"contactId"`
}

// onlyDone reports whether the patch touches nothing but the done flag.
func (p Patch) onlyDone() bool {
	return p.Title == nil && p.Description == nil && p.Kind == nil && p.Start == nil &&
		p.End == nil && p.AllDay == nil && p.Priority == nil && p.ProjectID == nil && p.ContactID == nil
}

// ListFilter selects tasks; From/To bound the start time as [From, To).
type ListFilter struct {
	From, To  time.Time
	OwnerID   string
	ProjectID string
	ContactID string
	Kind      Kind
	Done      *bool
	Limit     int
}
