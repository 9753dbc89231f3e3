// Package events announces expense mutations to other systems.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Action is the kind of change an ExpenseEvent reports.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// ExpenseEvent is published after the expense service accepted a change.
type ExpenseEvent struct {
	Action    Action    `json:"action"`
	ExpenseID int64     `json:"expense_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEvent(action Action, expenseID, userID int64) ExpenseEvent {
	return ExpenseEvent{
		Action:    action,
		ExpenseID: expenseID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

func (e ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher sends expense events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event ExpenseEvent) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ExpenseEvent) error { return nil }
func (NopPublisher) Close() error                                { return nil }
