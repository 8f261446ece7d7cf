package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the approval state of an extracted task.
type TaskStatus string

const (
	// TaskConfirmed is an informational task that needs no approval.
	TaskConfirmed TaskStatus = "CONFIRMED"

	// TaskWaitingApproval is a question-framed proposal awaiting a decision.
	TaskWaitingApproval TaskStatus = "WAITING_APPROVAL"

	TaskRejected TaskStatus = "REJECTED"
)

// Task is an action item derived from a message.
type Task struct {
	// ID is the internal unique identifier for this task.
	ID string `json:"id" db:"id"`

	// AccountID and UserEmail identify the owning account.
	AccountID string `json:"account_id" db:"account_id"`
	UserEmail string `json:"user_email" db:"user_email"`

	// Sender is the correspondent the task came from.
	Sender string `json:"sender" db:"sender"`

	Title string `json:"title" db:"title"`

	// DueDate is parsed from the extracted YYYY-MM-DD date when present.
	DueDate *time.Time `json:"due_date,omitempty" db:"due_date"`

	Urgency    int        `json:"urgency" db:"urgency"`
	Status     TaskStatus `json:"status" db:"status"`
	IsApproved bool       `json:"is_approved" db:"is_approved"`

	// MessageID links back to the message the task was extracted from.
	MessageID string `json:"message_id" db:"message_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TaskFromMessage builds the task for a message whose enrichment found an
// action item. The second result is false when there is nothing to create.
// Proposals wait for approval; everything else is confirmed outright.
func TaskFromMessage(m Message, now time.Time) (Task, bool) {
	if m.Task == nil || strings.TrimSpace(m.Task.Title) == "" {
		return Task{}, false
	}

	t := Task{
		ID:         uuid.NewString(),
		AccountID:  m.AccountID,
		UserEmail:  m.UserEmail,
		Sender:     m.From,
		Title:      strings.TrimSpace(m.Task.Title),
		Urgency:    m.Urgency,
		Status:     TaskConfirmed,
		IsApproved: true,
		MessageID:  m.MessageID,
		CreatedAt:  now,
	}
	if m.IsProposal {
		t.Status = TaskWaitingApproval
		t.IsApproved = false
	}
	if due, err := time.Parse(time.DateOnly, strings.TrimSpace(m.Task.Date)); err == nil {
		t.DueDate = &due
	}
	return t, true
}
