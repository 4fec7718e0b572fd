package domain

import (
	"sort"
	"time"
)

// TaskStatus enumerates the lifecycle states of a case task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskOverdue    TaskStatus = "overdue"
)

// TaskPriority enumerates task priorities.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Task is a deadline-bearing item attached to a case. The pipeline never
// creates or deletes tasks; it only reads them and stamps ReminderSentAt
// when a reminder is claimed.
type Task struct {
	ID                    string       `json:"id"`
	CaseID                string       `json:"caseId"`
	UserID                string       `json:"userId"`
	Title                 string       `json:"title"`
	Description           string       `json:"description,omitempty"`
	DueDate               time.Time    `json:"dueDate"`
	Status                TaskStatus   `json:"status"`
	Priority              TaskPriority `json:"priority"`
	ReminderMinutesBefore int          `json:"reminderMinutesBefore"`
	ReminderSentAt        *time.Time   `json:"reminderSentAt,omitempty"`

	// ETag is the storage concurrency token of the row this task was read
	// from. It is required by the reminder claim and never serialized.
	ETag string `json:"-"`
}

// TriggerTime is the instant at which a reminder for the task becomes due:
// the due date minus the configured lead time.
func (t Task) TriggerTime() time.Time {
	return t.DueDate.Add(-time.Duration(t.ReminderMinutesBefore) * time.Minute)
}

// ReminderEligible reports whether the task is still in a state that may
// receive a reminder.
func (t Task) ReminderEligible() bool {
	return t.Status == TaskPending || t.Status == TaskInProgress
}

// FilterDueSoon applies the precise reminder selection over candidates that
// already passed the coarse storage filter (open status, due date within the
// lookahead window). A task is kept when its trigger time has arrived and no
// reminder was claimed for it before. The result is ordered by due date
// ascending.
func FilterDueSoon(tasks []Task, now time.Time) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.ReminderEligible() {
			continue
		}
		if t.ReminderSentAt != nil {
			continue
		}
		if t.TriggerTime().After(now) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out
}
