package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"marqlet-monitor/domain"
)

// Tasks are partitioned by owning user.
type taskEntity struct {
	entity
	ETag                  string `json:"odata.etag"`
	CaseID                string `json:"CaseID"`
	Title                 string `json:"Title"`
	Description           string `json:"Description"`
	DueDate               string `json:"DueDate"`
	DueDateType           string `json:"DueDate@odata.type,omitempty"`
	Status                string `json:"Status"`
	Priority              string `json:"Priority"`
	ReminderMinutesBefore int    `json:"ReminderMinutesBefore"`
	ReminderSentAt        string `json:"ReminderSentAt,omitempty"`
	ReminderSentAtType    string `json:"ReminderSentAt@odata.type,omitempty"`
}

func decodeTask(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	dueDate, err := time.Parse(time.RFC3339, ent.DueDate)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task %s has bad DueDate: %w", ent.RowKey, err)
	}
	task := domain.Task{
		ID:                    ent.RowKey,
		CaseID:                ent.CaseID,
		UserID:                ent.PartitionKey,
		Title:                 ent.Title,
		Description:           ent.Description,
		DueDate:               dueDate,
		Status:                domain.TaskStatus(ent.Status),
		Priority:              domain.TaskPriority(ent.Priority),
		ReminderMinutesBefore: ent.ReminderMinutesBefore,
		ETag:                  ent.ETag,
	}
	if ent.ReminderSentAt != "" {
		sentAt, err := time.Parse(time.RFC3339, ent.ReminderSentAt)
		if err != nil {
			return domain.Task{}, fmt.Errorf("task %s has bad ReminderSentAt: %w", ent.RowKey, err)
		}
		task.ReminderSentAt = &sentAt
	}
	return task, nil
}

func dueSoonFilter(userID string, cutoff time.Time) string {
	return fmt.Sprintf(
		"PartitionKey eq '%s' and (Status eq 'pending' or Status eq 'in_progress') and DueDate le datetime'%s'",
		userID, cutoff.UTC().Format(time.RFC3339),
	)
}

// FetchDueSoonCandidates runs the coarse storage-level half of reminder
// selection: open tasks of the user whose due date falls on or before the
// cutoff. The precise lead-time arithmetic happens in domain.FilterDueSoon.
func (s *Storage) FetchDueSoonCandidates(ctx context.Context, userID string, cutoff time.Time) ([]domain.Task, error) {
	filter := dueSoonFilter(userID, cutoff)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			task, err := decodeTask(raw)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

type reminderClaim struct {
	entity
	ReminderSentAt     string `json:"ReminderSentAt"`
	ReminderSentAtType string `json:"ReminderSentAt@odata.type"`
}

// ClaimReminder stamps ReminderSentAt on a task, conditional on the ETag the
// task was read with. A concurrent pass that claimed first bumps the ETag, so
// the loser gets domain.ErrConcurrencyConflict and must not dispatch.
func (s *Storage) ClaimReminder(ctx context.Context, userID, taskID, etag string, at time.Time) error {
	claim := reminderClaim{
		entity:             entity{PartitionKey: userID, RowKey: taskID},
		ReminderSentAt:     at.UTC().Format(time.RFC3339),
		ReminderSentAtType: edmDateTime,
	}
	payload, err := json.Marshal(claim)
	if err != nil {
		return err
	}
	et := azcore.ETag(etag)
	_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			switch respErr.StatusCode {
			case 412:
				return domain.ErrConcurrencyConflict
			case 404:
				return domain.ErrTaskNotFound
			}
		}
		return err
	}
	return nil
}
