package storage

import (
	"context"
	"encoding/json"
)

// RefreshJob asks the refresh consumer to re-check one case's docket.
type RefreshJob struct {
	ID     string `json:"id"`
	CaseID string `json:"caseId"`
}

// RefreshMessage is a dequeued refresh job together with the queue metadata
// needed to delete it after processing.
type RefreshMessage struct {
	MessageID  string
	PopReceipt string
	Job        RefreshJob
}

// EnqueueRefresh queues a docket refresh job for one case.
func (s *Storage) EnqueueRefresh(ctx context.Context, job RefreshJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = s.refreshQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// DequeueRefresh retrieves a single refresh job, or nil when the queue is
// empty.
func (s *Storage) DequeueRefresh(ctx context.Context) (*RefreshMessage, error) {
	resp, err := s.refreshQueue.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	msg := resp.Messages[0]
	out := &RefreshMessage{}
	if msg.MessageID != nil {
		out.MessageID = *msg.MessageID
	}
	if msg.PopReceipt != nil {
		out.PopReceipt = *msg.PopReceipt
	}
	if msg.MessageText != nil {
		if err := json.Unmarshal([]byte(*msg.MessageText), &out.Job); err != nil {
			// Return the metadata so the caller can delete the poison message.
			return out, err
		}
	}
	return out, nil
}

// DeleteRefresh removes a processed refresh job from the queue.
func (s *Storage) DeleteRefresh(ctx context.Context, messageID, popReceipt string) error {
	_, err := s.refreshQueue.DeleteMessage(ctx, messageID, popReceipt, nil)
	return err
}
