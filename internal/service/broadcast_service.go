package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bark-labs/offerbot/internal/chat"
	"github.com/bark-labs/offerbot/internal/model"
	"github.com/bark-labs/offerbot/internal/storage"
	"github.com/google/uuid"
)

// Sender delivers one message to one chat.
type Sender interface {
	Send(ctx context.Context, msg chat.Message) (int, error)
}

// BroadcastService fans an admin message out to every known user.
type BroadcastService struct {
	store  storage.Store
	users  *UserService
	sender Sender
}

// NewBroadcastService builds BroadcastService.
func NewBroadcastService(store storage.Store, users *UserService, sender Sender) *BroadcastService {
	return &BroadcastService{store: store, users: users, sender: sender}
}

// Broadcast sends body to a snapshot of the user directory, one recipient at
// a time. Recipients reported unreachable are removed from the directory
// before the next send; other send errors, and removals that fail, are
// counted as failed and the user is kept. The job is recorded in the broadcast log.
func (s *BroadcastService) Broadcast(ctx context.Context, senderID int64, body string) (*model.BroadcastReport, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("broadcast body is required")
	}
	job := model.BroadcastJob{ID: uuid.NewString(), SenderID: senderID, Body: body}

	recipients, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}

	report := &model.BroadcastReport{JobID: job.ID, Recipients: len(recipients)}
	for _, user := range recipients {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, err := s.sender.Send(ctx, chat.Message{ChatID: user.ID, Text: job.Body, Markdown: true})
		switch {
		case err == nil:
		case errors.Is(err, chat.ErrRecipientUnreachable):
			if rmErr := s.users.Remove(ctx, user.ID); rmErr != nil {
				report.Failed = append(report.Failed, user.ID)
				log.Printf("broadcast %s: remove unreachable user %d failed: %v", job.ID, user.ID, rmErr)
				continue
			}
			report.Removed = append(report.Removed, user.ID)
			log.Printf("broadcast %s: removed unreachable user %d", job.ID, user.ID)
		default:
			report.Failed = append(report.Failed, user.ID)
			log.Printf("broadcast %s: send to %d failed: %v", job.ID, user.ID, err)
		}
	}
	report.Delivered = report.Recipients - len(report.Removed) - len(report.Failed)

	s.appendLog(ctx, job, report)
	log.Printf("broadcast %s by %d: delivered %d/%d", job.ID, senderID, report.Delivered, report.Recipients)
	return report, nil
}

func (s *BroadcastService) appendLog(ctx context.Context, job model.BroadcastJob, report *model.BroadcastReport) {
	entry := &model.BroadcastLog{
		JobID:      job.ID,
		SenderID:   job.SenderID,
		Body:       job.Body,
		Recipients: report.Recipients,
		Delivered:  report.Delivered,
		Removed:    len(report.Removed),
		Failed:     len(report.Failed),
	}
	if err := s.store.AppendBroadcastLog(ctx, entry); err != nil {
		log.Printf("append broadcast log failed: %v", err)
	}
}
