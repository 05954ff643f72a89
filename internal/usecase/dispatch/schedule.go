package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"courier/internal/domain/entity"
	"courier/internal/message"
)

// Scheduled is the result of one scheduling call.
type Scheduled struct {
	Message    *entity.Message
	Dispatches []*entity.Dispatch

	// Contributed reports that the content was merged into an already open
	// grouped message instead of creating a new one. The open message's
	// existing dispatches are untouched, except that their compiled caches
	// were reset so the next pass renders the merged content.
	Contributed bool
}

// Schedule persists a message addressed to explicit recipients, creating one
// pending dispatch per recipient. Recipients are typically produced by
// messenger.Resolve; every one of them must carry a messenger alias and a
// non-empty address.
//
// When the draft's message type declares a group mark and an open message
// with the same (cls, mark, sender) exists, the draft's context is merged
// into it instead.
func (s *Service) Schedule(
	ctx context.Context, draft *message.Draft, to []entity.Recipient, senderID *int64,
) (*Scheduled, error) {
	if len(to) == 0 {
		return nil, fmt.Errorf("Schedule: no recipients: %w", entity.ErrInvalidInput)
	}
	return s.schedule(ctx, draft, to, senderID)
}

// ScheduleForSubscribers persists a message without dispatches. A later
// PrepareDispatches pass expands it to the type's subscriber list.
func (s *Service) ScheduleForSubscribers(
	ctx context.Context, draft *message.Draft, senderID *int64,
) (*Scheduled, error) {
	return s.schedule(ctx, draft, nil, senderID)
}

func (s *Service) schedule(
	ctx context.Context, draft *message.Draft, to []entity.Recipient, senderID *int64,
) (*Scheduled, error) {
	typ, err := s.types.Get(draft.Cls)
	if err != nil {
		return nil, err
	}

	for _, r := range to {
		if r.Messenger == "" || r.Address == "" {
			return nil, fmt.Errorf("Schedule: recipient %q via %q: %w",
				r.Address, r.Messenger, entity.ErrInvalidAddress)
		}
	}

	priority := draft.Priority
	if priority < 0 {
		priority = typ.DefaultPriority()
	}
	if priority < 0 {
		priority = 0
	}

	if mark := typ.GroupMark(); mark != "" {
		open, err := s.messages.FindOpenGrouped(ctx, draft.Cls, mark, senderID)
		if err != nil {
			return nil, fmt.Errorf("Schedule: find grouped: %w", err)
		}
		if open != nil {
			merged := typ.MergeContext(open.Context, draft.Context)
			if err := s.messages.UpdateContext(ctx, open.ID, merged); err != nil {
				return nil, fmt.Errorf("Schedule: merge grouped: %w", err)
			}
			open.Context = merged

			slog.Info("Contributed to grouped message",
				slog.Int64("message_id", open.ID),
				slog.String("cls", draft.Cls),
				slog.String("group_mark", mark))
			RecordScheduled(draft.Cls, 0)

			return &Scheduled{Message: open, Contributed: true}, nil
		}
	}

	msg := &entity.Message{
		SenderID:        senderID,
		Cls:             draft.Cls,
		GroupMark:       typ.GroupMark(),
		Context:         draft.Context,
		Priority:        priority,
		DispatchesReady: len(to) > 0,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("Schedule: create message: %w", err)
	}

	scheduled := &Scheduled{Message: msg}

	if len(to) > 0 {
		dispatches := make([]*entity.Dispatch, 0, len(to))
		for _, r := range to {
			dispatches = append(dispatches, &entity.Dispatch{
				MessageID:   msg.ID,
				Messenger:   r.Messenger,
				RecipientID: r.UserID,
				Address:     r.Address,
				Status:      entity.DispatchStatusPending,
				Message:     msg,
			})
		}
		if err := s.dispatches.CreateBatch(ctx, dispatches); err != nil {
			return nil, fmt.Errorf("Schedule: create dispatches: %w", err)
		}
		scheduled.Dispatches = dispatches
	}

	slog.Info("Scheduled message",
		slog.Int64("message_id", msg.ID),
		slog.String("cls", msg.Cls),
		slog.Int("priority", msg.Priority),
		slog.Int("dispatches", len(scheduled.Dispatches)))
	RecordScheduled(draft.Cls, len(scheduled.Dispatches))

	return scheduled, nil
}
