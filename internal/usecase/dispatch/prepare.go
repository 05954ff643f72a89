package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"courier/internal/domain/entity"
)

// PrepareDispatches expands messages scheduled without explicit recipients
// into pending dispatches, one per current subscriber of the message type.
// Messages whose type has no subscribers yet are left open and picked up
// again by the next preparation pass.
//
// The subscriber list is resolved once per message type and reused across
// the pass. Returns the dispatches created, also on error: a failure midway
// leaves earlier messages fully prepared.
func (s *Service) PrepareDispatches(ctx context.Context) ([]*entity.Dispatch, error) {
	messages, err := s.messages.ListWithoutDispatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("PrepareDispatches: list messages: %w", err)
	}

	cache := make(map[string][]entity.Recipient)

	var prepared []*entity.Dispatch
	for _, msg := range messages {
		recipients, cached := cache[msg.Cls]
		if !cached {
			if _, err := s.types.Get(msg.Cls); err != nil {
				return prepared, err
			}
			recipients, err = s.subscribers(ctx, msg.Cls)
			if err != nil {
				return prepared, fmt.Errorf("PrepareDispatches: subscribers of %s: %w", msg.Cls, err)
			}
			cache[msg.Cls] = recipients
		}

		if len(recipients) == 0 {
			continue
		}

		dispatches := make([]*entity.Dispatch, 0, len(recipients))
		for _, r := range recipients {
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
			return prepared, fmt.Errorf("PrepareDispatches: create for message %d: %w", msg.ID, err)
		}
		if err := s.messages.SetDispatchesReady(ctx, msg.ID); err != nil {
			return prepared, fmt.Errorf("PrepareDispatches: mark message %d ready: %w", msg.ID, err)
		}

		prepared = append(prepared, dispatches...)
	}

	RecordPrepared(len(prepared))
	if len(prepared) > 0 {
		slog.Info("Prepared dispatches",
			slog.Int("messages", len(messages)),
			slog.Int("dispatches", len(prepared)))
	}

	return prepared, nil
}

// subscribers resolves the deliverable targets subscribed to a message type.
//
// A subscription names either a raw address or a known user. User
// subscriptions go through the address book, which both vets the user
// (an empty result means unknown or deactivated, the subscription is
// skipped) and supplies the address when the subscription stores none.
// Without an address book, user subscriptions lacking a stored address are
// skipped. Only non-empty addresses make it out.
func (s *Service) subscribers(ctx context.Context, cls string) ([]entity.Recipient, error) {
	subs, err := s.subscriptions.ListForMessageCls(ctx, cls)
	if err != nil {
		return nil, err
	}

	recipients := make([]entity.Recipient, 0, len(subs))
	for _, sub := range subs {
		var address string
		if sub.Address != nil {
			address = *sub.Address
		}

		if sub.RecipientID != nil && s.addresses != nil {
			derived, err := s.addresses.Address(ctx, *sub.RecipientID, sub.MessengerCls)
			if err != nil {
				return nil, fmt.Errorf("resolve address of user %d: %w", *sub.RecipientID, err)
			}
			if derived == "" {
				continue
			}
			if address == "" {
				address = derived
			}
		}

		if address == "" {
			continue
		}

		recipients = append(recipients, entity.Recipient{
			Messenger: sub.MessengerCls,
			UserID:    sub.RecipientID,
			Address:   address,
		})
	}

	return recipients, nil
}
