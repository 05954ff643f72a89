package repository

import (
	"context"

	"courier/internal/domain/entity"
)

// Preference is one (message type, messenger) opt-in pair.
type Preference struct {
	MessageCls   string
	MessengerCls string
}

// SubscriberRef addresses a subscriber either by user ID or by raw address.
// Exactly one of the two should be set.
type SubscriberRef struct {
	UserID  *int64
	Address string
}

type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *entity.Subscription) error
	// Cancel removes all subscriptions of the subscriber matching the pair.
	Cancel(ctx context.Context, ref SubscriberRef, messageCls, messengerCls string) error
	ListForRecipient(ctx context.Context, recipientID int64) ([]*entity.Subscription, error)
	ListForMessageCls(ctx context.Context, messageCls string) ([]*entity.Subscription, error)
	// ReplaceForRecipient removes the recipient's existing preferences and
	// installs the given set in a single transaction.
	ReplaceForRecipient(ctx context.Context, recipientID int64, prefs []Preference) error
}
