package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"courier/internal/domain/entity"
	"courier/internal/repository"
)

type SubscriptionRepo struct{ db *sql.DB }

func NewSubscriptionRepo(db *sql.DB) repository.SubscriptionRepository {
	return &SubscriptionRepo{db: db}
}

// scanSubscription is a helper function to scan a subscription row.
func scanSubscription(rows *sql.Rows) (*entity.Subscription, error) {
	var subscription entity.Subscription
	if err := rows.Scan(
		&subscription.ID, &subscription.CreatedAt, &subscription.MessageCls,
		&subscription.MessengerCls, &subscription.RecipientID, &subscription.Address,
	); err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (repo *SubscriptionRepo) Create(ctx context.Context, subscription *entity.Subscription) error {
	defer track("subscription_create")()

	const query = `
INSERT INTO subscriptions (message_cls, messenger_cls, recipient_id, address)
VALUES ($1, $2, $3, $4)
RETURNING id, time_created`
	err := repo.db.QueryRowContext(ctx, query,
		subscription.MessageCls, subscription.MessengerCls,
		subscription.RecipientID, subscription.Address,
	).Scan(&subscription.ID, &subscription.CreatedAt)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *SubscriptionRepo) Cancel(
	ctx context.Context, ref repository.SubscriberRef, messageCls, messengerCls string,
) error {
	defer track("subscription_cancel")()

	var (
		query string
		arg   any
	)
	if ref.UserID != nil {
		query = `DELETE FROM subscriptions WHERE message_cls = $1 AND messenger_cls = $2 AND recipient_id = $3`
		arg = *ref.UserID
	} else {
		query = `DELETE FROM subscriptions WHERE message_cls = $1 AND messenger_cls = $2 AND address = $3`
		arg = ref.Address
	}

	if _, err := repo.db.ExecContext(ctx, query, messageCls, messengerCls, arg); err != nil {
		return fmt.Errorf("Cancel: %w", err)
	}
	return nil
}

func (repo *SubscriptionRepo) ListForRecipient(ctx context.Context, recipientID int64) ([]*entity.Subscription, error) {
	defer track("subscription_list_for_recipient")()

	const query = `
SELECT id, time_created, message_cls, messenger_cls, recipient_id, address
FROM subscriptions
WHERE recipient_id = $1
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("ListForRecipient: %w", err)
	}
	defer func() { _ = rows.Close() }()

	subscriptions := make([]*entity.Subscription, 0, 20)
	for rows.Next() {
		subscription, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("ListForRecipient: %w", err)
		}
		subscriptions = append(subscriptions, subscription)
	}
	return subscriptions, rows.Err()
}

func (repo *SubscriptionRepo) ListForMessageCls(ctx context.Context, messageCls string) ([]*entity.Subscription, error) {
	defer track("subscription_list_for_message_cls")()

	const query = `
SELECT id, time_created, message_cls, messenger_cls, recipient_id, address
FROM subscriptions
WHERE message_cls = $1
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query, messageCls)
	if err != nil {
		return nil, fmt.Errorf("ListForMessageCls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	subscriptions := make([]*entity.Subscription, 0, 20)
	for rows.Next() {
		subscription, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("ListForMessageCls: %w", err)
		}
		subscriptions = append(subscriptions, subscription)
	}
	return subscriptions, rows.Err()
}

func (repo *SubscriptionRepo) ReplaceForRecipient(
	ctx context.Context, recipientID int64, prefs []repository.Preference,
) error {
	defer track("subscription_replace_for_recipient")()

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ReplaceForRecipient: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const deleteQuery = `DELETE FROM subscriptions WHERE recipient_id = $1`
	if _, err := tx.ExecContext(ctx, deleteQuery, recipientID); err != nil {
		return fmt.Errorf("ReplaceForRecipient: delete: %w", err)
	}

	if len(prefs) > 0 {
		var sb strings.Builder
		sb.WriteString(`INSERT INTO subscriptions (message_cls, messenger_cls, recipient_id) VALUES `)
		args := make([]any, 0, len(prefs)*3)
		for i, pref := range prefs {
			if i > 0 {
				sb.WriteString(", ")
			}
			n := i * 3
			fmt.Fprintf(&sb, "($%d, $%d, $%d)", n+1, n+2, n+3)
			args = append(args, pref.MessageCls, pref.MessengerCls, recipientID)
		}

		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("ReplaceForRecipient: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ReplaceForRecipient: %w", err)
	}
	return nil
}
