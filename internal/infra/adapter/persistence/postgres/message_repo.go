package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"courier/internal/domain/entity"
	"courier/internal/repository"
)

type MessageRepo struct{ db *sql.DB }

func NewMessageRepo(db *sql.DB) repository.MessageRepository {
	return &MessageRepo{db: db}
}

// scanMessage is a helper function to scan a message row.
func scanMessage(rows *sql.Rows) (*entity.Message, error) {
	var message entity.Message
	if err := rows.Scan(
		&message.ID, &message.CreatedAt, &message.SenderID, &message.Cls,
		&message.GroupMark, &message.Context, &message.Priority, &message.DispatchesReady,
	); err != nil {
		return nil, err
	}
	return &message, nil
}

func (repo *MessageRepo) Create(ctx context.Context, message *entity.Message) error {
	defer track("message_create")()

	const query = `
INSERT INTO messages (sender_id, cls, gmark, context, priority, dispatches_ready)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, time_created`
	err := repo.db.QueryRowContext(ctx, query,
		message.SenderID, message.Cls, message.GroupMark,
		message.Context, message.Priority, message.DispatchesReady,
	).Scan(&message.ID, &message.CreatedAt)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *MessageRepo) Get(ctx context.Context, id int64) (*entity.Message, error) {
	defer track("message_get")()

	const query = `
SELECT id, time_created, sender_id, cls, gmark, context, priority, dispatches_ready
FROM messages
WHERE id = $1
LIMIT 1`
	var message entity.Message
	err := repo.db.QueryRowContext(ctx, query, id).Scan(
		&message.ID, &message.CreatedAt, &message.SenderID, &message.Cls,
		&message.GroupMark, &message.Context, &message.Priority, &message.DispatchesReady,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &message, nil
}

func (repo *MessageRepo) FindOpenGrouped(
	ctx context.Context, cls, groupMark string, senderID *int64,
) (*entity.Message, error) {
	defer track("message_find_open_grouped")()

	// A message is still open while any of its dispatches is pending or its
	// dispatches were never formed.
	const query = `
SELECT m.id, m.time_created, m.sender_id, m.cls, m.gmark, m.context, m.priority, m.dispatches_ready
FROM messages m
WHERE m.cls = $1
  AND m.gmark = $2
  AND m.sender_id IS NOT DISTINCT FROM $3
  AND (m.dispatches_ready = FALSE OR EXISTS (
        SELECT 1 FROM dispatches d
        WHERE d.message_id = m.id AND d.dispatch_status = $4))
ORDER BY m.id DESC
LIMIT 1`
	var message entity.Message
	err := repo.db.QueryRowContext(ctx, query,
		cls, groupMark, senderID, int16(entity.DispatchStatusPending),
	).Scan(
		&message.ID, &message.CreatedAt, &message.SenderID, &message.Cls,
		&message.GroupMark, &message.Context, &message.Priority, &message.DispatchesReady,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindOpenGrouped: %w", err)
	}
	return &message, nil
}

func (repo *MessageRepo) UpdateContext(ctx context.Context, id int64, context entity.Context) error {
	defer track("message_update_context")()

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("UpdateContext: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const updateQuery = `UPDATE messages SET context = $1 WHERE id = $2`
	res, err := tx.ExecContext(ctx, updateQuery, context, id)
	if err != nil {
		return fmt.Errorf("UpdateContext: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("UpdateContext: no rows affected")
	}

	// Invalidate compiled bodies so the next pass renders the merged content.
	const resetQuery = `UPDATE dispatches SET message_cache = NULL WHERE message_id = $1`
	if _, err := tx.ExecContext(ctx, resetQuery, id); err != nil {
		return fmt.Errorf("UpdateContext: reset cache: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("UpdateContext: %w", err)
	}
	return nil
}

func (repo *MessageRepo) SetDispatchesReady(ctx context.Context, id int64) error {
	defer track("message_set_dispatches_ready")()

	const query = `UPDATE messages SET dispatches_ready = TRUE WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("SetDispatchesReady: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("SetDispatchesReady: no rows affected")
	}
	return nil
}

func (repo *MessageRepo) ListWithoutDispatches(ctx context.Context) ([]*entity.Message, error) {
	defer track("message_list_without_dispatches")()

	const query = `
SELECT id, time_created, sender_id, cls, gmark, context, priority, dispatches_ready
FROM messages
WHERE dispatches_ready = FALSE
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListWithoutDispatches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]*entity.Message, 0, 50)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("ListWithoutDispatches: %w", err)
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}
