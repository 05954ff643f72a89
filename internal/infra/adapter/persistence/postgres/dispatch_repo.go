package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"courier/internal/domain/entity"
	"courier/internal/repository"
)

// Claim lock tiers, strongest first. The repo degrades at most twice per
// process when the backend rejects a locking clause, then sticks with the
// working tier.
const (
	lockSkipLocked int32 = iota
	lockPlain
	lockNone
)

var claimLockClauses = [...]string{
	lockSkipLocked: " FOR UPDATE OF d SKIP LOCKED",
	lockPlain:      " FOR UPDATE OF d",
	lockNone:       "",
}

// errClaimDegraded signals that the lock tier was lowered and the claim
// should be retried on a fresh transaction.
var errClaimDegraded = errors.New("claim lock tier degraded")

type DispatchRepo struct {
	db       *sql.DB
	lockMode atomic.Int32
}

func NewDispatchRepo(db *sql.DB) repository.DispatchRepository {
	return &DispatchRepo{db: db}
}

// dispatchColumns lists the joined dispatch+message projection shared by the
// claim, get and unread queries.
const dispatchColumns = `
SELECT d.id, d.time_created, d.time_dispatched, d.message_id, d.messenger,
       d.recipient_id, d.address, d.retry_count, d.message_cache, d.dispatch_status, d.read_status,
       m.id, m.time_created, m.sender_id, m.cls, m.gmark, m.context, m.priority, m.dispatches_ready
FROM dispatches d
JOIN messages m ON m.id = d.message_id`

// scanDispatchWithMessage scans one joined row into a dispatch and its
// owning message.
func scanDispatchWithMessage(rows *sql.Rows) (*entity.Dispatch, *entity.Message, error) {
	var (
		dispatch entity.Dispatch
		message  entity.Message
		cache    sql.NullString
	)
	if err := rows.Scan(
		&dispatch.ID, &dispatch.CreatedAt, &dispatch.DispatchedAt, &dispatch.MessageID,
		&dispatch.Messenger, &dispatch.RecipientID, &dispatch.Address, &dispatch.RetryCount,
		&cache, &dispatch.Status, &dispatch.ReadStatus,
		&message.ID, &message.CreatedAt, &message.SenderID, &message.Cls,
		&message.GroupMark, &message.Context, &message.Priority, &message.DispatchesReady,
	); err != nil {
		return nil, nil, err
	}
	dispatch.MessageCache = cache.String
	return &dispatch, &message, nil
}

// scanDispatchRows collects joined rows, sharing one message instance across
// the dispatches that belong to it.
func scanDispatchRows(rows *sql.Rows) ([]*entity.Dispatch, error) {
	defer func() { _ = rows.Close() }()

	dispatches := make([]*entity.Dispatch, 0, 50)
	messages := make(map[int64]*entity.Message)

	for rows.Next() {
		dispatch, message, err := scanDispatchWithMessage(rows)
		if err != nil {
			return nil, err
		}
		if shared, ok := messages[message.ID]; ok {
			dispatch.Message = shared
		} else {
			messages[message.ID] = message
			dispatch.Message = message
		}
		dispatches = append(dispatches, dispatch)
	}
	return dispatches, rows.Err()
}

func dispatchIDs(dispatches []*entity.Dispatch) []int64 {
	ids := make([]int64, len(dispatches))
	for i, dispatch := range dispatches {
		ids[i] = dispatch.ID
	}
	return ids
}

func (repo *DispatchRepo) CreateBatch(ctx context.Context, dispatches []*entity.Dispatch) error {
	if len(dispatches) == 0 {
		return nil
	}
	defer track("dispatch_create_batch")()

	var sb strings.Builder
	sb.WriteString(`INSERT INTO dispatches (message_id, messenger, recipient_id, address) VALUES `)
	args := make([]any, 0, len(dispatches)*4)
	for i, dispatch := range dispatches {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4)
		args = append(args, dispatch.MessageID, dispatch.Messenger, dispatch.RecipientID, dispatch.Address)
	}
	sb.WriteString(` RETURNING id, time_created`)

	rows, err := repo.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("CreateBatch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	scanned := 0
	for rows.Next() {
		if scanned >= len(dispatches) {
			return fmt.Errorf("CreateBatch: more rows returned than inserted")
		}
		dispatch := dispatches[scanned]
		if err := rows.Scan(&dispatch.ID, &dispatch.CreatedAt); err != nil {
			return fmt.Errorf("CreateBatch: Scan: %w", err)
		}
		dispatch.Status = entity.DispatchStatusPending
		dispatch.ReadStatus = entity.ReadStatusUnread
		scanned++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("CreateBatch: %w", err)
	}
	if scanned != len(dispatches) {
		return fmt.Errorf("CreateBatch: inserted %d rows, returned %d", len(dispatches), scanned)
	}
	return nil
}

func (repo *DispatchRepo) Get(ctx context.Context, id int64) (*entity.Dispatch, error) {
	defer track("dispatch_get")()

	query := dispatchColumns + `
WHERE d.id = $1
LIMIT 1`
	rows, err := repo.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	dispatches, err := scanDispatchRows(rows)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	if len(dispatches) == 0 {
		return nil, nil
	}
	return dispatches[0], nil
}

func (repo *DispatchRepo) ClaimUnsent(ctx context.Context, priority int) ([]*entity.Dispatch, error) {
	defer track("dispatch_claim_unsent")()

	for {
		dispatches, err := repo.claimOnce(ctx, priority)
		if errors.Is(err, errClaimDegraded) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ClaimUnsent: %w", err)
		}
		return dispatches, nil
	}
}

func (repo *DispatchRepo) claimOnce(ctx context.Context, priority int) ([]*entity.Dispatch, error) {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	mode := repo.lockMode.Load()
	query := dispatchColumns + `
WHERE d.dispatch_status IN ($1, $2)
  AND ($3 < 0 OR m.priority = $3)
ORDER BY m.time_created DESC` + claimLockClauses[mode]

	rows, err := tx.QueryContext(ctx, query,
		int16(entity.DispatchStatusPending), int16(entity.DispatchStatusError), priority)
	if err != nil {
		if mode < lockNone && isLockUnsupported(err) {
			repo.lockMode.CompareAndSwap(mode, mode+1)
			return nil, errClaimDegraded
		}
		if isLockConflict(err) {
			// Another claimer holds the rows.
			return []*entity.Dispatch{}, nil
		}
		return nil, err
	}

	dispatches, err := scanDispatchRows(rows)
	if err != nil {
		return nil, err
	}
	if len(dispatches) == 0 {
		return dispatches, nil
	}

	const update = `UPDATE dispatches SET dispatch_status = $1 WHERE id = ANY($2)`
	if _, err := tx.ExecContext(ctx, update,
		int16(entity.DispatchStatusProcessing), pq.Array(dispatchIDs(dispatches))); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for _, dispatch := range dispatches {
		dispatch.Status = entity.DispatchStatusProcessing
	}
	return dispatches, nil
}

// isLockUnsupported reports whether the backend rejected the locking clause
// itself, e.g. SKIP LOCKED on engines predating it.
func isLockUnsupported(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "0A000" || pgErr.Code == "42601"
	}
	return false
}

// isLockConflict reports whether the rows are held by a concurrent claimer.
func isLockConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "55P03" || pgErr.Code == "40P01"
	}
	return false
}

func (repo *DispatchRepo) SetStatuses(ctx context.Context, buckets repository.StatusBuckets) error {
	defer track("dispatch_set_statuses")()

	const query = `
UPDATE dispatches
SET dispatch_status = $1, time_dispatched = now(), retry_count = retry_count + 1
WHERE id = ANY($2)`

	updates := []struct {
		status     entity.DispatchStatus
		dispatches []*entity.Dispatch
	}{
		{entity.DispatchStatusSent, buckets.Sent},
		{entity.DispatchStatusError, buckets.Error},
		{entity.DispatchStatusFailed, buckets.Failed},
		{entity.DispatchStatusPending, buckets.Pending},
	}

	for _, update := range updates {
		if len(update.dispatches) == 0 {
			continue
		}
		if _, err := repo.db.ExecContext(ctx, query,
			int16(update.status), pq.Array(dispatchIDs(update.dispatches))); err != nil {
			return fmt.Errorf("SetStatuses: %s: %w", update.status, err)
		}
	}
	return nil
}

func (repo *DispatchRepo) LogErrors(ctx context.Context, dispatches []*entity.Dispatch) error {
	if len(dispatches) == 0 {
		return nil
	}
	defer track("dispatch_log_errors")()

	// Persist compiled bodies so later attempts skip recompilation.
	const cacheQuery = `UPDATE dispatches SET message_cache = $1 WHERE id = $2`
	for _, dispatch := range dispatches {
		if _, err := repo.db.ExecContext(ctx, cacheQuery, dispatch.MessageCache, dispatch.ID); err != nil {
			return fmt.Errorf("LogErrors: save cache: %w", err)
		}
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO dispatch_errors (dispatch_id, error_log) VALUES `)
	args := make([]any, 0, len(dispatches)*2)
	for i, dispatch := range dispatches {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 2
		fmt.Fprintf(&sb, "($%d, $%d)", n+1, n+2)
		args = append(args, dispatch.ID, dispatch.ErrorLog)
	}

	if _, err := repo.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("LogErrors: %w", err)
	}
	return nil
}

func (repo *DispatchRepo) RequeueProcessing(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	defer track("dispatch_requeue_processing")()

	const query = `
UPDATE dispatches
SET dispatch_status = $1
WHERE id = ANY($2) AND dispatch_status = $3`
	_, err := repo.db.ExecContext(ctx, query,
		int16(entity.DispatchStatusPending), pq.Array(ids), int16(entity.DispatchStatusProcessing))
	if err != nil {
		return fmt.Errorf("RequeueProcessing: %w", err)
	}
	return nil
}

func (repo *DispatchRepo) MarkRead(ctx context.Context, id int64) error {
	defer track("dispatch_mark_read")()

	const query = `UPDATE dispatches SET read_status = $1 WHERE id = $2`
	res, err := repo.db.ExecContext(ctx, query, int16(entity.ReadStatusRead), id)
	if err != nil {
		return fmt.Errorf("MarkRead: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("MarkRead: no rows affected")
	}
	return nil
}

func (repo *DispatchRepo) ListUnread(ctx context.Context) ([]*entity.Dispatch, error) {
	defer track("dispatch_list_unread")()

	query := dispatchColumns + `
WHERE d.read_status = $1
ORDER BY d.time_created DESC`
	rows, err := repo.db.QueryContext(ctx, query, int16(entity.ReadStatusUnread))
	if err != nil {
		return nil, fmt.Errorf("ListUnread: %w", err)
	}

	dispatches, err := scanDispatchRows(rows)
	if err != nil {
		return nil, fmt.Errorf("ListUnread: %w", err)
	}
	return dispatches, nil
}

func (repo *DispatchRepo) ListUnreadPage(ctx context.Context, offset, limit int) ([]*entity.Dispatch, error) {
	defer track("dispatch_list_unread_page")()

	query := dispatchColumns + `
WHERE d.read_status = $1
ORDER BY d.time_created DESC
LIMIT $2 OFFSET $3`
	rows, err := repo.db.QueryContext(ctx, query, int16(entity.ReadStatusUnread), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListUnreadPage: %w", err)
	}

	dispatches, err := scanDispatchRows(rows)
	if err != nil {
		return nil, fmt.Errorf("ListUnreadPage: %w", err)
	}
	return dispatches, nil
}

func (repo *DispatchRepo) CountUnread(ctx context.Context) (int64, error) {
	defer track("dispatch_count_unread")()

	const query = `SELECT COUNT(*) FROM dispatches WHERE read_status = $1`
	var count int64
	err := repo.db.QueryRowContext(ctx, query, int16(entity.ReadStatusUnread)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("CountUnread: %w", err)
	}
	return count, nil
}

func (repo *DispatchRepo) CountFailed(ctx context.Context) (int64, error) {
	defer track("dispatch_count_failed")()

	const query = `SELECT COUNT(*) FROM dispatches WHERE dispatch_status = $1`
	var count int64
	err := repo.db.QueryRowContext(ctx, query, int16(entity.DispatchStatusFailed)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("CountFailed: %w", err)
	}
	return count, nil
}

func (repo *DispatchRepo) CleanupSent(
	ctx context.Context, before *time.Time, dispatchesOnly bool,
) (repository.CleanupResult, error) {
	defer track("dispatch_cleanup_sent")()

	var result repository.CleanupResult

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("CleanupSent: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `DELETE FROM dispatches WHERE dispatch_status = $1`
	args := []any{int16(entity.DispatchStatusSent)}
	if before != nil {
		query += ` AND time_dispatched <= $2`
		args = append(args, *before)
	}
	query += ` RETURNING message_id`

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return result, fmt.Errorf("CleanupSent: %w", err)
	}

	messageIDs := make([]int64, 0, 50)
	seen := make(map[int64]struct{})
	for rows.Next() {
		var messageID int64
		if err := rows.Scan(&messageID); err != nil {
			_ = rows.Close()
			return result, fmt.Errorf("CleanupSent: Scan: %w", err)
		}
		result.Dispatches++
		if _, ok := seen[messageID]; !ok {
			seen[messageID] = struct{}{}
			messageIDs = append(messageIDs, messageID)
		}
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("CleanupSent: %w", err)
	}
	_ = rows.Close()

	if !dispatchesOnly && len(messageIDs) > 0 {
		// A message goes only when no dispatch of any status references it.
		const deleteMessages = `
DELETE FROM messages
WHERE id = ANY($1)
  AND NOT EXISTS (SELECT 1 FROM dispatches WHERE dispatches.message_id = messages.id)`
		res, err := tx.ExecContext(ctx, deleteMessages, pq.Array(messageIDs))
		if err != nil {
			return result, fmt.Errorf("CleanupSent: messages: %w", err)
		}
		result.Messages, _ = res.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("CleanupSent: %w", err)
	}
	return result, nil
}
