package repository

import (
	"context"
	"time"

	"courier/internal/domain/entity"
)

// StatusBuckets groups dispatches by the delivery outcome of one send pass.
// Every dispatch placed in a bucket has its attempt recorded: the status is
// updated, the dispatch time is set and the retry counter advances by one.
type StatusBuckets struct {
	Sent    []*entity.Dispatch
	Error   []*entity.Dispatch
	Failed  []*entity.Dispatch
	Pending []*entity.Dispatch
}

// CleanupResult reports how many rows a retention sweep removed.
type CleanupResult struct {
	Dispatches int64
	Messages   int64
}

type DispatchRepository interface {
	// CreateBatch inserts dispatches and assigns their IDs.
	CreateBatch(ctx context.Context, dispatches []*entity.Dispatch) error
	// Get returns a dispatch with its owning message attached.
	// Returns (nil, nil) if the dispatch is not found.
	Get(ctx context.Context, id int64) (*entity.Dispatch, error)
	// ClaimUnsent atomically selects dispatches awaiting delivery (pending or
	// errored, newest messages first) and flips them to processing within the
	// same transaction. A negative priority disables the priority filter.
	// Claimed dispatches carry their owning messages.
	ClaimUnsent(ctx context.Context, priority int) ([]*entity.Dispatch, error)
	// SetStatuses batch-records delivery outcomes for a finished pass.
	SetStatuses(ctx context.Context, buckets StatusBuckets) error
	// LogErrors persists the compiled body cache of each dispatch and appends
	// a dispatch error row from its ErrorLog.
	LogErrors(ctx context.Context, dispatches []*entity.Dispatch) error
	// RequeueProcessing returns claimed dispatches to the pending state
	// without counting a delivery attempt.
	RequeueProcessing(ctx context.Context, ids []int64) error
	MarkRead(ctx context.Context, id int64) error
	// ListUnread returns unread dispatches with their owning messages attached.
	ListUnread(ctx context.Context) ([]*entity.Dispatch, error)
	// ListUnreadPage returns one offset page of the unread feed, newest first.
	ListUnreadPage(ctx context.Context, offset, limit int) ([]*entity.Dispatch, error)
	CountUnread(ctx context.Context) (int64, error)
	CountFailed(ctx context.Context) (int64, error)
	// CleanupSent removes delivered dispatches, optionally only those last
	// dispatched at or before the given time. Unless dispatchesOnly is set,
	// affected messages left with no dispatches at all are removed too.
	CleanupSent(ctx context.Context, before *time.Time, dispatchesOnly bool) (CleanupResult, error)
}
