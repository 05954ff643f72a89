package repository

import (
	"context"

	"courier/internal/domain/entity"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	Get(ctx context.Context, id int64) (*entity.Message, error)
	// FindOpenGrouped returns the newest message with the given class, group
	// mark and sender that is still collecting content: one with a pending
	// dispatch, or one whose dispatches were never formed.
	// Returns (nil, nil) when no such message exists.
	FindOpenGrouped(ctx context.Context, cls, groupMark string, senderID *int64) (*entity.Message, error)
	// UpdateContext stores a new context document and resets any cached
	// dispatch bodies so the next delivery pass recompiles them.
	UpdateContext(ctx context.Context, id int64, context entity.Context) error
	SetDispatchesReady(ctx context.Context, id int64) error
	// ListWithoutDispatches returns messages whose dispatches are not yet formed.
	ListWithoutDispatches(ctx context.Context) ([]*entity.Message, error)
}
