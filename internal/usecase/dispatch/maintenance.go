package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"courier/internal/common/pagination"
	"courier/internal/domain/entity"
	"courier/internal/message"
	"courier/internal/messenger"
	"courier/internal/repository"
)

// undeliveredPriority is reserved for failed-delivery alerts so an immediate
// targeted pass picks up only them.
const undeliveredPriority = 999

// SendTestMessage delivers a canned payload through one messenger outside
// the dispatch lifecycle, to verify channel configuration.
func (s *Service) SendTestMessage(ctx context.Context, messengerAlias, address string) error {
	m, err := s.messengers.Get(messengerAlias)
	if err != nil {
		return err
	}

	if err := m.BeforeSend(ctx); err != nil {
		return fmt.Errorf("SendTestMessage: warm up %s: %w", messengerAlias, err)
	}

	if err := m.SendTest(ctx, address, "Test message from courier."); err != nil {
		if cdErr := m.AfterSend(ctx); cdErr != nil {
			slog.Warn("Messenger cool-down failed",
				slog.String("messenger", messengerAlias),
				slog.Any("error", cdErr))
		}
		return fmt.Errorf("SendTestMessage: %s: %w", messengerAlias, err)
	}

	if err := m.AfterSend(ctx); err != nil {
		return fmt.Errorf("SendTestMessage: cool down %s: %w", messengerAlias, err)
	}

	slog.Info("Test message sent",
		slog.String("messenger", messengerAlias),
		slog.String("address", address))
	return nil
}

// CheckUndelivered counts dispatches that failed for good and, when the
// count is non-zero and admin addresses are given, e-mails them an alert and
// immediately runs a send pass restricted to the alert's priority.
//
// The plain-text e-mail type is (re)registered on the fly so the alert goes
// out even from deployments that never use it otherwise.
func (s *Service) CheckUndelivered(ctx context.Context, to ...string) (int64, error) {
	count, err := s.dispatches.CountFailed(ctx)
	if err != nil {
		return 0, fmt.Errorf("CheckUndelivered: count failed: %w", err)
	}
	SetUndelivered(count)

	if count == 0 || len(to) == 0 {
		return count, nil
	}

	s.types.Register(message.EmailText())

	draft, err := message.Email(
		"[courier] Undelivered dispatches",
		fmt.Sprintf("You have %d undelivered dispatch(es) at %s", count, s.compiler.SiteURL()),
	)
	if err != nil {
		return count, fmt.Errorf("CheckUndelivered: build alert: %w", err)
	}
	draft.Priority = undeliveredPriority

	recipients := make([]any, 0, len(to))
	for _, addr := range to {
		recipients = append(recipients, addr)
	}
	if _, err := s.scheduleVia(ctx, messenger.AliasSMTP, draft, recipients); err != nil {
		return count, fmt.Errorf("CheckUndelivered: schedule alert: %w", err)
	}

	if _, err := s.SendDue(ctx, SendOptions{Priority: undeliveredPriority}); err != nil {
		return count, fmt.Errorf("CheckUndelivered: send alert: %w", err)
	}

	slog.Info("Undelivered alert sent",
		slog.Int64("failed", count),
		slog.Int("recipients", len(to)))
	return count, nil
}

// CleanupSent removes delivered dispatches, and unless dispatchesOnly is
// set, messages those deletions leave with no dispatches at all. A positive
// olderThan restricts the sweep to dispatches last attempted at least that
// long ago.
func (s *Service) CleanupSent(ctx context.Context, olderThan time.Duration, dispatchesOnly bool) (repository.CleanupResult, error) {
	var before *time.Time
	if olderThan > 0 {
		t := time.Now().Add(-olderThan)
		before = &t
	}

	result, err := s.dispatches.CleanupSent(ctx, before, dispatchesOnly)
	if err != nil {
		return result, fmt.Errorf("CleanupSent: %w", err)
	}

	RecordCleanup(result)
	if result.Dispatches > 0 || result.Messages > 0 {
		slog.Info("Cleaned up sent dispatches",
			slog.Int64("dispatches", result.Dispatches),
			slog.Int64("messages", result.Messages),
			slog.Bool("dispatches_only", dispatchesOnly))
	}
	return result, nil
}

// Dispatch returns one dispatch with its owning message attached, or
// (nil, nil) when no such dispatch exists.
func (s *Service) Dispatch(ctx context.Context, id int64) (*entity.Dispatch, error) {
	return s.dispatches.Get(ctx, id)
}

// MarkRead records that the recipient has seen the dispatch content.
func (s *Service) MarkRead(ctx context.Context, id int64) error {
	if err := s.dispatches.MarkRead(ctx, id); err != nil {
		return fmt.Errorf("MarkRead: dispatch %d: %w", id, err)
	}
	return nil
}

// ListUnread returns delivered dispatches not yet seen by their recipients.
func (s *Service) ListUnread(ctx context.Context) ([]*entity.Dispatch, error) {
	return s.dispatches.ListUnread(ctx)
}

// UnreadPage is one page of the unread feed.
type UnreadPage struct {
	Dispatches []*entity.Dispatch
	Pagination pagination.Metadata
}

// ListUnreadPage returns one page of unread dispatches, newest first, with
// the total count for page navigation.
func (s *Service) ListUnreadPage(ctx context.Context, params pagination.Params) (*UnreadPage, error) {
	total, err := s.dispatches.CountUnread(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListUnreadPage: count: %w", err)
	}

	offset := pagination.CalculateOffset(params.Page, params.Limit)
	dispatches, err := s.dispatches.ListUnreadPage(ctx, offset, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("ListUnreadPage: %w", err)
	}

	return &UnreadPage{
		Dispatches: dispatches,
		Pagination: pagination.MetadataFor(params, total),
	}, nil
}

// Unsubscribe cancels the subscription a dispatch was delivered under: the
// dispatch's recipient (user if known, raw address otherwise) stops
// receiving the message type through the dispatch's messenger.
func (s *Service) Unsubscribe(ctx context.Context, dispatch *entity.Dispatch) error {
	ref := repository.SubscriberRef{}
	if dispatch.RecipientID != nil {
		ref.UserID = dispatch.RecipientID
	} else {
		ref.Address = dispatch.Address
	}

	var cls string
	if dispatch.Message != nil {
		cls = dispatch.Message.Cls
	}

	if err := s.subscriptions.Cancel(ctx, ref, cls, dispatch.Messenger); err != nil {
		return fmt.Errorf("Unsubscribe: dispatch %d: %w", dispatch.ID, err)
	}

	slog.Info("Cancelled subscription",
		slog.Int64("dispatch_id", dispatch.ID),
		slog.String("cls", cls),
		slog.String("messenger", dispatch.Messenger))
	return nil
}
