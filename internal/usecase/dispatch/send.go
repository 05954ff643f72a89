package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"courier/internal/domain/entity"
	"courier/internal/message"
	"courier/internal/messenger"
	"courier/internal/observability/tracing"
)

// maxConcurrentGroups bounds how many messenger groups one pass drives in
// parallel. Groups are independent: each owns its messenger session and its
// own outcome accumulator.
const maxConcurrentGroups = 4

// Requeue reasons reported by RecordRequeued.
const (
	requeueUnknownMessenger = "unknown_messenger"
	requeueUnknownType      = "unknown_message_type"
)

// SendOptions tunes one send pass.
type SendOptions struct {
	// Priority restricts the pass to dispatches of messages with exactly
	// this priority. Negative processes all priorities.
	Priority int

	// IgnoreUnknownMessengers keeps the pass quiet when claimed dispatches
	// reference a messenger missing from the registry. The dispatches are
	// requeued either way; with the flag unset the pass also reports the
	// registry miss.
	IgnoreUnknownMessengers bool

	// IgnoreUnknownTypes is the same switch for unregistered message types.
	IgnoreUnknownTypes bool
}

// PassStats summarizes one send pass.
type PassStats struct {
	// PassID correlates log lines and spans of one pass.
	PassID string

	// Claimed is how many dispatches the pass took over.
	Claimed int

	// Outcome counts. Pending counts dispatches deferred to a later pass
	// with an attempt recorded; Requeued counts dispatches returned without
	// an attempt.
	Sent     int
	Errored  int
	Failed   int
	Pending  int
	Requeued int

	Duration time.Duration
}

// SendDue claims unsent dispatches and delivers them, grouped by messenger
// and message. Delivery problems never abort the pass: they become dispatch
// statuses and logged error rows. The returned error reports registry misses
// (unless ignored via options) and storage failures; stats are valid even
// when it is non-nil.
func (s *Service) SendDue(ctx context.Context, opts SendOptions) (*PassStats, error) {
	passID := uuid.NewString()

	ctx, span := tracing.GetTracer().Start(ctx, "dispatch.send_pass",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()
	span.SetAttributes(
		attribute.String("pass_id", passID),
		attribute.Int("priority", opts.Priority),
	)

	start := time.Now()

	claimed, err := s.dispatches.ClaimUnsent(ctx, opts.Priority)
	if err != nil {
		return nil, fmt.Errorf("SendDue: claim unsent: %w", err)
	}

	stats := &PassStats{PassID: passID, Claimed: len(claimed)}
	finish := func() {
		stats.Duration = time.Since(start)
		RecordPass(stats.Claimed, stats.Duration)
	}

	if len(claimed) == 0 {
		finish()
		slog.Debug("Nothing to send",
			slog.String("pass_id", passID),
			slog.Int("priority", opts.Priority))
		return stats, nil
	}

	slog.Info("Send pass started",
		slog.String("pass_id", passID),
		slog.Int("priority", opts.Priority),
		slog.Int("claimed", len(claimed)))

	var passErr error
	keep := func(err error) {
		if passErr == nil && err != nil {
			passErr = err
		}
	}

	byMessenger := entity.GroupByMessenger(claimed)

	aliases := make([]string, 0, len(byMessenger))
	for alias := range byMessenger {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	// Dispatches addressed to unregistered messengers cannot be attempted;
	// return them to the queue before the delivery goroutines start.
	work := make([]messenger.Messenger, 0, len(aliases))
	workGroups := make([]map[int64]*entity.MessageDispatches, 0, len(aliases))
	for _, alias := range aliases {
		m, err := s.messengers.Get(alias)
		if err != nil {
			n := s.requeueAll(ctx, byMessenger[alias], keep)
			stats.Requeued += n
			RecordRequeued(requeueUnknownMessenger, n)
			slog.Warn("Requeued dispatches for unregistered messenger",
				slog.String("pass_id", passID),
				slog.String("messenger", alias),
				slog.Int("dispatches", n))
			if !opts.IgnoreUnknownMessengers {
				keep(err)
			}
			continue
		}
		work = append(work, m)
		workGroups = append(workGroups, byMessenger[alias])
	}

	results := make([]*groupResult, len(work))

	var eg errgroup.Group
	eg.SetLimit(maxConcurrentGroups)

	for i := range work {
		idx := i
		eg.Go(func() error {
			results[idx] = s.deliverGroup(ctx, work[idx], workGroups[idx])
			return results[idx].reconcileErr
		})
	}
	keep(eg.Wait())

	for _, res := range results {
		if res == nil {
			continue
		}
		stats.Sent += res.sent
		stats.Errored += res.errored
		stats.Failed += res.failed
		stats.Pending += res.pending
		stats.Requeued += res.requeued
		if res.unknownType != nil && !opts.IgnoreUnknownTypes {
			keep(res.unknownType)
		}
	}

	finish()
	span.SetAttributes(
		attribute.Int("claimed", stats.Claimed),
		attribute.Int("sent", stats.Sent),
		attribute.Int("errored", stats.Errored),
		attribute.Int("failed", stats.Failed),
		attribute.Int("requeued", stats.Requeued),
	)
	if passErr != nil {
		span.SetAttributes(attribute.Bool("error", true))
	}

	slog.Info("Send pass finished",
		slog.String("pass_id", passID),
		slog.Int("claimed", stats.Claimed),
		slog.Int("sent", stats.Sent),
		slog.Int("errored", stats.Errored),
		slog.Int("failed", stats.Failed),
		slog.Int("pending", stats.Pending),
		slog.Int("requeued", stats.Requeued),
		slog.Duration("duration", stats.Duration))

	return stats, passErr
}

// groupResult is what one messenger group contributes back to the pass.
type groupResult struct {
	sent    int
	errored int
	failed  int
	pending int

	// requeued counts unknown-type dispatches returned without an attempt.
	requeued int

	// unknownType is the first message-type registry miss hit by the group.
	unknownType error

	// reconcileErr is a storage failure while recording outcomes or
	// requeueing; outcomes may be partially persisted when set.
	reconcileErr error
}

// deliverGroup drives one messenger through the warm-up / send / cool-down
// cycle over its share of the claimed dispatches and reconciles the outcomes
// back into storage.
//
// Containment rules:
//   - A failed warm-up marks every dispatch of the group Error; the
//     messenger is never asked to send.
//   - A message whose type is unregistered is requeued; other messages of
//     the group still go out.
//   - A compile failure marks that dispatch Error; the rest of the message's
//     dispatches still go out.
//   - A Send error marks the batch's unmarked dispatches Error; other
//     messages of the group still go out.
//   - Cool-down runs regardless, and outcomes are persisted regardless.
func (s *Service) deliverGroup(
	ctx context.Context, m messenger.Messenger, byMessage map[int64]*entity.MessageDispatches,
) *groupResult {
	alias := m.Alias()
	res := &groupResult{}
	out := messenger.NewOutcomes()

	// Claim order is newest messages first; keep it within the group.
	ids := make([]int64, 0, len(byMessage))
	for id := range byMessage {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	// Requeued dispatches are back in the queue already; batch-wide fan-outs
	// and the final sweep must leave them alone.
	requeued := make(map[int64]struct{})
	keepReconcile := func(err error) {
		if res.reconcileErr == nil && err != nil {
			res.reconcileErr = err
		}
	}

	if err := m.BeforeSend(ctx); err != nil {
		RecordWarmupFailure(alias)
		slog.Error("Messenger warm-up failed",
			slog.String("messenger", alias),
			slog.Any("error", err))

		for _, id := range ids {
			group := byMessage[id]
			typ := s.lookupType(group.Message.Cls)
			for _, d := range group.Dispatches {
				out.MarkError(d, typ, err)
			}
		}
	} else {
		for _, id := range ids {
			group := byMessage[id]

			typ, err := s.types.Get(group.Message.Cls)
			if err != nil {
				n := len(group.Dispatches)
				if requeueErr := s.requeueDispatches(ctx, group.Dispatches); requeueErr != nil {
					keepReconcile(requeueErr)
				}
				for _, d := range group.Dispatches {
					requeued[d.ID] = struct{}{}
				}
				res.requeued += n
				RecordRequeued(requeueUnknownType, n)
				slog.Warn("Requeued dispatches for unregistered message type",
					slog.String("messenger", alias),
					slog.String("cls", group.Message.Cls),
					slog.Int64("message_id", group.Message.ID),
					slog.Int("dispatches", n))
				if res.unknownType == nil {
					res.unknownType = err
				}
				continue
			}

			s.compileGroup(typ, alias, group, out)

			sendable := unmarked(group.Dispatches, out)
			if len(sendable) == 0 {
				continue
			}

			batch := &messenger.Batch{Type: typ, Message: group.Message, Dispatches: sendable}
			if err := m.Send(ctx, batch, out); err != nil {
				slog.Error("Messenger batch send failed",
					slog.String("messenger", alias),
					slog.Int64("message_id", group.Message.ID),
					slog.Any("error", err))
				for _, d := range sendable {
					if !out.Marked(d) {
						out.MarkError(d, typ, err)
					}
				}
			}
		}
	}

	if err := m.AfterSend(ctx); err != nil {
		slog.Warn("Messenger cool-down failed",
			slog.String("messenger", alias),
			slog.Any("error", err))
		for _, id := range ids {
			group := byMessage[id]
			typ := s.lookupType(group.Message.Cls)
			for _, d := range group.Dispatches {
				if _, ok := requeued[d.ID]; ok {
					continue
				}
				if !out.Marked(d) {
					out.MarkError(d, typ, err)
				}
			}
		}
	}

	// A messenger that returns without marking part of its batch leaves
	// those dispatches claimed forever; defer them to the next pass instead.
	for _, id := range ids {
		for _, d := range byMessage[id].Dispatches {
			if _, ok := requeued[d.ID]; ok {
				continue
			}
			if !out.Marked(d) {
				out.MarkPending(d)
			}
		}
	}

	res.sent, res.errored, res.failed, res.pending = out.Counts()
	RecordOutcomes(alias, res.sent, res.errored, res.failed, res.pending)

	if res.sent+res.errored+res.failed+res.pending > 0 {
		if logged := out.Logged(); len(logged) > 0 {
			if err := s.dispatches.LogErrors(ctx, logged); err != nil {
				keepReconcile(fmt.Errorf("log %s dispatch errors: %w", alias, err))
			}
		}
		// Statuses are recorded even when error logging failed; a claimed
		// dispatch must never stay in processing.
		if err := s.dispatches.SetStatuses(ctx, out.Buckets()); err != nil {
			keepReconcile(fmt.Errorf("set %s dispatch statuses: %w", alias, err))
		}
	}

	slog.Info("Messenger group finished",
		slog.String("messenger", alias),
		slog.Int("sent", res.sent),
		slog.Int("errored", res.errored),
		slog.Int("failed", res.failed),
		slog.Int("pending", res.pending),
		slog.Int("requeued", res.requeued))

	return res
}

// compileGroup renders the message body into each dispatch cache that does
// not carry one yet. Types without dynamic context compile once per message
// and share the result; a compile failure marks only the affected dispatch.
func (s *Service) compileGroup(
	typ message.Type, messengerAlias string, group *entity.MessageDispatches, out *messenger.Outcomes,
) {
	var shared string
	for _, d := range group.Dispatches {
		if d.MessageCache != "" {
			continue
		}
		if shared != "" && !typ.HasDynamicContext() {
			d.MessageCache = shared
			continue
		}

		text, err := s.compiler.Compile(typ, group.Message, messengerAlias, d)
		if err != nil {
			RecordCompileFailure(group.Message.Cls)
			slog.Error("Dispatch compile failed",
				slog.Int64("message_id", group.Message.ID),
				slog.Int64("dispatch_id", d.ID),
				slog.String("messenger", messengerAlias),
				slog.Any("error", err))
			out.MarkError(d, typ, err)
			continue
		}

		d.MessageCache = text
		if !typ.HasDynamicContext() {
			shared = text
		}
	}
}

// lookupType resolves a message type quietly. Batch-wide fan-outs use it so
// the retry cap still applies when the type is known; nil disables the cap.
func (s *Service) lookupType(cls string) message.Type {
	typ, err := s.types.Get(cls)
	if err != nil {
		return nil
	}
	return typ
}

// requeueAll returns every dispatch of a messenger's share to the queue.
func (s *Service) requeueAll(
	ctx context.Context, byMessage map[int64]*entity.MessageDispatches, keep func(error),
) int {
	n := 0
	for _, group := range byMessage {
		if err := s.requeueDispatches(ctx, group.Dispatches); err != nil {
			keep(err)
		}
		n += len(group.Dispatches)
	}
	return n
}

func (s *Service) requeueDispatches(ctx context.Context, dispatches []*entity.Dispatch) error {
	ids := make([]int64, 0, len(dispatches))
	for _, d := range dispatches {
		ids = append(ids, d.ID)
	}
	if err := s.dispatches.RequeueProcessing(ctx, ids); err != nil {
		return fmt.Errorf("requeue processing: %w", err)
	}
	return nil
}

func unmarked(dispatches []*entity.Dispatch, out *messenger.Outcomes) []*entity.Dispatch {
	sendable := make([]*entity.Dispatch, 0, len(dispatches))
	for _, d := range dispatches {
		if !out.Marked(d) {
			sendable = append(sendable, d)
		}
	}
	return sendable
}
