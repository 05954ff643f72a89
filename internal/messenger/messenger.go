// Package messenger defines the delivery channel contract and its concrete
// implementations (SMTP, Telegram, Slack, Discord plus an in-memory echo
// channel for tests).
//
// A messenger delivers the compiled bodies of one message to its dispatches
// in a warm-up / send / cool-down cycle driven by the send orchestrator.
// Implementations report per-dispatch results through an Outcomes accumulator
// instead of returning errors from Send: only a failure that invalidates the
// whole remaining batch should surface as a Send error.
package messenger

import (
	"context"
	"fmt"
	"time"

	"courier/internal/domain/entity"
	"courier/internal/message"
)

// DefaultTimeout caps a single protocol round trip when a messenger is
// configured without an explicit timeout.
const DefaultTimeout = 10 * time.Second

// Batch is the unit of work handed to a messenger: one message, its resolved
// type and the claimed dispatches addressed to this channel. Dispatches carry
// their compiled bodies in MessageCache by the time Send runs.
type Batch struct {
	Type       message.Type
	Message    *entity.Message
	Dispatches []*entity.Dispatch
}

// Messenger is a delivery channel addressed by alias.
//
// The orchestrator calls BeforeSend once per pass, Send once per message in
// the channel's group and AfterSend once at the end, recording outcomes
// unconditionally. BeforeSend errors abort the whole group for the pass;
// implementations wrap them in WarmupError so callers can tell a connection
// problem from a per-dispatch delivery problem.
type Messenger interface {
	// Alias is the registry key. It is also the value stored in
	// Dispatch.Messenger and Subscription.MessengerCls.
	Alias() string

	// Title is the human-readable channel name shown in preference UIs.
	Title() string

	// AllowUserSubscription reports whether the channel appears in user
	// preference matrices.
	AllowUserSubscription() bool

	// Address extracts the delivery address this channel understands from a
	// recipient value. An empty result means the recipient is not addressable
	// through this channel.
	Address(to any) string

	// BeforeSend warms the channel up (opens a session, verifies a token).
	BeforeSend(ctx context.Context) error

	// Send delivers one batch, marking every dispatch on out. A returned
	// error stands for an unhandled batch-wide failure; the orchestrator
	// fans it out as Error across the batch's unmarked dispatches.
	Send(ctx context.Context, batch *Batch, out *Outcomes) error

	// AfterSend cools the channel down. It must tolerate being called after
	// a failed warm-up.
	AfterSend(ctx context.Context) error

	// SendTest delivers a canned payload to a single address outside the
	// dispatch lifecycle. Callers run it between BeforeSend and AfterSend.
	SendTest(ctx context.Context, to, text string) error
}

// Addressable lets one recipient value resolve to different addresses per
// channel: an e-mail address for smtp, a chat id for telegram. User-like
// application types implement it to subscribe through several channels.
type Addressable interface {
	RecipientID() int64
	RecipientAddress(messengerAlias string) string
}

// AddressOf resolves a delivery address from the recipient values Resolve
// accepts: a plain string is an address already, an entity.Recipient carries
// one, an Addressable is asked for the channel-specific one.
func AddressOf(messengerAlias string, to any) string {
	switch v := to.(type) {
	case string:
		return v
	case entity.Recipient:
		return v.Address
	case *entity.Recipient:
		if v == nil {
			return ""
		}
		return v.Address
	case Addressable:
		return v.RecipientAddress(messengerAlias)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// Resolve expands recipient values into delivery targets for one channel.
// Address extraction is strict: a recipient yielding an empty address makes
// the whole call fail with entity.ErrInvalidAddress, so nothing
// non-addressable ever reaches storage.
func Resolve(m Messenger, recipients ...any) ([]entity.Recipient, error) {
	resolved := make([]entity.Recipient, 0, len(recipients))

	for _, recipient := range recipients {
		target := entity.Recipient{Messenger: m.Alias()}

		switch v := recipient.(type) {
		case entity.Recipient:
			target.UserID = v.UserID
		case *entity.Recipient:
			if v != nil {
				target.UserID = v.UserID
			}
		case Addressable:
			if id := v.RecipientID(); id != 0 {
				target.UserID = &id
			}
		}

		target.Address = m.Address(recipient)
		if target.Address == "" {
			return nil, fmt.Errorf("messenger %s: recipient %v: %w", m.Alias(), recipient, entity.ErrInvalidAddress)
		}

		resolved = append(resolved, target)
	}

	return resolved, nil
}

// PayloadSender is the secondary contract of request/response channels:
// build one wire payload per dispatch, then transmit it. Keeping the two
// steps separate lets the probe path reuse exactly the payload construction
// the batch send uses.
type PayloadSender interface {
	BuildPayload(text, address string) (any, error)
	Transmit(ctx context.Context, payload any) error
}

// SendEach delivers a batch one dispatch at a time through a PayloadSender,
// marking every dispatch on out. Permanent rejections go straight to Failed;
// anything else becomes Error with the message type's retry escalation
// applied.
func SendEach(ctx context.Context, sender PayloadSender, batch *Batch, out *Outcomes) {
	for _, dispatch := range batch.Dispatches {
		payload, err := sender.BuildPayload(dispatch.MessageCache, dispatch.Address)
		if err != nil {
			out.MarkError(dispatch, batch.Type, err)
			continue
		}

		if err := sender.Transmit(ctx, payload); err != nil {
			if IsPermanent(err) {
				out.MarkFailed(dispatch, err)
			} else {
				out.MarkError(dispatch, batch.Type, err)
			}
			continue
		}

		out.MarkSent(dispatch)
	}
}

// WarmupError reports a failed BeforeSend. Warm-up failures are assumed
// transient: the orchestrator marks the channel's whole group Error and the
// next pass retries it.
type WarmupError struct {
	Messenger string
	Err       error
}

func (e *WarmupError) Error() string {
	return fmt.Sprintf("%s warmup: %v", e.Messenger, e.Err)
}

func (e *WarmupError) Unwrap() error {
	return e.Err
}
