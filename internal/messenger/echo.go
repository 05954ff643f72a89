package messenger

import (
	"context"
	"sync"
)

const AliasEcho = "echo"

// EchoDelivery is one recorded delivery.
type EchoDelivery struct {
	Address    string
	Text       string
	MessageID  int64
	DispatchID int64
}

// Echo is an in-memory channel for tests and local development: deliveries
// are recorded instead of transmitted. Failures are scriptable per address
// so callers can exercise every outcome bucket.
type Echo struct {
	mu         sync.Mutex
	deliveries []EchoDelivery
	warmupErr  error
	failing    map[string]error
	rejected   map[string]bool
}

func NewEcho() *Echo {
	return &Echo{
		failing:  make(map[string]error),
		rejected: make(map[string]bool),
	}
}

// FailWarmup makes every subsequent BeforeSend fail with err. A nil err
// restores normal behavior.
func (e *Echo) FailWarmup(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.warmupErr = err
}

// FailAddress makes deliveries to addr fail transiently with err.
func (e *Echo) FailAddress(addr string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failing[addr] = err
}

// RejectAddress makes deliveries to addr fail permanently, like a server
// rejecting the recipient.
func (e *Echo) RejectAddress(addr string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rejected[addr] = true
}

// Deliveries returns a copy of everything recorded so far.
func (e *Echo) Deliveries() []EchoDelivery {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]EchoDelivery(nil), e.deliveries...)
}

func (e *Echo) Alias() string { return AliasEcho }

func (e *Echo) Title() string { return "Echo" }

func (e *Echo) AllowUserSubscription() bool { return false }

func (e *Echo) Address(to any) string {
	return AddressOf(AliasEcho, to)
}

func (e *Echo) BeforeSend(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.warmupErr != nil {
		return &WarmupError{Messenger: AliasEcho, Err: e.warmupErr}
	}
	return nil
}

func (e *Echo) AfterSend(ctx context.Context) error { return nil }

func (e *Echo) Send(ctx context.Context, batch *Batch, out *Outcomes) error {
	for _, dispatch := range batch.Dispatches {
		e.mu.Lock()
		rejected := e.rejected[dispatch.Address]
		failure := e.failing[dispatch.Address]
		e.mu.Unlock()

		if rejected {
			out.MarkFailed(dispatch, &ClientError{StatusCode: 400, Message: "address rejected"})
			continue
		}
		if failure != nil {
			out.MarkError(dispatch, batch.Type, failure)
			continue
		}

		e.record(EchoDelivery{
			Address:    dispatch.Address,
			Text:       dispatch.MessageCache,
			MessageID:  batch.Message.ID,
			DispatchID: dispatch.ID,
		})
		out.MarkSent(dispatch)
	}

	return nil
}

func (e *Echo) SendTest(ctx context.Context, to, text string) error {
	e.mu.Lock()
	rejected := e.rejected[to]
	failure := e.failing[to]
	e.mu.Unlock()

	if rejected {
		return &ClientError{StatusCode: 400, Message: "address rejected"}
	}
	if failure != nil {
		return failure
	}

	e.record(EchoDelivery{Address: to, Text: text})
	return nil
}

func (e *Echo) record(delivery EchoDelivery) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deliveries = append(e.deliveries, delivery)
}
