// Package dispatch implements the delivery pipeline: scheduling messages,
// claiming unsent dispatches, driving messengers through the
// warm-up/send/cool-down protocol and reconciling outcomes back into storage.
//
// A send pass never aborts on per-dispatch or per-message failures. Delivery
// problems become dispatch statuses plus logged error rows; the only errors a
// pass propagates are registry misses surfaced with the ignore flags unset
// and storage failures while reconciling.
package dispatch

import (
	"context"

	"courier/internal/message"
	"courier/internal/registry"
	"courier/internal/repository"
)

// AddressBook resolves a deliverable address for a known user on a given
// channel. The preparation pass consults it for subscriptions stored with a
// bare user reference and no address. Implementations should return an empty
// address for users that must not be contacted (unknown, deactivated).
// Deployments without a user directory leave it nil; address-less
// subscriptions are then skipped.
type AddressBook interface {
	Address(ctx context.Context, userID int64, messengerAlias string) (string, error)
}

// Service drives the dispatch lifecycle end to end. All dependencies are
// injected; the service itself is stateless and safe for concurrent use.
type Service struct {
	messages      repository.MessageRepository
	dispatches    repository.DispatchRepository
	subscriptions repository.SubscriptionRepository
	messengers    *registry.Messengers
	types         *registry.MessageTypes
	compiler      *message.Compiler
	addresses     AddressBook
}

// NewService creates a dispatch service.
//
// Parameters:
//   - messages, dispatches, subscriptions: persistence
//   - messengers, types: alias registries populated at startup
//   - compiler: renders dispatch content
//   - addresses: optional user directory (may be nil)
func NewService(
	messages repository.MessageRepository,
	dispatches repository.DispatchRepository,
	subscriptions repository.SubscriptionRepository,
	messengers *registry.Messengers,
	types *registry.MessageTypes,
	compiler *message.Compiler,
	addresses AddressBook,
) *Service {
	return &Service{
		messages:      messages,
		dispatches:    dispatches,
		subscriptions: subscriptions,
		messengers:    messengers,
		types:         types,
		compiler:      compiler,
		addresses:     addresses,
	}
}
