// Package registry maps aliases to configured messengers and registered
// message types. Both registries are plain injected values, not globals:
// binaries build them at startup from configuration and hand them to the
// dispatch orchestrator and the preference service.
//
// Registration is an upsert: re-registering an alias replaces the
// implementation while keeping its original position, so listing order is
// stable across reconfiguration.
package registry

import (
	"sync"

	"courier/internal/message"
	"courier/internal/messenger"
)

// Messengers holds the configured messenger per alias.
type Messengers struct {
	mu      sync.RWMutex
	byAlias map[string]messenger.Messenger
	order   []string
}

func NewMessengers() *Messengers {
	return &Messengers{byAlias: make(map[string]messenger.Messenger)}
}

// Register upserts messengers by alias.
func (r *Messengers) Register(messengers ...messenger.Messenger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range messengers {
		alias := m.Alias()
		if _, exists := r.byAlias[alias]; !exists {
			r.order = append(r.order, alias)
		}
		r.byAlias[alias] = m
	}
}

// Get resolves an alias or returns UnknownMessengerError.
func (r *Messengers) Get(alias string) (messenger.Messenger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byAlias[alias]
	if !ok {
		return nil, &UnknownMessengerError{Alias: alias}
	}
	return m, nil
}

// All returns the configured messengers in registration order.
func (r *Messengers) All() []messenger.Messenger {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]messenger.Messenger, 0, len(r.order))
	for _, alias := range r.order {
		all = append(all, r.byAlias[alias])
	}
	return all
}

// Aliases returns the registered aliases in registration order.
func (r *Messengers) Aliases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// MessageTypes holds the registered message type per alias.
type MessageTypes struct {
	mu      sync.RWMutex
	byAlias map[string]message.Type
	order   []string
}

func NewMessageTypes() *MessageTypes {
	return &MessageTypes{byAlias: make(map[string]message.Type)}
}

// Register upserts message types by alias.
func (r *MessageTypes) Register(types ...message.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range types {
		alias := t.Alias()
		if _, exists := r.byAlias[alias]; !exists {
			r.order = append(r.order, alias)
		}
		r.byAlias[alias] = t
	}
}

// Get resolves an alias or returns UnknownMessageTypeError.
func (r *MessageTypes) Get(alias string) (message.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byAlias[alias]
	if !ok {
		return nil, &UnknownMessageTypeError{Alias: alias}
	}
	return t, nil
}

// All returns the registered types in registration order.
func (r *MessageTypes) All() []message.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]message.Type, 0, len(r.order))
	for _, alias := range r.order {
		all = append(all, r.byAlias[alias])
	}
	return all
}

// Aliases returns the registered aliases in registration order.
func (r *MessageTypes) Aliases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// RegisterBuiltinMessageTypes registers the stock plain-text and e-mail
// types. Called explicitly by binaries; nothing registers on import.
func RegisterBuiltinMessageTypes(r *MessageTypes) {
	r.Register(message.PlainText(), message.EmailText(), message.EmailHTML())
}
