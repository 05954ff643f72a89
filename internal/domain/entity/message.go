// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as Message, Dispatch and Subscription,
// along with their validation rules and domain-specific errors.
package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Context holds template variables for a message. It is stored as a JSON
// document and round-trips through database/sql via Valuer/Scanner.
type Context map[string]any

// Value serializes the context to JSON for storage.
func (c Context) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("Context.Value: %w", err)
	}

	return string(raw), nil
}

// Scan deserializes a JSON document read from storage.
// NULL and empty documents scan into an empty context.
func (c *Context) Scan(src any) error {
	if src == nil {
		*c = Context{}
		return nil
	}

	var raw []byte

	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("Context.Scan: unsupported source type %T", src)
	}

	if len(raw) == 0 {
		*c = Context{}
		return nil
	}

	parsed := Context{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("Context.Scan: %w", err)
	}

	*c = parsed

	return nil
}

// Clone returns a shallow copy safe for key-level mutation.
func (c Context) Clone() Context {
	if c == nil {
		return Context{}
	}

	clone := make(Context, len(c))
	for k, v := range c {
		clone[k] = v
	}

	return clone
}

// Message represents a scheduled notification to be fanned out to recipients.
// One message owns zero or more dispatches, one per (messenger, address) pair.
type Message struct {
	ID        int64
	CreatedAt time.Time

	// SenderID references the user who originated the message, if any.
	SenderID *int64

	// Cls is the registered message type alias driving rendering behavior.
	Cls string

	// GroupMark groups several schedules into a single message: while a
	// message with the same (cls, mark, sender) is still unsent, new content
	// is merged into it instead of creating another row.
	GroupMark string

	Context  Context
	Priority int

	// DispatchesReady reports whether dispatches for this message have been
	// formed. Messages scheduled without recipients stay false until a
	// preparation pass derives dispatches from subscriptions.
	DispatchesReady bool
}
