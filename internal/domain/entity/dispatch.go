package entity

import "time"

// DispatchStatus is the delivery lifecycle state of a dispatch.
type DispatchStatus int16

const (
	DispatchStatusPending    DispatchStatus = 1
	DispatchStatusSent       DispatchStatus = 2
	DispatchStatusError      DispatchStatus = 3
	DispatchStatusFailed     DispatchStatus = 4
	DispatchStatusProcessing DispatchStatus = 5
)

// String returns the lower-case label used in logs and metrics.
func (s DispatchStatus) String() string {
	switch s {
	case DispatchStatusPending:
		return "pending"
	case DispatchStatusSent:
		return "sent"
	case DispatchStatusError:
		return "error"
	case DispatchStatusFailed:
		return "failed"
	case DispatchStatusProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// ReadStatus tracks whether the recipient has seen the delivered content.
type ReadStatus int16

const (
	ReadStatusUnread ReadStatus = 0
	ReadStatusRead   ReadStatus = 1
)

// Dispatch is a single delivery attempt target: one message bound to one
// messenger and one recipient address.
type Dispatch struct {
	ID        int64
	CreatedAt time.Time

	// DispatchedAt is the time of the last delivery attempt.
	DispatchedAt *time.Time

	MessageID int64

	// Messenger is the registered messenger alias responsible for delivery.
	Messenger string

	RecipientID *int64
	Address     string

	// RetryCount is the number of delivery attempts already made.
	RetryCount int

	// MessageCache holds the compiled message body from a previous attempt.
	// Empty means the next attempt recompiles.
	MessageCache string

	Status     DispatchStatus
	ReadStatus ReadStatus

	// Message is the owning message, populated by joined loads.
	Message *Message

	// ErrorLog carries the failure description for the current attempt.
	// It is transient and persisted separately as a DispatchError row.
	ErrorLog string
}

// IsRead reports whether the dispatch content was seen by the recipient.
func (d *Dispatch) IsRead() bool {
	return d.ReadStatus == ReadStatusRead
}

// MarkRead flips the read flag in memory; persisting is the caller's concern.
func (d *Dispatch) MarkRead() {
	d.ReadStatus = ReadStatusRead
}

// DispatchError is a persisted log entry describing one failed delivery
// attempt of a dispatch.
type DispatchError struct {
	ID         int64
	CreatedAt  time.Time
	DispatchID int64
	ErrorLog   string
}

// MessageDispatches pairs a message with a set of its dispatches, as produced
// by grouping a claimed batch.
type MessageDispatches struct {
	Message    *Message
	Dispatches []*Dispatch
}

// GroupByMessenger groups dispatches first by messenger alias, then by owning
// message ID. Dispatches must carry their Message (joined load).
func GroupByMessenger(dispatches []*Dispatch) map[string]map[int64]*MessageDispatches {
	byMessenger := make(map[string]map[int64]*MessageDispatches)

	for _, dispatch := range dispatches {
		byMessage, ok := byMessenger[dispatch.Messenger]
		if !ok {
			byMessage = make(map[int64]*MessageDispatches)
			byMessenger[dispatch.Messenger] = byMessage
		}

		group, ok := byMessage[dispatch.MessageID]
		if !ok {
			group = &MessageDispatches{Message: dispatch.Message}
			byMessage[dispatch.MessageID] = group
		}

		group.Dispatches = append(group.Dispatches, dispatch)
	}

	return byMessenger
}
