package entity

import "time"

// Subscription is a recipient's opt-in to receive one message type through
// one messenger. The recipient is either a known user (RecipientID) or a raw
// address.
type Subscription struct {
	ID        int64
	CreatedAt time.Time

	// MessageCls is the message type alias subscribed to.
	MessageCls string

	// MessengerCls is the messenger alias to deliver through.
	MessengerCls string

	RecipientID *int64
	Address     *string
}

// Recipient is a resolved delivery target: a messenger alias plus the address
// that messenger understands, optionally linked to a user.
type Recipient struct {
	Messenger string
	UserID    *int64
	Address   string
}
