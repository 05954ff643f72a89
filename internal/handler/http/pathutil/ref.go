// Package pathutil parses and normalizes the URL paths the notification
// endpoints work with: signed dispatch references carried by hook links, and
// the path templates used as metric labels.
package pathutil

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMalformedRef is returned when a signed dispatch reference cannot be
// parsed out of a URL path.
var ErrMalformedRef = errors.New("malformed dispatch reference")

// SignedRef is the (message, dispatch, signature) triple carried by hook
// URLs such as /messages/unsubscribe/12/34/9f2c.../.
type SignedRef struct {
	MessageID  int64
	DispatchID int64
	Signature  string
}

// ParseSignedRef extracts a SignedRef from path, which must be the given
// prefix followed by "<message_id>/<dispatch_id>/<signature>" and an
// optional trailing slash. IDs must be positive; the signature segment must
// be non-empty. No other shape is accepted.
func ParseSignedRef(path, prefix string) (SignedRef, error) {
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok {
		return SignedRef{}, ErrMalformedRef
	}
	rest = strings.TrimSuffix(rest, "/")

	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return SignedRef{}, ErrMalformedRef
	}

	messageID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || messageID <= 0 {
		return SignedRef{}, ErrMalformedRef
	}

	dispatchID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || dispatchID <= 0 {
		return SignedRef{}, ErrMalformedRef
	}

	if parts[2] == "" {
		return SignedRef{}, ErrMalformedRef
	}

	return SignedRef{
		MessageID:  messageID,
		DispatchID: dispatchID,
		Signature:  parts[2],
	}, nil
}
