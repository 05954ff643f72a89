package message

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Signer produces and verifies the dispatch signatures carried by
// unsubscribe and mark-read hook URLs. Signatures bind a (message, dispatch)
// pair to the configured secret, so a leaked URL cannot be replayed against
// other dispatches.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// DispatchHash returns the hex HMAC-SHA256 signature of a (message, dispatch)
// pair.
func (s *Signer) DispatchHash(messageID, dispatchID int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%d|%d", messageID, dispatchID)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the supplied signature matches the pair. Comparison
// is constant-time.
func (s *Signer) Verify(messageID, dispatchID int64, signature string) bool {
	expected := s.DispatchHash(messageID, dispatchID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
