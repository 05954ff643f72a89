// Package auth guards the preference API with bearer tokens. Tokens are
// minted out of band by the application embedding the dispatcher, using the
// shared secret; there is no login flow here.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin unlocks the operational endpoints (unread feed).
const RoleAdmin = "admin"

// Claims identify the caller of a preference API request.
type Claims struct {
	// RecipientID is the subscriber the token acts for.
	RecipientID int64
	// Role is empty for ordinary recipients.
	Role string
}

// IssueToken signs an HS256 token for the given claims, valid for ttl.
func IssueToken(secret []byte, claims Claims, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatInt(claims.RecipientID, 10),
		"role": claims.Role,
		"exp":  time.Now().Add(ttl).Unix(),
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseBearer validates an Authorization header value and returns the claims
// carried by the token. The signing method is pinned to HS256; tokens signed
// any other way are rejected regardless of signature validity.
func ParseBearer(authz string, secret []byte) (Claims, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return Claims{}, errors.New("unauthorized: missing bearer token")
	}
	tokenString := strings.TrimPrefix(authz, prefix)

	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, errors.New("invalid token")
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	if exp, ok := claims["exp"].(float64); !ok || int64(exp) < time.Now().Unix() {
		return Claims{}, errors.New("token expired")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return Claims{}, errors.New("invalid sub claim")
	}
	recipientID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || recipientID <= 0 {
		return Claims{}, errors.New("invalid sub claim")
	}

	role, _ := claims["role"].(string)

	return Claims{RecipientID: recipientID, Role: role}, nil
}
