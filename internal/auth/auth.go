// Package auth verifies viewer identity tokens and moderator privileges.
//
// Tokens are HS256-signed JWTs carrying the viewer id in the subject claim
// and the email in a custom claim, matching what the platform's auth
// frontend issues.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates a missing, malformed, expired or incorrectly
// signed token.
var ErrInvalidToken = errors.New("auth: invalid token")

// Principal is the authenticated caller of an API request.
type Principal struct {
	// ID is the stable user id (JWT subject).
	ID string

	// Email is the account email, may be empty for service tokens.
	Email string
}

// Claims is the JWT claim set issued to platform users.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens and decides moderator access.
type Verifier struct {
	secret     []byte
	moderators map[string]struct{}
}

// NewVerifier returns a Verifier for HS256 tokens signed with secret.
// moderatorEmails is the allowlist for moderation endpoints; an empty list
// allows every authenticated user, which fits single-operator deploys.
func NewVerifier(secret string, moderatorEmails []string) *Verifier {
	moderators := make(map[string]struct{}, len(moderatorEmails))
	for _, email := range moderatorEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			moderators[email] = struct{}{}
		}
	}
	return &Verifier{
		secret:     []byte(secret),
		moderators: moderators,
	}
}

// Verify parses and validates a bearer token, returning the caller's
// identity. All failures collapse into ErrInvalidToken; the cause stays
// attached for logging. Without a configured secret every token is
// rejected; accepting HS256 signatures made with the empty key would let
// anyone forge a principal.
func (v *Verifier) Verify(tokenString string) (Principal, error) {
	if len(v.secret) == 0 {
		return Principal{}, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return Principal{}, ErrInvalidToken
	}

	return Principal{
		ID:    claims.Subject,
		Email: strings.ToLower(claims.Email),
	}, nil
}

// IsModerator reports whether the principal may use moderation endpoints.
func (v *Verifier) IsModerator(p Principal) bool {
	if len(v.moderators) == 0 {
		return true
	}
	_, ok := v.moderators[strings.ToLower(p.Email)]
	return ok
}

// FromAuthorizationHeader extracts the bearer token from an Authorization
// header value, "" when the scheme is not Bearer.
func FromAuthorizationHeader(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
