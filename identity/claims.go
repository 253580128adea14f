// Package identity decodes bearer-token claims into a principal profile.
// Tokens are decoded without signature verification; verification belongs to
// the identity provider.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

const (
	ClaimPreferredUsername = "preferred_username"
	ClaimSubject           = "sub"
	ClaimEmail             = "email"
	ClaimName              = "name"
	ClaimIssuer            = "iss"
	ClaimExpiresAt         = "exp"

	TextCodeTokenMalformed = "IDENTITY_TOKEN_MALFORMED"
)

var ErrTokenMalformed = errors.New("identity: token malformed")

type Profile struct {
	Subject           string
	PreferredUsername string
	Email             string
	Name              string
	Issuer            string
	ExpiresAt         time.Time
	Raw               map[string]any
}

// Principal is the human-readable name callers display for the session.
func (p Profile) Principal() string {
	return strings.TrimSpace(p.PreferredUsername)
}

// ParseClaims decodes the claim set of a compact JWT.
func ParseClaims(token string) (map[string]any, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, malformed(fmt.Errorf("token is empty"))
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, malformed(err)
	}
	out := make(map[string]any, len(claims))
	for key, value := range claims {
		out[key] = value
	}
	return out, nil
}

// ProfileFromClaims maps a claim set onto a Profile.
func ProfileFromClaims(claims map[string]any) Profile {
	profile := Profile{
		Subject:           readString(claims[ClaimSubject]),
		PreferredUsername: readString(claims[ClaimPreferredUsername]),
		Email:             readString(claims[ClaimEmail]),
		Name:              readString(claims[ClaimName]),
		Issuer:            readString(claims[ClaimIssuer]),
	}
	if exp, ok := readUnix(claims[ClaimExpiresAt]); ok {
		profile.ExpiresAt = exp
	}
	if len(claims) > 0 {
		profile.Raw = copyMap(claims)
	}
	return profile
}

func ProfileFromToken(token string) (Profile, error) {
	claims, err := ParseClaims(token)
	if err != nil {
		return Profile{}, err
	}
	return ProfileFromClaims(claims), nil
}

// ResolvePrincipal returns the principal name from claims, decoding the
// token when no claims were supplied. It returns "" when neither yields one.
func ResolvePrincipal(token string, claims map[string]any) string {
	if name := readString(claims[ClaimPreferredUsername]); name != "" {
		return name
	}
	if strings.TrimSpace(token) == "" {
		return ""
	}
	profile, err := ProfileFromToken(token)
	if err != nil {
		return ""
	}
	return profile.Principal()
}

type MalformedTokenError struct {
	Cause error
}

func (e *MalformedTokenError) Error() string {
	if e == nil || e.Cause == nil {
		return ErrTokenMalformed.Error()
	}
	return ErrTokenMalformed.Error() + ": " + e.Cause.Error()
}

func (e *MalformedTokenError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return ErrTokenMalformed
	}
	return errors.Join(ErrTokenMalformed, e.Cause)
}

func (e *MalformedTokenError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(TextCodeTokenMalformed)
}

func malformed(cause error) error {
	return &MalformedTokenError{Cause: cause}
}

func readString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		return ""
	}
}

func readUnix(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case float64:
		return time.Unix(int64(typed), 0).UTC(), true
	case int64:
		return time.Unix(typed, 0).UTC(), true
	case int:
		return time.Unix(int64(typed), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

func copyMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = value
	}
	return out
}
