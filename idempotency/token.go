// Package idempotency mints opaque safe-retry tokens for mutating calls and
// holds the live token of a pending submission.
package idempotency

import (
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HeaderName is the request header servers deduplicate mutating calls by.
const HeaderName = "Idempotency-Key"

const fallbackPrefix = "idemp-"

// Token is an opaque idempotency key.
type Token string

func (t Token) String() string {
	return string(t)
}

// IsFallback reports whether the token came from the timestamp fallback
// rather than the UUID source.
func (t Token) IsFallback() bool {
	return strings.HasPrefix(string(t), fallbackPrefix)
}

// Issuer mints tokens. The zero value is ready to use.
type Issuer struct {
	// Random supplies UUIDs; defaults to uuid.NewRandom.
	Random func() (uuid.UUID, error)
	// Now supplies the wall clock for the fallback path.
	Now func() time.Time

	mu     sync.Mutex
	lastMS int64
}

var defaultIssuer = &Issuer{}

// Mint returns a fresh token from the package issuer.
func Mint() Token {
	return defaultIssuer.Mint()
}

// Mint never blocks and never fails. When the UUID source errors the token
// is built from a strictly increasing millisecond stamp and a random suffix.
func (i *Issuer) Mint() Token {
	random := uuid.NewRandom
	if i != nil && i.Random != nil {
		random = i.Random
	}
	if id, err := random(); err == nil {
		return Token(id.String())
	}
	return i.fallback()
}

func (i *Issuer) fallback() Token {
	now := time.Now
	if i != nil && i.Now != nil {
		now = i.Now
	}
	stamp := now().UnixMilli()
	if i != nil {
		i.mu.Lock()
		if stamp <= i.lastMS {
			stamp = i.lastMS + 1
		}
		i.lastMS = stamp
		i.mu.Unlock()
	}
	suffix := strconv.FormatUint(rand.Uint64(), 36)
	return Token(fallbackPrefix + strconv.FormatInt(stamp, 10) + "-" + suffix)
}

// Apply sets the token on a header map. Empty tokens are ignored.
func Apply(header http.Header, token Token) {
	if header == nil {
		return
	}
	value := strings.TrimSpace(string(token))
	if value == "" {
		return
	}
	header.Set(HeaderName, value)
}
