package idempotency

import "sync"

// Holder keeps at most one live token for a single pending submission.
// Retries of the same submission read Current; once the submission has
// resolved and a new one begins, call Regenerate. Use one Holder per
// submission that may be in flight concurrently.
type Holder struct {
	issuer *Issuer

	mu    sync.Mutex
	token Token
}

// NewHolder returns a holder minting from issuer, or the package issuer when nil.
func NewHolder(issuer *Issuer) *Holder {
	if issuer == nil {
		issuer = defaultIssuer
	}
	return &Holder{issuer: issuer}
}

// Current returns the live token, minting one on first use.
func (h *Holder) Current() Token {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.token == "" {
		h.token = h.resolveIssuer().Mint()
	}
	return h.token
}

// Regenerate discards the live token and returns its replacement.
func (h *Holder) Regenerate() Token {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = h.resolveIssuer().Mint()
	return h.token
}

func (h *Holder) resolveIssuer() *Issuer {
	if h.issuer == nil {
		return defaultIssuer
	}
	return h.issuer
}
