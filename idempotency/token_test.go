package idempotency

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMint_ReturnsDistinctUUIDs(t *testing.T) {
	const n = 10000
	seen := make(map[Token]struct{}, n)
	for i := 0; i < n; i++ {
		token := Mint()
		if _, err := uuid.Parse(token.String()); err != nil {
			t.Fatalf("expected uuid token, got %q: %v", token, err)
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token after %d mints: %q", i, token)
		}
		seen[token] = struct{}{}
	}
}

func TestMint_FallbackWhenRandomSourceFails(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	issuer := &Issuer{
		Random: func() (uuid.UUID, error) { return uuid.UUID{}, errors.New("entropy unavailable") },
		Now:    func() time.Time { return fixed },
	}

	const n = 10000
	seen := make(map[Token]struct{}, n)
	var lastStamp int64
	for i := 0; i < n; i++ {
		token := issuer.Mint()
		if !token.IsFallback() {
			t.Fatalf("expected fallback token, got %q", token)
		}
		if _, err := uuid.Parse(token.String()); err == nil {
			t.Fatalf("expected fallback token to be distinguishable from a uuid: %q", token)
		}
		parts := strings.SplitN(strings.TrimPrefix(token.String(), fallbackPrefix), "-", 2)
		if len(parts) != 2 || parts[1] == "" {
			t.Fatalf("unexpected fallback layout %q", token)
		}
		stamp, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			t.Fatalf("parse fallback stamp: %v", err)
		}
		if stamp <= lastStamp {
			t.Fatalf("expected strictly increasing stamps, got %d after %d", stamp, lastStamp)
		}
		lastStamp = stamp
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate fallback token %q", token)
		}
		seen[token] = struct{}{}
	}
}

func TestMint_ConcurrentCallersDoNotCollide(t *testing.T) {
	const workers = 8
	const perWorker = 500
	issuer := &Issuer{}
	tokens := make(chan Token, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				tokens <- issuer.Mint()
			}
		}()
	}
	wg.Wait()
	close(tokens)

	seen := map[Token]struct{}{}
	for token := range tokens {
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = struct{}{}
	}
}

func TestApply_SetsHeader(t *testing.T) {
	header := http.Header{}
	Apply(header, "abc")
	if got := header.Get(HeaderName); got != "abc" {
		t.Fatalf("expected header value abc, got %q", got)
	}

	empty := http.Header{}
	Apply(empty, "  ")
	if _, ok := empty[http.CanonicalHeaderKey(HeaderName)]; ok {
		t.Fatalf("expected empty token to be ignored")
	}
	Apply(nil, "abc")
}

func TestHolder_CurrentIsStableUntilRegenerate(t *testing.T) {
	holder := NewHolder(nil)
	first := holder.Current()
	if first == "" {
		t.Fatalf("expected lazily minted token")
	}
	if again := holder.Current(); again != first {
		t.Fatalf("expected same token on retry, got %q then %q", first, again)
	}

	next := holder.Regenerate()
	if next == first {
		t.Fatalf("expected regenerate to replace token")
	}
	if current := holder.Current(); current != next {
		t.Fatalf("expected current to return regenerated token, got %q", current)
	}
}

func TestHolder_IndependentInstances(t *testing.T) {
	a := NewHolder(nil)
	b := NewHolder(nil)
	if a.Current() == b.Current() {
		t.Fatalf("expected separate holders to mint separate tokens")
	}
}

func TestHolder_ZeroValueUsable(t *testing.T) {
	var holder Holder
	if holder.Current() == "" {
		t.Fatalf("expected zero-value holder to mint")
	}
}
