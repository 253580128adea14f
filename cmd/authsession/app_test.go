package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-authsession/idempotency"
	"github.com/urfave/cli/v2"
)

type fixture struct {
	realm *httptest.Server
	api   *httptest.Server

	authorization string
	key           string
	body          string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":                "sub-maria",
		"preferred_username": "maria",
		"exp":                time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	realm := http.NewServeMux()
	realm.HandleFunc("/realms/demo/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("password") != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid user credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  token,
			"refresh_token": "r1",
			"expires_in":    300,
		})
	})
	f.realm = httptest.NewServer(realm)
	t.Cleanup(f.realm.Close)

	f.api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.authorization = r.Header.Get("Authorization")
		f.key = r.Header.Get(idempotency.HeaderName)
		raw := new(bytes.Buffer)
		_, _ = raw.ReadFrom(r.Body)
		f.body = raw.String()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/missing"):
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":1}`))
		default:
			_, _ = w.Write([]byte(`[{"id":1}]`))
		}
	}))
	t.Cleanup(f.api.Close)
	return f
}

func (f *fixture) args(extra ...string) []string {
	base := []string{
		"authsession",
		"--issuer", f.realm.URL + "/realms/demo",
		"--client-id", "frontend",
		"--endpoint", "transaction=" + f.api.URL + "/transaction",
	}
	return append(base, extra...)
}

func run(t *testing.T, args []string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := App(&out, &errOut).Run(args)
	return out.String(), errOut.String(), err
}

func TestApp_Commands(t *testing.T) {
	app := App(nil, nil)
	names := map[string]bool{}
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, name := range []string{"whoami", "get", "post", "mint"} {
		if !names[name] {
			t.Fatalf("missing command %q", name)
		}
	}
}

func TestWhoami(t *testing.T) {
	f := newFixture(t)
	out, _, err := run(t, f.args("-u", "maria", "-p", "pw", "whoami"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(out) != "phase=authenticated identity=maria" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestWhoami_WithoutCredentialsChecksSSO(t *testing.T) {
	f := newFixture(t)
	out, _, err := run(t, f.args("whoami"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(out) != "phase=unauthenticated" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestWhoami_RejectedLoginReportsSession(t *testing.T) {
	f := newFixture(t)
	out, errOut, err := run(t, f.args("-u", "maria", "-p", "wrong", "whoami"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(out) != "phase=unauthenticated" {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(errOut, "session:") {
		t.Fatalf("expected session diagnostic, got %q", errOut)
	}
}

func TestGet_AuthorizedRequest(t *testing.T) {
	f := newFixture(t)
	out, _, err := run(t, f.args("-u", "maria", "-p", "pw", "get", "transaction", "customer", "7"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(out) != `[{"id":1}]` {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.HasPrefix(f.authorization, "Bearer ") {
		t.Fatalf("expected bearer header, got %q", f.authorization)
	}
}

func TestGet_NormalizesErrors(t *testing.T) {
	f := newFixture(t)
	_, _, err := run(t, f.args("get", f.api.URL+"/transaction/missing"))
	exitErr, ok := err.(cli.ExitCoder)
	if !ok {
		t.Fatalf("expected exit error, got %v", err)
	}
	if exitErr.ExitCode() != 1 || exitErr.Error() != "Resource not found" {
		t.Fatalf("unexpected exit error %d %q", exitErr.ExitCode(), exitErr.Error())
	}
	if f.authorization != "" {
		t.Fatalf("expected no bearer header without a session, got %q", f.authorization)
	}
}

func TestPost_RetryReusesSuppliedKey(t *testing.T) {
	f := newFixture(t)
	_, errOut, err := run(t, f.args("-u", "maria", "-p", "pw", "post", "--idempotency-key", "key-1", "-d", `{"amount":5}`, "transaction"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.key != "key-1" || f.body != `{"amount":5}` {
		t.Fatalf("unexpected request key=%q body=%q", f.key, f.body)
	}
	if !strings.Contains(errOut, "Idempotency-Key: key-1") {
		t.Fatalf("expected key on stderr, got %q", errOut)
	}
}

func TestPost_MintsKeyWhenMissing(t *testing.T) {
	f := newFixture(t)
	if _, _, err := run(t, f.args("post", "transaction")); err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.key == "" {
		t.Fatalf("expected minted idempotency key")
	}
}

func TestPost_InvalidData(t *testing.T) {
	f := newFixture(t)
	_, _, err := run(t, f.args("post", "-d", "{", "transaction"))
	exitErr, ok := err.(cli.ExitCoder)
	if !ok || exitErr.ExitCode() != 2 {
		t.Fatalf("expected usage exit error, got %v", err)
	}
}

func TestMint(t *testing.T) {
	out, _, err := run(t, []string{"authsession", "mint"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(strings.TrimSpace(out)) != 36 {
		t.Fatalf("expected uuid key, got %q", out)
	}
}

func TestRuntimeConfig_RejectsBadEndpoint(t *testing.T) {
	_, _, err := run(t, []string{"authsession", "--endpoint", "ledger=http://x", "get", "ledger"})
	if err == nil {
		t.Fatalf("expected unknown resource error")
	}
}
