package gocommand

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/goliatone/go-authsession/command"
	"github.com/goliatone/go-authsession/core"
	"github.com/goliatone/go-authsession/idempotency"
	"github.com/goliatone/go-authsession/query"
	gocmd "github.com/goliatone/go-command"
)

type okMessage struct{}

func (okMessage) Type() string { return "authsession.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "authsession.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "authsession.command.test" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
	if err := ValidateMessageContract(command.StartSessionMessage{}); err != nil {
		t.Fatalf("expected session message to satisfy contract, got %v", err)
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(gocmd.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := gocmd.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	sub, err := RegisterAndSubscribe(adapter, cmd)
	if err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	if err := adapter.AddResolver("custom", func(any, gocmd.CommandMeta, *gocmd.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

type eventedProvider struct {
	mu       sync.Mutex
	token    string
	listener core.AuthEventListener
}

func (p *eventedProvider) Init(context.Context, core.InitOptions) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = "token-1"
	return true, nil
}

func (p *eventedProvider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

func (p *eventedProvider) TokenClaims() map[string]any {
	return map[string]any{"preferred_username": "maria"}
}

func (p *eventedProvider) Login(ctx context.Context) error {
	p.mu.Lock()
	p.token = "token-2"
	listener := p.listener
	p.mu.Unlock()
	listener(ctx, core.AuthEvent{Type: core.AuthEventSuccess})
	return nil
}

func (p *eventedProvider) Logout(ctx context.Context) error {
	p.mu.Lock()
	p.token = ""
	listener := p.listener
	p.mu.Unlock()
	listener(ctx, core.AuthEvent{Type: core.AuthEventLogout})
	return nil
}

func (p *eventedProvider) SetAuthEventListener(listener core.AuthEventListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = listener
}

func TestRegisterSessionHandlers_DispatchAndQuery(t *testing.T) {
	manager, err := core.NewSessionManager(core.DefaultConfig(), &eventedProvider{})
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	endpoints := core.EndpointsConfig{Account: "http://localhost:8082/account"}

	subs, err := RegisterSessionHandlers(NewRegistryAdapter(nil), manager, endpoints)
	if err != nil {
		t.Fatalf("register session handlers: %v", err)
	}
	defer subs.Close()
	if subs.Len() != 7 {
		t.Fatalf("expected 7 subscriptions, got %d", subs.Len())
	}

	ctx := context.Background()
	started, err := DispatchWithResult[command.StartSessionMessage, core.Session](ctx, command.StartSessionMessage{})
	if err != nil {
		t.Fatalf("dispatch start: %v", err)
	}
	if !started.Authenticated() || started.Identity != "maria" {
		t.Fatalf("expected authenticated snapshot, got %#v", started)
	}

	if err := Dispatch(ctx, command.LogoutMessage{}); err != nil {
		t.Fatalf("dispatch logout: %v", err)
	}
	status, err := Query[query.SessionStatusMessage, core.Session](ctx, query.SessionStatusMessage{})
	if err != nil {
		t.Fatalf("query status: %v", err)
	}
	if status.Authenticated() || !status.Initialized {
		t.Fatalf("expected logged out snapshot, got %#v", status)
	}

	resolved, err := Query[query.ResolveEndpointMessage, string](ctx, query.ResolveEndpointMessage{
		Resource: core.ResourceAccount,
		Segments: []string{"7"},
	})
	if err != nil {
		t.Fatalf("query endpoint: %v", err)
	}
	if resolved != "http://localhost:8082/account/7" {
		t.Fatalf("unexpected endpoint %q", resolved)
	}

	holder := idempotency.NewHolder(nil)
	key, err := DispatchWithResult[command.MintIdempotencyKeyMessage, idempotency.Token](ctx, command.MintIdempotencyKeyMessage{Holder: holder})
	if err != nil {
		t.Fatalf("dispatch mint: %v", err)
	}
	if key == "" || key != holder.Current() {
		t.Fatalf("expected minted key to match holder, got %q", key)
	}
}

func TestRegisterSessionHandlers_RequiresManager(t *testing.T) {
	if _, err := RegisterSessionHandlers(NewRegistryAdapter(nil), nil, core.EndpointsConfig{}); err == nil {
		t.Fatalf("expected missing manager error")
	}
}
