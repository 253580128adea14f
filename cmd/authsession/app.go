package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	authsession "github.com/goliatone/go-authsession"
	"github.com/goliatone/go-authsession/core"
	"github.com/goliatone/go-authsession/idempotency"
	"github.com/goliatone/go-authsession/transport"
	"github.com/urfave/cli/v2"
)

const defaultRequestTimeout = 30 * time.Second

// App returns the CLI application writing results to out and diagnostics to
// errOut. Exit errors are returned from Run, never handled by exiting.
func App(out io.Writer, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:           "authsession",
		Usage:          "Authenticated session client for the payment services",
		Writer:         out,
		ErrWriter:      errOut,
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-prefix",
				Usage: "Prefix of configuration environment variables (e.g. VITE_)",
			},
			&cli.StringFlag{
				Name:    "issuer",
				Usage:   "OpenID Connect realm issuer URL",
				EnvVars: []string{"AUTH_ISSUER_URL"},
			},
			&cli.StringFlag{
				Name:    "client-id",
				Usage:   "OpenID Connect client id",
				EnvVars: []string{"AUTH_CLIENT_ID"},
			},
			&cli.StringFlag{
				Name:    "client-secret",
				Usage:   "OpenID Connect client secret",
				EnvVars: []string{"AUTH_CLIENT_SECRET"},
			},
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "Login username",
				EnvVars: []string{"AUTH_USERNAME"},
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Login password",
				EnvVars: []string{"AUTH_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "refresh-token",
				Usage:   "Reuse an existing session instead of logging in",
				EnvVars: []string{"AUTH_REFRESH_TOKEN"},
			},
			&cli.StringSliceFlag{
				Name:  "endpoint",
				Usage: "Resource base URL as RESOURCE=URL (repeatable)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: defaultRequestTimeout,
				Usage: "HTTP request timeout",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log normalized errors",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "whoami",
				Usage:  "Start a session and print its principal",
				Action: whoami,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "remote",
						Usage: "Also fetch the userinfo profile",
					},
				},
			},
			{
				Name:      "get",
				Usage:     "Send an authorized GET request",
				ArgsUsage: "RESOURCE|URL [PATH...]",
				Action:    get,
			},
			{
				Name:      "post",
				Usage:     "Send an authorized POST request with an idempotency key",
				ArgsUsage: "RESOURCE|URL [PATH...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "JSON request body",
					},
					&cli.StringFlag{
						Name:  "idempotency-key",
						Usage: "Key of the submission to retry; a new key is minted when empty",
					},
				},
				Action: post,
			},
			{
				Name:   "mint",
				Usage:  "Print a new idempotency key",
				Action: mint,
			},
		},
	}
}

func whoami(c *cli.Context) error {
	client, err := startClient(c)
	if err != nil {
		return err
	}
	session := client.Session()
	if !session.Authenticated() {
		fmt.Fprintf(c.App.Writer, "phase=%s\n", session.Phase)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "phase=%s identity=%s\n", session.Phase, session.Identity)
	if !c.Bool("remote") {
		return nil
	}
	profile, err := client.UserInfo(c.Context)
	if err != nil {
		return cli.Exit(client.ErrorMessage(err), 1)
	}
	fmt.Fprintf(c.App.Writer, "subject=%s email=%s\n", profile.Subject, profile.Email)
	return nil
}

func get(c *cli.Context) error {
	client, err := startClient(c)
	if err != nil {
		return err
	}
	target, err := targetURL(client, c.Args().Slice())
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	res, err := client.REST().Do(c.Context, transport.Request{Method: http.MethodGet, URL: target})
	if err != nil {
		return cli.Exit(client.ErrorMessage(err), 1)
	}
	return writeBody(c.App.Writer, res.Body)
}

func post(c *cli.Context) error {
	client, err := startClient(c)
	if err != nil {
		return err
	}
	target, err := targetURL(client, c.Args().Slice())
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	var payload any
	if raw := strings.TrimSpace(c.String("data")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return cli.Exit(fmt.Sprintf("invalid --data: %v", err), 2)
		}
	}
	req, err := transport.NewJSONRequest(http.MethodPost, target, payload)
	if err != nil {
		return cli.Exit(client.ErrorMessage(err), 2)
	}
	key := idempotency.Token(strings.TrimSpace(c.String("idempotency-key")))
	if key == "" {
		key = client.NewSubmission().Current()
	}
	req.IdempotencyKey = key
	fmt.Fprintf(c.App.ErrWriter, "%s: %s\n", idempotency.HeaderName, key)

	res, err := client.REST().Do(c.Context, req)
	if err != nil {
		return cli.Exit(client.ErrorMessage(err), 1)
	}
	return writeBody(c.App.Writer, res.Body)
}

func mint(c *cli.Context) error {
	fmt.Fprintln(c.App.Writer, authsession.MintIdempotencyKey())
	return nil
}

func startClient(c *cli.Context) (*authsession.Client, error) {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	runtime, err := runtimeConfig(c)
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}
	cfg, err := authsession.LoadConfigFromEnv(ctx, c.String("env-prefix"), nil)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("load config: %v", err), 2)
	}
	cfg, err = core.GoOptionsResolver{}.Resolve(core.DefaultConfig(), cfg, runtime)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("resolve config: %v", err), 2)
	}

	username := c.String("username")
	password := c.String("password")
	client, err := authsession.NewOIDC(cfg,
		authsession.WithHTTPClient(&http.Client{Timeout: c.Duration("timeout")}),
		authsession.WithRefreshToken(c.String("refresh-token")),
		authsession.WithCredentials(func(context.Context) (string, string, error) {
			return username, password, nil
		}),
	)
	if err != nil {
		return nil, cli.Exit(authsession.Normalize(err).Message, 2)
	}
	if err := client.Start(ctx); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "session: %s\n", client.ErrorMessage(err))
	}
	return client, nil
}

func runtimeConfig(c *cli.Context) (core.Config, error) {
	cfg := core.Config{
		Provider: core.ProviderConfig{
			IssuerURL:    strings.TrimSpace(c.String("issuer")),
			ClientID:     strings.TrimSpace(c.String("client-id")),
			ClientSecret: strings.TrimSpace(c.String("client-secret")),
		},
		Errors: core.ErrorsConfig{Debug: c.Bool("debug")},
	}
	if c.String("username") == "" && c.String("refresh-token") == "" {
		cfg.Provider.OnLoad = core.OnLoadCheckSSO
	}
	for _, entry := range c.StringSlice("endpoint") {
		resource, base, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(base) == "" {
			return core.Config{}, fmt.Errorf("invalid --endpoint %q, expected RESOURCE=URL", entry)
		}
		base = strings.TrimSpace(base)
		switch strings.ToLower(strings.TrimSpace(resource)) {
		case core.ResourceCustomer:
			cfg.Endpoints.Customer = base
		case core.ResourceAccount:
			cfg.Endpoints.Account = base
		case core.ResourceAccountProduct, "account-product":
			cfg.Endpoints.AccountProduct = base
		case core.ResourceTransaction:
			cfg.Endpoints.Transaction = base
		default:
			return core.Config{}, fmt.Errorf("unknown resource %q", resource)
		}
	}
	return cfg, nil
}

func targetURL(client *authsession.Client, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("a resource or URL is required")
	}
	first := strings.TrimSpace(args[0])
	if strings.HasPrefix(first, "http://") || strings.HasPrefix(first, "https://") {
		return first, nil
	}
	return client.Endpoint(first, args[1:]...)
}

func writeBody(out io.Writer, body []byte) error {
	if len(body) == 0 {
		return nil
	}
	if _, err := out.Write(body); err != nil {
		return err
	}
	if body[len(body)-1] != '\n' {
		_, err := io.WriteString(out, "\n")
		return err
	}
	return nil
}
