// Package dispatch issues authenticated JSON requests to the storefront API.
// Every call gates on the identity provider's first resolution so requests
// never race the asynchronous sign-in report.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/emkart/storefront/internal/storefront/auth"
)

// ErrUnauthenticated is returned when no session materializes within the
// resolve wait, or the server rejects the credential.
var ErrUnauthenticated = errors.New("not authenticated")

// ErrPayloadTooLarge is returned when the server refuses the request body
// for its size.
var ErrPayloadTooLarge = errors.New("request payload too large")

// StatusError carries a non-2xx server response that maps to no dedicated
// sentinel. Message is the server's own description when it sent one.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}

const (
	defaultResolveWait = 10 * time.Second
	sessionPollEvery   = 100 * time.Millisecond
	maxErrorBodyBytes  = 64 << 10
)

// Config tunes a Dispatcher. Zero values pick the defaults.
type Config struct {
	BaseURL string
	// ResolveWait bounds how long a call blocks for identity resolution and,
	// separately, for a late sign-in.
	ResolveWait time.Duration
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// Dispatcher sends JSON requests with the current session's credential
// attached.
type Dispatcher struct {
	baseURL     string
	provider    auth.Provider
	client      *http.Client
	resolveWait time.Duration
}

func New(cfg Config, provider auth.Provider) *Dispatcher {
	wait := cfg.ResolveWait
	if wait <= 0 {
		wait = defaultResolveWait
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		}
	}
	return &Dispatcher{
		baseURL:     cfg.BaseURL,
		provider:    provider,
		client:      client,
		resolveWait: wait,
	}
}

// Option adjusts a single request.
type Option func(*http.Request)

// WithHeader sets an extra request header.
func WithHeader(key, value string) Option {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// Do sends one authenticated request. body is JSON-encoded when non-nil;
// a 2xx response body is decoded into out when out is non-nil.
//
// Each call waits for the provider's first resolution even after it has
// already happened once. The gate is a closed channel by then, so the wait
// is free, and keeping it per-call means no caller can slip a request in
// before identity is known.
func (d *Dispatcher) Do(ctx context.Context, method, path string, body, out any, opts ...Option) error {
	session, err := d.awaitSession(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", session.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decode response body")
		}
	}
	return nil
}

// awaitSession blocks until identity has resolved and a session exists.
// When resolution reports signed-out, it waits one more bounded interval for
// a sign-in to land before giving up.
func (d *Dispatcher) awaitSession(ctx context.Context) (auth.Session, error) {
	timer := time.NewTimer(d.resolveWait)
	defer timer.Stop()

	select {
	case <-d.provider.FirstResolution():
	case <-timer.C:
		return auth.Session{}, errors.Wrap(ErrUnauthenticated, "identity never resolved")
	case <-ctx.Done():
		return auth.Session{}, ctx.Err()
	}

	if session, ok := d.provider.Current(); ok {
		return session, nil
	}

	// Resolved as signed-out. A sign-in may still be in flight, so poll for
	// one more resolve interval before failing the call.
	deadline := time.NewTimer(d.resolveWait)
	defer deadline.Stop()
	tick := time.NewTicker(sessionPollEvery)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			if session, ok := d.provider.Current(); ok {
				return session, nil
			}
		case <-deadline.C:
			return auth.Session{}, errors.Wrap(ErrUnauthenticated, "no active session")
		case <-ctx.Done():
			return auth.Session{}, ctx.Err()
		}
	}
}

func responseError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthenticated
	case http.StatusRequestEntityTooLarge:
		return ErrPayloadTooLarge
	}

	serr := &StatusError{Code: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return serr
	}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		serr.Message = payload.Message
	}
	return serr
}
