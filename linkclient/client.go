package linkclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/finbridge/mesh-link-gateway/internal/errors"
	"github.com/finbridge/mesh-link-gateway/linksession"
	"github.com/finbridge/mesh-link-gateway/mesh"
)

const (
	linkTokenRoute = "/mesh/link-token"
	payRoute       = "/mesh/pay"
	portfolioRoute = "/mesh/portfolio"
)

// Client drives the account-link flow against the gateway: request a link
// token, hand it to the injected widget launcher, capture the resulting
// credentials from the widget callbacks, and issue authenticated pay and
// portfolio calls. All state is scoped to the client instance; nothing is
// persisted across instances.
//
// A client issues at most one request at a time: while one is in flight,
// other guarded actions are refused. This is request de-duplication, not
// general concurrency control.
type Client struct {
	options    Options
	apiBase    string
	httpClient *http.Client
	launcher   WidgetLauncher
	log        zerolog.Logger
	nowTime    func() time.Time // nowTime function (injectable for testing)

	mu          sync.Mutex
	busy        bool
	state       linksession.State
	linkToken   string
	accessToken string
	accountID   string
	status      string
	results     *ResultLog
}

// Option modifies the Client instance.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for backend calls. The default
// client configures no timeout; calls rely on the transport's behaviour.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithWidgetLauncher injects the vendor widget integration.
func WithWidgetLauncher(launcher WidgetLauncher) Option {
	return func(c *Client) {
		c.launcher = launcher
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

// NewClient builds a client from injected configuration. Construction never
// fails on missing configuration: the guard re-runs before every action, so
// a misconfigured client simply refuses actions with the problems message.
func NewClient(options Options, opts ...Option) *Client {
	c := &Client{
		options:     options,
		apiBase:     options.ResolvedAPIBase(),
		httpClient:  &http.Client{},
		log:         zerolog.Nop(),
		nowTime:     time.Now,
		state:       linksession.StateIdle,
		accessToken: options.DefaultAccessToken,
		results:     NewResultLog(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if message := options.StatusMessage(); message != "" {
		c.status = message
	} else {
		c.status = "Ready"
	}
	return c
}

// Ready reports whether the configuration guard passes.
func (c *Client) Ready() bool {
	return len(c.options.Problems()) == 0
}

// Guard re-checks the injected configuration. It is side-effect free and
// returns every problem concatenated into one message.
func (c *Client) Guard() error {
	if message := c.options.StatusMessage(); message != "" {
		return errors.Wrapf(errors.ErrConfiguration, "%s", message)
	}
	return nil
}

// Status returns the current user-facing status text.
func (c *Client) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// State returns the session's lifecycle position.
func (c *Client) State() linksession.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AccessToken returns the captured access token, if any.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// AccountID returns the resolved account identifier, if any.
func (c *Client) AccountID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountID
}

// SetAccessToken overrides the stored access token (manual input).
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// Results returns the diagnostics log entries, oldest first.
func (c *Client) Results() []ResultEntry {
	return c.results.Entries()
}

// RequestLinkToken asks the gateway for a link token. A non-empty scope
// selects the scoped route variant (/mesh/link-token/connect or /pay) and
// requests that product; an empty scope posts an empty body to the base
// route. Each call begins a fresh link attempt: any previously held link
// token is discarded and the session restarts at TokenRequested, so the
// user can re-link after the widget connected or exited. A response with no
// recognised token field is terminal and must not be retried.
func (c *Client) RequestLinkToken(ctx context.Context, scope mesh.ProductScope) (string, error) {
	if err := c.beginAction(); err != nil {
		return "", c.fail("RequestLinkToken", err)
	}
	defer c.endAction()

	c.mu.Lock()
	c.linkToken = ""
	c.state = linksession.StateTokenRequested
	c.mu.Unlock()

	route := linkTokenRoute
	var request any
	if scope != "" {
		route = fmt.Sprintf("%s/%s", linkTokenRoute, scope)
		request = mesh.LinkTokenRequest{Products: []string{string(scope)}}
	}

	body, err := c.post(ctx, route, request)
	if err != nil {
		return "", c.fail("RequestLinkToken", err)
	}

	token, err := mesh.ResolveLinkToken(body)
	if err != nil {
		return "", c.fail("RequestLinkToken", err)
	}

	c.mu.Lock()
	c.linkToken = token
	c.status = "Link token received"
	c.mu.Unlock()

	c.record("link token", body)
	return token, nil
}

// OpenWidget hands the held link token to the injected widget launcher and
// wires the callback hooks. It must follow a successful RequestLinkToken.
func (c *Client) OpenWidget(ctx context.Context) error {
	if err := c.Guard(); err != nil {
		return c.fail("OpenWidget", err)
	}
	if c.launcher == nil {
		return c.fail("OpenWidget", errors.ErrNoWidgetLauncher)
	}

	c.mu.Lock()
	if c.linkToken == "" {
		c.mu.Unlock()
		return c.fail("OpenWidget", errors.Wrapf(errors.ErrInvalidTransition, "widget opened without a link token"))
	}
	if !linksession.CanTransition(c.state, linksession.StateWidgetOpen) {
		from := c.state
		c.mu.Unlock()
		return c.fail("OpenWidget", errors.Wrapf(errors.ErrInvalidTransition, "%s -> %s", from, linksession.StateWidgetOpen))
	}
	c.state = linksession.StateWidgetOpen
	c.status = "Widget open"
	linkToken := c.linkToken
	c.mu.Unlock()

	hooks := Hooks{
		OnIntegrationConnected: c.handleIntegrationConnected,
		OnTransferFinished:     c.handleTransferFinished,
		OnExit:                 c.handleExit,
	}
	if err := c.launcher.Open(ctx, linkToken, hooks); err != nil {
		return c.fail("OpenWidget", errors.Wrapf(errors.ErrVendorIntegration, "%v", err))
	}
	return nil
}

// Connect runs the full link flow: request a token, then open the widget.
func (c *Client) Connect(ctx context.Context, scope mesh.ProductScope) error {
	if _, err := c.RequestLinkToken(ctx, scope); err != nil {
		return err
	}
	return c.OpenWidget(ctx)
}

// Pay issues an authenticated transfer through the gateway. The access
// token falls back to the stored one; a missing token fails locally before
// any network call. Non-2xx responses surface the server's error verbatim
// with no retry - the gateway is a stateless proxy, so the user re-clicking
// is the retry.
func (c *Client) Pay(ctx context.Context, request mesh.PayRequest) (mesh.PayResult, error) {
	if request.AccessToken == "" {
		request.AccessToken = c.AccessToken()
	}
	if request.AccessToken == "" {
		return mesh.PayResult{}, c.fail("Pay", errors.Wrapf(errors.ErrValidation, "%s", errors.ErrMissingAccessToken))
	}
	if request.ToAddress == "" {
		return mesh.PayResult{}, c.fail("Pay", errors.Wrapf(errors.ErrValidation, "%s", errors.ErrMissingDestination))
	}
	if request.Amount <= 0 {
		return mesh.PayResult{}, c.fail("Pay", errors.Wrapf(errors.ErrValidation, "%s", errors.ErrMissingAmount))
	}

	if err := c.beginAction(); err != nil {
		return mesh.PayResult{}, c.fail("Pay", err)
	}
	defer c.endAction()

	body, err := c.post(ctx, payRoute, request)
	if err != nil {
		return mesh.PayResult{}, c.fail("Pay", err)
	}

	var result mesh.PayResult
	if err := json.Unmarshal(body, &result); err != nil {
		return mesh.PayResult{}, c.fail("Pay", errors.Wrapf(err, "decoding pay response"))
	}

	c.setStatus("Payment submitted")
	c.record("pay", body)
	return result, nil
}

// Portfolio fetches holdings through the gateway. The response is opaque
// JSON; the gateway owns its shape. The access token falls back to the
// stored one and a missing token fails locally before any network call.
func (c *Client) Portfolio(ctx context.Context, request mesh.PortfolioRequest) (json.RawMessage, error) {
	if request.AccessToken == "" {
		request.AccessToken = c.AccessToken()
	}
	if request.AccessToken == "" {
		return nil, c.fail("Portfolio", errors.Wrapf(errors.ErrValidation, "%s", errors.ErrMissingAccessToken))
	}

	if err := c.beginAction(); err != nil {
		return nil, c.fail("Portfolio", err)
	}
	defer c.endAction()

	query := url.Values{}
	query.Set("accessToken", request.AccessToken)
	if request.AccountID != "" {
		query.Set("accountId", request.AccountID)
	}
	if request.Type != "" {
		query.Set("type", request.Type)
	}

	body, err := c.get(ctx, portfolioRoute, query)
	if err != nil {
		return nil, c.fail("Portfolio", err)
	}

	c.setStatus("Portfolio received")
	c.record("portfolio", body)
	return body, nil
}

// beginAction runs the configuration guard and claims the single in-flight
// slot.
func (c *Client) beginAction() error {
	if err := c.Guard(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return errors.ErrRequestInFlight
	}
	c.busy = true
	return nil
}

func (c *Client) endAction() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Client) handleIntegrationConnected(payload json.RawMessage) {
	connection, err := mesh.ResolveConnection(payload)
	if err != nil {
		c.fail("onIntegrationConnected", err)
		return
	}

	c.mu.Lock()
	c.accessToken = connection.AccessToken
	if connection.AccountID != "" {
		c.accountID = connection.AccountID
	}
	if linksession.CanTransition(c.state, linksession.StateConnected) {
		c.state = linksession.StateConnected
	}
	c.status = "Connected"
	c.mu.Unlock()

	c.record("integration connected", payload)
	c.log.Info().Str("accountId", connection.AccountID).Msg("integration connected")
}

// handleTransferFinished logs and updates status only; stored credentials
// are never touched here.
func (c *Client) handleTransferFinished(payload json.RawMessage) {
	c.mu.Lock()
	if linksession.CanTransition(c.state, linksession.StateTransferFinished) {
		c.state = linksession.StateTransferFinished
	}
	c.status = "Transfer finished"
	c.mu.Unlock()

	c.record("transfer finished", payload)
	c.log.Info().Msg("transfer finished")
}

// handleExit logs and updates status only; stored credentials are never
// touched here.
func (c *Client) handleExit(payload json.RawMessage) {
	c.mu.Lock()
	if linksession.CanTransition(c.state, linksession.StateExited) {
		c.state = linksession.StateExited
	}
	c.status = "Widget exited"
	c.mu.Unlock()

	c.record("exit", payload)
	c.log.Info().Msg("widget exited")
}

// fail records an action-boundary error in the status text and diagnostics
// log, then returns it. No error leaves an action handler unrecorded.
func (c *Client) fail(action string, err error) error {
	wrapped := errors.Wrapf(err, "[Client %s]", action)

	c.mu.Lock()
	c.status = err.Error()
	c.mu.Unlock()

	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	c.results.Push(ResultEntry{Title: action + " failed", Timestamp: c.nowTime(), Payload: payload})
	c.log.Error().Err(err).Str("action", action).Msg("action failed")
	return wrapped
}

func (c *Client) setStatus(status string) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

func (c *Client) record(title string, payload json.RawMessage) {
	c.results.Push(ResultEntry{Title: title, Timestamp: c.nowTime(), Payload: payload})
}

func (c *Client) post(ctx context.Context, route string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+route, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, route string, query url.Values) ([]byte, error) {
	target := c.apiBase + route
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request")
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "sending request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewBackendError(resp.StatusCode, serverErrorMessage(body))
	}
	return body, nil
}

// serverErrorMessage pulls the server's error field out of a non-2xx body
// so it can be surfaced verbatim.
func serverErrorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return string(bytes.TrimSpace(body))
}
