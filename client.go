package x402

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 2 * time.Minute

// HTTPDoer is the transport collaborator. The protocol depends only on this
// request/response contract, not on any specific transport implementation.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client drives the two-request x402 protocol: probe, interpret the 402
// challenge, sign an authorization, retry once with the payment attached.
// A Client is safe for concurrent use; every attempt builds its own
// authorization with its own nonce.
type Client struct {
	httpClient HTTPDoer
	nonce      NonceFunc
	now        NowFunc
	budget     *BudgetManager

	// PaymentCallback approves payments above policy thresholds
	paymentCallback func(amount *big.Int, url string) bool

	onPaymentAttempt func(PaymentEvent)
	onPaymentSuccess func(PaymentEvent)
	onPaymentFailure func(PaymentEvent, error)

	recorder *PaymentRecorder
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP transport
func WithHTTPClient(httpClient HTTPDoer) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithNonceFunc replaces the nonce source (deterministic tests)
func WithNonceFunc(fn NonceFunc) ClientOption {
	return func(c *Client) { c.nonce = fn }
}

// WithNowFunc replaces the clock (deterministic tests)
func WithNowFunc(fn NowFunc) ClientOption {
	return func(c *Client) { c.now = fn }
}

// WithBudget enforces spending limits before any signature is produced
func WithBudget(budget *BudgetManager) ClientOption {
	return func(c *Client) { c.budget = budget }
}

// WithPaymentCallback installs an approval hook consulted before signing
func WithPaymentCallback(fn func(amount *big.Int, url string) bool) ClientOption {
	return func(c *Client) { c.paymentCallback = fn }
}

// WithPaymentRecorder records payment events for testing
func WithPaymentRecorder(recorder *PaymentRecorder) ClientOption {
	return func(c *Client) { c.recorder = recorder }
}

// OnPaymentAttempt registers a callback fired when a challenge is accepted
func OnPaymentAttempt(fn func(PaymentEvent)) ClientOption {
	return func(c *Client) { c.onPaymentAttempt = fn }
}

// OnPaymentSuccess registers a callback fired when a payment settles
func OnPaymentSuccess(fn func(PaymentEvent)) ClientOption {
	return func(c *Client) { c.onPaymentSuccess = fn }
}

// OnPaymentFailure registers a callback fired when a payment fails
func OnPaymentFailure(fn func(PaymentEvent, error)) ClientOption {
	return func(c *Client) { c.onPaymentFailure = fn }
}

// NewClient creates a Client with the default transport, clock and
// nonce source
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		nonce:      DefaultNonce,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request describes the caller's request to a protected resource. Body is
// held as bytes so the retry can reissue it unchanged.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// PaymentResult is the outcome of one Pay call. A failed payment is an
// ordinary outcome: Err is populated and Success is false, but the call
// itself does not error.
type PaymentResult struct {
	// Success is true when the resource was obtained, paid or not
	Success bool

	// StatusCode is the final HTTP status observed (0 on transport failure)
	StatusCode int

	// Receipt is the decoded settlement receipt, nil when absent or garbled
	Receipt *SettlementResponse

	// Body is the raw final response body
	Body []byte

	// PaymentHeader is the X-PAYMENT value sent, empty if no payment was made
	PaymentHeader string

	// Err is the failure kind when Success is false
	Err error

	// Diagnostic carries non-fatal problems (e.g. a garbled settlement
	// header), exposed for verbose output only
	Diagnostic error
}

// DecodedBody returns the body decoded as JSON when possible
func (r *PaymentResult) DecodedBody() map[string]any {
	var decoded map[string]any
	if err := json.Unmarshal(r.Body, &decoded); err != nil {
		return nil
	}
	return decoded
}

// Get performs the payment flow against url with a GET request
func (c *Client) Get(ctx context.Context, url string, cfg PaymentConfig) *PaymentResult {
	return c.Pay(ctx, Request{Method: http.MethodGet, URL: url}, cfg)
}

// Pay issues the caller's request, and if the server answers 402, signs the
// challenge and retries exactly once with the X-PAYMENT header attached.
// A second 402 on the retried request is a rejection, never an invitation
// to sign again.
func (c *Client) Pay(ctx context.Context, req Request, cfg PaymentConfig) *PaymentResult {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return &PaymentResult{Err: err}
	}

	// First request: exactly as the caller specified, no payment header.
	resp, err := c.send(ctx, req, "")
	if err != nil {
		return &PaymentResult{Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	}
	body, err := readBody(resp)
	if err != nil {
		return &PaymentResult{StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		// Passthrough: the resource did not demand payment.
		return &PaymentResult{
			Success:    resp.StatusCode < 400,
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	challenge, err := parseChallenge(body, cfg)
	if err != nil {
		c.recordFailure(req, cfg, nil, err)
		return &PaymentResult{StatusCode: resp.StatusCode, Body: body, Err: err}
	}

	c.recordAttempt(req, challenge)

	auth, domain, err := buildAuthorization(cfg, challenge, cfg.Signer.Address(), c.nonce, c.now)
	if err != nil {
		c.recordFailure(req, cfg, challenge, err)
		return &PaymentResult{StatusCode: resp.StatusCode, Body: body, Err: err}
	}

	// Policy runs before signing so a denied payment costs no signature.
	if err := c.approve(auth.Value, req.URL); err != nil {
		c.recordFailure(req, cfg, challenge, err)
		return &PaymentResult{StatusCode: resp.StatusCode, Body: body, Err: err}
	}

	payload, err := c.sealPayment(cfg, challenge, auth, domain)
	if err != nil {
		c.recordFailure(req, cfg, challenge, err)
		return &PaymentResult{StatusCode: resp.StatusCode, Body: body, Err: err}
	}

	header, err := EncodePaymentHeader(payload)
	if err != nil {
		c.recordFailure(req, cfg, challenge, err)
		return &PaymentResult{StatusCode: resp.StatusCode, Body: body, Err: err}
	}

	// Single retry: identical method and body, payment header attached.
	paidResp, err := c.send(ctx, req, header)
	if err != nil {
		wrapped := NewPaymentError("transport_failure", err.Error(),
			req.URL, auth.Value.String(), payload.Network, ErrTransport)
		c.recordFailure(req, cfg, challenge, wrapped)
		return &PaymentResult{PaymentHeader: header, Err: wrapped}
	}
	paidBody, err := readBody(paidResp)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrTransport, err)
		c.recordFailure(req, cfg, challenge, wrapped)
		return &PaymentResult{StatusCode: paidResp.StatusCode, PaymentHeader: header, Err: wrapped}
	}

	if paidResp.StatusCode < 200 || paidResp.StatusCode >= 300 {
		rejection := NewPaymentError("payment_rejected",
			fmt.Sprintf("status %d after payment", paidResp.StatusCode),
			req.URL, auth.Value.String(), payload.Network, ErrPaymentRejected)
		c.recordFailure(req, cfg, challenge, rejection)
		return &PaymentResult{
			StatusCode:    paidResp.StatusCode,
			Body:          paidBody,
			PaymentHeader: header,
			Err:           rejection,
		}
	}

	result := &PaymentResult{
		Success:       true,
		StatusCode:    paidResp.StatusCode,
		Body:          paidBody,
		PaymentHeader: header,
	}

	// A garbled settlement header degrades to a missing receipt.
	if settlement := paidResp.Header.Get(SettlementHeader); settlement != "" {
		receipt, err := DecodeSettlementHeader(settlement)
		if err != nil {
			result.Diagnostic = err
		} else {
			result.Receipt = receipt
		}
	}

	if c.budget != nil {
		c.budget.RecordPayment(auth.Value, req.URL)
	}
	c.recordSuccess(req, challenge, auth, result)

	return result
}

// SignPaymentHeader performs only the build/encode/sign steps against the
// configuration's defaults and returns the X-PAYMENT header value. No
// network I/O is performed.
func (c *Client) SignPaymentHeader(cfg PaymentConfig) (string, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	payload, _, err := c.signPayment(cfg, nil)
	if err != nil {
		return "", err
	}
	return EncodePaymentHeader(payload)
}

// SignPaymentHeader signs a payment header with default clock and nonce
// source (sign-only mode without a Client)
func SignPaymentHeader(cfg PaymentConfig) (string, error) {
	return NewClient().SignPaymentHeader(cfg)
}

// signPayment builds, hashes, signs and wraps one authorization. Signing
// failures are never retried.
func (c *Client) signPayment(cfg PaymentConfig, challenge *PaymentRequirement) (*PaymentPayload, *TransferAuthorization, error) {
	auth, domain, err := buildAuthorization(cfg, challenge, cfg.Signer.Address(), c.nonce, c.now)
	if err != nil {
		return nil, nil, err
	}
	payload, err := c.sealPayment(cfg, challenge, auth, domain)
	if err != nil {
		return nil, nil, err
	}
	return payload, auth, nil
}

// sealPayment hashes the authorization, signs the digest and wraps the
// result in its wire envelope
func (c *Client) sealPayment(cfg PaymentConfig, challenge *PaymentRequirement, auth *TransferAuthorization, domain *TransferDomain) (*PaymentPayload, error) {
	digest, err := HashTransferAuthorization(domain, auth)
	if err != nil {
		return nil, err
	}

	signature, err := cfg.Signer.Sign(digest)
	if err != nil {
		return nil, err
	}

	network := cfg.Network
	if challenge != nil && challenge.Network != "" {
		// Echo the server's own network identifier on the wire.
		network = challenge.Network
	} else if n, err := cfg.network(); err == nil {
		network = n.ID
	}

	return &PaymentPayload{
		X402Version: X402Version,
		Scheme:      cfg.Scheme,
		Network:     network,
		Payload: ExactEvmPayload{
			Signature:     "0x" + hex.EncodeToString(signature),
			Authorization: auth.Wire(),
		},
	}, nil
}

// approve runs the budget and callback policy for one payment
func (c *Client) approve(amount *big.Int, url string) error {
	if c.budget != nil {
		if err := c.budget.CanSpend(amount, url); err != nil {
			return err
		}
	}
	if c.paymentCallback != nil && !c.paymentCallback(amount, url) {
		return ErrPaymentDeclined
	}
	return nil
}

// parseChallenge extracts the payment requirement matching the configured
// network and scheme from a 402 body. Falls back to the first entry when
// nothing matches exactly, as deployed servers frequently advertise a
// single option under a differently spelled network id.
func parseChallenge(body []byte, cfg PaymentConfig) (*PaymentRequirement, error) {
	var challenge PaymentRequired
	if err := json.Unmarshal(body, &challenge); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingChallenge, err)
	}
	if len(challenge.Accepts) == 0 {
		return nil, fmt.Errorf("%w: no accepted payment methods", ErrMissingChallenge)
	}

	network, err := cfg.network()
	if err != nil {
		return nil, err
	}

	for i := range challenge.Accepts {
		entry := &challenge.Accepts[i]
		if entry.Scheme == cfg.Scheme && sameNetwork(cfg.Networks, entry.Network, network) {
			return entry, nil
		}
	}
	return &challenge.Accepts[0], nil
}

// send issues one HTTP exchange, attaching the payment header when set
func (c *Client) send(ctx context.Context, req Request, paymentHeader string) (*http.Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", "x402-payment-harness/"+Version)
	}
	if paymentHeader != "" {
		httpReq.Header.Set(PaymentHeader, paymentHeader)
	}

	return c.httpClient.Do(httpReq)
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *Client) recordAttempt(req Request, challenge *PaymentRequirement) {
	event := challengeEvent(PaymentEventAttempt, req, challenge)
	if c.onPaymentAttempt != nil {
		c.onPaymentAttempt(event)
	}
	if c.recorder != nil {
		c.recorder.Record(event)
	}
}

func (c *Client) recordSuccess(req Request, challenge *PaymentRequirement, auth *TransferAuthorization, result *PaymentResult) {
	event := challengeEvent(PaymentEventSuccess, req, challenge)
	event.Amount = new(big.Int).Set(auth.Value)
	if result.Receipt != nil {
		event.Transaction = result.Receipt.Transaction
	}
	if c.onPaymentSuccess != nil {
		c.onPaymentSuccess(event)
	}
	if c.recorder != nil {
		c.recorder.Record(event)
	}
}

func (c *Client) recordFailure(req Request, cfg PaymentConfig, challenge *PaymentRequirement, err error) {
	event := challengeEvent(PaymentEventFailure, req, challenge)
	event.Network = cfg.Network
	event.Error = err
	if c.onPaymentFailure != nil {
		c.onPaymentFailure(event, err)
	}
	if c.recorder != nil {
		c.recorder.Record(event)
	}
}

func challengeEvent(kind PaymentEventType, req Request, challenge *PaymentRequirement) PaymentEvent {
	event := PaymentEvent{
		Type:      kind,
		URL:       req.URL,
		Method:    req.Method,
		Timestamp: time.Now().Unix(),
	}
	if challenge != nil {
		event.Network = challenge.Network
		event.Asset = challenge.Asset
		event.Recipient = challenge.PayTo
		if amount, ok := new(big.Int).SetString(challenge.MaxAmountRequired, 10); ok {
			event.Amount = amount
		}
	}
	return event
}
