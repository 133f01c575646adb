package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/naveenspark/arcana/pkg/domain"
)

// Client is the Arcana API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cache      Cache
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCache caches catalog GET responses.
func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// New creates a new API client. token may be empty for anonymous calls.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: noopCache{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the bearer credential the client sends.
func (c *Client) Token() string {
	return c.token
}

// --- Catalog ---

// ListSpreads returns every spread definition.
func (c *Client) ListSpreads(ctx context.Context) ([]domain.SpreadDef, error) {
	var spreads []domain.SpreadDef
	check := func() error {
		for _, s := range spreads {
			if s.ID == "" || s.Size() <= 0 {
				return invalid("spread %q has no positions", s.ID)
			}
		}
		return nil
	}
	if err := c.getCached(ctx, "/api/spreads", &spreads, check); err != nil {
		return nil, fmt.Errorf("client.ListSpreads: %w", err)
	}
	return spreads, nil
}

// ListDecks returns the metadata of every card in the deck.
func (c *Client) ListDecks(ctx context.Context) ([]domain.CardMeta, error) {
	var cards []domain.CardMeta
	check := func() error {
		for _, card := range cards {
			if card.ID == "" {
				return invalid("card without id")
			}
		}
		return nil
	}
	if err := c.getCached(ctx, "/api/decks", &cards, check); err != nil {
		return nil, fmt.Errorf("client.ListDecks: %w", err)
	}
	return cards, nil
}

// Draw requests a randomized draw for the spread.
func (c *Client) Draw(ctx context.Context, spreadID string) (*domain.DrawResult, error) {
	var res domain.DrawResult
	if err := c.post(ctx, "/api/draw", map[string]string{"spreadId": spreadID}, &res); err != nil {
		return nil, fmt.Errorf("client.Draw: %w", err)
	}
	if len(res.Cards) == 0 {
		return nil, fmt.Errorf("client.Draw: %w", invalid("draw for %q has no cards", spreadID))
	}
	for _, card := range res.Cards {
		if card.CardID == "" || card.Position < 1 {
			return nil, fmt.Errorf("client.Draw: %w", invalid("malformed card at position %d", card.Position))
		}
	}
	return &res, nil
}

// --- Session & terms ---

type sessionResponse struct {
	UID        *string `json:"uid"`
	Email      string  `json:"email"`
	Drucoins   float64 `json:"drucoins"`
	NeedsTerms bool    `json:"needsTerms"`
}

// ValidateSession checks the bearer credential and returns the session snapshot.
// A 401 is returned as an *HTTPError; a body without a uid is ErrInvalidResponse.
func (c *Client) ValidateSession(ctx context.Context) (*domain.SessionSnapshot, error) {
	var raw sessionResponse
	if err := c.get(ctx, "/session/validate", &raw); err != nil {
		return nil, fmt.Errorf("client.ValidateSession: %w", err)
	}
	if raw.UID == nil || *raw.UID == "" {
		return nil, fmt.Errorf("client.ValidateSession: %w", invalid("missing uid"))
	}
	if raw.Drucoins < 0 || raw.Drucoins > math.MaxInt32 || raw.Drucoins != math.Trunc(raw.Drucoins) {
		return nil, fmt.Errorf("client.ValidateSession: %w", invalid("balance %v is not a whole drucoin count", raw.Drucoins))
	}
	return &domain.SessionSnapshot{
		UID:        *raw.UID,
		Email:      raw.Email,
		Drucoins:   int(raw.Drucoins),
		NeedsTerms: raw.NeedsTerms,
	}, nil
}

// AcceptTerms records acceptance of the given terms version.
func (c *Client) AcceptTerms(ctx context.Context, version string) error {
	if err := c.postOK(ctx, "/terms/accept", map[string]string{"version": version}, nil); err != nil {
		return fmt.Errorf("client.AcceptTerms: %w", err)
	}
	return nil
}

// --- Payments ---

// CreateOrder opens a PayPal order for a drucoin purchase.
func (c *Client) CreateOrder(ctx context.Context) (*domain.Order, error) {
	var res struct {
		okResponse
		OrderID string `json:"orderID"`
	}
	if err := c.postOK(ctx, "/paypal/create-order", struct{}{}, &res); err != nil {
		return nil, fmt.Errorf("client.CreateOrder: %w", err)
	}
	if res.OrderID == "" {
		return nil, fmt.Errorf("client.CreateOrder: %w", invalid("missing orderID"))
	}
	return &domain.Order{ID: res.OrderID}, nil
}

// CaptureOrder captures an approved order and returns the new balance.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*domain.Capture, error) {
	var res struct {
		okResponse
		Drucoins *int `json:"drucoins"`
		Balance  *int `json:"balance"`
	}
	if err := c.postOK(ctx, "/paypal/capture-order", map[string]string{"orderID": orderID}, &res); err != nil {
		return nil, fmt.Errorf("client.CaptureOrder: %w", err)
	}
	balance := res.Drucoins
	if balance == nil {
		balance = res.Balance
	}
	if balance == nil {
		return nil, fmt.Errorf("client.CaptureOrder: %w", invalid("missing balance"))
	}
	return &domain.Capture{OrderID: orderID, Drucoins: *balance}, nil
}

// --- Captcha ---

// VerifyCaptcha checks a Turnstile token with the backend.
func (c *Client) VerifyCaptcha(ctx context.Context, token string) error {
	if err := c.postOK(ctx, "/captcha/verify", map[string]string{"token": token}, nil); err != nil {
		return fmt.Errorf("client.VerifyCaptcha: %w", err)
	}
	return nil
}

// okResponse is the {ok, error} envelope used by the auth and payment endpoints.
type okResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type okCarrier interface {
	status() okResponse
}

func (r okResponse) status() okResponse { return r }

// postOK posts body and requires {"ok": true} in the response. out, when
// non-nil, must embed okResponse.
func (c *Client) postOK(ctx context.Context, path string, body any, out okCarrier) error {
	if out == nil {
		out = &okResponse{}
	}
	if err := c.post(ctx, path, body, out); err != nil {
		return err
	}
	if st := out.status(); !st.OK {
		if st.Error != "" {
			return fmt.Errorf("%w: %s", ErrRejected, st.Error)
		}
		return ErrRejected
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}

// getCached serves GET responses from the cache when present. check runs on
// the decoded value; only bodies that pass it are cached.
func (c *Client) getCached(ctx context.Context, path string, out any, check func() error) error {
	if data, ok := c.cache.Get(path); ok {
		if json.Unmarshal(data, out) == nil && check() == nil {
			return nil
		}
	}
	data, err := c.fetch(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
	}
	if err := check(); err != nil {
		return err
	}
	c.cache.Set(path, data)
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	data, err := c.fetch(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
		}
	}
	return nil
}

// maxBodySize caps every response body read.
const maxBodySize = 1 << 20

func (c *Client) fetch(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if resp.StatusCode >= 400 {
		if readErr != nil {
			return nil, &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return nil, &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if readErr != nil {
		return nil, fmt.Errorf("read response: %w", readErr)
	}
	return respBody, nil
}
