package mesh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/finbridge/mesh-link-gateway/internal/config"
	"github.com/finbridge/mesh-link-gateway/internal/errors"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	linkTokenPath = "/api/v1/linktoken"
	transferPath  = "/api/v1/transfers/managed/execute"
	holdingsPath  = "/api/v1/holdings/get"

	requestTimeout = 30 * time.Second
)

// Client talks to the vendor aggregation API. When the vendor exposes an
// OAuth2 token endpoint the client authenticates with client credentials
// (token cached and refreshed by the oauth2 transport); otherwise it sends
// the client id/secret as vendor headers on each request.
type Client struct {
	baseURL    string
	clientID   string
	secret     string
	httpClient *http.Client
}

// NewClient builds a vendor client from configuration. Returns nil when no
// vendor credentials are configured; callers treat nil as sandbox mode.
func NewClient(cfg config.MeshConfig) *Client {
	clientID := cfg.GetMeshClientID()
	secret := cfg.GetMeshClientSecret()
	if clientID == "" || secret == "" {
		return nil
	}

	c := &Client{
		baseURL:  strings.TrimRight(cfg.GetMeshAPIBase(), "/"),
		clientID: clientID,
		secret:   secret,
	}

	if tokenURL := cfg.GetMeshTokenURL(); tokenURL != "" {
		ccConfig := clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: secret,
			TokenURL:     tokenURL,
		}
		c.httpClient = ccConfig.Client(context.Background())
		c.httpClient.Timeout = requestTimeout
	} else {
		c.httpClient = &http.Client{Timeout: requestTimeout}
	}

	return c
}

// CreateLinkToken asks the vendor for a new link token.
func (c *Client) CreateLinkToken(ctx context.Context, req LinkTokenRequest) (string, error) {
	body, err := c.post(ctx, linkTokenPath, req)
	if err != nil {
		return "", errors.Wrapf(err, "[Client CreateLinkToken]")
	}
	return ResolveLinkToken(body)
}

// ExecuteTransfer runs a pay request against the vendor transfer API.
func (c *Client) ExecuteTransfer(ctx context.Context, req PayRequest) (PayResult, error) {
	body, err := c.post(ctx, transferPath, req)
	if err != nil {
		return PayResult{}, errors.Wrapf(err, "[Client ExecuteTransfer]")
	}

	var result PayResult
	if err := json.Unmarshal(body, &result); err != nil {
		return PayResult{}, errors.Wrapf(err, "[Client ExecuteTransfer] decoding response")
	}
	return result, nil
}

// GetHoldings fetches the holdings snapshot for a linked account.
func (c *Client) GetHoldings(ctx context.Context, req PortfolioRequest) (Portfolio, error) {
	body, err := c.post(ctx, holdingsPath, req)
	if err != nil {
		return Portfolio{}, errors.Wrapf(err, "[Client GetHoldings]")
	}

	var portfolio Portfolio
	if err := json.Unmarshal(body, &portfolio); err != nil {
		return Portfolio{}, errors.Wrapf(err, "[Client GetHoldings] decoding response")
	}
	return portfolio, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Id", c.clientID)
	req.Header.Set("X-Client-Secret", c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewBackendError(resp.StatusCode, vendorErrorMessage(body))
	}
	return body, nil
}

// vendorErrorMessage pulls the human-readable message out of a vendor error
// body, falling back to the raw body when it isn't the expected shape.
func vendorErrorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(body))
}
