package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/finbridge/mesh-link-gateway/internal/config"
	"github.com/finbridge/mesh-link-gateway/linksession"
	"github.com/finbridge/mesh-link-gateway/mesh"
	"github.com/finbridge/mesh-link-gateway/server"
)

// testConfig runs the gateway in sandbox mode with a fixed signing key,
// regardless of the host environment.
type testConfig struct {
	config.EnvVars
	config.Cors
	config.Mesh
	config.Security
	apiKeyHash string
}

func (testConfig) GetEnv() string              { return "TEST" }
func (testConfig) GetMeshClientID() string     { return "" }
func (testConfig) GetMeshClientSecret() string { return "" }
func (testConfig) GetSandboxSigningKey() string {
	return "test-signing-key"
}
func (c testConfig) GetAPIKeyHash() string { return c.apiKeyHash }
func (testConfig) GetOIDCIssuer() string   { return "" }

func newTestServer(t *testing.T, cfg testConfig) (*server.Server, linksession.Repo) {
	t.Helper()
	repo := linksession.NewInMemoryRepo()
	s, err := server.New(cfg, repo)
	require.NoError(t, err)
	return s, repo
}

func doJSON(t *testing.T, s *server.Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	s.ServeHTTP(recorder, req)
	return recorder
}

func TestLinkTokenIssuance(t *testing.T) {
	t.Run("empty body issues a connect-scoped token", func(t *testing.T) {
		s, repo := newTestServer(t, testConfig{})

		recorder := doJSON(t, s, http.MethodPost, server.RouteLinkToken, nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		var response struct {
			LinkToken string `json:"linkToken"`
			SessionID string `json:"sessionId"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		require.NotEmpty(t, response.LinkToken)
		require.NotEmpty(t, response.SessionID)

		session, err := repo.Get(response.SessionID)
		require.NoError(t, err)
		require.Equal(t, linksession.StateTokenRequested, session.State)
		require.Equal(t, []string{"connect"}, session.Products)
		require.Equal(t, response.LinkToken, session.LinkToken)
	})

	t.Run("token is bound to the session", func(t *testing.T) {
		s, _ := newTestServer(t, testConfig{})

		recorder := doJSON(t, s, http.MethodPost, server.RouteLinkToken, nil)
		var response struct {
			LinkToken string `json:"linkToken"`
			SessionID string `json:"sessionId"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))

		sandbox := mesh.NewSandbox("http://localhost:8080", "test-signing-key", 15*time.Minute)
		sessionID, err := sandbox.VerifyLinkToken(response.LinkToken)
		require.NoError(t, err)
		require.Equal(t, response.SessionID, sessionID)
	})

	t.Run("pay variant pins the product scope", func(t *testing.T) {
		s, repo := newTestServer(t, testConfig{})

		recorder := doJSON(t, s, http.MethodPost, server.RouteLinkTokenPay,
			mesh.LinkTokenRequest{Products: []string{"connect"}})
		require.Equal(t, http.StatusOK, recorder.Code)

		var response struct {
			SessionID string `json:"sessionId"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))

		session, err := repo.Get(response.SessionID)
		require.NoError(t, err)
		require.Equal(t, []string{"pay"}, session.Products)
	})

	t.Run("malformed body", func(t *testing.T) {
		s, _ := newTestServer(t, testConfig{})
		req := httptest.NewRequest(http.MethodPost, server.RouteLinkToken, bytes.NewReader([]byte(`{not json`)))
		recorder := httptest.NewRecorder()
		s.ServeHTTP(recorder, req)
		require.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestLinkCallback(t *testing.T) {
	issueToken := func(t *testing.T, s *server.Server) (linkToken, sessionID string) {
		t.Helper()
		recorder := doJSON(t, s, http.MethodPost, server.RouteLinkToken, nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		var response struct {
			LinkToken string `json:"linkToken"`
			SessionID string `json:"sessionId"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		return response.LinkToken, response.SessionID
	}

	t.Run("verified callback stores credentials on the session", func(t *testing.T) {
		s, repo := newTestServer(t, testConfig{})
		linkToken, sessionID := issueToken(t, s)

		recorder := doJSON(t, s, http.MethodPost, server.RouteLinkTokenCallback, map[string]any{
			"linkToken": linkToken,
			"payload": map[string]any{
				"accessToken": map[string]any{
					"accountTokens": []map[string]any{
						{"token": "t1", "account": map[string]any{"accountId": "a1"}},
					},
					"brokerName": "Acme Brokerage",
				},
			},
		})
		require.Equal(t, http.StatusOK, recorder.Code)
		require.Contains(t, recorder.Body.String(), sessionID)

		session, err := repo.Get(sessionID)
		require.NoError(t, err)
		require.Equal(t, linksession.StateConnected, session.State)
		require.Equal(t, "t1", session.AccessToken)
		require.Equal(t, "a1", session.AccountID)
		require.Equal(t, "Acme Brokerage", session.BrokerName)
	})

	t.Run("invalid link token", func(t *testing.T) {
		s, _ := newTestServer(t, testConfig{})
		recorder := doJSON(t, s, http.MethodPost, server.RouteLinkTokenCallback, map[string]any{
			"linkToken": "not-a-token",
			"payload":   map[string]any{"accessToken": "t1"},
		})
		require.Equal(t, http.StatusUnauthorized, recorder.Code)
		require.Contains(t, recorder.Body.String(), "invalid link token")
	})

	t.Run("unknown session", func(t *testing.T) {
		s, repo := newTestServer(t, testConfig{})
		linkToken, sessionID := issueToken(t, s)
		require.NoError(t, repo.Delete(sessionID))

		recorder := doJSON(t, s, http.MethodPost, server.RouteLinkTokenCallback, map[string]any{
			"linkToken": linkToken,
			"payload":   map[string]any{"accessToken": "t1"},
		})
		require.Equal(t, http.StatusNotFound, recorder.Code)
		require.Contains(t, recorder.Body.String(), "link session not found")
	})

	t.Run("expired session", func(t *testing.T) {
		s, repo := newTestServer(t, testConfig{})
		_, sessionID := issueToken(t, s)

		session, err := repo.Get(sessionID)
		require.NoError(t, err)
		session.ExpiresAt = time.Now().Add(-time.Minute)
		require.NoError(t, repo.Upsert(sessionID, session))

		recorder := doJSON(t, s, http.MethodPost, server.RouteLinkTokenCallback, map[string]any{
			"sessionId": sessionID,
			"payload":   map[string]any{"accessToken": "t1"},
		})
		require.Equal(t, http.StatusGone, recorder.Code)
		require.Contains(t, recorder.Body.String(), "link session expired")
	})

	t.Run("payload without a token", func(t *testing.T) {
		s, _ := newTestServer(t, testConfig{})
		linkToken, _ := issueToken(t, s)

		recorder := doJSON(t, s, http.MethodPost, server.RouteLinkTokenCallback, map[string]any{
			"linkToken": linkToken,
			"payload":   map[string]any{},
		})
		require.Equal(t, http.StatusBadRequest, recorder.Code)
		require.Contains(t, recorder.Body.String(), "no access token captured for session")
	})

	t.Run("second callback for the same session conflicts", func(t *testing.T) {
		s, _ := newTestServer(t, testConfig{})
		linkToken, _ := issueToken(t, s)

		body := map[string]any{
			"linkToken": linkToken,
			"payload":   map[string]any{"accessToken": "t1"},
		}
		require.Equal(t, http.StatusOK, doJSON(t, s, http.MethodPost, server.RouteLinkTokenCallback, body).Code)

		recorder := doJSON(t, s, http.MethodPost, server.RouteLinkTokenCallback, body)
		require.Equal(t, http.StatusConflict, recorder.Code)
		require.Contains(t, recorder.Body.String(), "invalid session state transition")
	})

	t.Run("neither token nor session id", func(t *testing.T) {
		s, _ := newTestServer(t, testConfig{})
		recorder := doJSON(t, s, http.MethodPost, server.RouteLinkTokenCallback, map[string]any{
			"payload": map[string]any{"accessToken": "t1"},
		})
		require.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestPayHandler(t *testing.T) {
	t.Run("missing access token", func(t *testing.T) {
		s, _ := newTestServer(t, testConfig{})
		recorder := doJSON(t, s, http.MethodPost, server.RoutePay, mesh.PayRequest{Amount: 5, ToAddress: "addr"})
		require.Equal(t, http.StatusBadRequest, recorder.Code)
		require.Contains(t, recorder.Body.String(), "access token is required")
	})

	t.Run("missing destination", func(t *testing.T) {
		s, _ := newTestServer(t, testConfig{})
		recorder := doJSON(t, s, http.MethodPost, server.RoutePay, mesh.PayRequest{AccessToken: "tok", Amount: 5})
		require.Equal(t, http.StatusBadRequest, recorder.Code)
		require.Contains(t, recorder.Body.String(), "destination address is required")
	})

	t.Run("sandbox transfer returns a txId", func(t *testing.T) {
		s, _ := newTestServer(t, testConfig{})
		recorder := doJSON(t, s, http.MethodPost, server.RoutePay,
			mesh.PayRequest{AccessToken: "tok", Amount: 5, ToAddress: "addr", Asset: "USDC"})
		require.Equal(t, http.StatusOK, recorder.Code)

		var result mesh.PayResult
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
		require.NotEmpty(t, result.TxID)
		require.Equal(t, "completed", result.Status)
	})
}

func TestPortfolioHandler(t *testing.T) {
	t.Run("GET with query parameters", func(t *testing.T) {
		s, _ := newTestServer(t, testConfig{})
		recorder := doJSON(t, s, http.MethodGet, server.RoutePortfolio+"?accessToken=tok&accountId=a1", nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		var portfolio mesh.Portfolio
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &portfolio))
		require.NotEmpty(t, portfolio.Balances)
		require.NotEmpty(t, portfolio.Positions)
	})

	t.Run("POST with body", func(t *testing.T) {
		s, _ := newTestServer(t, testConfig{})
		recorder := doJSON(t, s, http.MethodPost, server.RoutePortfolio, mesh.PortfolioRequest{AccessToken: "tok"})
		require.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("missing access token", func(t *testing.T) {
		s, _ := newTestServer(t, testConfig{})
		recorder := doJSON(t, s, http.MethodGet, server.RoutePortfolio, nil)
		require.Equal(t, http.StatusBadRequest, recorder.Code)
		require.Contains(t, recorder.Body.String(), "access token is required")
	})
}

func TestRootAndUnknownRoutes(t *testing.T) {
	t.Run("health check", func(t *testing.T) {
		s, _ := newTestServer(t, testConfig{})
		recorder := doJSON(t, s, http.MethodGet, "/", nil)
		require.Equal(t, http.StatusOK, recorder.Code)
		require.Contains(t, recorder.Body.String(), `"ok":true`)
	})

	t.Run("unknown route carries the stub's 404 shape", func(t *testing.T) {
		s, _ := newTestServer(t, testConfig{})
		recorder := doJSON(t, s, http.MethodGet, "/nope", nil)
		require.Equal(t, http.StatusNotFound, recorder.Code)
		require.Contains(t, recorder.Body.String(), "Route GET /nope not found")
	})
}

func TestCorsPreflight(t *testing.T) {
	s, _ := newTestServer(t, testConfig{})

	req := httptest.NewRequest(http.MethodOptions, server.RoutePay, nil)
	req.Header.Set("Origin", "https://site.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder := httptest.NewRecorder()
	s.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, recorder.Header().Get("Access-Control-Allow-Methods"), "POST")
	require.Contains(t, recorder.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
}

func TestAPIKeyMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("super-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := testConfig{apiKeyHash: string(hash)}

	t.Run("missing key", func(t *testing.T) {
		s, _ := newTestServer(t, cfg)
		recorder := doJSON(t, s, http.MethodPost, server.RouteLinkToken, nil)
		require.Equal(t, http.StatusUnauthorized, recorder.Code)
		require.Contains(t, recorder.Body.String(), "missing API key")
	})

	t.Run("wrong key", func(t *testing.T) {
		s, _ := newTestServer(t, cfg)
		req := httptest.NewRequest(http.MethodPost, server.RouteLinkToken, nil)
		req.Header.Set("X-Api-Key", "wrong")
		recorder := httptest.NewRecorder()
		s.ServeHTTP(recorder, req)
		require.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("correct key", func(t *testing.T) {
		s, _ := newTestServer(t, cfg)
		req := httptest.NewRequest(http.MethodPost, server.RouteLinkToken, nil)
		req.Header.Set("X-Api-Key", "super-secret")
		recorder := httptest.NewRecorder()
		s.ServeHTTP(recorder, req)
		require.Equal(t, http.StatusOK, recorder.Code)
	})
}
