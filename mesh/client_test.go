package mesh_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finbridge/mesh-link-gateway/internal/errors"
	"github.com/finbridge/mesh-link-gateway/mesh"
)

type vendorConfig struct {
	apiBase  string
	clientID string
	secret   string
}

func (c vendorConfig) GetMeshClientID() string        { return c.clientID }
func (c vendorConfig) GetMeshClientSecret() string    { return c.secret }
func (c vendorConfig) GetMeshAPIBase() string         { return c.apiBase }
func (c vendorConfig) GetMeshTokenURL() string        { return "" }
func (c vendorConfig) GetLinkTokenTTL() time.Duration { return 15 * time.Minute }
func (c vendorConfig) GetSandboxSigningKey() string   { return "" }
func (c vendorConfig) GetDefaultProducts() []string   { return []string{"connect"} }

func TestVendorClient(t *testing.T) {
	t.Run("nil without credentials", func(t *testing.T) {
		require.Nil(t, mesh.NewClient(vendorConfig{apiBase: "https://vendor.example.com"}))
	})

	t.Run("sends vendor credential headers", func(t *testing.T) {
		vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "cid", r.Header.Get("X-Client-Id"))
			require.Equal(t, "csecret", r.Header.Get("X-Client-Secret"))
			require.Equal(t, "/api/v1/linktoken", r.URL.Path)
			_, _ = w.Write([]byte(`{"content":{"linkToken":"vendor-lt"}}`))
		}))
		defer vendor.Close()

		client := mesh.NewClient(vendorConfig{apiBase: vendor.URL, clientID: "cid", secret: "csecret"})
		require.NotNil(t, client)

		token, err := client.CreateLinkToken(context.Background(), mesh.LinkTokenRequest{Products: []string{"connect"}})
		require.NoError(t, err)
		require.Equal(t, "vendor-lt", token)
	})

	t.Run("vendor error passes through status and message", func(t *testing.T) {
		vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"invalid client credentials"}`))
		}))
		defer vendor.Close()

		client := mesh.NewClient(vendorConfig{apiBase: vendor.URL, clientID: "cid", secret: "bad"})
		_, err := client.CreateLinkToken(context.Background(), mesh.LinkTokenRequest{})
		require.Error(t, err)

		var backendErr *errors.BackendError
		require.ErrorAs(t, err, &backendErr)
		require.Equal(t, http.StatusForbidden, backendErr.StatusCode)
		require.Equal(t, "invalid client credentials", backendErr.Message)
	})

	t.Run("transfer decodes the pay result", func(t *testing.T) {
		vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v1/transfers/managed/execute", r.URL.Path)

			var request mesh.PayRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			require.Equal(t, "tok", request.AccessToken)

			_, _ = w.Write([]byte(`{"txId":"tx-9","status":"pending"}`))
		}))
		defer vendor.Close()

		client := mesh.NewClient(vendorConfig{apiBase: vendor.URL, clientID: "cid", secret: "csecret"})
		result, err := client.ExecuteTransfer(context.Background(), mesh.PayRequest{AccessToken: "tok", Amount: 1, ToAddress: "addr"})
		require.NoError(t, err)
		require.Equal(t, "tx-9", result.TxID)
		require.Equal(t, "pending", result.Status)
	})

	t.Run("holdings decodes the portfolio", func(t *testing.T) {
		vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v1/holdings/get", r.URL.Path)
			_, _ = w.Write([]byte(`{"balances":[{"asset":"USD","amount":10}],"positions":[]}`))
		}))
		defer vendor.Close()

		client := mesh.NewClient(vendorConfig{apiBase: vendor.URL, clientID: "cid", secret: "csecret"})
		portfolio, err := client.GetHoldings(context.Background(), mesh.PortfolioRequest{AccessToken: "tok"})
		require.NoError(t, err)
		require.Len(t, portfolio.Balances, 1)
		require.Equal(t, "USD", portfolio.Balances[0].Asset)
	})
}
