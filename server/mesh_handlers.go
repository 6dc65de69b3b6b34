package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/finbridge/mesh-link-gateway/internal/errors"
	"github.com/finbridge/mesh-link-gateway/linksession"
	"github.com/finbridge/mesh-link-gateway/mesh"
)

// RootHandler serves the health check and owns every unmatched path.
func (s *Server) RootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, map[string]any{
				"ok":      true,
				"message": fmt.Sprintf("Hello from %s", s.config.GetAppName()),
			})
			return
		}
		writeError(w, http.StatusNotFound, fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path))
	}
}

// PreflightHandler answers same-origin OPTIONS requests; cross-origin
// preflights are finished earlier by the CORS middleware.
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// LinkTokenHandler issues a link token and opens a link session. A
// non-empty scope pins the requested product regardless of the body.
func (s *Server) LinkTokenHandler(scope mesh.ProductScope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request mesh.LinkTokenRequest
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable request body")
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &request); err != nil {
				writeError(w, http.StatusBadRequest, "malformed request body")
				return
			}
		}

		products := request.Products
		if scope != "" {
			products = []string{string(scope)}
		}
		if len(products) == 0 {
			products = s.config.GetDefaultProducts()
		}

		now := s.nowTime()
		session := linksession.Session{
			ID:        uuid.New().String(),
			Products:  products,
			State:     linksession.StateTokenRequested,
			CreatedAt: now,
			UpdatedAt: now,
			ExpiresAt: now.Add(s.config.GetMaxSessionAge()),
		}

		var linkToken string
		if s.vendor != nil {
			linkToken, err = s.vendor.CreateLinkToken(r.Context(), mesh.LinkTokenRequest{
				Products: products,
				Provider: request.Provider,
			})
		} else {
			linkToken, err = s.sandbox.MintLinkToken(session.ID, products)
		}
		if err != nil {
			s.writeUpstreamError(w, err)
			return
		}

		session.LinkToken = linkToken
		if err := s.sessions.Upsert(session.ID, session); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to store link session")
			return
		}

		log.Info().Str("sessionId", session.ID).Strs("products", products).Msg("link token issued")
		writeJSON(w, http.StatusOK, map[string]any{
			"linkToken": linkToken,
			"sessionId": session.ID,
		})
	}
}

// linkCallbackRequest is the connected-callback body: the link token the
// widget ran under (verified in sandbox mode), a session id for vendor mode
// where the token is opaque to us, and the widget's raw connection payload.
type linkCallbackRequest struct {
	SessionID string          `json:"sessionId,omitempty"`
	LinkToken string          `json:"linkToken,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// LinkCallbackHandler records a successful widget connection against its
// link session: the presented link token is verified and resolved back to
// the session it was minted for, the callback payload is decoded into
// credentials, and the session moves to Connected holding them.
func (s *Server) LinkCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request linkCallbackRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}

		sessionID := request.SessionID
		if request.LinkToken != "" && s.sandbox != nil {
			verified, err := s.sandbox.VerifyLinkToken(request.LinkToken)
			if err != nil {
				if errors.Is(err, errors.ErrLinkTokenExpired) {
					writeError(w, http.StatusGone, errors.ErrLinkTokenExpired.Error())
					return
				}
				writeError(w, http.StatusUnauthorized, errors.ErrInvalidLinkToken.Error())
				return
			}
			sessionID = verified
		}
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "linkToken or sessionId is required")
			return
		}

		session, err := s.sessions.Get(sessionID)
		if err != nil {
			writeError(w, http.StatusNotFound, errors.ErrSessionNotFound.Error())
			return
		}

		now := s.nowTime()
		if session.Expired(now) {
			writeError(w, http.StatusGone, errors.ErrSessionExpired.Error())
			return
		}

		connection, err := mesh.ResolveConnection(request.Payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		// The callback implies the widget was opened, so a session still at
		// TokenRequested passes through WidgetOpen on its way to Connected.
		if session.State == linksession.StateTokenRequested {
			if err := session.Transition(linksession.StateWidgetOpen, now); err != nil {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
		}
		if err := session.Transition(linksession.StateConnected, now); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}

		session.AccessToken = connection.AccessToken
		session.AccountID = connection.AccountID
		session.BrokerName = connection.BrokerName
		if err := s.sessions.Upsert(session.ID, session); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to store link session")
			return
		}

		log.Info().Str("sessionId", session.ID).Str("accountId", session.AccountID).Msg("link session connected")
		writeJSON(w, http.StatusOK, map[string]any{
			"sessionId": session.ID,
			"state":     session.State,
		})
	}
}

// PayHandler proxies a transfer to the vendor. Validation failures are
// local 400s; vendor failures pass through verbatim.
func (s *Server) PayHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request mesh.PayRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}

		if request.AccessToken == "" {
			writeError(w, http.StatusBadRequest, errors.ErrMissingAccessToken.Error())
			return
		}
		if request.ToAddress == "" {
			writeError(w, http.StatusBadRequest, errors.ErrMissingDestination.Error())
			return
		}
		if request.Amount <= 0 {
			writeError(w, http.StatusBadRequest, errors.ErrMissingAmount.Error())
			return
		}

		var result mesh.PayResult
		var err error
		if s.vendor != nil {
			result, err = s.vendor.ExecuteTransfer(r.Context(), request)
		} else {
			result = mesh.SandboxPayResult()
		}
		if err != nil {
			s.writeUpstreamError(w, err)
			return
		}

		log.Info().Str("txId", result.TxID).Msg("transfer executed")
		writeJSON(w, http.StatusOK, result)
	}
}

// PortfolioHandler proxies a holdings fetch. GET reads query parameters,
// POST reads a JSON body; both accept the same fields.
func (s *Server) PortfolioHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request mesh.PortfolioRequest
		if r.Method == http.MethodGet {
			query := r.URL.Query()
			request.AccessToken = query.Get("accessToken")
			request.AccountID = query.Get("accountId")
			request.Type = query.Get("type")
		} else {
			if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
				writeError(w, http.StatusBadRequest, "malformed request body")
				return
			}
		}

		if request.AccessToken == "" {
			writeError(w, http.StatusBadRequest, errors.ErrMissingAccessToken.Error())
			return
		}

		var portfolio mesh.Portfolio
		var err error
		if s.vendor != nil {
			portfolio, err = s.vendor.GetHoldings(r.Context(), request)
		} else {
			portfolio = mesh.SandboxPortfolio()
		}
		if err != nil {
			s.writeUpstreamError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, portfolio)
	}
}

// writeUpstreamError maps a vendor call failure onto the response: vendor
// HTTP errors pass through with their status and message, everything else
// is a bad gateway.
func (s *Server) writeUpstreamError(w http.ResponseWriter, err error) {
	var backendErr *errors.BackendError
	if errors.As(err, &backendErr) {
		writeError(w, backendErr.StatusCode, backendErr.Message)
		return
	}
	log.Error().Err(err).Msg("vendor call failed")
	writeError(w, http.StatusBadGateway, err.Error())
}
