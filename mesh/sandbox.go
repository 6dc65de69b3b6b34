package mesh

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/finbridge/mesh-link-gateway/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const sandboxAudience = "mesh-link"

// Sandbox mints and verifies local link tokens when no vendor credentials
// are configured. Tokens are short-TTL HMAC-signed JWTs bound to a link
// session, so the rest of the gateway behaves exactly as it does against
// the real vendor.
type Sandbox struct {
	issuer     string
	signingKey []byte
	ttl        time.Duration
}

// NewSandbox creates a sandbox token minter. The signing key is required;
// issuer identifies this gateway instance in the token's iss claim.
func NewSandbox(issuer, signingKey string, ttl time.Duration) *Sandbox {
	if signingKey == "" {
		return nil
	}
	return &Sandbox{
		issuer:     issuer,
		signingKey: []byte(signingKey),
		ttl:        ttl,
	}
}

// MintLinkToken creates a single-use link token bound to a session id.
func (s *Sandbox) MintLinkToken(sessionID string, products []string) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"iss":      s.issuer,
		"sub":      sessionID,
		"aud":      sandboxAudience,
		"iat":      now.Unix(),
		"exp":      now.Add(s.ttl).Unix(),
		"jti":      uuid.New().String(),
		"products": products,
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", errors.Wrapf(err, "[Sandbox MintLinkToken] signing token")
	}
	return signed, nil
}

// VerifyLinkToken checks a sandbox link token and returns the session id it
// was bound to.
func (s *Sandbox) VerifyLinkToken(linkToken string) (string, error) {
	parsed, err := jwtlib.Parse(linkToken, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.ErrInvalidLinkToken
		}
		return s.signingKey, nil
	},
		jwtlib.WithIssuer(s.issuer),
		jwtlib.WithAudience(sandboxAudience),
		jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return "", errors.ErrLinkTokenExpired
		}
		return "", errors.Wrapf(errors.ErrInvalidLinkToken, "%v", err)
	}

	sessionID, err := parsed.Claims.GetSubject()
	if err != nil || sessionID == "" {
		return "", errors.ErrInvalidLinkToken
	}
	return sessionID, nil
}

// SandboxPortfolio is the deterministic holdings snapshot returned in
// sandbox mode.
func SandboxPortfolio() Portfolio {
	return Portfolio{
		Balances: []Balance{
			{Asset: "USD", Amount: 1523.40, Fiat: 1523.40},
		},
		Positions: []Position{
			{Symbol: "VTI", Quantity: 12, LastPrice: 268.11, MarketValue: 3217.32},
			{Symbol: "BTC", Quantity: 0.05, LastPrice: 64210.00, MarketValue: 3210.50},
		},
	}
}

// SandboxPayResult is the deterministic transfer result returned in sandbox
// mode.
func SandboxPayResult() PayResult {
	return PayResult{
		TxID:       uuid.New().String(),
		TransferID: uuid.New().String(),
		Status:     "completed",
	}
}
