package mesh

import (
	"encoding/json"

	"github.com/finbridge/mesh-link-gateway/internal/errors"
)

// Connection is the resolved result of a successful account link: the
// long-lived access token used for follow-up calls and, when the vendor
// supplied one, the linked account's identifier.
type Connection struct {
	AccessToken string
	AccountID   string
	BrokerName  string
}

// ConnectionPayload represents the vendor widget's "integration connected"
// callback data. The vendor has shipped three shapes over time:
//
//	{"accessToken": "t1"}                                          (direct)
//	{"accessToken": {"accountTokens": [{"token": "t1",
//	    "account": {"accountId": "a1"}}], "brokerName": "..."}}    (current)
//	{"accessTokens": [{"token": "t1"}]}                            (legacy)
//
// AccessToken is kept raw and decoded once by Resolve.
type ConnectionPayload struct {
	AccessToken  json.RawMessage `json:"accessToken,omitempty"`
	AccessTokens []AccountToken  `json:"accessTokens,omitempty"`
	AccountID    string          `json:"accountId,omitempty"`
}

// AccountToken is one linked account's credential inside the current shape.
type AccountToken struct {
	Token   string      `json:"token,omitempty"`
	Account LinkAccount `json:"account,omitempty"`
}

// LinkAccount identifies the account a token belongs to.
type LinkAccount struct {
	AccountID   string `json:"accountId,omitempty"`
	AccountName string `json:"accountName,omitempty"`
}

// UnmarshalJSON accepts both the object form {"token": "t1", ...} and the
// oldest shipped form where the array element was a bare token string.
func (t *AccountToken) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		t.Token = bare
		return nil
	}

	type accountTokenAlias AccountToken
	var alias accountTokenAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*t = AccountToken(alias)
	return nil
}

// accessTokenEnvelope is the object form of the accessToken field.
type accessTokenEnvelope struct {
	AccountTokens []AccountToken `json:"accountTokens,omitempty"`
	BrokerName    string         `json:"brokerName,omitempty"`
}

// Resolve extracts the access token and account id, trying the known shapes
// in fixed fallback order: direct string field, accountTokens[0].token,
// legacy accessTokens[0]. The first non-empty match is stored; later shapes
// are never consulted once one matches.
func (p ConnectionPayload) Resolve() (Connection, error) {
	conn := Connection{AccountID: p.AccountID}

	if len(p.AccessToken) > 0 {
		var direct string
		if err := json.Unmarshal(p.AccessToken, &direct); err == nil && direct != "" {
			conn.AccessToken = direct
			return conn, nil
		}

		var envelope accessTokenEnvelope
		if err := json.Unmarshal(p.AccessToken, &envelope); err == nil && len(envelope.AccountTokens) > 0 {
			first := envelope.AccountTokens[0]
			if first.Token != "" {
				conn.AccessToken = first.Token
				conn.BrokerName = envelope.BrokerName
				if first.Account.AccountID != "" {
					conn.AccountID = first.Account.AccountID
				}
				return conn, nil
			}
		}
	}

	if len(p.AccessTokens) > 0 && p.AccessTokens[0].Token != "" {
		first := p.AccessTokens[0]
		conn.AccessToken = first.Token
		if first.Account.AccountID != "" {
			conn.AccountID = first.Account.AccountID
		}
		return conn, nil
	}

	return Connection{}, errors.ErrAccessTokenNotFound
}

// ResolveConnection decodes a raw callback payload and resolves it in one
// step.
func ResolveConnection(body []byte) (Connection, error) {
	var payload ConnectionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Connection{}, errors.Wrapf(err, "[ResolveConnection] decoding payload")
	}
	return payload.Resolve()
}
