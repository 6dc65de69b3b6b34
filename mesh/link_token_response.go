package mesh

import (
	"encoding/json"

	"github.com/finbridge/mesh-link-gateway/internal/errors"
)

// LinkTokenResponse represents the response from a link-token request.
// Several backend generations used different field names for the same
// credential, so all known shapes decode into this one struct and are
// resolved exactly once at the boundary.
type LinkTokenResponse struct {
	// LinkToken is the current field name.
	// Example: {"linkToken": "eyJ..."}
	LinkToken string `json:"linkToken,omitempty"`

	// Token is the first legacy field name.
	// Example: {"token": "eyJ..."}
	Token string `json:"token,omitempty"`

	// Content wraps the token in the vendor's envelope shape.
	// Example: {"content": {"linkToken": "eyJ..."}}
	Content LinkTokenContent `json:"content,omitempty"`
}

// LinkTokenContent is the vendor envelope around the link token.
type LinkTokenContent struct {
	LinkToken string `json:"linkToken,omitempty"`
}

// Resolve returns the link token, checking the known field names in fixed
// priority order: linkToken, token, content.linkToken. The first non-empty
// field wins. A response with no match is a configuration/secret problem,
// not a transient one, so the caller must not retry.
func (r LinkTokenResponse) Resolve() (string, error) {
	candidates := []string{r.LinkToken, r.Token, r.Content.LinkToken}
	for _, c := range candidates {
		if c != "" {
			return c, nil
		}
	}
	return "", errors.ErrNoLinkToken
}

// ResolveLinkToken decodes a raw link-token response body and resolves the
// token in one step.
func ResolveLinkToken(body []byte) (string, error) {
	var response LinkTokenResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", errors.Wrapf(err, "[ResolveLinkToken] decoding response")
	}
	return response.Resolve()
}
