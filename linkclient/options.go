package linkclient

import (
	"strings"

	"github.com/finbridge/mesh-link-gateway/internal/errors"
)

// Options is the page-injected configuration the client is built from.
// APIBase and the client id are required; everything else is optional.
type Options struct {
	// APIBase is the backend origin. A trailing slash is stripped.
	APIBase string

	// MeshClientID is the vendor client identifier. ClientID is the legacy
	// name for the same value; MeshClientID wins when both are set.
	MeshClientID string
	ClientID     string

	// DefaultAccessToken prefills the access token so follow-up calls work
	// without a fresh link.
	DefaultAccessToken string

	// SDKURL overrides where the vendor widget script is loaded from.
	SDKURL string
}

// Problems returns every missing-config problem, in a fixed order. An empty
// slice means the configuration is usable. This check is idempotent and
// side-effect free; it runs at construction and again before each guarded
// action.
func (o Options) Problems() []string {
	var problems []string
	if strings.TrimSpace(o.APIBase) == "" {
		problems = append(problems, errors.ErrMissingAPIBase.Error())
	}
	if o.ResolvedClientID() == "" {
		problems = append(problems, errors.ErrMissingClientID.Error())
	}
	return problems
}

// StatusMessage concatenates all problems into the single message shown to
// the user.
func (o Options) StatusMessage() string {
	return strings.Join(o.Problems(), ". ")
}

// ResolvedClientID returns the vendor client id, honouring the legacy
// ClientID field name.
func (o Options) ResolvedClientID() string {
	if id := strings.TrimSpace(o.MeshClientID); id != "" {
		return id
	}
	return strings.TrimSpace(o.ClientID)
}

// ResolvedAPIBase returns the backend origin with any trailing slash
// stripped.
func (o Options) ResolvedAPIBase() string {
	return strings.TrimRight(strings.TrimSpace(o.APIBase), "/")
}
