package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/finbridge/mesh-link-gateway/linkclient"
)

// Profile is the optional YAML configuration for meshctl. Flags override
// profile values.
type Profile struct {
	// APIBase is the gateway origin (e.g., "https://api.example.com").
	APIBase string `yaml:"api_base"`

	// ClientID is the vendor client identifier.
	ClientID string `yaml:"client_id"`

	// DefaultAccessToken prefills the access token so pay/portfolio work
	// without a fresh link.
	DefaultAccessToken string `yaml:"default_access_token"`

	// SDKURL overrides where the hosted widget is loaded from.
	SDKURL string `yaml:"sdk_url"`
}

// LoadProfile reads a YAML profile. A missing path returns an empty
// profile, not an error; an unreadable or malformed file is fatal.
func LoadProfile(path string) (Profile, error) {
	if path == "" {
		return Profile{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Profile{}, nil
		}
		return Profile{}, fmt.Errorf("reading profile %s: %w", path, err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return profile, nil
}

// Options merges the profile with flag overrides into client options.
func (p Profile) Options(apiBase, clientID, accessToken string) linkclient.Options {
	options := linkclient.Options{
		APIBase:            p.APIBase,
		MeshClientID:       p.ClientID,
		DefaultAccessToken: p.DefaultAccessToken,
		SDKURL:             p.SDKURL,
	}
	if apiBase != "" {
		options.APIBase = apiBase
	}
	if clientID != "" {
		options.MeshClientID = clientID
	}
	if accessToken != "" {
		options.DefaultAccessToken = accessToken
	}
	return options
}
