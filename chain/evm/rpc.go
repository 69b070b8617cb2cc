package evm

import (
	"errors"
	"fmt"
	"strings"
)

// URLSchemePreference selects which of an RPC's endpoints is dialed.
type URLSchemePreference int

const (
	URLSchemePreferenceNone URLSchemePreference = iota
	URLSchemePreferenceWS
	URLSchemePreferenceHTTP
)

// ParseURLSchemePreference parses "ws", "http" or an empty string.
func ParseURLSchemePreference(s string) (URLSchemePreference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return URLSchemePreferenceNone, nil
	case "ws", "wss":
		return URLSchemePreferenceWS, nil
	case "http", "https":
		return URLSchemePreferenceHTTP, nil
	default:
		return URLSchemePreferenceNone, fmt.Errorf("unknown url scheme preference %q", s)
	}
}

// RPC is one JSON-RPC node of a chain.
type RPC struct {
	Name               string              `mapstructure:"name" yaml:"name"`
	HTTPURL            string              `mapstructure:"http_url" yaml:"http_url"`
	WSURL              string              `mapstructure:"ws_url" yaml:"ws_url"`
	PreferredURLScheme URLSchemePreference `mapstructure:"-" yaml:"-"`
}

// ToEndpoint returns the URL to dial. The preferred scheme wins when its URL is set, otherwise the
// HTTP URL is used before the websocket one.
func (r RPC) ToEndpoint() (string, error) {
	switch {
	case r.PreferredURLScheme == URLSchemePreferenceWS && r.WSURL != "":
		return r.WSURL, nil
	case r.PreferredURLScheme == URLSchemePreferenceHTTP && r.HTTPURL != "":
		return r.HTTPURL, nil
	case r.HTTPURL != "":
		return r.HTTPURL, nil
	case r.WSURL != "":
		return r.WSURL, nil
	default:
		return "", errors.New("rpc has no http or ws url")
	}
}

// RPCConfig lists the nodes of one chain in order of preference.
type RPCConfig struct {
	ChainID uint64
	RPCs    []RPC
}
