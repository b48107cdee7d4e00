package api

import (
	"crypto/subtle"
	"errors"
	"strings"

	"hotelbook/internal/config"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	clientKeyUnknown      = "unknown"

	PermReadCatalog   = "read:catalog"
	PermWriteBookings = "write:bookings"
	PermAdmin         = "admin"
)

var (
	errMissingKey       = errors.New("missing api key headers")
	errInvalidKey       = errors.New("invalid api key")
	errInvalidExtra     = errors.New("invalid extra header")
	errPermissionDenied = errors.New("permission denied")
)

// keyring resolves API clients from the configured keys. HTTP and gRPC share
// it so both transports apply the same credentials and permissions.
type keyring struct {
	cfg     *config.APIConfig
	clients map[string]config.APIClientKey
}

func newKeyring(cfg *config.APIConfig) *keyring {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &keyring{cfg: cfg, clients: m}
}

func (k *keyring) apiKeyHeader() string {
	h := strings.ToLower(strings.TrimSpace(k.cfg.Auth.HeaderAPIKey))
	if h == "" {
		return apiKeyHeaderDefault
	}
	return h
}

func (k *keyring) extraHeader() string {
	h := strings.ToLower(strings.TrimSpace(k.cfg.Auth.HeaderExtra))
	if h == "" {
		return apiExtraHeaderDefault
	}
	return h
}

func (k *keyring) authenticate(apiKey, extra string) (config.APIClientKey, error) {
	apiKey = strings.TrimSpace(apiKey)
	extra = strings.TrimSpace(extra)
	if apiKey == "" || extra == "" {
		return config.APIClientKey{}, errMissingKey
	}

	client, ok := k.clients[apiKey]
	if !ok {
		return config.APIClientKey{}, errInvalidKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return config.APIClientKey{}, errInvalidExtra
	}
	return client, nil
}

// authorize treats an empty permission list as allow-all; admin grants
// every permission.
func authorize(client config.APIClientKey, required string) error {
	if required == "" || len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		p = strings.TrimSpace(p)
		if p == required || p == PermAdmin {
			return nil
		}
	}
	return errPermissionDenied
}
