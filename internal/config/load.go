package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
)

// resolveValue resolves a JSON value that is either a plain string or an
// {"$env": "VAR_NAME"} reference. The explicit JSON syntax avoids accidental
// shell expansion of $VAR in startup scripts and keeps values containing $
// safe from re-expansion.
func resolveValue(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}
	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}
	return value, nil
}

// raw* mirror the resolved types with reference-capable fields
type rawGoogleConfig struct {
	ClientID     json.RawMessage `json:"clientId"`
	ClientSecret json.RawMessage `json:"clientSecret"`
	RedirectURI  string          `json:"redirectUri"`
}

type rawAdminConfig struct {
	Enabled      bool            `json:"enabled"`
	Username     string          `json:"username"`
	PasswordHash json.RawMessage `json:"passwordHash"`
}

type rawAuthConfig struct {
	SigningKey          json.RawMessage  `json:"signingKey"`
	CookieDomain        string           `json:"cookieDomain,omitempty"`
	Storage             StorageKind      `json:"storage"`
	GCPProject          string           `json:"gcpProject,omitempty"`
	FirestoreDatabase   string           `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string           `json:"firestoreCollection,omitempty"`
	Google              *rawGoogleConfig `json:"google,omitempty"`
}

type rawConfig struct {
	Portal struct {
		BaseURL        string          `json:"baseURL"`
		Addr           string          `json:"addr"`
		AllowedOrigins []string        `json:"allowedOrigins"`
		Auth           rawAuthConfig   `json:"auth"`
		Admin          *rawAdminConfig `json:"admin,omitempty"`
	} `json:"portal"`
}

// Load reads, resolves, and validates a config file
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := Config{
		Portal: PortalConfig{
			BaseURL:        raw.Portal.BaseURL,
			Addr:           raw.Portal.Addr,
			AllowedOrigins: raw.Portal.AllowedOrigins,
			Auth: AuthConfig{
				CookieDomain:        raw.Portal.Auth.CookieDomain,
				Storage:             raw.Portal.Auth.Storage,
				GCPProject:          raw.Portal.Auth.GCPProject,
				FirestoreDatabase:   raw.Portal.Auth.FirestoreDatabase,
				FirestoreCollection: raw.Portal.Auth.FirestoreCollection,
			},
		},
	}

	signingKey, err := resolveValue(raw.Portal.Auth.SigningKey)
	if err != nil {
		return Config{}, fmt.Errorf("portal.auth.signingKey: %w", err)
	}
	cfg.Portal.Auth.SigningKey = Secret(signingKey)

	if g := raw.Portal.Auth.Google; g != nil {
		clientID, err := resolveValue(g.ClientID)
		if err != nil {
			return Config{}, fmt.Errorf("portal.auth.google.clientId: %w", err)
		}
		clientSecret, err := resolveValue(g.ClientSecret)
		if err != nil {
			return Config{}, fmt.Errorf("portal.auth.google.clientSecret: %w", err)
		}
		cfg.Portal.Auth.Google = &GoogleConfig{
			ClientID:     clientID,
			ClientSecret: Secret(clientSecret),
			RedirectURI:  g.RedirectURI,
		}
	}

	if a := raw.Portal.Admin; a != nil {
		admin := &AdminConfig{
			Enabled:  a.Enabled,
			Username: a.Username,
		}
		if a.Enabled {
			hash, err := resolveValue(a.PasswordHash)
			if err != nil {
				return Config{}, fmt.Errorf("portal.admin.passwordHash: %w", err)
			}
			admin.PasswordHash = Secret(hash)
		}
		cfg.Portal.Admin = admin
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the resolved config for completeness
func (c Config) Validate() error {
	p := c.Portal

	if p.BaseURL == "" {
		return fmt.Errorf("portal.baseURL is required")
	}
	if _, err := url.Parse(p.BaseURL); err != nil {
		return fmt.Errorf("portal.baseURL is not a valid URL: %w", err)
	}
	if p.Addr == "" {
		return fmt.Errorf("portal.addr is required")
	}

	if len(p.Auth.SigningKey) < 32 {
		return fmt.Errorf("portal.auth.signingKey must be at least 32 bytes, got %d", len(p.Auth.SigningKey))
	}

	switch p.Auth.Storage {
	case StorageKindMemory, "":
	case StorageKindFirestore:
		if p.Auth.GCPProject == "" {
			return fmt.Errorf("portal.auth.gcpProject is required for firestore storage")
		}
	default:
		return fmt.Errorf("portal.auth.storage must be %q or %q", StorageKindMemory, StorageKindFirestore)
	}

	if g := p.Auth.Google; g != nil {
		if g.ClientID == "" || g.ClientSecret == "" {
			return fmt.Errorf("portal.auth.google requires clientId and clientSecret")
		}
		if g.RedirectURI == "" {
			return fmt.Errorf("portal.auth.google.redirectUri is required")
		}
	}

	if a := p.Admin; a != nil && a.Enabled {
		if a.Username == "" {
			return fmt.Errorf("portal.admin.username is required when admin is enabled")
		}
		if a.PasswordHash == "" {
			return fmt.Errorf("portal.admin.passwordHash is required when admin is enabled")
		}
	}

	return nil
}
