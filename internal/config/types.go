package config

import (
	"encoding/json"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the user-profile store backend
type StorageKind string

const (
	StorageKindMemory    StorageKind = "memory"
	StorageKindFirestore StorageKind = "firestore"
)

// GoogleConfig configures the Google social sign-in provider
type GoogleConfig struct {
	ClientID     string `json:"clientId"`
	ClientSecret Secret `json:"clientSecret"`
	RedirectURI  string `json:"redirectUri"`
}

// AdminConfig configures the basic-auth admin surface
type AdminConfig struct {
	Enabled  bool   `json:"enabled"`
	Username string `json:"username"`
	// Bcrypt hash of the admin password
	PasswordHash Secret `json:"passwordHash"`
}

// AuthConfig configures session issuance and the identity provider
type AuthConfig struct {
	// SigningKey is the HMAC key for ID tokens and session cookies,
	// at least 32 bytes
	SigningKey Secret `json:"signingKey"`

	// CookieDomain is the default Domain attribute for session cookies;
	// request-level cookieOptions override it
	CookieDomain string `json:"cookieDomain,omitempty"`

	Storage             StorageKind `json:"storage"`
	GCPProject          string      `json:"gcpProject,omitempty"`
	FirestoreDatabase   string      `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string      `json:"firestoreCollection,omitempty"`

	Google *GoogleConfig `json:"google,omitempty"`
}

// PortalConfig is the top-level portal configuration with resolved values
type PortalConfig struct {
	BaseURL        string       `json:"baseURL"`
	Addr           string       `json:"addr"`
	AllowedOrigins []string     `json:"allowedOrigins"`
	Auth           AuthConfig   `json:"auth"`
	Admin          *AdminConfig `json:"admin,omitempty"`
}

// Config represents the config structure with resolved values
type Config struct {
	Portal PortalConfig `json:"portal"`
}

// RevocationCleanupInterval is how often expired deny-list entries are dropped
const RevocationCleanupInterval = 10 * time.Minute
