package idp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestGoogleProvider_Type(t *testing.T) {
	provider := NewGoogleProvider("client-id", "client-secret", "https://example.com/callback")
	assert.Equal(t, "google", provider.Type())
}

func TestGoogleProvider_AuthURL(t *testing.T) {
	provider := NewGoogleProvider("client-id", "client-secret", "https://example.com/callback")

	authURL := provider.AuthURL("test-state")

	assert.Contains(t, authURL, "accounts.google.com")
	assert.Contains(t, authURL, "state=test-state")
	assert.Contains(t, authURL, "client_id=client-id")
	assert.Contains(t, authURL, "redirect_uri=")
}

func TestGoogleProvider_ExchangeCode(t *testing.T) {
	tests := []struct {
		name         string
		userInfoResp googleUserInfoResponse
		wantErr      bool
		errIs        error
	}{
		{
			name: "valid_user",
			userInfoResp: googleUserInfoResponse{
				ID:            "12345",
				Email:         "user@gmail.com",
				VerifiedEmail: true,
				Name:          "Test User",
			},
		},
		{
			name: "missing_email",
			userInfoResp: googleUserInfoResponse{
				ID:   "12345",
				Name: "Test User",
			},
			wantErr: true,
			errIs:   ErrNoEmail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"access_token":"test-access-token","token_type":"Bearer"}`))
			})
			mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				require.NoError(t, json.NewEncoder(w).Encode(tt.userInfoResp))
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			provider := &GoogleProvider{
				config: oauth2.Config{
					ClientID:     "test-client",
					ClientSecret: "test-secret",
					RedirectURL:  "https://example.com/callback",
					Scopes:       []string{"openid", "profile", "email"},
					Endpoint: oauth2.Endpoint{
						AuthURL:  server.URL + "/auth",
						TokenURL: server.URL + "/token",
					},
				},
				userInfoURL: server.URL + "/userinfo",
			}

			info, err := provider.ExchangeCode(context.Background(), "test-code")
			if tt.wantErr {
				require.Error(t, err)
				if tt.errIs != nil {
					assert.ErrorIs(t, err, tt.errIs)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "12345", info.Subject)
			assert.Equal(t, "user@gmail.com", info.Email)
			assert.Equal(t, "Test User", info.Name)
		})
	}
}

func TestGoogleProvider_ExchangeCodeBadCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	provider := &GoogleProvider{
		config: oauth2.Config{
			ClientID: "test-client",
			Endpoint: oauth2.Endpoint{TokenURL: server.URL + "/token"},
		},
		userInfoURL: server.URL + "/userinfo",
	}

	_, err := provider.ExchangeCode(context.Background(), "bad-code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to exchange code")
}
