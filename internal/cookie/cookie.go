package cookie

import (
	"net/http"
	"strings"
	"time"

	"github.com/bndy-dev/bndy-portal/internal/envutil"
	"github.com/bndy-dev/bndy-portal/internal/log"
)

// SessionCookie is the name of the portal session cookie
const SessionCookie = "session"

// SessionTTL is the fixed session cookie lifetime (432,000 seconds)
const SessionTTL = 5 * 24 * time.Hour

// Options are caller-supplied overrides applied when minting a session
// cookie, e.g. to span subdomains in a *.local.test development setup.
type Options struct {
	Domain   string `json:"domain,omitempty"`
	Secure   *bool  `json:"secure,omitempty"`
	SameSite string `json:"sameSite,omitempty"`
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// SetSession sets the session cookie. Base attributes first, then Domain if
// supplied, then the SameSite override (default Lax).
func SetSession(w http.ResponseWriter, value string, opts Options) {
	secure := !envutil.IsDev()
	if opts.Secure != nil {
		secure = *opts.Secure
	}

	c := &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionTTL.Seconds()),
	}
	if opts.Domain != "" {
		c.Domain = opts.Domain
	}
	if opts.SameSite != "" {
		c.SameSite = parseSameSite(opts.SameSite)
	}
	http.SetCookie(w, c)

	log.LogTraceWithFields("cookie", "Session cookie set", map[string]any{
		"maxAge":   SessionTTL.String(),
		"secure":   secure,
		"domain":   opts.Domain,
		"sameSite": opts.SameSite,
	})
}

// ClearSession instructs the browser to drop the session cookie by emitting
// the same attribute set with an immediate expiry (Max-Age=0).
func ClearSession(w http.ResponseWriter, domain string) {
	c := &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
	if domain != "" {
		c.Domain = domain
	}
	http.SetCookie(w, c)

	log.LogTraceWithFields("cookie", "Session cookie cleared", map[string]any{
		"domain": domain,
	})
}

// GetSession retrieves the session cookie value from the request
func GetSession(r *http.Request) (string, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}
