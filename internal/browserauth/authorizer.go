// Package browserauth obtains an OAuth authorization code by driving
// eBay's hosted login and consent pages in a headless browser. It is
// deliberately narrow: callers hand in a prepared authorization URL
// plus stored credentials and get back the code= parameter, nothing
// else. The hosted UI markup changes without notice, so everything
// behind Authorizer is considered fragile and replaceable.
package browserauth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/ebaygate/ebaygate/internal/errors"
)

// LoginRequest carries everything one automated login attempt needs.
type LoginRequest struct {
	// AuthURL is the fully built authorization URL, including
	// client_id, redirect_uri, scope and state.
	AuthURL string

	// Username and Password are the stored eBay seller credentials.
	Username string
	Password string

	// RedirectURL is the registered redirect target; the flow is done
	// once the browser lands on a URL with this prefix.
	RedirectURL string
}

// Authorizer runs one login-and-consent flow and returns the
// authorization code from the final redirect.
type Authorizer interface {
	Authorize(ctx context.Context, req LoginRequest) (string, error)
}

// parseRedirect extracts the authorization code from a redirect URL.
// An error= parameter is a hard failure even when a code is present.
func parseRedirect(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}
	q := u.Query()
	if denied := q.Get("error"); denied != "" {
		desc := q.Get("error_description")
		if desc == "" {
			desc = denied
		}
		return "", fmt.Errorf("authorization rejected: %s", desc)
	}
	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect carries no code parameter")
	}
	return code, nil
}

// reachedRedirect reports whether the browser has landed on the
// registered redirect target.
func reachedRedirect(current, redirectURL string) bool {
	if redirectURL == "" {
		return strings.Contains(current, "code=") || strings.Contains(current, "error=")
	}
	return strings.HasPrefix(current, redirectURL)
}

func loginError(stage apperrors.LoginStage, timeout bool, err error) error {
	return &apperrors.ErrAutomatedLogin{Stage: stage, Timeout: timeout, Err: err}
}
