// Package googleauth builds the refresh-token credentials shared by the
// Calendar and Drive clients.
package googleauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// Scopes requested when the refresh token was minted.
var Scopes = []string{
	"https://www.googleapis.com/auth/calendar.readonly",
	"https://www.googleapis.com/auth/drive.file",
}

// Credentials is an OAuth client plus a long-lived refresh token.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Validate reports missing fields.
func (c Credentials) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client secret")
	}
	if c.RefreshToken == "" {
		missing = append(missing, "refresh token")
	}
	if len(missing) > 0 {
		return errors.New("google credentials missing: " + strings.Join(missing, ", "))
	}
	return nil
}

// TokenSource returns a reusable token source that refreshes access tokens
// on demand.
func (c Credentials) TokenSource(ctx context.Context) oauth2.TokenSource {
	cfg := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       Scopes,
	}
	return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: c.RefreshToken})
}

// ClientOptions returns API client options authenticating with c. The
// returned HTTP client enforces timeout on every call.
func (c Credentials) ClientOptions(ctx context.Context, timeout time.Duration) []option.ClientOption {
	hc := oauth2.NewClient(ctx, c.TokenSource(ctx))
	if timeout > 0 {
		hc.Timeout = timeout
	}
	return []option.ClientOption{option.WithHTTPClient(hc)}
}
