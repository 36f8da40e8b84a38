// Package creds owns the OAuth2 credentials for the remote fitness API.
//
// OAUTH 2.0 FOR A PERSONAL BATCH TOOL:
// There is no web server here — the flow is the classic Authorization Code
// flow driven by hand:
//  1. cmd/setup prints the authorization URL; the user opens it in a browser.
//  2. The user approves, the browser redirects to localhost and fails —
//     that's expected, the authorization code is sitting in the address bar.
//  3. The user pastes the code back; Exchange trades it for tokens.
//  4. Every later run loads the persisted tokens from the credentials file.
//
// REFRESH TOKENS ARE SINGLE-USE:
// The API rotates the refresh token on every refresh. If a new refresh token
// is obtained but not persisted before the process dies, the stored one is
// already burned and the user is locked out until they re-authorize. That is
// why Refresh writes the file BEFORE returning.
package creds

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/sakif/kudoscope/internal/apperror"
)

// Keys in the credentials file. The refresh flow rewrites only the two
// token lines and leaves everything else (including comments) untouched.
const (
	keyClientID     = "STRAVA_CLIENT_ID"
	keyClientSecret = "STRAVA_CLIENT_SECRET"
	keyAccessToken  = "STRAVA_ACCESS_TOKEN"
	keyRefreshToken = "STRAVA_REFRESH_TOKEN"
)

// Scope granting read access to all activities, including private ones.
// The API expects a single comma-separated scope parameter.
const scope = "read,activity:read_all"

// Store holds the working credentials and knows how to refresh and persist
// them.
type Store struct {
	path         string
	accessToken  string
	refreshToken string
	conf         *oauth2.Config
	logger       *slog.Logger
}

// Option configures optional behaviour for the Store.
type Option func(*Store)

// WithEndpoint overrides the OAuth token endpoint. Tests point this at a
// local httptest server so no real token traffic happens.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(s *Store) {
		s.conf.Endpoint = ep
	}
}

// Load reads the credentials file. Client id and secret are required;
// tokens may be empty until cmd/setup has run.
func Load(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.MissingCredentials(keyClientID)
		}
		return nil, fmt.Errorf("reading credentials file %s: %w", path, err)
	}

	clientID := values[keyClientID]
	clientSecret := values[keyClientSecret]
	if clientID == "" {
		return nil, apperror.MissingCredentials(keyClientID)
	}
	if clientSecret == "" {
		return nil, apperror.MissingCredentials(keyClientSecret)
	}

	s := &Store{
		path:         path,
		accessToken:  values[keyAccessToken],
		refreshToken: values[keyRefreshToken],
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			// The redirect intentionally points at a dead address: the
			// browser redirect fails and the user copies the code out of
			// the URL by hand.
			RedirectURL: "http://localhost",
			Scopes:      []string{scope},
			Endpoint:    endpoints.Strava,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// WriteInitial creates a fresh credentials file with empty token lines.
// Used once by cmd/setup.
func WriteInitial(path, clientID, clientSecret string) error {
	content := fmt.Sprintf("%s=%s\n%s=%s\n%s=\n%s=\n",
		keyClientID, clientID,
		keyClientSecret, clientSecret,
		keyAccessToken, keyRefreshToken)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing credentials file %s: %w", path, err)
	}
	return nil
}

// Headers returns the request headers for an authenticated API call.
func (s *Store) Headers() (map[string]string, error) {
	if s.accessToken == "" {
		return nil, apperror.MissingToken("access")
	}
	return map[string]string{
		"Authorization": "Bearer " + s.accessToken,
		"Content-Type":  "application/json",
	}, nil
}

// AuthCodeURL returns the URL the user must open to authorize the app.
func (s *Store) AuthCodeURL() string {
	return s.conf.AuthCodeURL("", oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for the first access/refresh token
// pair and persists both.
func (s *Store) Exchange(ctx context.Context, code string) error {
	tok, err := s.conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", apperror.Auth(err.Error()))
	}
	return s.adopt(tok)
}

// Refresh exchanges the stored refresh token for a new token pair.
//
// The new pair is written to the credentials file before this method
// returns — see the package comment for why losing an unpersisted refresh
// token is unrecoverable.
func (s *Store) Refresh(ctx context.Context) error {
	if s.refreshToken == "" {
		return apperror.MissingToken("refresh")
	}

	// TokenSource with an expired access token forces an immediate refresh
	// grant against the token endpoint.
	src := s.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: s.refreshToken})
	tok, err := src.Token()
	if err != nil {
		return fmt.Errorf("refreshing token: %w", apperror.Auth(err.Error()))
	}
	if err := s.adopt(tok); err != nil {
		return err
	}

	s.logger.Info("access token refreshed and persisted")
	return nil
}

// adopt persists a new token pair and only then updates the in-memory copy.
func (s *Store) adopt(tok *oauth2.Token) error {
	refresh := tok.RefreshToken
	if refresh == "" {
		// Some token responses omit the refresh token when it is unchanged.
		refresh = s.refreshToken
	}
	if err := s.persistTokens(tok.AccessToken, refresh); err != nil {
		return err
	}
	s.accessToken = tok.AccessToken
	s.refreshToken = refresh
	return nil
}

// persistTokens rewrites only the two token lines in the credentials file,
// preserving every other line byte-for-byte. Missing token lines are
// appended.
func (s *Store) persistTokens(access, refresh string) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading credentials file for token update: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	sawAccess, sawRefresh := false, false
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, keyAccessToken+"="):
			lines[i] = keyAccessToken + "=" + access
			sawAccess = true
		case strings.HasPrefix(line, keyRefreshToken+"="):
			lines[i] = keyRefreshToken + "=" + refresh
			sawRefresh = true
		}
	}
	if !sawAccess {
		lines = append(lines, keyAccessToken+"="+access)
	}
	if !sawRefresh {
		lines = append(lines, keyRefreshToken+"="+refresh)
	}

	out := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(s.path, []byte(out), 0o600); err != nil {
		return fmt.Errorf("persisting refreshed tokens: %w", err)
	}
	return nil
}
