package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dmedina-coder/SuperGramola/internal/shared"
	"github.com/Dmedina-coder/SuperGramola/internal/store"
	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// TokenManager drives the delegated-authorization lifecycle: the redirect
// grant, the code exchange, and refresh. Tokens live in the session store;
// every streaming call reads the current token lazily through AccessToken.
//
// Expiry is tracked but not proactively refreshed: an expired token is
// discovered via a 401 and re-enters authorization through [Reauthorizer].
type TokenManager struct {
	config *oauth2.Config
	store  *store.SessionStore
	logger *log.Logger
}

// NewTokenManager builds a manager for a confidential client.
func NewTokenManager(clientID, clientSecret, redirectURI string, scopes []string, st *store.SessionStore, logger *log.Logger) (*TokenManager, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: client id and secret are required", shared.ErrMissingCredentials)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
			// The token endpoint wants Basic-auth client credentials.
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	return &TokenManager{config: config, store: st, logger: logger}, nil
}

// SetEndpoints overrides the authorize/token endpoints. Used by tests.
func (tm *TokenManager) SetEndpoints(authURL, tokenURL string) {
	tm.config.Endpoint.AuthURL = authURL
	tm.config.Endpoint.TokenURL = tokenURL
}

// AccessToken implements [services.TokenProvider].
func (tm *TokenManager) AccessToken() string {
	access, _ := tm.store.Tokens()
	return access
}

// BeginAuthorization generates and persists a fresh state token and returns
// the authorization URL the user agent must navigate to. Navigation itself is
// the caller's concern (browser open, kiosk redirect).
func (tm *TokenManager) BeginAuthorization() (string, error) {
	state := shared.RandomState()
	if err := tm.store.SetOAuthState(state); err != nil {
		return "", fmt.Errorf("failed to persist state: %w", err)
	}

	tm.logger.Info("beginning authorization", "scopes", len(tm.config.Scopes))
	return tm.config.AuthCodeURL(state), nil
}

// CompleteAuthorization verifies the returned state and exchanges the code
// for a token pair. The state check runs before any network call: a mismatch
// is a construct-time CSRF defense, not a retryable failure.
func (tm *TokenManager) CompleteAuthorization(ctx context.Context, code, returnedState string) error {
	saved, ok := tm.store.OAuthState()
	if !ok || returnedState != saved {
		return fmt.Errorf("%w: authorization response state does not match", shared.ErrCsrfMismatch)
	}

	token, err := tm.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrExchangeFailed, err)
	}

	if err := tm.store.SetTokens(token.AccessToken, token.RefreshToken, token.Expiry); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}

	tm.logger.Info("authorization complete", "expires_at", token.Expiry)
	return nil
}

// Refresh exchanges the stored refresh token for a fresh access token.
func (tm *TokenManager) Refresh(ctx context.Context) error {
	_, refresh := tm.store.Tokens()
	if refresh == "" {
		return shared.ErrNoRefreshToken
	}

	token, err := tm.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	if err := tm.store.SetTokens(token.AccessToken, token.RefreshToken, token.Expiry); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}
	return nil
}

// Reauthorizer enforces the "exactly one re-authorization per failed call"
// invariant. When an operation fails with a 401-class error it begins a new
// authorization (surfacing the URL through navigate) and returns the original
// error; the failed call is never retried automatically.
type Reauthorizer struct {
	tokens   *TokenManager
	navigate func(authURL string)
	logger   *log.Logger
}

// NewReauthorizer wraps the token manager. navigate receives the
// authorization URL; nil means the URL is only logged.
func NewReauthorizer(tokens *TokenManager, navigate func(string), logger *log.Logger) *Reauthorizer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Reauthorizer{tokens: tokens, navigate: navigate, logger: logger}
}

// Do runs op. On a 401-class failure it triggers BeginAuthorization exactly
// once for this call and passes the original error through. The structure
// makes the invariant hard to break: there is no loop and no retry of op.
func (r *Reauthorizer) Do(op func() error) error {
	err := op()
	if err == nil || !errors.Is(err, shared.ErrAuthExpired) {
		return err
	}

	authURL, beginErr := r.tokens.BeginAuthorization()
	if beginErr != nil {
		r.logger.Error("re-authorization failed to start", "err", beginErr)
		return err
	}
	if r.navigate != nil {
		r.navigate(authURL)
	} else {
		r.logger.Warn("authorization required", "url", authURL)
	}

	return err
}
