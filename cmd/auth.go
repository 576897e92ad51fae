package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Dmedina-coder/SuperGramola/internal/server"
	"github.com/Dmedina-coder/SuperGramola/internal/shared"
	"github.com/urfave/cli/v3"
)

// authTimeout bounds the wait for the browser round trip.
const authTimeout = 5 * time.Minute

// AuthLogin authorizes the venue's Spotify account. It records the account
// email, opens the authorization URL in the browser, and serves the callback
// on a loopback listener until the grant completes or times out.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	email := cmd.StringArg("email")
	if email == "" {
		return fmt.Errorf("%w: account email", shared.ErrMissingArgument)
	}
	port := cmd.Int("port")

	if err := r.store().SetEmail(email); err != nil {
		return fmt.Errorf("failed to record account email: %w", err)
	}

	tokens, err := r.tokens()
	if err != nil {
		return err
	}

	authURL, err := tokens.BeginAuthorization()
	if err != nil {
		return err
	}

	callback := server.NewCallbackHandler(tokens)
	router := server.NewBasicRouter()
	router.Use(server.LogRequests(r.logger))
	router.Handler(callback)

	srv := &http.Server{
		Addr:    fmt.Sprintf("localhost:%d", port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	r.logger.Info("waiting for authorization", "port", port)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser, open the URL manually", "err", err)
		r.writePlain("Open this URL in your browser:\n%s\n", authURL)
	}

	select {
	case err := <-callback.Result():
		if err != nil {
			return err
		}
	case err := <-serveErr:
		return fmt.Errorf("callback server failed: %w", err)
	case <-time.After(authTimeout):
		return fmt.Errorf("timed out waiting for authorization")
	case <-ctx.Done():
		return ctx.Err()
	}

	r.writePlain("✓ Authorization successful for %s\n", email)
	return nil
}

// AuthStatus shows the stored authorization state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	st := r.store()

	email, ok := st.Email()
	if !ok || email == "" {
		return r.writePlain("✗ Not logged in\n")
	}
	r.writePlain("Account: %s\n", email)

	access, refresh := st.Tokens()
	if access == "" {
		return r.writePlain("Authorization: ✗ No access token, run 'gramola auth login'\n")
	}

	expiresAt := st.TokenExpiresAt()
	switch {
	case expiresAt.IsZero():
		r.writePlain("Authorization: ✓ Token present (expiry unknown)\n")
	case time.Now().After(expiresAt):
		r.writePlain("Authorization: ✗ Token expired at %s\n", expiresAt.Format(time.RFC3339))
	default:
		r.writePlain("Authorization: ✓ Token valid until %s\n", expiresAt.Format(time.RFC3339))
	}

	if refresh != "" {
		r.writePlain("Refresh token: ✓ Present\n")
	}
	return nil
}

// AuthLogout clears all stored session state.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.store().Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return r.writePlain("✓ Session cleared\n")
}
