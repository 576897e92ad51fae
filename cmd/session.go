package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Dmedina-coder/SuperGramola/internal/services"
	"github.com/Dmedina-coder/SuperGramola/internal/session"
	"github.com/Dmedina-coder/SuperGramola/internal/shared"
	"github.com/Dmedina-coder/SuperGramola/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

// SessionTUI launches the interactive jukebox session.
func (r *Runner) SessionTUI(ctx context.Context, cmd *cli.Command) error {
	st := r.store()
	if email := cmd.String("email"); email != "" {
		if err := st.SetEmail(email); err != nil {
			return fmt.Errorf("failed to record account email: %w", err)
		}
	}
	if _, err := r.email(cmd); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/gramola-session.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	tokens, err := r.tokens()
	if err != nil {
		return err
	}
	spotify := services.NewSpotifyClient(tokens, r.httpClient)

	model := ui.NewModel(ctx)

	coord, err := session.NewCoordinator(session.Options{
		Store:     st,
		Tokens:    tokens,
		Streaming: spotify,
		Accounts:  r.accounts(),
		Payments:  r.payments(),
		Processor: r.processor(),
		Locator: session.StaticLocator{
			Fix: session.Fix{
				Latitude:  r.config.Venue.Latitude,
				Longitude: r.config.Venue.Longitude,
			},
			Configured: r.config.Venue.Latitude != 0 || r.config.Venue.Longitude != 0,
		},
		Logger: fileLogger,
		Navigate: func(authURL string) {
			if err := shared.OpenBrowser(authURL); err != nil {
				fileLogger.Warn("authorization required", "url", authURL)
			}
		},
		OverrideProximity: cmd.Bool("override-proximity") || r.config.Venue.OverrideProximity,
		PollPeriod:        time.Duration(r.config.Session.PollPeriodMS) * time.Millisecond,
		SearchDebounce:    time.Duration(r.config.Session.SearchDebounceMS) * time.Millisecond,
		OnPlayback:        model.PlaybackSink(),
		OnSearchResults:   model.SearchSink(),
	})
	if err != nil {
		return err
	}
	defer coord.Teardown()

	model.Attach(coord)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running session: %w", err)
	}

	return nil
}
