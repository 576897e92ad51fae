package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/Dmedina-coder/SuperGramola/internal/services"
	"github.com/Dmedina-coder/SuperGramola/internal/session"
	"github.com/Dmedina-coder/SuperGramola/internal/shared"
	"github.com/Dmedina-coder/SuperGramola/internal/store"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	logger     *log.Logger
	output     io.Writer
	httpClient *http.Client

	db           *sql.DB
	sessionStore *store.SessionStore
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client

	// Store overrides the persistent store, used by tests.
	Store *store.SessionStore
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:       opts.Config,
		logger:       opts.Logger,
		output:       opts.Output,
		httpClient:   opts.HTTPClient,
		sessionStore: opts.Store,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, accountCommand, sessionCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner's logger, e.g. with a file logger while the
// TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// store returns the session store, opening the configured database on first
// use. When the database cannot be opened the store degrades to in-memory
// with a warning; state then lives only for this process.
func (r *Runner) store() *store.SessionStore {
	if r.sessionStore != nil {
		return r.sessionStore
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		r.logger.Warn("failed to open database, using in-memory store", "err", err)
		r.sessionStore = store.NewSessionStore(store.NewMemoryStore())
		return r.sessionStore
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		r.logger.Warn("failed to run migrations, using in-memory store", "err", err)
		db.Close()
		r.sessionStore = store.NewSessionStore(store.NewMemoryStore())
		return r.sessionStore
	}

	r.db = db
	r.sessionStore = store.NewSessionStore(store.NewSQLiteStore(db))
	return r.sessionStore
}

// Close releases the runner's database handle, if any.
func (r *Runner) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Runner) accounts() *services.AccountClient {
	return services.NewAccountClient(r.config.Backend.BaseURL, r.httpClient)
}

func (r *Runner) payments() *services.PaymentsClient {
	return services.NewPaymentsClient(r.config.Backend.BaseURL, r.httpClient)
}

func (r *Runner) processor() services.CardProcessor {
	return services.NewStripeProcessor(r.config.Processor.PublishableKey, r.httpClient)
}

func (r *Runner) tokens() (*session.TokenManager, error) {
	creds := r.config.Credentials.Spotify
	return session.NewTokenManager(
		creds.ClientID, creds.ClientSecret, creds.RedirectURI,
		services.Scopes, r.store(), r.logger)
}

// email resolves the acting account: --email wins, then the stored session.
func (r *Runner) email(cmd *cli.Command) (string, error) {
	if v := cmd.String("email"); v != "" {
		return v, nil
	}
	if v, ok := r.store().Email(); ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: no account email; pass --email or run 'gramola auth login'", shared.ErrMissingArgument)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
