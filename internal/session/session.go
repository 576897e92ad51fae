// package session implements the jukebox session orchestrator: a geofenced,
// optionally pay-per-track control surface over a shared streaming playback
// device.
//
// Sub-protocols and their ordering: the proximity gate must pass before the
// selection flow starts; the token lifecycle is consulted lazily by every
// streaming call and re-entered exactly once on a 401-class failure; the
// playback poller runs only while the session is active; the payment gate
// must settle or fail before a paid queue action executes; the kiosk lock
// suspends every gated action while engaged.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/Dmedina-coder/SuperGramola/internal/services"
	"github.com/Dmedina-coder/SuperGramola/internal/shared"
	"github.com/Dmedina-coder/SuperGramola/internal/store"
	"github.com/charmbracelet/log"
)

// accountAPI is the slice of the backend account API the coordinator uses.
type accountAPI interface {
	distanceOracle
	TrackPriceCents(ctx context.Context, email string) (int64, error)
	SubscriptionActive(ctx context.Context, email string) (bool, error)
}

// Session is the orchestrator-owned state for one screen lifetime.
type Session struct {
	Email             string
	PriceCents        int64
	ProximityVerified bool
}

// Options wires a Coordinator.
type Options struct {
	Store     *store.SessionStore
	Tokens    *TokenManager
	Streaming services.StreamingService
	Accounts  accountAPI
	Payments  paymentBackend
	Processor services.CardProcessor
	Locator   Locator
	Logger    *log.Logger

	// Navigate receives the authorization URL when re-authorization is
	// required. nil logs the URL instead.
	Navigate func(authURL string)

	// OverrideProximity forces the proximity gate to pass (operator
	// demonstrations only).
	OverrideProximity bool

	PollPeriod     time.Duration
	SearchDebounce time.Duration

	// OnPlayback and OnSearchResults deliver background updates to the UI.
	OnPlayback      func(PlaybackStatus)
	OnSearchResults func(query string, tracks []services.Track, err error)
}

// Coordinator owns the session and sequences the sub-protocols.
type Coordinator struct {
	logger    *log.Logger
	store     *store.SessionStore
	tokens    *TokenManager
	reauth    *Reauthorizer
	streaming services.StreamingService
	accounts  accountAPI

	gate      *ProximityGate
	selection *Machine
	poller    *Poller
	search    *SearchDebouncer
	payGate   *PaymentGate
	lock      *Lock

	session Session
}

// NewCoordinator assembles the orchestrator. The store must already hold the
// session's email (set at login).
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Store == nil || opts.Tokens == nil || opts.Streaming == nil || opts.Accounts == nil {
		return nil, fmt.Errorf("%w: store, tokens, streaming and accounts are required", shared.ErrInvalidConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	email, ok := opts.Store.Email()
	if !ok || email == "" {
		return nil, fmt.Errorf("%w: no user email in session", shared.ErrMissingCredentials)
	}

	c := &Coordinator{
		logger:    logger,
		store:     opts.Store,
		tokens:    opts.Tokens,
		streaming: opts.Streaming,
		accounts:  opts.Accounts,
		lock:      NewLock(),
		session:   Session{Email: email},
	}

	c.reauth = NewReauthorizer(opts.Tokens, opts.Navigate, logger)
	c.gate = NewProximityGate(opts.Locator, opts.Accounts, logger, opts.OverrideProximity)
	c.selection = NewMachine(opts.Streaming, opts.Store, logger)
	c.poller = NewPoller(opts.Streaming, opts.PollPeriod, logger, opts.OnPlayback)
	c.search = NewSearchDebouncer(opts.Streaming, opts.SearchDebounce, c.deliverSearch(opts.OnSearchResults))
	c.payGate = NewPaymentGate(opts.Payments, opts.Processor, c.executeQueue, logger)

	return c, nil
}

// Session returns a copy of the orchestrator-owned session state.
func (c *Coordinator) Session() Session { return c.session }

// Lock returns the kiosk lock.
func (c *Coordinator) Lock() *Lock { return c.lock }

// SelectionStage returns the selection machine's stage.
func (c *Coordinator) SelectionStage() Stage { return c.selection.Stage() }

// Playback returns the last known playback status.
func (c *Coordinator) Playback() PlaybackStatus { return c.poller.Status() }

// PaymentPending returns a copy of the open payment, or nil.
func (c *Coordinator) PaymentPending() *PendingPayment { return c.payGate.Pending() }

// guard rejects gated actions while the lock is engaged or before the
// proximity gate has passed.
func (c *Coordinator) guard() error {
	if c.lock.Engaged() {
		return shared.ErrLockEngaged
	}
	if !c.session.ProximityVerified {
		return shared.ErrNotNearVenue
	}
	return nil
}

// Begin runs the proximity gate and loads the cached entitlement flags.
// Nothing downstream unlocks until it returns nil.
func (c *Coordinator) Begin(ctx context.Context) error {
	if err := c.gate.Check(ctx, c.session.Email); err != nil {
		return err
	}
	c.session.ProximityVerified = true

	if cents, err := c.accounts.TrackPriceCents(ctx, c.session.Email); err != nil {
		// Fall back to the cached price; a missing price means free queuing.
		c.session.PriceCents = c.store.TrackPriceCents()
		c.logger.Warn("failed to fetch per-track price, using cached value",
			"cached_cents", c.session.PriceCents, "err", err)
	} else {
		c.session.PriceCents = cents
		if err := c.store.SetTrackPriceCents(cents); err != nil {
			c.logger.Warn("failed to cache per-track price", "err", err)
		}
	}

	if active, err := c.accounts.SubscriptionActive(ctx, c.session.Email); err == nil {
		if err := c.store.SetPremiumActive(active); err != nil {
			c.logger.Warn("failed to cache subscription flag", "err", err)
		}
	}

	return nil
}

// Playlists lists the user's playlists, resuming a cached selection when it
// is still present.
func (c *Coordinator) Playlists(ctx context.Context) ([]services.Playlist, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}

	var playlists []services.Playlist
	err := c.reauth.Do(func() error {
		var err error
		playlists, err = c.selection.LoadPlaylists(ctx)
		return err
	})
	return playlists, err
}

// ChoosePlaylist advances the selection flow.
func (c *Coordinator) ChoosePlaylist(pl services.Playlist) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.selection.ChoosePlaylist(pl)
}

// Devices lists the available playback devices. Empty is guidance, not error.
func (c *Coordinator) Devices(ctx context.Context) ([]services.Device, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}

	var devices []services.Device
	err := c.reauth.Do(func() error {
		var err error
		devices, err = c.selection.LoadDevices(ctx)
		return err
	})
	return devices, err
}

// ChooseDevice activates the device best-effort and enters the active stage.
func (c *Coordinator) ChooseDevice(ctx context.Context, d services.Device) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.selection.ChooseDevice(ctx, d)
}

// EnterActive loads tracks, starts playback when a device was just
// activated, and (re)starts the playback poller.
func (c *Coordinator) EnterActive(ctx context.Context) ([]services.Track, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}

	var tracks []services.Track
	err := c.reauth.Do(func() error {
		var err error
		tracks, err = c.selection.EnterActive(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.poller.Start(ctx)
	return tracks, nil
}

// ReloadTracks refreshes the active playlist's tracks without touching
// playback or the poller.
func (c *Coordinator) ReloadTracks(ctx context.Context) ([]services.Track, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}

	sel := c.selection.Selection()
	var tracks []services.Track
	err := c.reauth.Do(func() error {
		var err error
		tracks, err = c.streaming.PlaylistTracks(ctx, sel.PlaylistID)
		return err
	})
	return tracks, err
}

// SearchInput feeds the debounced track search. While the lock is engaged
// input is dropped; polling side effects are likewise suppressed by guard on
// the actions they would trigger.
func (c *Coordinator) SearchInput(ctx context.Context, query string) {
	if c.lock.Engaged() {
		return
	}
	c.search.Input(ctx, query)
}

// deliverSearch wraps the UI callback so nil stays safe.
func (c *Coordinator) deliverSearch(fn func(string, []services.Track, error)) func(string, []services.Track, error) {
	return func(query string, tracks []services.Track, err error) {
		if err != nil {
			c.logger.Warn("track search failed", "query", query, "err", err)
		}
		if fn != nil {
			fn(query, tracks, err)
		}
	}
}

// QueueTrack queues a track, passing through the payment gate when a
// non-zero per-track price is configured. For a paid track it returns the
// open PendingPayment and capture surface for the payment modal; the queue
// action itself runs on settlement. For a free track it queues immediately
// and returns (nil, nil, nil).
func (c *Coordinator) QueueTrack(ctx context.Context, track services.Track) (*PendingPayment, services.CardCapture, error) {
	if err := c.guard(); err != nil {
		return nil, nil, err
	}

	if c.session.PriceCents > 0 {
		return c.payGate.Begin(ctx, c.session.Email, track, c.session.PriceCents)
	}

	return nil, nil, c.executeQueue(ctx, track)
}

// ConfirmPayment drives the open payment to a terminal state.
func (c *Coordinator) ConfirmPayment(ctx context.Context, billingName string) error {
	if err := c.guard(); err != nil {
		return err
	}
	return c.payGate.Confirm(ctx, billingName)
}

// CancelPayment abandons the open payment, releasing its capture surface.
func (c *Coordinator) CancelPayment() {
	c.payGate.Cancel()
}

// executeQueue is the single queue-action executor used by both the free
// path and the payment gate.
func (c *Coordinator) executeQueue(ctx context.Context, track services.Track) error {
	sel := c.selection.Selection()
	if sel.PlaylistID == "" {
		return fmt.Errorf("%w: no playlist selected", shared.ErrInvalidInput)
	}

	return c.reauth.Do(func() error {
		return c.streaming.AddTrackToPlaylist(ctx, sel.PlaylistID, track.URI)
	})
}

// Teardown stops background activity. Must run on navigation-away; a timer
// leaking across navigations is a defect.
func (c *Coordinator) Teardown() {
	c.poller.Stop()
	c.search.Cancel()
	c.payGate.Cancel()
}

// Logout tears the session down and clears all persisted state.
func (c *Coordinator) Logout() error {
	c.Teardown()
	c.session = Session{}
	return c.store.Clear()
}
