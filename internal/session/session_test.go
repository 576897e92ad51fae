package session

import (
	"context"
	"errors"
	"testing"

	"github.com/Dmedina-coder/SuperGramola/internal/services"
	"github.com/Dmedina-coder/SuperGramola/internal/shared"
	"github.com/Dmedina-coder/SuperGramola/internal/store"
)

// fakeAccounts implements accountAPI.
type fakeAccounts struct {
	verdict      *services.ProximityVerdict
	verdictErr   error
	priceCents   int64
	priceErr     error
	subscription bool
}

func (f *fakeAccounts) CheckProximity(ctx context.Context, email string, latitude, longitude float64) (*services.ProximityVerdict, error) {
	return f.verdict, f.verdictErr
}

func (f *fakeAccounts) TrackPriceCents(ctx context.Context, email string) (int64, error) {
	return f.priceCents, f.priceErr
}

func (f *fakeAccounts) SubscriptionActive(ctx context.Context, email string) (bool, error) {
	return f.subscription, nil
}

type coordinatorFixture struct {
	coord     *Coordinator
	store     *store.SessionStore
	streaming *fakeStreaming
	accounts  *fakeAccounts
	backend   *fakePayBackend
	processor *fakeProcessor
}

func newTestCoordinator(t *testing.T, accounts *fakeAccounts) *coordinatorFixture {
	t.Helper()

	st := store.NewSessionStore(store.NewMemoryStore())
	st.SetEmail("bar@example.com")

	tm, err := NewTokenManager("client_id", "client_secret", "http://localhost:3000/callback", nil, st, nil)
	if err != nil {
		t.Fatalf("failed to create token manager: %v", err)
	}

	streaming := &fakeStreaming{
		playlists: []services.Playlist{{ID: "p1", Name: "Friday", TrackCount: 10}},
		devices:   []services.Device{{ID: "d1", Name: "Bar Speaker", Type: "Speaker"}},
		tracks:    []services.Track{{ID: "t1", URI: "spotify:track:t1", Title: "Hit"}},
	}
	backend := &fakePayBackend{}
	processor := &fakeProcessor{result: &services.PaymentIntentResult{ID: "pi_x", Status: "succeeded"}}

	coord, err := NewCoordinator(Options{
		Store:     st,
		Tokens:    tm,
		Streaming: streaming,
		Accounts:  accounts,
		Payments:  backend,
		Processor: processor,
		Locator:   StaticLocator{Fix: Fix{Latitude: 40.4168, Longitude: -3.7038}, Configured: true},
	})
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}
	t.Cleanup(coord.Teardown)

	return &coordinatorFixture{
		coord: coord, store: st, streaming: streaming,
		accounts: accounts, backend: backend, processor: processor,
	}
}

func nearVerdict() *services.ProximityVerdict {
	return &services.ProximityVerdict{IsNear: true, RadiusM: 100}
}

func TestCoordinator(t *testing.T) {
	ctx := context.Background()

	t.Run("Requires Stored Email", func(t *testing.T) {
		st := store.NewSessionStore(store.NewMemoryStore())
		tm, _ := NewTokenManager("id", "secret", "", nil, st, nil)

		_, err := NewCoordinator(Options{
			Store:     st,
			Tokens:    tm,
			Streaming: &fakeStreaming{},
			Accounts:  &fakeAccounts{},
		})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Begin Fetches And Caches Price", func(t *testing.T) {
		f := newTestCoordinator(t, &fakeAccounts{verdict: nearVerdict(), priceCents: 150, subscription: true})

		if err := f.coord.Begin(ctx); err != nil {
			t.Fatalf("begin failed: %v", err)
		}

		sess := f.coord.Session()
		if !sess.ProximityVerified {
			t.Error("expected proximity verified after begin")
		}
		if sess.PriceCents != 150 {
			t.Errorf("expected price 150, got %d", sess.PriceCents)
		}
		if f.store.TrackPriceCents() != 150 {
			t.Error("price must be cached in the store")
		}
		if !f.store.PremiumActive() {
			t.Error("subscription flag must be cached")
		}
	})

	t.Run("Begin Falls Back To Cached Price", func(t *testing.T) {
		f := newTestCoordinator(t, &fakeAccounts{verdict: nearVerdict(), priceErr: errors.New("backend down")})
		f.store.SetTrackPriceCents(75)

		if err := f.coord.Begin(ctx); err != nil {
			t.Fatalf("begin failed: %v", err)
		}
		if f.coord.Session().PriceCents != 75 {
			t.Errorf("expected cached price 75, got %d", f.coord.Session().PriceCents)
		}
	})

	t.Run("Begin Blocked When Too Far", func(t *testing.T) {
		f := newTestCoordinator(t, &fakeAccounts{verdict: &services.ProximityVerdict{
			IsNear: false, Message: "Estás demasiado lejos del local",
		}})

		err := f.coord.Begin(ctx)
		if !errors.Is(err, shared.ErrNotNearVenue) {
			t.Fatalf("expected ErrNotNearVenue, got %v", err)
		}

		// Nothing downstream unlocks.
		if _, err := f.coord.Playlists(ctx); !errors.Is(err, shared.ErrNotNearVenue) {
			t.Errorf("playlists must stay gated, got %v", err)
		}
	})

	t.Run("Lock Suspends Gated Actions", func(t *testing.T) {
		f := newTestCoordinator(t, &fakeAccounts{verdict: nearVerdict()})
		f.coord.Begin(ctx)

		if err := f.coord.Lock().Confirm("1234"); err != nil {
			t.Fatalf("engage failed: %v", err)
		}

		if _, err := f.coord.Playlists(ctx); !errors.Is(err, shared.ErrLockEngaged) {
			t.Errorf("expected ErrLockEngaged, got %v", err)
		}
		if _, _, err := f.coord.QueueTrack(ctx, services.Track{URI: "spotify:track:t1"}); !errors.Is(err, shared.ErrLockEngaged) {
			t.Errorf("expected ErrLockEngaged, got %v", err)
		}

		// Search input is dropped silently.
		f.coord.SearchInput(ctx, "query")
		if len(f.streaming.searched) != 0 {
			t.Error("search input while locked must be dropped")
		}

		if err := f.coord.Lock().Confirm("1234"); err != nil {
			t.Fatalf("unlock failed: %v", err)
		}
		if _, err := f.coord.Playlists(ctx); err != nil {
			t.Errorf("expected playlists after unlock, got %v", err)
		}
	})

	t.Run("Free Queue Runs Immediately", func(t *testing.T) {
		f := newTestCoordinator(t, &fakeAccounts{verdict: nearVerdict(), priceCents: 0})
		f.coord.Begin(ctx)
		f.coord.Playlists(ctx)
		f.coord.ChoosePlaylist(f.streaming.playlists[0])

		pending, capture, err := f.coord.QueueTrack(ctx, services.Track{URI: "spotify:track:t1"})
		if err != nil {
			t.Fatalf("queue failed: %v", err)
		}
		if pending != nil || capture != nil {
			t.Error("free queuing must not open a payment")
		}
		if len(f.streaming.addedURIs) != 1 || f.streaming.addedURIs[0] != "spotify:track:t1" {
			t.Errorf("expected track queued, got %v", f.streaming.addedURIs)
		}
	})

	t.Run("Paid Queue Waits For Settlement", func(t *testing.T) {
		f := newTestCoordinator(t, &fakeAccounts{verdict: nearVerdict(), priceCents: 150})
		f.coord.Begin(ctx)
		f.coord.Playlists(ctx)
		f.coord.ChoosePlaylist(f.streaming.playlists[0])

		pending, capture, err := f.coord.QueueTrack(ctx, services.Track{URI: "spotify:track:t1", Title: "Hit"})
		if err != nil {
			t.Fatalf("queue failed: %v", err)
		}
		if pending == nil || capture == nil {
			t.Fatal("paid queuing must open a payment")
		}
		if len(f.streaming.addedURIs) != 0 {
			t.Fatal("track must not queue before settlement")
		}

		if err := f.coord.ConfirmPayment(ctx, "Bar Owner"); err != nil {
			t.Fatalf("confirm failed: %v", err)
		}
		if len(f.streaming.addedURIs) != 1 {
			t.Errorf("expected track queued on settlement, got %v", f.streaming.addedURIs)
		}
	})

	t.Run("Queue Without Playlist", func(t *testing.T) {
		f := newTestCoordinator(t, &fakeAccounts{verdict: nearVerdict()})
		f.coord.Begin(ctx)

		if _, _, err := f.coord.QueueTrack(ctx, services.Track{URI: "spotify:track:t1"}); err == nil {
			t.Error("queuing without a selected playlist must fail")
		}
	})

	t.Run("Logout Clears Store", func(t *testing.T) {
		f := newTestCoordinator(t, &fakeAccounts{verdict: nearVerdict()})
		f.coord.Begin(ctx)

		if err := f.coord.Logout(); err != nil {
			t.Fatalf("logout failed: %v", err)
		}
		if _, ok := f.store.Email(); ok {
			t.Error("logout must clear the stored email")
		}
		if f.coord.Session().ProximityVerified {
			t.Error("logout must reset the session")
		}
	})
}
