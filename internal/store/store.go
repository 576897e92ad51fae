// package store implements the persisted client-side session state.
//
// The kiosk keeps a small set of documented keys (identity, token pair,
// entitlement flags, selected playlist/device) that must survive a reload and
// be cleared on logout. Store is the injected abstraction; the sqlite
// implementation backs a real install and MemoryStore backs tests and
// ephemeral sessions.
package store

import "sync"

// Documented keys for persisted client-side state.
const (
	KeyUserEmail        = "user_email"
	KeyAccessToken      = "spotify_access_token"
	KeyRefreshToken     = "spotify_refresh_token"
	KeyTokenExpiresAt   = "spotify_token_expires_at"
	KeyOAuthState       = "oauth_state"
	KeyPremiumActive    = "premium_active"
	KeyTrackPriceCents  = "track_price_cents"
	KeySelectedPlaylist = "selected_playlist_id"
	KeyPlaylistName     = "selected_playlist_name"
	KeySelectedDevice   = "selected_device_id"
	KeyDeviceName       = "selected_device_name"
)

// Store defines the key-value contract for persisted session state.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// Set writes the value for key, replacing any previous value.
	Set(key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Clear removes every key. Used on logout.
	Clear() error
}

// MemoryStore is an in-memory Store for tests and ephemeral sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
	return nil
}
