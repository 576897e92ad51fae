package store

import (
	"fmt"
	"strconv"
	"time"
)

// SessionStore exposes the documented keys as typed accessors over a Store.
//
// Writes are serialized by the orchestrator (single-writer convention); reads
// are safe from any component.
type SessionStore struct {
	s Store
}

// NewSessionStore wraps a Store.
func NewSessionStore(s Store) *SessionStore {
	return &SessionStore{s: s}
}

func (ss *SessionStore) Email() (string, bool) {
	v, ok, err := ss.s.Get(KeyUserEmail)
	return v, ok && err == nil
}

func (ss *SessionStore) SetEmail(email string) error {
	return ss.s.Set(KeyUserEmail, email)
}

// Tokens returns the delegated-auth token pair. Either may be empty.
func (ss *SessionStore) Tokens() (access, refresh string) {
	access, _, _ = ss.s.Get(KeyAccessToken)
	refresh, _, _ = ss.s.Get(KeyRefreshToken)
	return access, refresh
}

// SetTokens stores the token pair and the absolute expiry instant.
func (ss *SessionStore) SetTokens(access, refresh string, expiresAt time.Time) error {
	if err := ss.s.Set(KeyAccessToken, access); err != nil {
		return err
	}
	if refresh != "" {
		if err := ss.s.Set(KeyRefreshToken, refresh); err != nil {
			return err
		}
	}
	return ss.s.Set(KeyTokenExpiresAt, strconv.FormatInt(expiresAt.Unix(), 10))
}

// TokenExpiresAt returns the stored expiry instant, or zero time if unset.
func (ss *SessionStore) TokenExpiresAt() time.Time {
	v, ok, err := ss.s.Get(KeyTokenExpiresAt)
	if !ok || err != nil {
		return time.Time{}
	}
	unix, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

func (ss *SessionStore) OAuthState() (string, bool) {
	v, ok, err := ss.s.Get(KeyOAuthState)
	return v, ok && err == nil
}

func (ss *SessionStore) SetOAuthState(state string) error {
	return ss.s.Set(KeyOAuthState, state)
}

func (ss *SessionStore) PremiumActive() bool {
	v, ok, err := ss.s.Get(KeyPremiumActive)
	return ok && err == nil && v == "true"
}

func (ss *SessionStore) SetPremiumActive(active bool) error {
	return ss.s.Set(KeyPremiumActive, strconv.FormatBool(active))
}

// TrackPriceCents returns the cached per-track price in minor units.
// Zero means queuing is free.
func (ss *SessionStore) TrackPriceCents() int64 {
	v, ok, err := ss.s.Get(KeyTrackPriceCents)
	if !ok || err != nil {
		return 0
	}
	cents, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return cents
}

func (ss *SessionStore) SetTrackPriceCents(cents int64) error {
	if cents < 0 {
		return fmt.Errorf("negative price: %d", cents)
	}
	return ss.s.Set(KeyTrackPriceCents, strconv.FormatInt(cents, 10))
}

// Selection returns the persisted playlist/device selection for resume.
func (ss *SessionStore) Selection() (playlistID, playlistName, deviceID, deviceName string) {
	playlistID, _, _ = ss.s.Get(KeySelectedPlaylist)
	playlistName, _, _ = ss.s.Get(KeyPlaylistName)
	deviceID, _, _ = ss.s.Get(KeySelectedDevice)
	deviceName, _, _ = ss.s.Get(KeyDeviceName)
	return
}

func (ss *SessionStore) SetSelectedPlaylist(id, name string) error {
	if err := ss.s.Set(KeySelectedPlaylist, id); err != nil {
		return err
	}
	return ss.s.Set(KeyPlaylistName, name)
}

func (ss *SessionStore) SetSelectedDevice(id, name string) error {
	if err := ss.s.Set(KeySelectedDevice, id); err != nil {
		return err
	}
	return ss.s.Set(KeyDeviceName, name)
}

// Clear wipes all persisted state. Called on logout and navigation-away.
func (ss *SessionStore) Clear() error {
	return ss.s.Clear()
}
