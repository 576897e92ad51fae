// package services implements the typed clients for the system's external
// boundaries: the Spotify Web API, the venue account/payment backend, and
// the card processor.
//
// Every endpoint has a declared response schema; loosely-typed payloads are
// parsed and validated here so the session orchestrator only sees typed
// structures and tagged errors.
package services

import "context"

// TokenProvider supplies the current bearer token for streaming API calls.
//
// Consulted lazily on every request so a token refreshed mid-session takes
// effect without rebuilding the client.
type TokenProvider interface {
	AccessToken() string
}

// StreamingService is the surface of the streaming API the session uses.
// Implemented by SpotifyClient; test doubles implement it in _test files.
type StreamingService interface {
	UserPlaylists(ctx context.Context) ([]Playlist, error)
	Devices(ctx context.Context) ([]Device, error)
	ActivateDevice(ctx context.Context, deviceID string) error
	PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error)
	StartPlayback(ctx context.Context, playlistID, deviceID string) error
	CurrentlyPlaying(ctx context.Context) (*NowPlaying, error)
	SearchTracks(ctx context.Context, query string, limit int) ([]Track, error)
	AddTrackToPlaylist(ctx context.Context, playlistID, trackURI string) error
}

// Playlist is the session-facing playlist shape.
type Playlist struct {
	ID         string
	Name       string
	OwnerID    string
	TrackCount int
}

// Device is a playback device reported by the streaming API.
type Device struct {
	ID     string
	Name   string
	Type   string
	Active bool
}

// Track is the session-facing track shape.
type Track struct {
	ID         string
	URI        string
	Title      string
	Artist     string
	Album      string
	DurationMS int
}

// NowPlaying is the current playback snapshot. A nil *NowPlaying from
// CurrentlyPlaying means nothing is audibly playing, which is distinct from
// an error (the caller keeps its previous value on error).
type NowPlaying struct {
	TrackID    string
	TrackURI   string
	Title      string
	Artist     string
	ProgressMS int
	IsPlaying  bool
}
