// Spotify Web API client.
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/Dmedina-coder/SuperGramola/internal/shared"
	"golang.org/x/time/rate"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// Scopes is the fixed capability list requested during authorization:
// playback read/modify, playlist read/modify-own, library, and presence.
var Scopes = []string{
	"user-read-private",
	"user-read-email",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"user-library-read",
	"user-library-modify",
	"user-read-recently-played",
	"user-top-read",
	"app-remote-control",
	"streaming",
}

// spotifyImage represents an image resource.
type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracksField struct {
	Total int `json:"total"`
}

// spotifyPlaylist represents a playlist object in the /me/playlists listing.
type spotifyPlaylist struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Owner  owner               `json:"owner"`
	Public bool                `json:"public"`
	Tracks playlistTracksField `json:"tracks"`
	Images []spotifyImage      `json:"images"`
	URI    string              `json:"uri"`
}

type spotifyPaginatedPlaylists struct {
	Items []spotifyPlaylist `json:"items"`
	Total int               `json:"total"`
	Next  *string           `json:"next"`
}

// spotifyArtist represents an artist object.
type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []spotifyImage `json:"images"`
}

// spotifyTrack represents a track object.
type spotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	URI        string          `json:"uri"`
	DurationMS int             `json:"duration_ms"`
	Artists    []spotifyArtist `json:"artists"`
	Album      spotifyAlbum    `json:"album"`
}

type spotifyPlaylistItem struct {
	AddedAt string       `json:"added_at"`
	Track   spotifyTrack `json:"track"`
}

type spotifyPlaylistItems struct {
	Items []spotifyPlaylistItem `json:"items"`
	Total int                   `json:"total"`
}

// spotifyDevice represents a playback device.
type spotifyDevice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
}

type spotifyDevices struct {
	Devices []spotifyDevice `json:"devices"`
}

// spotifyCurrentlyPlaying represents the /me/player/currently-playing payload.
type spotifyCurrentlyPlaying struct {
	IsPlaying  bool          `json:"is_playing"`
	ProgressMS int           `json:"progress_ms"`
	Item       *spotifyTrack `json:"item"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

// SpotifyClient implements [StreamingService] against the Spotify Web API.
//
// The bearer token is read from the TokenProvider on every request; a 401
// response is surfaced as [shared.ErrAuthExpired] so callers re-enter the
// token lifecycle instead of retrying.
type SpotifyClient struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSpotifyClient creates a client reading bearer tokens from tokens.
func NewSpotifyClient(tokens TokenProvider, client *http.Client) *SpotifyClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &SpotifyClient{
		baseURL:    spotifyBaseURL,
		tokens:     tokens,
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
	}
}

// SetBaseURL overrides the API base URL. Used by tests.
func (s *SpotifyClient) SetBaseURL(u string) { s.baseURL = u }

// doRequest performs an authenticated request and decodes the JSON response
// into result when it is non-nil. A 204 returns errNoContent so callers can
// distinguish "nothing playing" from a failure.
func (s *SpotifyClient) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	token := s.tokens.AccessToken()
	if token == "" {
		return fmt.Errorf("%w: no access token", shared.ErrAuthExpired)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("request cancelled: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return errNoContent
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: status 401", shared.ErrAuthExpired)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status 403", shared.ErrPermissionDenied)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// errNoContent marks a successful 204 response.
var errNoContent = fmt.Errorf("no content")

// UserPlaylists retrieves all of the authenticated user's playlists,
// following pagination.
func (s *SpotifyClient) UserPlaylists(ctx context.Context) ([]Playlist, error) {
	var all []Playlist
	limit, offset := 50, 0

	for {
		var page spotifyPaginatedPlaylists
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, pl := range page.Items {
			all = append(all, Playlist{
				ID:         pl.ID,
				Name:       pl.Name,
				OwnerID:    pl.Owner.ID,
				TrackCount: pl.Tracks.Total,
			})
		}

		if page.Next == nil {
			break
		}
		offset += limit
	}

	return all, nil
}

// Devices lists the currently available playback devices.
func (s *SpotifyClient) Devices(ctx context.Context) ([]Device, error) {
	var resp spotifyDevices
	if err := s.doRequest(ctx, http.MethodGet, "/me/player/devices", nil, &resp); err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(resp.Devices))
	for _, d := range resp.Devices {
		devices = append(devices, Device{ID: d.ID, Name: d.Name, Type: d.Type, Active: d.IsActive})
	}
	return devices, nil
}

// ActivateDevice transfers playback to the given device without starting it.
func (s *SpotifyClient) ActivateDevice(ctx context.Context, deviceID string) error {
	body := map[string]any{
		"device_ids": []string{deviceID},
		"play":       false,
	}
	err := s.doRequest(ctx, http.MethodPut, "/me/player", body, nil)
	if err == errNoContent {
		return nil
	}
	return err
}

// PlaylistTracks retrieves the current tracks of a playlist.
func (s *SpotifyClient) PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error) {
	var resp spotifyPlaylistItems
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(resp.Items))
	for _, item := range resp.Items {
		tracks = append(tracks, trackFromSpotify(item.Track))
	}
	return tracks, nil
}

// StartPlayback starts playing the playlist context on the given device.
func (s *SpotifyClient) StartPlayback(ctx context.Context, playlistID, deviceID string) error {
	body := map[string]any{
		"context_uri": "spotify:playlist:" + playlistID,
		"device_id":   deviceID,
	}
	err := s.doRequest(ctx, http.MethodPut, "/me/player/play", body, nil)
	if err == errNoContent {
		return nil
	}
	return err
}

// CurrentlyPlaying fetches the "now playing" snapshot.
//
// Returns (nil, nil) when nothing is audibly playing: Spotify answers 204 No
// Content, or 200 with a null item.
func (s *SpotifyClient) CurrentlyPlaying(ctx context.Context) (*NowPlaying, error) {
	var resp spotifyCurrentlyPlaying
	err := s.doRequest(ctx, http.MethodGet, "/me/player/currently-playing", nil, &resp)
	if err == errNoContent {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if resp.Item == nil || !resp.IsPlaying {
		return nil, nil
	}

	np := &NowPlaying{
		TrackID:    resp.Item.ID,
		TrackURI:   resp.Item.URI,
		Title:      resp.Item.Name,
		ProgressMS: resp.ProgressMS,
		IsPlaying:  resp.IsPlaying,
	}
	if len(resp.Item.Artists) > 0 {
		np.Artist = resp.Item.Artists[0].Name
	}
	return np, nil
}

// SearchTracks searches for tracks matching the query.
func (s *SpotifyClient) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	var resp spotifySearchResponse
	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=%d", url.QueryEscape(query), limit)
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(resp.Tracks.Items))
	for _, t := range resp.Tracks.Items {
		tracks = append(tracks, trackFromSpotify(t))
	}
	return tracks, nil
}

// AddTrackToPlaylist appends the track to the destination playlist.
func (s *SpotifyClient) AddTrackToPlaylist(ctx context.Context, playlistID, trackURI string) error {
	body := map[string]any{"uris": []string{trackURI}}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	err := s.doRequest(ctx, http.MethodPost, endpoint, body, nil)
	if err == errNoContent {
		return nil
	}
	return err
}

func trackFromSpotify(t spotifyTrack) Track {
	track := Track{
		ID:         t.ID,
		URI:        t.URI,
		Title:      t.Name,
		Album:      t.Album.Name,
		DurationMS: t.DurationMS,
	}
	if len(t.Artists) > 0 {
		track.Artist = t.Artists[0].Name
	}
	return track
}
