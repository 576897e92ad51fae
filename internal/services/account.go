package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/Dmedina-coder/SuperGramola/internal/shared"
)

// AccountClient talks to the venue backend's account API: proximity oracle,
// per-track price, subscription flag, and venue metadata.
type AccountClient struct {
	backendClient
}

// NewAccountClient creates an account API client for the given base URL.
func NewAccountClient(baseURL string, client *http.Client) *AccountClient {
	return &AccountClient{newBackendClient(baseURL, client)}
}

// ProximityVerdict is the distance oracle's answer.
type ProximityVerdict struct {
	IsNear  bool
	RadiusM int
	Message string
}

type proximityResponse struct {
	EstaCerca bool   `json:"estaCerca"`
	Radio     int    `json:"radio"`
	Mensaje   string `json:"mensaje"`
}

// CheckProximity asks the backend whether the given coordinates are within
// the venue's radius. A 404 means the venue has no registered coordinates
// and is reported distinctly.
func (a *AccountClient) CheckProximity(ctx context.Context, email string, latitude, longitude float64) (*ProximityVerdict, error) {
	body := map[string]float64{"latitud": latitude, "longitud": longitude}
	path := fmt.Sprintf("/users/%s/check-proximity", url.PathEscape(email))

	var resp proximityResponse
	if err := a.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		var be *backendError
		if errors.As(err, &be) && be.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", shared.ErrVenueNotConfigured, be.Message)
		}
		return nil, err
	}

	return &ProximityVerdict{IsNear: resp.EstaCerca, RadiusM: resp.Radio, Message: resp.Mensaje}, nil
}

// TrackPriceCents fetches the configured per-track price in minor units.
// The backend stores euros; conversion happens at this boundary.
func (a *AccountClient) TrackPriceCents(ctx context.Context, email string) (int64, error) {
	var euros float64
	path := fmt.Sprintf("/users/%s/coste-cancion", url.PathEscape(email))
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &euros); err != nil {
		return 0, err
	}
	return int64(math.Round(euros * 100)), nil
}

// SetTrackPriceCents updates the per-track price.
func (a *AccountClient) SetTrackPriceCents(ctx context.Context, email string, cents int64) error {
	body := map[string]float64{"costeCancion": float64(cents) / 100}
	path := fmt.Sprintf("/users/%s/coste-cancion", url.PathEscape(email))
	return a.doJSON(ctx, http.MethodPut, path, body, nil)
}

// SubscriptionActive reports whether the venue's subscription is current.
func (a *AccountClient) SubscriptionActive(ctx context.Context, email string) (bool, error) {
	var active bool
	path := fmt.Sprintf("/users/%s/subscription/active", url.PathEscape(email))
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &active); err != nil {
		return false, err
	}
	return active, nil
}

// VenueData is the bar's metadata record.
type VenueData struct {
	Name     string `json:"nombreBar"`
	Location string `json:"ubicacionBar"`
}

// VenueData fetches the bar name and registered street address.
func (a *AccountClient) VenueData(ctx context.Context, email string) (*VenueData, error) {
	var data VenueData
	path := fmt.Sprintf("/users/%s/bar-data", url.PathEscape(email))
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SetVenueData updates the bar name and street address. The backend geocodes
// the address to the coordinates the proximity oracle uses.
func (a *AccountClient) SetVenueData(ctx context.Context, email string, data VenueData) error {
	path := fmt.Sprintf("/users/%s/bar-data", url.PathEscape(email))
	return a.doJSON(ctx, http.MethodPut, path, data, nil)
}
