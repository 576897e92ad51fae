package session

import (
	"context"
	"errors"
	"time"

	"github.com/Dmedina-coder/SuperGramola/internal/services"
	"github.com/Dmedina-coder/SuperGramola/internal/shared"
	"github.com/charmbracelet/log"
)

// locateTimeout bounds the one-shot location fix. No cached fix is accepted;
// the locator is asked fresh on every gate entry.
const locateTimeout = 10 * time.Second

// Fix is a single geolocation reading.
type Fix struct {
	Latitude  float64
	Longitude float64
}

// Locator produces a one-shot, high-accuracy location fix. Implementations
// map their failure modes onto the shared.ErrGeolocation* sentinels.
type Locator interface {
	Locate(ctx context.Context) (Fix, error)
}

// StaticLocator reports the kiosk's installed coordinates. A venue terminal
// has no GPS; its position is part of the install configuration.
type StaticLocator struct {
	Fix Fix
	// Configured reports whether coordinates were actually set; an
	// unconfigured kiosk maps to "position unavailable".
	Configured bool
}

func (s StaticLocator) Locate(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, shared.ErrGeolocationTimeout
	}
	if !s.Configured {
		return Fix{}, shared.ErrGeolocationUnavailable
	}
	return s.Fix, nil
}

// VerdictError is the oracle's "too far" answer. Its text is the oracle's
// human-readable reason, surfaced to the user verbatim.
type VerdictError struct {
	Message string
}

func (e *VerdictError) Error() string { return e.Message }

func (e *VerdictError) Is(target error) bool { return target == shared.ErrNotNearVenue }

// distanceOracle is the backend call the gate depends on.
type distanceOracle interface {
	CheckProximity(ctx context.Context, email string, latitude, longitude float64) (*services.ProximityVerdict, error)
}

// ProximityGate verifies the attendee is physically near the venue before any
// control is granted.
type ProximityGate struct {
	locator  Locator
	oracle   distanceOracle
	logger   *log.Logger
	override bool
}

// NewProximityGate creates a gate. override forces a pass unconditionally
// (controlled demonstrations) and is logged distinctly from a real pass.
func NewProximityGate(locator Locator, oracle distanceOracle, logger *log.Logger, override bool) *ProximityGate {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ProximityGate{locator: locator, oracle: oracle, logger: logger, override: override}
}

// Check runs the gate once for email. nil means the gate passed.
func (g *ProximityGate) Check(ctx context.Context, email string) error {
	if g.override {
		g.logger.Warn("proximity gate bypassed by operator override", "email", email, "override", true)
		return nil
	}

	locateCtx, cancel := context.WithTimeout(ctx, locateTimeout)
	defer cancel()

	fix, err := g.locator.Locate(locateCtx)
	if err != nil {
		return mapLocateError(err)
	}

	verdict, err := g.oracle.CheckProximity(ctx, email, fix.Latitude, fix.Longitude)
	if err != nil {
		return err
	}

	if !verdict.IsNear {
		g.logger.Info("proximity check failed", "email", email, "radius_m", verdict.RadiusM)
		return &VerdictError{Message: verdict.Message}
	}

	g.logger.Info("proximity check passed", "email", email, "radius_m", verdict.RadiusM)
	return nil
}

// mapLocateError folds locator failures onto the four standard geolocation
// failure codes.
func mapLocateError(err error) error {
	switch {
	case errors.Is(err, shared.ErrGeolocationDenied),
		errors.Is(err, shared.ErrGeolocationUnavailable),
		errors.Is(err, shared.ErrGeolocationTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return shared.ErrGeolocationTimeout
	default:
		return shared.ErrGeolocationUnknown
	}
}
