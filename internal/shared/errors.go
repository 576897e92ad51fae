package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authorization errors
	ErrAuthExpired    = fmt.Errorf("authorization expired")
	ErrCsrfMismatch   = fmt.Errorf("state mismatch")
	ErrExchangeFailed = fmt.Errorf("code exchange failed")
	ErrRefreshFailed  = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")

	// Proximity errors
	ErrGeolocationDenied      = fmt.Errorf("location permission denied")
	ErrGeolocationUnavailable = fmt.Errorf("position unavailable")
	ErrGeolocationTimeout     = fmt.Errorf("location fix timed out")
	ErrGeolocationUnknown     = fmt.Errorf("location error")
	ErrVenueNotConfigured     = fmt.Errorf("venue has no registered coordinates")
	ErrNotNearVenue           = fmt.Errorf("not near venue")

	// Payment errors
	ErrPaymentDeclined  = fmt.Errorf("payment declined")
	ErrSettlementFailed = fmt.Errorf("payment settlement failed")
	ErrPaymentPending   = fmt.Errorf("a payment is already in progress")

	// Session errors
	ErrLockEngaged      = fmt.Errorf("screen is locked")
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
