// Card processor boundary.
//
// The kiosk never touches the processor's secret key: it confirms a backend
// allocated payment intent with the publishable key and the client secret,
// the same contract the processor's browser SDK implements.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const stripeAPIBaseURL = "https://api.stripe.com/v1"

// MinimumChargeCents is the processor's minimum chargeable amount. Prices
// configured below it are raised to the floor before an intent is prepared.
const MinimumChargeCents = 50

// CardDetails is what the capture surface collects from the attendee.
type CardDetails struct {
	Number   string
	ExpMonth int
	ExpYear  int
	CVC      string
}

// ValidationEvent reports a change in the capture surface's validity.
type ValidationEvent struct {
	Complete bool
	Message  string
}

// CardCapture is a card-input capture surface. It is acquired when the
// payment modal opens and must be released on every exit path.
type CardCapture interface {
	// Mount attaches the surface to a named container.
	Mount(container string) error

	// Unmount releases the surface. Safe to call more than once.
	Unmount()

	// OnValidationChange registers a callback for validity changes.
	OnValidationChange(fn func(ValidationEvent))

	// SetDetails records the captured card details, notifying the
	// validation callback.
	SetDetails(details CardDetails)

	// Details returns the captured card details, or an error when the
	// surface is incomplete or unmounted.
	Details() (CardDetails, error)
}

// PaymentIntentResult is the processor's answer to a confirmation call.
type PaymentIntentResult struct {
	ID     string
	Status string
}

// ProcessorError is a processor-reported decline or validation error. Its
// message is surfaced to the user verbatim.
type ProcessorError struct {
	Code    string
	Message string
}

func (e *ProcessorError) Error() string { return e.Message }

// CardProcessor is the client-side confirmation boundary.
type CardProcessor interface {
	CreateCapture() CardCapture
	ConfirmPayment(ctx context.Context, clientSecret string, capture CardCapture, billingName, email string) (*PaymentIntentResult, error)
}

// formCapture implements CardCapture for the kiosk's payment modal.
type formCapture struct {
	mu       sync.Mutex
	mounted  bool
	details  CardDetails
	complete bool
	onChange func(ValidationEvent)
}

func (c *formCapture) Mount(container string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if container == "" {
		return fmt.Errorf("empty capture container")
	}
	c.mounted = true
	return nil
}

func (c *formCapture) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounted = false
	c.details = CardDetails{}
	c.complete = false
}

func (c *formCapture) OnValidationChange(fn func(ValidationEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

func (c *formCapture) SetDetails(details CardDetails) {
	c.mu.Lock()
	c.details = details
	ev := validateCard(details)
	c.complete = ev.Complete
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(ev)
	}
}

func (c *formCapture) Details() (CardDetails, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mounted {
		return CardDetails{}, fmt.Errorf("capture surface not mounted")
	}
	if !c.complete {
		return CardDetails{}, fmt.Errorf("card details incomplete")
	}
	return c.details, nil
}

// validateCard checks the captured details the way the SDK's change events
// would: digits only, plausible length, future expiry.
func validateCard(d CardDetails) ValidationEvent {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, d.Number)

	switch {
	case len(digits) < 12 || len(digits) > 19:
		return ValidationEvent{Message: "Your card number is invalid."}
	case d.ExpMonth < 1 || d.ExpMonth > 12:
		return ValidationEvent{Message: "Your card's expiration month is invalid."}
	case expired(d.ExpYear, d.ExpMonth):
		return ValidationEvent{Message: "Your card has expired."}
	case len(d.CVC) < 3 || len(d.CVC) > 4:
		return ValidationEvent{Message: "Your card's security code is invalid."}
	}
	return ValidationEvent{Complete: true}
}

func expired(year, month int) bool {
	now := time.Now()
	if year < now.Year() {
		return true
	}
	return year == now.Year() && month < int(now.Month())
}

// StripeProcessor implements CardProcessor against the processor's REST
// confirmation endpoint using the publishable key.
type StripeProcessor struct {
	baseURL        string
	publishableKey string
	httpClient     *http.Client
}

// NewStripeProcessor creates a processor client with the publishable key.
func NewStripeProcessor(publishableKey string, client *http.Client) *StripeProcessor {
	if client == nil {
		client = http.DefaultClient
	}
	return &StripeProcessor{
		baseURL:        stripeAPIBaseURL,
		publishableKey: publishableKey,
		httpClient:     client,
	}
}

// SetBaseURL overrides the processor URL. Used by tests.
func (p *StripeProcessor) SetBaseURL(u string) { p.baseURL = u }

func (p *StripeProcessor) CreateCapture() CardCapture {
	return &formCapture{}
}

// intentIDFromSecret extracts the payment intent id from a client secret of
// the form "pi_xxx_secret_yyy".
func intentIDFromSecret(clientSecret string) (string, error) {
	idx := strings.Index(clientSecret, "_secret_")
	if !strings.HasPrefix(clientSecret, "pi_") || idx < 0 {
		return "", fmt.Errorf("malformed client secret")
	}
	return clientSecret[:idx], nil
}

// ConfirmPayment confirms the intent with the captured card details.
//
// A processor-reported decline is returned as *ProcessorError; any other
// failure is an ordinary error.
func (p *StripeProcessor) ConfirmPayment(ctx context.Context, clientSecret string, capture CardCapture, billingName, email string) (*PaymentIntentResult, error) {
	details, err := capture.Details()
	if err != nil {
		return nil, err
	}

	intentID, err := intentIDFromSecret(clientSecret)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("client_secret", clientSecret)
	form.Set("payment_method_data[type]", "card")
	form.Set("payment_method_data[card][number]", details.Number)
	form.Set("payment_method_data[card][exp_month]", fmt.Sprintf("%d", details.ExpMonth))
	form.Set("payment_method_data[card][exp_year]", fmt.Sprintf("%d", details.ExpYear))
	form.Set("payment_method_data[card][cvc]", details.CVC)
	form.Set("payment_method_data[billing_details][name]", billingName)
	form.Set("payment_method_data[billing_details][email]", email)

	endpoint := fmt.Sprintf("%s/payment_intents/%s/confirm", p.baseURL, intentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(p.publishableKey, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("confirmation request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var payload struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Error  *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if payload.Error != nil {
		return nil, &ProcessorError{Code: payload.Error.Code, Message: payload.Error.Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("processor status %d", resp.StatusCode)
	}

	return &PaymentIntentResult{ID: payload.ID, Status: payload.Status}, nil
}
