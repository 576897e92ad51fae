package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/Dmedina-coder/SuperGramola/internal/shared"
)

// PaymentsClient talks to the venue backend's payment API. The backend
// allocates processor payment intents and records settlements; the client
// side confirms the charge with the processor in between.
type PaymentsClient struct {
	backendClient
}

// NewPaymentsClient creates a payments API client for the given base URL.
func NewPaymentsClient(baseURL string, client *http.Client) *PaymentsClient {
	return &PaymentsClient{newBackendClient(baseURL, client)}
}

// PreparedPayment is a backend-allocated payment intent ready for client
// confirmation.
type PreparedPayment struct {
	TransactionID   string
	PaymentIntentID string
	ClientSecret    string
	AmountCents     int64
}

// transactionRecord is the backend's transaction shape. The data field is the
// processor's PaymentIntent serialized as a nested JSON string and must be
// parsed before the client secret is usable.
type transactionRecord struct {
	ID            string `json:"id"`
	TransactionID string `json:"transactionId"`
	Data          string `json:"data"`
	Email         string `json:"email"`
}

type intentPayload struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
}

func (t *transactionRecord) parse() (*PreparedPayment, error) {
	id := t.ID
	if id == "" {
		id = t.TransactionID
	}
	if id == "" {
		return nil, fmt.Errorf("transaction record has no id")
	}
	if t.Data == "" {
		return nil, fmt.Errorf("transaction record has no intent payload")
	}

	var intent intentPayload
	if err := json.Unmarshal([]byte(t.Data), &intent); err != nil {
		return nil, fmt.Errorf("failed to parse intent payload: %w", err)
	}
	if intent.ClientSecret == "" {
		return nil, fmt.Errorf("intent payload has no client secret")
	}

	return &PreparedPayment{
		TransactionID:   id,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		AmountCents:     intent.Amount,
	}, nil
}

// PrepareSongPayment allocates a payment intent for a per-track charge.
// The amount crosses the wire in euros; cents are the internal unit.
func (p *PaymentsClient) PrepareSongPayment(ctx context.Context, email string, amountCents int64) (*PreparedPayment, error) {
	body := map[string]any{"email": email, "amount": float64(amountCents) / 100}

	var record transactionRecord
	if err := p.doJSON(ctx, http.MethodPost, "/payments/prepay-song", body, &record); err != nil {
		return nil, err
	}
	prepared, err := record.parse()
	if err != nil {
		return nil, err
	}
	if prepared.AmountCents == 0 {
		prepared.AmountCents = amountCents
	}
	return prepared, nil
}

// ConfirmSongPayment records an idempotent settlement for a processor-settled
// per-track charge. paymentIntentID must be the processor's own id, not one
// echoed earlier by the backend. Failures surface the backend's message and
// are not retried here.
func (p *PaymentsClient) ConfirmSongPayment(ctx context.Context, email, paymentIntentID string, amountCents int64, transactionID, trackURI string) error {
	body := map[string]any{
		"email":           email,
		"paymentIntentId": paymentIntentID,
		"amount":          float64(amountCents) / 100,
		"transactionId":   transactionID,
		"trackUri":        trackURI,
	}

	if err := p.doJSON(ctx, http.MethodPost, "/payments/confirm-song", body, nil); err != nil {
		var be *backendError
		if errors.As(err, &be) {
			return fmt.Errorf("%w: %s", shared.ErrSettlementFailed, be.Error())
		}
		return fmt.Errorf("%w: %v", shared.ErrSettlementFailed, err)
	}
	return nil
}

// PrepareSubscriptionPayment allocates a payment intent for the venue's
// subscription renewal.
func (p *PaymentsClient) PrepareSubscriptionPayment(ctx context.Context) (*PreparedPayment, error) {
	var record transactionRecord
	if err := p.doJSON(ctx, http.MethodGet, "/payments/prepay", nil, &record); err != nil {
		return nil, err
	}
	return record.parse()
}

// SubscriptionCostCents fetches the subscription price. Defaults to 9.99 EUR
// when the backend cannot provide one.
func (p *PaymentsClient) SubscriptionCostCents(ctx context.Context) int64 {
	var resp struct {
		Cost   float64 `json:"cost"`
		Amount float64 `json:"amount"`
	}
	if err := p.doJSON(ctx, http.MethodGet, "/payments/subscription-cost", nil, &resp); err != nil {
		return 999
	}
	euros := resp.Cost
	if euros == 0 {
		euros = resp.Amount
	}
	if euros == 0 {
		return 999
	}
	return int64(math.Round(euros * 100))
}

// ConfirmSubscriptionPayment records the settlement of a subscription charge.
func (p *PaymentsClient) ConfirmSubscriptionPayment(ctx context.Context, email, paymentIntentID string, amountCents int64, transactionID string) error {
	body := map[string]any{
		"email":           email,
		"paymentIntentId": paymentIntentID,
		"amount":          float64(amountCents) / 100,
		"transactionId":   transactionID,
	}

	if err := p.doJSON(ctx, http.MethodPost, "/payments/confirm-subscription", body, nil); err != nil {
		var be *backendError
		if errors.As(err, &be) {
			return fmt.Errorf("%w: %s", shared.ErrSettlementFailed, be.Error())
		}
		return fmt.Errorf("%w: %v", shared.ErrSettlementFailed, err)
	}
	return nil
}
