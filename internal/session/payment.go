package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Dmedina-coder/SuperGramola/internal/services"
	"github.com/Dmedina-coder/SuperGramola/internal/shared"
	"github.com/charmbracelet/log"
)

// PaymentState is a PendingPayment's lifecycle position.
type PaymentState int

const (
	Preparing PaymentState = iota
	AwaitingCardConfirmation
	ConfirmingBackend
	Settled
	Failed
)

func (s PaymentState) String() string {
	switch s {
	case Preparing:
		return "preparing"
	case AwaitingCardConfirmation:
		return "awaiting_card_confirmation"
	case ConfirmingBackend:
		return "confirming_backend"
	case Settled:
		return "settled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// terminal reports whether the state admits no further transitions.
func (s PaymentState) terminal() bool { return s == Settled || s == Failed }

// PendingPayment is the single in-flight per-track payment.
type PendingPayment struct {
	Email           string
	TrackURI        string
	TrackTitle      string
	TransactionID   string
	PaymentIntentID string
	AmountCents     int64
	State           PaymentState
	FailureReason   string

	clientSecret string
}

// paymentBackend is the settlement API the gate depends on.
type paymentBackend interface {
	PrepareSongPayment(ctx context.Context, email string, amountCents int64) (*services.PreparedPayment, error)
	ConfirmSongPayment(ctx context.Context, email, paymentIntentID string, amountCents int64, transactionID, trackURI string) error
}

// QueueAction adds a track to the destination playlist. The same executor
// serves free queuing and the payment gate's release on settlement.
type QueueAction func(ctx context.Context, track services.Track) error

// PaymentGate intercepts paid queue actions: it prepares a backend payment
// intent, drives client-side card confirmation, records an idempotent
// settlement, and only then releases the queue action. At most one
// PendingPayment exists at a time.
type PaymentGate struct {
	backend   paymentBackend
	processor services.CardProcessor
	queue     QueueAction
	logger    *log.Logger

	mu      sync.Mutex
	pending *PendingPayment
	track   *services.Track
	capture services.CardCapture
}

// NewPaymentGate wires the gate to its collaborators.
func NewPaymentGate(backend paymentBackend, processor services.CardProcessor, queue QueueAction, logger *log.Logger) *PaymentGate {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PaymentGate{backend: backend, processor: processor, queue: queue, logger: logger}
}

// Pending returns a copy of the open payment, or nil.
func (g *PaymentGate) Pending() *PendingPayment {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return nil
	}
	copy := *g.pending
	return &copy
}

// Begin opens a payment for track at priceCents. A price below the
// processor's minimum chargeable amount is raised to the floor with a logged
// warning. Returns the acquired card capture surface; the caller mounts it
// in the payment modal and must reach a terminal state or Cancel so it is
// released.
func (g *PaymentGate) Begin(ctx context.Context, email string, track services.Track, priceCents int64) (*PendingPayment, services.CardCapture, error) {
	g.mu.Lock()
	if g.pending != nil && !g.pending.State.terminal() {
		g.mu.Unlock()
		return nil, nil, shared.ErrPaymentPending
	}

	if priceCents < services.MinimumChargeCents {
		g.logger.Warn("per-track price below processor minimum, raising to floor",
			"configured_cents", priceCents, "floor_cents", services.MinimumChargeCents)
		priceCents = services.MinimumChargeCents
	}

	pending := &PendingPayment{
		Email:       email,
		TrackURI:    track.URI,
		TrackTitle:  track.Title,
		AmountCents: priceCents,
		State:       Preparing,
	}
	g.pending = pending
	g.track = &track
	g.mu.Unlock()

	prepared, err := g.backend.PrepareSongPayment(ctx, email, priceCents)
	if err != nil {
		g.fail(fmt.Sprintf("failed to prepare payment: %v", err))
		return nil, nil, err
	}

	capture := g.processor.CreateCapture()

	g.mu.Lock()
	pending.TransactionID = prepared.TransactionID
	pending.PaymentIntentID = prepared.PaymentIntentID
	pending.clientSecret = prepared.ClientSecret
	pending.State = AwaitingCardConfirmation
	g.capture = capture
	snapshot := *pending
	g.mu.Unlock()

	return &snapshot, capture, nil
}

// Confirm drives the open payment through card confirmation and backend
// settlement, then releases the queue action. The capture surface is
// released on every exit path.
func (g *PaymentGate) Confirm(ctx context.Context, billingName string) error {
	g.mu.Lock()
	pending := g.pending
	capture := g.capture
	track := g.track
	g.mu.Unlock()

	if pending == nil || pending.State != AwaitingCardConfirmation {
		return fmt.Errorf("%w: no payment awaiting confirmation", shared.ErrInvalidInput)
	}

	result, err := g.processor.ConfirmPayment(ctx, pending.clientSecret, capture, billingName, pending.Email)
	if err != nil {
		var pe *services.ProcessorError
		if errors.As(err, &pe) {
			// The processor's message is surfaced to the user verbatim.
			g.fail(pe.Message)
			return fmt.Errorf("%w: %s", shared.ErrPaymentDeclined, pe.Message)
		}
		g.fail(err.Error())
		return fmt.Errorf("%w: %v", shared.ErrPaymentDeclined, err)
	}

	if result.Status != "succeeded" {
		g.fail(fmt.Sprintf("payment not completed (status %s)", result.Status))
		return fmt.Errorf("%w: status %s", shared.ErrPaymentDeclined, result.Status)
	}

	g.mu.Lock()
	// Prefer the processor's own intent id over the one the backend echoed.
	if result.ID != "" {
		pending.PaymentIntentID = result.ID
	}
	pending.State = ConfirmingBackend
	intentID := pending.PaymentIntentID
	g.mu.Unlock()

	err = g.backend.ConfirmSongPayment(ctx, pending.Email, intentID, pending.AmountCents, pending.TransactionID, pending.TrackURI)
	if err != nil {
		// Not retried automatically: a settled processor charge with a
		// failed backend recording requires user re-initiation.
		g.fail(err.Error())
		return err
	}

	g.mu.Lock()
	pending.State = Settled
	g.releaseLocked()
	g.mu.Unlock()

	g.logger.Info("payment settled", "track", pending.TrackTitle, "amount_cents", pending.AmountCents)

	if err := g.queue(ctx, *track); err != nil {
		return fmt.Errorf("payment settled but queuing failed: %w", err)
	}
	return nil
}

// Cancel abandons the open payment and releases the capture surface.
func (g *PaymentGate) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending != nil && !g.pending.State.terminal() {
		g.pending.State = Failed
		g.pending.FailureReason = "cancelled"
	}
	g.releaseLocked()
}

func (g *PaymentGate) fail(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending != nil {
		g.pending.State = Failed
		g.pending.FailureReason = reason
	}
	g.releaseLocked()
}

// releaseLocked unmounts the capture surface. Callers hold g.mu.
func (g *PaymentGate) releaseLocked() {
	if g.capture != nil {
		g.capture.Unmount()
		g.capture = nil
	}
}
