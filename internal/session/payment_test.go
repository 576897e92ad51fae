package session

import (
	"context"
	"errors"
	"testing"

	"github.com/Dmedina-coder/SuperGramola/internal/services"
	"github.com/Dmedina-coder/SuperGramola/internal/shared"
)

// fakePayBackend implements paymentBackend.
type fakePayBackend struct {
	prepareErr  error
	confirmErr  error
	preparedFor int64
	confirmed   []string // payment intent ids
	lastTrack   string
	lastAmount  int64
}

func (f *fakePayBackend) PrepareSongPayment(ctx context.Context, email string, amountCents int64) (*services.PreparedPayment, error) {
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	f.preparedFor = amountCents
	return &services.PreparedPayment{
		TransactionID:   "tx_1",
		PaymentIntentID: "pi_backend",
		ClientSecret:    "pi_backend_secret_abc",
		AmountCents:     amountCents,
	}, nil
}

func (f *fakePayBackend) ConfirmSongPayment(ctx context.Context, email, paymentIntentID string, amountCents int64, transactionID, trackURI string) error {
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmed = append(f.confirmed, paymentIntentID)
	f.lastTrack = trackURI
	f.lastAmount = amountCents
	return nil
}

// stubCapture implements services.CardCapture.
type stubCapture struct {
	mounted   bool
	unmounted bool
}

func (c *stubCapture) Mount(container string) error                         { c.mounted = true; return nil }
func (c *stubCapture) Unmount()                                             { c.unmounted = true }
func (c *stubCapture) OnValidationChange(fn func(services.ValidationEvent)) {}
func (c *stubCapture) SetDetails(details services.CardDetails)              {}
func (c *stubCapture) Details() (services.CardDetails, error) {
	return services.CardDetails{Number: "4242424242424242"}, nil
}

// fakeProcessor implements services.CardProcessor.
type fakeProcessor struct {
	result  *services.PaymentIntentResult
	err     error
	capture *stubCapture
}

func (f *fakeProcessor) CreateCapture() services.CardCapture {
	f.capture = &stubCapture{}
	return f.capture
}

func (f *fakeProcessor) ConfirmPayment(ctx context.Context, clientSecret string, capture services.CardCapture, billingName, email string) (*services.PaymentIntentResult, error) {
	return f.result, f.err
}

func TestPaymentGate(t *testing.T) {
	ctx := context.Background()
	track := services.Track{URI: "spotify:track:t1", Title: "Hit Song"}

	succeed := func() *fakeProcessor {
		return &fakeProcessor{result: &services.PaymentIntentResult{ID: "pi_processor", Status: "succeeded"}}
	}

	t.Run("Settles And Releases Queue Once", func(t *testing.T) {
		backend := &fakePayBackend{}
		processor := succeed()
		queued := 0
		gate := NewPaymentGate(backend, processor, func(ctx context.Context, tr services.Track) error {
			queued++
			if tr.URI != track.URI {
				t.Errorf("queue got wrong track: %s", tr.URI)
			}
			return nil
		}, nil)

		pending, capture, err := gate.Begin(ctx, "bar@example.com", track, 150)
		if err != nil {
			t.Fatalf("begin failed: %v", err)
		}
		if capture == nil {
			t.Fatal("expected a capture surface")
		}
		if pending.State != AwaitingCardConfirmation {
			t.Fatalf("expected AwaitingCardConfirmation, got %v", pending.State)
		}
		if pending.AmountCents != 150 {
			t.Errorf("expected 150 cents, got %d", pending.AmountCents)
		}
		if queued != 0 {
			t.Fatal("queue must not run before settlement")
		}

		if err := gate.Confirm(ctx, "Bar Owner"); err != nil {
			t.Fatalf("confirm failed: %v", err)
		}
		if queued != 1 {
			t.Fatalf("queue must run exactly once on settlement, ran %d", queued)
		}
		if got := gate.Pending(); got == nil || got.State != Settled {
			t.Errorf("expected Settled, got %+v", got)
		}
		if !processor.capture.unmounted {
			t.Error("capture surface must be released on settlement")
		}
		// Backend settlement records the processor's intent id, not the
		// one echoed at prepare time.
		if len(backend.confirmed) != 1 || backend.confirmed[0] != "pi_processor" {
			t.Errorf("expected settlement with pi_processor, got %v", backend.confirmed)
		}
		if backend.lastTrack != track.URI {
			t.Errorf("settlement must carry the track URI, got %s", backend.lastTrack)
		}
	})

	t.Run("Raises Price To Processor Floor", func(t *testing.T) {
		backend := &fakePayBackend{}
		gate := NewPaymentGate(backend, succeed(), func(context.Context, services.Track) error { return nil }, nil)

		pending, _, err := gate.Begin(ctx, "bar@example.com", track, 10)
		if err != nil {
			t.Fatalf("begin failed: %v", err)
		}
		if pending.AmountCents != services.MinimumChargeCents {
			t.Errorf("expected floor %d, got %d", services.MinimumChargeCents, pending.AmountCents)
		}
		if backend.preparedFor != services.MinimumChargeCents {
			t.Errorf("backend must see the coerced amount, got %d", backend.preparedFor)
		}
	})

	t.Run("Single Pending Payment", func(t *testing.T) {
		gate := NewPaymentGate(&fakePayBackend{}, succeed(), func(context.Context, services.Track) error { return nil }, nil)

		if _, _, err := gate.Begin(ctx, "bar@example.com", track, 150); err != nil {
			t.Fatalf("begin failed: %v", err)
		}
		if _, _, err := gate.Begin(ctx, "bar@example.com", track, 150); !errors.Is(err, shared.ErrPaymentPending) {
			t.Errorf("expected ErrPaymentPending, got %v", err)
		}

		// A terminal payment frees the slot.
		gate.Cancel()
		if _, _, err := gate.Begin(ctx, "bar@example.com", track, 150); err != nil {
			t.Errorf("begin after cancel failed: %v", err)
		}
	})

	t.Run("Decline Surfaces Processor Message Verbatim", func(t *testing.T) {
		processor := &fakeProcessor{err: &services.ProcessorError{Code: "card_declined", Message: "Your card was declined."}}
		queued := 0
		gate := NewPaymentGate(&fakePayBackend{}, processor, func(context.Context, services.Track) error {
			queued++
			return nil
		}, nil)

		gate.Begin(ctx, "bar@example.com", track, 150)
		err := gate.Confirm(ctx, "Bar Owner")
		if !errors.Is(err, shared.ErrPaymentDeclined) {
			t.Fatalf("expected ErrPaymentDeclined, got %v", err)
		}

		pending := gate.Pending()
		if pending.State != Failed {
			t.Errorf("expected Failed, got %v", pending.State)
		}
		if pending.FailureReason != "Your card was declined." {
			t.Errorf("decline reason must be verbatim, got %q", pending.FailureReason)
		}
		if queued != 0 {
			t.Error("declined payment must never queue")
		}
		if !processor.capture.unmounted {
			t.Error("capture surface must be released on decline")
		}
	})

	t.Run("Settlement Failure Is Terminal", func(t *testing.T) {
		backend := &fakePayBackend{confirmErr: shared.ErrSettlementFailed}
		queued := 0
		gate := NewPaymentGate(backend, succeed(), func(context.Context, services.Track) error {
			queued++
			return nil
		}, nil)

		gate.Begin(ctx, "bar@example.com", track, 150)
		err := gate.Confirm(ctx, "Bar Owner")
		if !errors.Is(err, shared.ErrSettlementFailed) {
			t.Fatalf("expected settlement failure, got %v", err)
		}
		if queued != 0 {
			t.Error("failed settlement must not queue")
		}
		if gate.Pending().State != Failed {
			t.Errorf("expected Failed, got %v", gate.Pending().State)
		}

		// No automatic retry: confirming again is rejected.
		if err := gate.Confirm(ctx, "Bar Owner"); err == nil {
			t.Error("terminal payment must not be confirmable again")
		}
	})

	t.Run("Prepare Failure", func(t *testing.T) {
		backend := &fakePayBackend{prepareErr: errors.New("backend down")}
		gate := NewPaymentGate(backend, succeed(), func(context.Context, services.Track) error { return nil }, nil)

		if _, _, err := gate.Begin(ctx, "bar@example.com", track, 150); err == nil {
			t.Fatal("expected prepare failure")
		}
		if gate.Pending().State != Failed {
			t.Errorf("expected Failed, got %v", gate.Pending().State)
		}
	})

	t.Run("Cancel Releases Capture", func(t *testing.T) {
		processor := succeed()
		gate := NewPaymentGate(&fakePayBackend{}, processor, func(context.Context, services.Track) error { return nil }, nil)

		gate.Begin(ctx, "bar@example.com", track, 150)
		gate.Cancel()

		if !processor.capture.unmounted {
			t.Error("cancel must release the capture surface")
		}
		if gate.Pending().State != Failed {
			t.Errorf("expected Failed after cancel, got %v", gate.Pending().State)
		}
	})
}
