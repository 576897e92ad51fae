package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFormCapture(t *testing.T) {
	validCard := CardDetails{
		Number:   "4242 4242 4242 4242",
		ExpMonth: 12,
		ExpYear:  time.Now().Year() + 1,
		CVC:      "123",
	}

	t.Run("Details Requires Mount", func(t *testing.T) {
		capture := &formCapture{}
		capture.SetDetails(validCard)
		if _, err := capture.Details(); err == nil {
			t.Error("expected error before Mount")
		}
	})

	t.Run("Valid Card", func(t *testing.T) {
		capture := &formCapture{}
		if err := capture.Mount("payment-modal"); err != nil {
			t.Fatalf("mount failed: %v", err)
		}

		var events []ValidationEvent
		capture.OnValidationChange(func(ev ValidationEvent) { events = append(events, ev) })

		capture.SetDetails(validCard)
		if len(events) != 1 || !events[0].Complete {
			t.Fatalf("expected one complete validation event, got %v", events)
		}

		details, err := capture.Details()
		if err != nil {
			t.Fatalf("expected details, got %v", err)
		}
		if details.Number != validCard.Number {
			t.Errorf("unexpected details: %+v", details)
		}
	})

	t.Run("Invalid Cards", func(t *testing.T) {
		cases := []struct {
			name string
			card CardDetails
		}{
			{"Short Number", CardDetails{Number: "4242", ExpMonth: 12, ExpYear: 2100, CVC: "123"}},
			{"Bad Month", CardDetails{Number: "4242424242424242", ExpMonth: 13, ExpYear: 2100, CVC: "123"}},
			{"Expired", CardDetails{Number: "4242424242424242", ExpMonth: 1, ExpYear: 2020, CVC: "123"}},
			{"Bad CVC", CardDetails{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2100, CVC: "12"}},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				ev := validateCard(tc.card)
				if ev.Complete {
					t.Error("expected incomplete validation")
				}
				if ev.Message == "" {
					t.Error("expected a validation message")
				}
			})
		}
	})

	t.Run("Unmount Clears Details", func(t *testing.T) {
		capture := &formCapture{}
		capture.Mount("payment-modal")
		capture.SetDetails(validCard)
		capture.Unmount()
		capture.Unmount() // safe to repeat

		if _, err := capture.Details(); err == nil {
			t.Error("expected error after Unmount")
		}
	})
}

func TestIntentIDFromSecret(t *testing.T) {
	t.Run("Well Formed", func(t *testing.T) {
		id, err := intentIDFromSecret("pi_123_secret_abc")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "pi_123" {
			t.Errorf("expected pi_123, got %s", id)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, secret := range []string{"", "pi_123", "seti_1_secret_x"} {
			if _, err := intentIDFromSecret(secret); err == nil {
				t.Errorf("expected error for %q", secret)
			}
		}
	})
}

func TestStripeProcessor(t *testing.T) {
	ctx := context.Background()
	validCard := CardDetails{
		Number:   "4242424242424242",
		ExpMonth: 12,
		ExpYear:  time.Now().Year() + 1,
		CVC:      "123",
	}

	newCapture := func(t *testing.T, p *StripeProcessor) CardCapture {
		t.Helper()
		capture := p.CreateCapture()
		if err := capture.Mount("test"); err != nil {
			t.Fatalf("mount failed: %v", err)
		}
		capture.SetDetails(validCard)
		return capture
	}

	t.Run("Succeeded", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/payment_intents/pi_123/confirm" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			user, _, ok := r.BasicAuth()
			if !ok || user != "pk_test_key" {
				t.Errorf("expected publishable key basic auth, got %q", user)
			}
			r.ParseForm()
			if r.PostForm.Get("payment_method_data[card][number]") != validCard.Number {
				t.Errorf("card number not forwarded")
			}
			if r.PostForm.Get("payment_method_data[billing_details][name]") != "Bar Owner" {
				t.Errorf("billing name not forwarded")
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "pi_123", "status": "succeeded"})
		}))
		defer srv.Close()

		p := NewStripeProcessor("pk_test_key", srv.Client())
		p.SetBaseURL(srv.URL)

		result, err := p.ConfirmPayment(ctx, "pi_123_secret_abc", newCapture(t, p), "Bar Owner", "bar@example.com")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.ID != "pi_123" || result.Status != "succeeded" {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("Declined", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": "card_declined", "message": "Your card was declined."},
			})
		}))
		defer srv.Close()

		p := NewStripeProcessor("pk_test_key", srv.Client())
		p.SetBaseURL(srv.URL)

		_, err := p.ConfirmPayment(ctx, "pi_123_secret_abc", newCapture(t, p), "Bar Owner", "bar@example.com")
		var pe *ProcessorError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ProcessorError, got %v", err)
		}
		if pe.Message != "Your card was declined." {
			t.Errorf("decline message must be preserved verbatim, got %q", pe.Message)
		}
		if pe.Code != "card_declined" {
			t.Errorf("expected code card_declined, got %q", pe.Code)
		}
	})

	t.Run("Incomplete Capture", func(t *testing.T) {
		p := NewStripeProcessor("pk_test_key", nil)
		capture := p.CreateCapture()
		capture.Mount("test")

		if _, err := p.ConfirmPayment(ctx, "pi_123_secret_abc", capture, "", ""); err == nil {
			t.Error("expected error for incomplete capture")
		}
	})
}
